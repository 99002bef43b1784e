// Package factory provides generic CRUD handlers over any document collection.
package factory

import (
	"context"
	"errors"

	"folio/internal/models"
	"folio/internal/query"
	"folio/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store is the data access a resource needs. repository.Collection satisfies it.
type Store[D models.Document] interface {
	Create(ctx context.Context, doc D) error
	FindByID(ctx context.Context, id string) (D, error)
	Find(ctx context.Context, q query.Query) ([]D, error)
	UpdateByID(ctx context.Context, id string, doc D) (D, error)
	DeleteByID(ctx context.Context, id string) error
}

// Resource is the HTTP surface of a CRUD resource.
type Resource interface {
	Label() string
	CreateOne() fiber.Handler
	GetAll() fiber.Handler
	GetOne() fiber.Handler
	UpdateOne() fiber.Handler
	DeleteOne() fiber.Handler
}

// Options describes one resource.
type Options[D models.Document] struct {
	// Label names the entity in messages, e.g. "project".
	Label string
	// New returns an empty document to decode request bodies into.
	New func() D
	// Schema limits which fields list queries may reference.
	Schema *query.Schema
	// Param is the route parameter holding the id. Ignored when ID is set.
	Param string
	// ID resolves the target id, e.g. from the authenticated user.
	ID func(c *fiber.Ctx) string
	// Scope adds mandatory filters to list queries.
	Scope func(c *fiber.Ctx) bson.M
}

// Page is one page of a list query.
type Page[D any] struct {
	Docs    []D
	Result  int
	HasNext bool
}

// Handler implements Resource for documents of type D.
type Handler[D models.Document] struct {
	store Store[D]
	opts  Options[D]
}

var _ Resource = (*Handler[*models.Project])(nil)

// New builds a Handler. Label, New and Schema are required.
func New[D models.Document](store Store[D], opts Options[D]) *Handler[D] {
	if opts.Param == "" {
		opts.Param = "id"
	}
	return &Handler[D]{store: store, opts: opts}
}

func (h *Handler[D]) Label() string { return h.opts.Label }

// Create validates and inserts doc. Client-supplied ids and timestamps are discarded.
func (h *Handler[D]) Create(ctx context.Context, doc D) (D, error) {
	doc.ResetMeta()
	if err := validation.Struct(doc); err != nil {
		var zero D
		return zero, err
	}
	if err := h.store.Create(ctx, doc); err != nil {
		var zero D
		return zero, err
	}
	return doc, nil
}

// List runs q. HasNext is true when the page came back full, which can
// report a next page that turns out to be empty.
func (h *Handler[D]) List(ctx context.Context, q query.Query) (Page[D], error) {
	docs, err := h.store.Find(ctx, q)
	if err != nil {
		return Page[D]{}, err
	}
	return Page[D]{
		Docs:    docs,
		Result:  len(docs),
		HasNext: int64(len(docs)) == q.Limit,
	}, nil
}

// Get loads one document.
func (h *Handler[D]) Get(ctx context.Context, id string) (D, error) {
	doc, err := h.store.FindByID(ctx, id)
	if err != nil {
		var zero D
		return zero, h.notFound(err)
	}
	return doc, nil
}

// Update loads the document, applies merge to it, validates the whole
// result and stores it.
func (h *Handler[D]) Update(ctx context.Context, id string, merge func(D) error) (D, error) {
	var zero D
	doc, err := h.store.FindByID(ctx, id)
	if err != nil {
		return zero, h.notFound(err)
	}
	oid := doc.GetID()
	if err := merge(doc); err != nil {
		return zero, err
	}
	doc.SetID(oid)
	if err := validation.Struct(doc); err != nil {
		return zero, err
	}
	updated, err := h.store.UpdateByID(ctx, id, doc)
	if err != nil {
		return zero, h.notFound(err)
	}
	return updated, nil
}

// Delete removes one document.
func (h *Handler[D]) Delete(ctx context.Context, id string) error {
	return h.notFound(h.store.DeleteByID(ctx, id))
}

func (h *Handler[D]) notFound(err error) error {
	if errors.Is(err, models.ErrDocumentNotFound) {
		return models.NewNotFoundError(h.opts.Label)
	}
	return err
}

func (h *Handler[D]) id(c *fiber.Ctx) string {
	if h.opts.ID != nil {
		return h.opts.ID(c)
	}
	return c.Params(h.opts.Param)
}

// CreateOne handles POST.
func (h *Handler[D]) CreateOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc := h.opts.New()
		if err := c.BodyParser(doc); err != nil {
			return models.NewBadRequestError("Invalid request body")
		}
		created, err := h.Create(c.UserContext(), doc)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"status": "success",
			"data":   created,
		})
	}
}

// GetAll handles list requests with filtering, sorting, field selection and pagination.
func (h *Handler[D]) GetAll() fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := query.Parse(h.opts.Schema, c.Queries())
		if err != nil {
			return err
		}
		if h.opts.Scope != nil {
			if extra := h.opts.Scope(c); len(extra) > 0 {
				q = q.Scope(extra)
			}
		}
		page, err := h.List(c.UserContext(), q)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"status":  "success",
			"result":  page.Result,
			"hasNext": page.HasNext,
			"data":    page.Docs,
		})
	}
}

// GetOne handles GET by id.
func (h *Handler[D]) GetOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := h.Get(c.UserContext(), h.id(c))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success", "data": doc})
	}
}

// UpdateOne handles PATCH with a partial JSON body.
func (h *Handler[D]) UpdateOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		updated, err := h.Update(c.UserContext(), h.id(c), func(doc D) error {
			if err := c.BodyParser(doc); err != nil {
				return models.NewBadRequestError("Invalid request body")
			}
			return nil
		})
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"status": "success", "data": updated})
	}
}

// DeleteOne handles DELETE and answers 204.
func (h *Handler[D]) DeleteOne() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := h.Delete(c.UserContext(), h.id(c)); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// IsID reports whether s is a well-formed document id.
func IsID(s string) bool {
	return primitive.IsValidObjectID(s)
}
