package server

import (
	"errors"
	"fmt"
	"log/slog"

	"folio/internal/models"
	"folio/internal/observability"
	"folio/internal/security"

	"github.com/gofiber/fiber/v2"
)

const (
	msgUnexpected   = "Something went wrong, please try again later"
	msgEmailTaken   = "Email already exists."
	msgInvalidToken = "Please login in again before you can have access."
	msgTokenExpired = "Token Expired, please login again"
)

// normalized is an error reduced to what the client is told.
type normalized struct {
	Status      int
	Kind        models.ErrorKind
	Message     string
	Operational bool
}

// classify maps any error returned by a handler to a status and message.
// The first matching rule wins.
func classify(err error) normalized {
	var (
		appErr   *models.AppError
		credErr  *security.CredentialError
		fiberErr *fiber.Error
	)

	switch {
	case errors.As(err, &appErr):
		return classifyApp(appErr)
	case errors.As(err, &credErr):
		return normalized{fiber.StatusBadRequest, models.KindValidationFailed, credErr.Error(), true}
	case errors.Is(err, security.ErrInvalidToken):
		return normalized{fiber.StatusUnauthorized, models.KindUnauthenticated, msgInvalidToken, true}
	case errors.Is(err, security.ErrTokenExpired):
		return normalized{fiber.StatusUnauthorized, models.KindUnauthenticated, msgTokenExpired, true}
	case errors.Is(err, models.ErrDocumentNotFound):
		return normalized{fiber.StatusNotFound, models.KindNotFound, "That document does not exist", true}
	case errors.As(err, &fiberErr):
		return normalized{fiberErr.Code, kindForStatus(fiberErr.Code), fiberErr.Message, fiberErr.Code < fiber.StatusInternalServerError}
	default:
		return normalized{fiber.StatusInternalServerError, models.KindUnexpected, msgUnexpected, false}
	}
}

func classifyApp(e *models.AppError) normalized {
	switch e.Kind {
	case models.KindTypeMismatch:
		return normalized{fiber.StatusBadRequest, e.Kind, fmt.Sprintf("Invalid %s: %v.", e.Field, e.Value), true}
	case models.KindDuplicateKey:
		msg := fmt.Sprintf("%v already exists, use another value", e.Value)
		if e.Field == "email" {
			msg = msgEmailTaken
		}
		return normalized{fiber.StatusBadRequest, e.Kind, msg, true}
	}
	if !e.Operational {
		return normalized{fiber.StatusInternalServerError, models.KindUnexpected, msgUnexpected, false}
	}
	status := e.Status
	if status == 0 {
		status = fiber.StatusBadRequest
	}
	return normalized{status, e.Kind, e.Message, true}
}

func kindForStatus(code int) models.ErrorKind {
	switch {
	case code == fiber.StatusUnauthorized:
		return models.KindUnauthenticated
	case code == fiber.StatusNotFound:
		return models.KindNotFound
	case code >= fiber.StatusInternalServerError:
		return models.KindUnexpected
	default:
		return models.KindValidationFailed
	}
}

// ErrorHandler renders every error as the JSON envelope. In verbose mode the
// classification and the raw error are included for debugging.
func ErrorHandler(verbose bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		n := classify(err)
		observability.ErrorsByKind.WithLabelValues(string(n.Kind)).Inc()

		if !n.Operational {
			slog.ErrorContext(c.UserContext(), "Unexpected error",
				slog.String("method", c.Method()),
				slog.String("path", c.Path()),
				slog.String("error", err.Error()),
			)
		}

		if verbose {
			return c.Status(n.Status).JSON(fiber.Map{
				"status":  "error",
				"message": n.Message,
				"error": fiber.Map{
					"kind":        n.Kind,
					"operational": n.Operational,
					"detail":      err.Error(),
				},
			})
		}
		return c.Status(n.Status).JSON(fiber.Map{
			"status":  "error",
			"message": n.Message,
		})
	}
}
