// Package middleware provides authentication and request pipeline middleware.
package middleware

import (
	"context"
	"errors"
	"strings"

	"folio/internal/models"
	"folio/internal/observability"
	"folio/internal/security"

	"github.com/gofiber/fiber/v2"
)

const (
	msgNotLoggedIn     = "Please log in to have access"
	msgUserGone        = "The user who signed in does not exist any longer"
	msgPasswordChanged = "You recently changed your password, please log in again"
	localsUser         = "user"
	localsUserID       = "userID"
)

// UserLoader loads the account a session token names.
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Authenticator resolves session tokens into users.
type Authenticator struct {
	tokens *security.TokenService
	users  UserLoader
}

func NewAuthenticator(tokens *security.TokenService, users UserLoader) *Authenticator {
	return &Authenticator{tokens: tokens, users: users}
}

// Protect rejects requests without a valid session. OPTIONS requests pass.
func (a *Authenticator) Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodOptions {
			return c.Next()
		}
		user, err := a.resolve(c)
		if err != nil {
			return err
		}
		setUser(c, user)
		return c.Next()
	}
}

// OptionalAuth attaches the user when a valid session is present and never fails.
func (a *Authenticator) OptionalAuth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := tokenFrom(c); token != "" {
			if user, err := a.resolve(c); err == nil {
				setUser(c, user)
			}
		}
		return c.Next()
	}
}

func (a *Authenticator) resolve(c *fiber.Ctx) (*models.User, error) {
	token := tokenFrom(c)
	if token == "" {
		observability.AuthFailures.WithLabelValues("missing_token").Inc()
		return nil, models.NewUnauthenticatedError(msgNotLoggedIn)
	}

	claims, err := a.tokens.Verify(token)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, security.ErrTokenExpired) {
			reason = "expired_token"
		}
		observability.AuthFailures.WithLabelValues(reason).Inc()
		return nil, err
	}

	user, err := a.users.FindByID(c.UserContext(), claims.Subject)
	if err != nil {
		var appErr *models.AppError
		if errors.Is(err, models.ErrDocumentNotFound) || (errors.As(err, &appErr) && appErr.Kind == models.KindTypeMismatch) {
			observability.AuthFailures.WithLabelValues("user_gone").Inc()
			return nil, models.NewUnauthenticatedError(msgUserGone)
		}
		return nil, err
	}

	if user.ChangedPasswordAfter(claims.IssuedAt.Unix()) {
		observability.AuthFailures.WithLabelValues("stale_token").Inc()
		return nil, models.NewUnauthenticatedError(msgPasswordChanged)
	}
	return user, nil
}

// tokenFrom reads a bearer token, falling back to the session cookie.
func tokenFrom(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	return c.Cookies(security.CookieName)
}

func setUser(c *fiber.Ctx, user *models.User) {
	id := user.ID.Hex()
	c.Locals(localsUser, user)
	c.Locals(localsUserID, id)
	c.SetUserContext(observability.WithUserID(c.UserContext(), id))
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(c *fiber.Ctx) *models.User {
	user, _ := c.Locals(localsUser).(*models.User)
	return user
}

// UserID returns the authenticated user's hex id or "".
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(localsUserID).(string)
	return id
}
