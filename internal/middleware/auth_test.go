package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"folio/internal/models"
	"folio/internal/security"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type stubUsers map[string]*models.User

func (s stubUsers) FindByID(_ context.Context, id string) (*models.User, error) {
	if !primitive.IsValidObjectID(id) {
		return nil, models.NewTypeMismatchError("_id", id)
	}
	u, ok := s[id]
	if !ok {
		return nil, models.ErrDocumentNotFound
	}
	return u, nil
}

func testErrorHandler(c *fiber.Ctx, err error) error {
	status := http.StatusInternalServerError
	var appErr *models.AppError
	switch {
	case errors.As(err, &appErr):
		status = appErr.Status
	case errors.Is(err, security.ErrInvalidToken), errors.Is(err, security.ErrTokenExpired):
		status = http.StatusUnauthorized
	}
	return c.Status(status).JSON(fiber.Map{"message": err.Error()})
}

type authFixture struct {
	app    *fiber.App
	tokens *security.TokenService
	user   *models.User
	now    time.Time
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	f.tokens = security.NewTokenService(security.TokenOptions{
		Secret: "test-secret-key-at-least-32-characters",
		TTL:    time.Hour,
	}).WithClock(func() time.Time { return f.now })
	f.user = &models.User{FirstName: "ada", LastName: "lovelace", Email: "ada@example.com"}
	f.user.ID = primitive.NewObjectID()

	auth := NewAuthenticator(f.tokens, stubUsers{f.user.ID.Hex(): f.user})
	f.app = fiber.New(fiber.Config{ErrorHandler: testErrorHandler})
	f.app.Get("/private", auth.Protect(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": UserID(c), "email": CurrentUser(c).Email})
	})
	f.app.Options("/private", auth.Protect(), func(c *fiber.Ctx) error {
		return c.SendStatus(http.StatusNoContent)
	})
	f.app.Get("/public", auth.OptionalAuth(), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"id": UserID(c)})
	})
	return f
}

func (f *authFixture) token(t *testing.T, sub string) string {
	t.Helper()
	tok, _, err := f.tokens.Issue(sub)
	require.NoError(t, err)
	return tok
}

func readBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestProtect(t *testing.T) {
	f := newAuthFixture(t)
	valid := f.token(t, f.user.ID.Hex())
	orphan := f.token(t, primitive.NewObjectID().Hex())

	tests := []struct {
		name    string
		setup   func(r *http.Request)
		status  int
		message string
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized, msgNotLoggedIn},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) }, http.StatusOK, ""},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: security.CookieName, Value: valid}) }, http.StatusOK, ""},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized, ""},
		{"user deleted", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+orphan) }, http.StatusUnauthorized, msgUserGone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/private", nil)
			tt.setup(req)
			resp, err := f.app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			body := readBody(t, resp)
			if tt.status == http.StatusOK {
				assert.Equal(t, f.user.ID.Hex(), body["id"])
				assert.Equal(t, "ada@example.com", body["email"])
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, body["message"])
			}
		})
	}
}

func TestProtect_PasswordChangedAfterIssue(t *testing.T) {
	f := newAuthFixture(t)
	token := f.token(t, f.user.ID.Hex())

	changed := f.now.Add(time.Minute)
	f.user.PasswordChangedAt = &changed
	f.now = f.now.Add(2 * time.Minute)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, msgPasswordChanged, readBody(t, resp)["message"])

	fresh := f.token(t, f.user.ID.Hex())
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+fresh)
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestProtect_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)
	token := f.token(t, f.user.ID.Hex())
	f.now = f.now.Add(2 * time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, security.ErrTokenExpired.Error(), readBody(t, resp)["message"])
}

func TestProtect_OptionsPassesThrough(t *testing.T) {
	f := newAuthFixture(t)
	resp, err := f.app.Test(httptest.NewRequest(http.MethodOptions, "/private", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestOptionalAuth(t *testing.T) {
	f := newAuthFixture(t)

	resp, err := f.app.Test(httptest.NewRequest(http.MethodGet, "/public", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "", readBody(t, resp)["id"])

	req := httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer broken")
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/public", nil)
	req.Header.Set("Authorization", "Bearer "+f.token(t, f.user.ID.Hex()))
	resp, err = f.app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, f.user.ID.Hex(), readBody(t, resp)["id"])
}
