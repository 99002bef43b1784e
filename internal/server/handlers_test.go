package server

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"folio/internal/models"
	"folio/internal/security"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postBody(title string) map[string]any {
	return map[string]any{
		"title":             title,
		"description":       strings.Repeat("d", 120),
		"estimatedReadTime": "5 min",
		"content":           strings.Repeat("c", 150),
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestPostRoutes(t *testing.T) {
	h := newHarness(t, testConfig())
	token := h.register(t)

	resp, _ := h.do(t, http.MethodPost, "/api/v1/posts", postBody("Hello Go World"), "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/api/v1/posts", postBody("Hello Go World"), token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	post := body["post"].(map[string]any)
	assert.Equal(t, "hello-go-world", post["slug"])
	assert.Equal(t, false, post["isPublished"])
	id := post["_id"].(string)

	resp, body = h.do(t, http.MethodPost, "/api/v1/posts", postBody("Hello Go World"), token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "hello-go-world already exists, use another value", body["message"])

	t.Run("drafts are hidden from the public list", func(t *testing.T) {
		_, body := h.do(t, http.MethodGet, "/api/v1/posts", nil, "")
		assert.EqualValues(t, 0, body["result"])

		_, body = h.do(t, http.MethodGet, "/api/v1/posts", nil, token)
		assert.EqualValues(t, 1, body["result"])
		assert.Equal(t, false, body["hasNext"])
	})

	t.Run("toggles", func(t *testing.T) {
		resp, body := h.do(t, http.MethodPatch, "/api/v1/posts/toggle-publish/"+id, nil, token)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Equal(t, true, body["isPublished"])
		assert.Equal(t, false, body["isSlider"])

		_, body = h.do(t, http.MethodGet, "/api/v1/posts", nil, "")
		assert.EqualValues(t, 1, body["result"])

		_, body = h.do(t, http.MethodPatch, "/api/v1/posts/toggle-slider/"+id, nil, token)
		assert.Equal(t, true, body["isSlider"])

		_, body = h.do(t, http.MethodGet, "/api/v1/posts/slider-data", nil, "")
		items := body["sliderData"].([]any)
		require.Len(t, items, 1)
		assert.Equal(t, "hello-go-world", items[0].(map[string]any)["slug"])

		resp, body = h.do(t, http.MethodPatch, "/api/v1/posts/toggle-slider/not-an-id", nil, token)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "Invalid _id: not-an-id.", body["message"])
	})

	t.Run("anonymous like round trip", func(t *testing.T) {
		resp, body := h.do(t, http.MethodPost, "/api/v1/posts/hello-go-world/react", nil, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		author := body["newLikeAuthor"].(string)
		require.NotEmpty(t, author)
		assert.Len(t, body["post"].(map[string]any)["likes"], 1)

		_, body = h.do(t, http.MethodPost, "/api/v1/posts/hello-go-world/react", map[string]string{"author": author}, "")
		assert.Empty(t, body["post"].(map[string]any)["likes"])
		assert.Equal(t, "", body["newLikeAuthor"])
	})

	t.Run("comments", func(t *testing.T) {
		resp, body := h.do(t, http.MethodPost, "/api/v1/posts/hello-go-world/create-comment",
			map[string]any{"data": map[string]string{"author": "reader", "text": "great read"}}, "")
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		comments := body["comments"].([]any)
		require.Len(t, comments, 1)
		commentID := comments[0].(map[string]any)["_id"].(string)

		_, body = h.do(t, http.MethodPost, "/api/v1/posts/hello-go-world/create-comment",
			map[string]string{"author": "second", "text": "flat body"}, "")
		assert.Len(t, body["comments"], 2)

		resp, _ = h.do(t, http.MethodPost, "/api/v1/posts/hello-go-world/delete-comment",
			map[string]string{"commentId": commentID}, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		_, body = h.do(t, http.MethodPost, "/api/v1/posts/hello-go-world/delete-comment",
			map[string]string{"commentId": commentID}, token)
		assert.Len(t, body["comments"], 1)
	})

	t.Run("update re-slugs", func(t *testing.T) {
		resp, body := h.do(t, http.MethodPatch, "/api/v1/posts/hello-go-world",
			map[string]string{"title": "Goodbye Go World"}, token)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
		assert.Equal(t, "goodbye-go-world", body["post"].(map[string]any)["slug"])

		resp, body = h.do(t, http.MethodGet, "/api/v1/posts/hello-go-world", nil, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "Post not found", body["message"])
	})

	t.Run("delete", func(t *testing.T) {
		resp, _ := h.do(t, http.MethodDelete, "/api/v1/posts/goodbye-go-world", nil, token)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		assert.Equal(t, 0, h.posts.Len())
	})
}

func TestUploadAndDeleteFile(t *testing.T) {
	h := newHarness(t, testConfig())
	token := h.register(t)
	img := pngBytes(t)

	resp, body := h.do(t, http.MethodPost, "/api/v1/posts/upload-file", map[string]string{
		"data": "data:image/png;base64," + base64.StdEncoding.EncodeToString(img),
	}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	data := body["data"].(map[string]any)
	fileID := data["fileId"].(string)
	assert.True(t, strings.HasPrefix(fileID, "blog/"))
	assert.True(t, strings.HasSuffix(fileID, ".png"))
	assert.True(t, h.assets.Has(fileID))

	resp, body = h.do(t, http.MethodPost, "/api/v1/posts/upload-file", map[string]string{
		"data": base64.StdEncoding.EncodeToString([]byte("#!/bin/sh\necho hi")),
	}, token)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["message"], "Only images and PDF files can be uploaded")

	t.Run("multipart", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("file", "cover.png")
		require.NoError(t, err)
		_, err = part.Write(img)
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/v1/posts/upload-file", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := h.app.Test(req, -1)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	})

	resp, body = h.do(t, http.MethodDelete, "/api/v1/posts/delete-file", map[string]string{"cloudStorageId": fileID}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, true, body["isSingleDeleted"])
	assert.False(t, h.assets.Has(fileID))
}

func TestProjectRoutes(t *testing.T) {
	h := newHarness(t, testConfig())
	token := h.register(t)

	project := map[string]any{
		"title":       "Folio backend",
		"description": strings.Repeat("p", 120),
		"isTeam":      false,
		"githubLink":  "https://github.com/example/folio",
	}
	resp, _ := h.do(t, http.MethodPost, "/api/v1/projects", project, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := h.do(t, http.MethodPost, "/api/v1/projects", project, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	id := body["data"].(map[string]any)["_id"].(string)

	_, body = h.do(t, http.MethodGet, "/api/v1/projects", nil, "")
	assert.EqualValues(t, 1, body["result"])

	resp, body = h.do(t, http.MethodGet, "/api/v1/projects/abc", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid _id: abc.", body["message"])

	resp, body = h.do(t, http.MethodPatch, "/api/v1/projects/"+id, map[string]any{"title": "Folio API"}, token)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.Equal(t, "Folio API", body["data"].(map[string]any)["title"])

	resp, _ = h.do(t, http.MethodDelete, "/api/v1/projects/"+id, nil, token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = h.do(t, http.MethodGet, "/api/v1/projects/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "That project does not exist", body["message"])
}

func TestErrorHandler_Classification(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"type mismatch", models.NewTypeMismatchError("_id", "xyz"), 400, "Invalid _id: xyz."},
		{"duplicate email", models.NewDuplicateKeyError("email", "a@b.c"), 400, "Email already exists."},
		{"duplicate slug", models.NewDuplicateKeyError("slug", "my-post"), 400, "my-post already exists, use another value"},
		{"validation", models.NewValidationError("title is required", "content is required"), 400,
			"Invalid input data. title is required. content is required"},
		{"credential fault", &security.CredentialError{Err: errors.New("crypto/bcrypt: hashedSecret too short")}, 400,
			"crypto/bcrypt: hashedSecret too short"},
		{"invalid token", fmt.Errorf("%w: signature is invalid", security.ErrInvalidToken), 401,
			"Please login in again before you can have access."},
		{"expired token", security.ErrTokenExpired, 401, "Token Expired, please login again"},
		{"operational passthrough", models.NewNotFoundMessage("Post not found"), 404, "Post not found"},
		{"framework error", fiber.ErrMethodNotAllowed, 405, "Method Not Allowed"},
		{"internal error", models.NewInternalError(errors.New("disk on fire")), 500,
			"Something went wrong, please try again later"},
		{"unknown error", errors.New("boom"), 500, "Something went wrong, please try again later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(false)})
			app.Get("/", func(c *fiber.Ctx) error { return tt.err })

			h := &harness{app: app}
			resp, body := h.do(t, http.MethodGet, "/", nil, "")
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, map[string]any{"status": "error", "message": tt.message}, body)
		})
	}
}

func TestErrorHandler_Verbose(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(true)})
	app.Get("/", func(c *fiber.Ctx) error { return errors.New("boom") })

	h := &harness{app: app}
	resp, body := h.do(t, http.MethodGet, "/", nil, "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "error", body["status"])
	detail := body["error"].(map[string]any)
	assert.Equal(t, "Unexpected", detail["kind"])
	assert.Equal(t, false, detail["operational"])
	assert.Equal(t, "boom", detail["detail"])
}
