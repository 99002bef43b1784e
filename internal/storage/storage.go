// Package storage uploads and removes post assets in object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"path"
	"strings"

	"folio/internal/models"

	"github.com/google/uuid"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Object is a stored file as referenced from a post.
type Object struct {
	FileID string `json:"fileId"`
	URL    string `json:"url"`
}

// AssetStore is the asset storage provider.
type AssetStore interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) (Object, error)
	Delete(ctx context.Context, fileID string) error
}

// File is an upload that passed content sniffing.
type File struct {
	Content     []byte
	ContentType string
	Ext         string
}

var formatTypes = map[string]string{
	"png":  "image/png",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"webp": "image/webp",
}

var formatExt = map[string]string{
	"png":  ".png",
	"jpeg": ".jpg",
	"gif":  ".gif",
	"webp": ".webp",
}

// Sniff accepts PNG, JPEG, GIF, WebP and PDF content and rejects everything
// else. The declared content type is never trusted.
func Sniff(content []byte, maxBytes int64) (File, error) {
	if len(content) == 0 {
		return File{}, models.NewValidationError("No file uploaded")
	}
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return File{}, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", maxBytes/(1024*1024)))
	}
	if bytes.HasPrefix(content, []byte("%PDF-")) {
		return File{Content: content, ContentType: "application/pdf", Ext: ".pdf"}, nil
	}
	_, format, err := image.DecodeConfig(bytes.NewReader(content))
	if err != nil {
		return File{}, models.NewValidationError("Only images and PDF files can be uploaded")
	}
	ct, ok := formatTypes[format]
	if !ok {
		return File{}, models.NewValidationError("Unsupported image format")
	}
	return File{Content: content, ContentType: ct, Ext: formatExt[format]}, nil
}

// DecodeDataURI reads "data:<type>;base64,<payload>". A bare base64 payload
// is accepted too.
func DecodeDataURI(data string) ([]byte, error) {
	payload := strings.TrimSpace(data)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		meta, body, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, models.NewValidationError("File data must be base64 encoded")
		}
		payload = body
	}
	content, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, models.NewValidationError("File data must be base64 encoded")
	}
	return content, nil
}

// Key builds a collision free object key under prefix.
func Key(prefix, ext string) string {
	return path.Join(prefix, uuid.NewString()+ext)
}
