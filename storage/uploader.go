package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

var allowedContentTypes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/jpg":       ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

// ExtensionFor returns the object extension for an accepted upload content type.
func ExtensionFor(contentType string) (string, error) {
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	if ext, ok := allowedContentTypes[ct]; ok {
		return ext, nil
	}
	return "", fmt.Errorf("unsupported content type %q", contentType)
}

// ObjectKey builds a collision-free key such as "organizers/documents/<uuid>.png".
func ObjectKey(prefix, ext string) string {
	return path.Join(prefix, uuid.NewString()+ext)
}
