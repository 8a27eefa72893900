package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store holds uploaded originals and thumbnails. Keys are slash separated and
// relative to the storage root; Save returns the public location of the object.
type Store interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Keys names the original and thumbnail of one upload.
type Keys struct {
	Original  string
	Thumbnail string
}

// NewKeys builds date-partitioned keys (yyyy/MM/<uuid><ext>) for an upload,
// keeping the lower-cased extension of the original filename.
func NewKeys(filename string, now time.Time) Keys {
	ext := strings.ToLower(filepath.Ext(filename))
	id := uuid.NewString()
	dir := now.Format("2006/01")
	return Keys{
		Original:  path.Join(dir, id+ext),
		Thumbnail: path.Join(dir, id+"_thumb"+ext),
	}
}

// cleanKey rejects keys that would escape the storage root.
func cleanKey(key string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("storage: empty key")
	}
	if cleaned != strings.TrimPrefix(key, "/") {
		return "", fmt.Errorf("storage: invalid key %q", key)
	}
	return cleaned, nil
}
