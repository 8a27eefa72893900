package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
)

// LocalStorage writes objects below a root directory that is served
// statically under publicPrefix.
type LocalStorage struct {
	root         string
	publicPrefix string
}

func NewLocalStorage(root, publicPrefix string) (*LocalStorage, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid storage root %q: %w", root, err)
	}
	if err := os.MkdirAll(absRoot, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %q: %w", absRoot, err)
	}
	slog.Info("local storage ready", "root", absRoot, "public_prefix", publicPrefix)
	return &LocalStorage{root: absRoot, publicPrefix: publicPrefix}, nil
}

func (ls *LocalStorage) Root() string {
	return ls.root
}

func (ls *LocalStorage) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	full := filepath.Join(ls.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("create directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("save file: %w", err)
	}
	return path.Join("/", ls.publicPrefix, key), nil
}

func (ls *LocalStorage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(ls.root, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
