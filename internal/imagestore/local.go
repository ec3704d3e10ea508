package imagestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore reads local paths and writes below a root directory.
type LocalStore struct {
	root string
}

var _ Store = (*LocalStore)(nil)

// NewLocalStore creates a store writing under root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) Get(ctx context.Context, ref string) (Object, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return Object{}, err
	}
	if r.Scheme != SchemeFile {
		return Object{}, fmt.Errorf("not a local reference: %s", ref)
	}
	data, err := os.ReadFile(r.Key)
	if err != nil {
		return Object{}, fmt.Errorf("failed to read %s: %w", r.Key, err)
	}
	return Object{Data: data, MIMEType: DetectMIME(r.Key, data)}, nil
}

func (s *LocalStore) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
