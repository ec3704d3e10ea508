package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fpang/portrait-studio/internal/studio"
)

// ResolveImagePath accepts s3:// references unchanged and checks that a local
// path is an existing regular file, returning its absolute form.
func ResolveImagePath(path string) (string, error) {
	if strings.HasPrefix(path, "s3://") {
		return path, nil
	}
	path = strings.TrimPrefix(path, "file://")
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("image not found: %s", path)
		}
		return "", fmt.Errorf("failed to access %s: %w", path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory, not an image", path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return path, nil
}

// ParseParams parses repeated key=value flags into studio parameters.
func ParseParams(pairs []string) (studio.Params, error) {
	params := studio.Params{}
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q must be key=value", pair)
		}
		params[k] = strings.TrimSpace(v)
	}
	return params, nil
}
