// Package imagestore resolves the opaque image references passed through the
// pipeline. A reference is either "s3://bucket/key" or a local path
// (optionally "file://"-prefixed).
package imagestore

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// Object is a fetched image.
type Object struct {
	Data     []byte
	MIMEType string
}

// Store reads and writes image bytes by reference.
type Store interface {
	// Get fetches the image behind ref.
	Get(ctx context.Context, ref string) (Object, error)
	// Put writes data under key and returns the reference to it.
	Put(ctx context.Context, key string, data []byte, mimeType string) (string, error)
}

// Scheme values recognized by ParseRef.
const (
	SchemeS3   = "s3"
	SchemeFile = "file"
)

// Ref is a parsed image reference.
type Ref struct {
	Scheme string
	Bucket string // s3 only
	Key    string // object key or local path
}

func (r Ref) String() string {
	if r.Scheme == SchemeS3 {
		return "s3://" + r.Bucket + "/" + r.Key
	}
	return r.Key
}

// ParseRef splits an image reference into scheme, bucket and key.
func ParseRef(ref string) (Ref, error) {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "":
		return Ref{}, fmt.Errorf("empty image reference")
	case strings.HasPrefix(ref, "s3://"):
		rest := strings.TrimPrefix(ref, "s3://")
		bucket, key, ok := strings.Cut(rest, "/")
		if !ok || bucket == "" || key == "" {
			return Ref{}, fmt.Errorf("invalid s3 reference %q: want s3://bucket/key", ref)
		}
		return Ref{Scheme: SchemeS3, Bucket: bucket, Key: key}, nil
	case strings.HasPrefix(ref, "file://"):
		return Ref{Scheme: SchemeFile, Key: strings.TrimPrefix(ref, "file://")}, nil
	case strings.Contains(ref, "://"):
		return Ref{}, fmt.Errorf("unsupported image reference scheme in %q", ref)
	default:
		return Ref{Scheme: SchemeFile, Key: ref}, nil
	}
}

// DetectMIME guesses the MIME type from content, falling back to the
// extension of name.
func DetectMIME(name string, data []byte) string {
	if len(data) > 0 {
		if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
			return ct
		}
	}
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// ExtensionFor returns a file extension for an image MIME type.
func ExtensionFor(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
