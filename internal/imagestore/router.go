package imagestore

import (
	"context"
	"fmt"
)

// Router dispatches reads by reference scheme and sends writes to one
// designated store.
type Router struct {
	S3    Store
	Local Store
	// Output receives every Put. Defaults to S3 when set, else Local.
	Output Store
}

var _ Store = (*Router)(nil)

func (r *Router) Get(ctx context.Context, ref string) (Object, error) {
	parsed, err := ParseRef(ref)
	if err != nil {
		return Object{}, err
	}
	var target Store
	switch parsed.Scheme {
	case SchemeS3:
		target = r.S3
	case SchemeFile:
		target = r.Local
	}
	if target == nil {
		return Object{}, fmt.Errorf("no store configured for %s references", parsed.Scheme)
	}
	return target.Get(ctx, ref)
}

func (r *Router) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	out := r.Output
	if out == nil {
		out = r.S3
	}
	if out == nil {
		out = r.Local
	}
	if out == nil {
		return "", fmt.Errorf("no output store configured")
	}
	return out.Put(ctx, key, data, mimeType)
}
