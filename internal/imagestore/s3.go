package imagestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// S3API is the subset of *s3.Client used by S3Store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store reads any s3:// reference and writes into a single bucket.
type S3Store struct {
	client S3API
	bucket string
}

var _ Store = (*S3Store)(nil)

// NewS3Store creates a store writing into bucket.
func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Get downloads the object behind an s3:// reference.
func (s *S3Store) Get(ctx context.Context, ref string) (Object, error) {
	r, err := ParseRef(ref)
	if err != nil {
		return Object{}, err
	}
	if r.Scheme != SchemeS3 {
		return Object{}, fmt.Errorf("not an s3 reference: %s", ref)
	}

	start := time.Now()
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &r.Bucket,
		Key:    &r.Key,
	})
	if err != nil {
		return Object{}, fmt.Errorf("S3 GetObject %s: %w", ref, err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return Object{}, fmt.Errorf("read %s: %w", ref, err)
	}

	mimeType := aws.ToString(result.ContentType)
	if mimeType == "" || mimeType == "binary/octet-stream" || mimeType == "application/octet-stream" {
		mimeType = DetectMIME(r.Key, data)
	}

	log.Debug().
		Str("bucket", r.Bucket).
		Str("key", r.Key).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Downloaded image from S3")

	return Object{Data: data, MIMEType: mimeType}, nil
}

// Put uploads data under key in the store's bucket.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	if s.bucket == "" {
		return "", fmt.Errorf("S3 store has no bucket configured")
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: &mimeType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s to S3: %w", key, err)
	}

	ref := Ref{Scheme: SchemeS3, Bucket: s.bucket, Key: key}.String()
	log.Info().Str("ref", ref).Int("bytes", len(data)).Msg("Image uploaded to S3")
	return ref, nil
}
