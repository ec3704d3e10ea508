package imagestore

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestParseRef(t *testing.T) {
	r, err := ParseRef("s3://media/runs/a/in.jpg")
	require.NoError(t, err)
	assert.Equal(t, Ref{Scheme: SchemeS3, Bucket: "media", Key: "runs/a/in.jpg"}, r)
	assert.Equal(t, "s3://media/runs/a/in.jpg", r.String())

	r, err = ParseRef("file:///tmp/in.png")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/in.png", r.Key)

	r, err = ParseRef("photos/in.png")
	require.NoError(t, err)
	assert.Equal(t, SchemeFile, r.Scheme)

	for _, bad := range []string{"", "s3://bucket-only", "s3:///key", "https://example.com/a.jpg"} {
		_, err := ParseRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewLocalStore(dir)
	data := pngBytes(t, 4, 3)

	ref, err := store.Put(context.Background(), "run-1/attempt-0.png", data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1", "attempt-0.png"), ref)

	obj, err := store.Get(context.Background(), "file://"+ref)
	require.NoError(t, err)
	assert.Equal(t, data, obj.Data)
	assert.Equal(t, "image/png", obj.MIMEType)
}

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	data, ok := f.objects[key]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data)), ContentType: aws.String(f.types[key])}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	f.objects[key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestS3StoreRoundTrip(t *testing.T) {
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	store := NewS3Store(fake, "studio-media")
	data := pngBytes(t, 2, 2)

	ref, err := store.Put(context.Background(), "runs/r1/attempt-1.png", data, "image/png")
	require.NoError(t, err)
	assert.Equal(t, "s3://studio-media/runs/r1/attempt-1.png", ref)

	obj, err := store.Get(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, data, obj.Data)
	assert.Equal(t, "image/png", obj.MIMEType)

	_, err = store.Get(context.Background(), "local.png")
	assert.Error(t, err)
}

func TestS3StoreSniffsGenericContentType(t *testing.T) {
	data := pngBytes(t, 2, 2)
	fake := &fakeS3{
		objects: map[string][]byte{"b/k": data},
		types:   map[string]string{"b/k": "binary/octet-stream"},
	}
	obj, err := NewS3Store(fake, "b").Get(context.Background(), "s3://b/k")
	require.NoError(t, err)
	assert.Equal(t, "image/png", obj.MIMEType)
}

func TestRouterDispatch(t *testing.T) {
	dir := t.TempDir()
	local := NewLocalStore(dir)
	fake := &fakeS3{objects: map[string][]byte{"b/in.png": pngBytes(t, 1, 1)}, types: map[string]string{}}
	router := &Router{S3: NewS3Store(fake, "b"), Local: local, Output: local}

	_, err := router.Get(context.Background(), "s3://b/in.png")
	require.NoError(t, err)

	ref, err := router.Put(context.Background(), "out.png", pngBytes(t, 1, 1), "image/png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.png"), ref)

	_, err = (&Router{Local: local}).Get(context.Background(), "s3://b/in.png")
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	info, err := Describe(pngBytes(t, 64, 48))
	require.NoError(t, err)
	assert.Equal(t, 64, info.Width)
	assert.Equal(t, 48, info.Height)
	assert.Equal(t, "png", info.Format)
	assert.Empty(t, info.CameraMake)

	_, err = Describe([]byte("not an image"))
	assert.Error(t, err)
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".png", ExtensionFor("image/png"))
	assert.Equal(t, ".jpg", ExtensionFor("image/jpeg"))
}
