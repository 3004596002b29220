package blob_test

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/blob"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*params.Key] = data
	if params.ContentType != nil {
		f.types[*params.Key] = *params.ContentType
	}
	return &s3.PutObjectOutput{}, nil
}

func TestPutReturnsPublicURL(t *testing.T) {
	fake := newFakeS3()
	client := blob.NewWithAPI(fake, "case-images", "https://cdn.example.org/")

	url, err := client.Put(context.Background(), "alan-rhys-dowden/alan-rhys-dowden-1.jpg", []byte("jpegdata"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/alan-rhys-dowden/alan-rhys-dowden-1.jpg", url)
	assert.Equal(t, []byte("jpegdata"), fake.objects["alan-rhys-dowden/alan-rhys-dowden-1.jpg"])
	assert.Equal(t, "image/jpeg", fake.types["alan-rhys-dowden/alan-rhys-dowden-1.jpg"])
}

func TestPutOverwritesInPlace(t *testing.T) {
	fake := newFakeS3()
	client := blob.NewWithAPI(fake, "case-images", "https://cdn.example.org")

	_, err := client.Put(context.Background(), "k.jpg", []byte("v1"), "image/jpeg")
	require.NoError(t, err)
	_, err = client.Put(context.Background(), "k.jpg", []byte("v2"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), fake.objects["k.jpg"])
	assert.Len(t, fake.objects, 1)
}

func TestPutPropagatesErrors(t *testing.T) {
	fake := newFakeS3()
	fake.err = errors.New("access denied")
	client := blob.NewWithAPI(fake, "case-images", "https://cdn.example.org")

	_, err := client.Put(context.Background(), "k.jpg", []byte("v"), "image/jpeg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestPutRejectsEmptyKey(t *testing.T) {
	client := blob.NewWithAPI(newFakeS3(), "case-images", "https://cdn.example.org")
	_, err := client.Put(context.Background(), "/", nil, "image/jpeg")
	require.Error(t, err)
}
