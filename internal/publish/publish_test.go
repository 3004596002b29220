package publish_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/dataset"
	"caseflow/internal/publish"
	"caseflow/internal/services"
)

type fakeBlob struct {
	objects map[string][]byte
	err     error
}

func (f *fakeBlob) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if f.objects == nil {
		f.objects = map[string][]byte{}
	}
	f.objects[key] = body
	return "https://cdn.example.org/" + key, nil
}

type fakeDataset struct {
	commits int
	files   []dataset.File
	err     error
}

func (f *fakeDataset) CommitFiles(_ context.Context, files []dataset.File, _ string) error {
	if f.err != nil {
		return f.err
	}
	f.commits++
	f.files = append(f.files, files...)
	return nil
}

func TestPutAssetReturnsPublicURL(t *testing.T) {
	blob := &fakeBlob{}
	p := publish.New(blob, &fakeDataset{}, nil)

	url, err := p.PutAsset(context.Background(), "case/case-1.jpg", []byte("data"), "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/case/case-1.jpg", url)
}

func TestPutAssetBlobFailureIsTransient(t *testing.T) {
	blob := &fakeBlob{err: errors.New("connection refused")}
	p := publish.New(blob, &fakeDataset{}, nil)

	_, err := p.PutAsset(context.Background(), "k.jpg", []byte("data"), "image/jpeg")
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrBlobWrite)
	assert.True(t, services.IsRetryable(err))
}

func TestCommitCaseFailureIsSwallowedAndCounted(t *testing.T) {
	repo := &fakeDataset{err: errors.New("repo unavailable")}
	p := publish.New(&fakeBlob{}, repo, nil)

	files := []dataset.File{{Path: "case/case-1.jpg", Content: []byte("x")}}
	p.CommitCase(context.Background(), "case", files)
	p.CommitCase(context.Background(), "case", files)

	assert.EqualValues(t, 2, p.SuppressedCommitCount())
}

func TestCommitCaseSuccess(t *testing.T) {
	repo := &fakeDataset{}
	p := publish.New(&fakeBlob{}, repo, nil)

	p.CommitCase(context.Background(), "case", []dataset.File{
		{Path: "case/case-1.jpg", Content: []byte("x")},
		{Path: "case/case-2.jpg", Content: []byte("y")},
	})
	assert.Equal(t, 1, repo.commits)
	assert.Len(t, repo.files, 2)
	assert.Zero(t, p.SuppressedCommitCount())
}

func TestCommitCaseWithoutRepoIsNoop(t *testing.T) {
	p := publish.New(&fakeBlob{}, nil, nil)
	p.CommitCase(context.Background(), "case", []dataset.File{{Path: "a", Content: nil}})
	assert.Zero(t, p.SuppressedCommitCount())
}
