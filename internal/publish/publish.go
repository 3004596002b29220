// Package publish coordinates the dual write of converted images: the public
// blob copy that serving depends on, and the archival dataset commit.
package publish

import (
	"context"
	"log/slog"
	"sync/atomic"

	"caseflow/internal/dataset"
	"caseflow/internal/logging"
	"caseflow/internal/services"
)

// BlobStore is the public destination. Put returns the serving URL.
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// DatasetRepo is the archival destination.
type DatasetRepo interface {
	CommitFiles(ctx context.Context, files []dataset.File, message string) error
}

// Publisher writes each image to blob storage and batches the case's images
// into one dataset commit. The two destinations fail differently on purpose:
// a blob failure aborts the attempt because the public URL is what the rest
// of the pipeline needs, while a dataset failure is logged and counted but
// never surfaced, keeping publishing available when the archive is not.
type Publisher struct {
	blob    BlobStore
	dataset DatasetRepo
	logger  *slog.Logger

	suppressedCommits atomic.Uint64
}

// New builds a Publisher. repo may be nil when dataset publishing is
// disabled.
func New(blobStore BlobStore, repo DatasetRepo, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		blob:    blobStore,
		dataset: repo,
		logger:  logging.WithComponent(logger, "publisher"),
	}
}

// PutAsset uploads one converted image and returns its public URL.
func (p *Publisher) PutAsset(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	url, err := p.blob.Put(ctx, key, body, contentType)
	if err != nil {
		return "", services.Wrap(services.ErrBlobWrite, "imaging", "put asset", key, err)
	}
	return url, nil
}

// CommitCase records the case's images in the dataset repository. Failures
// are swallowed: the commit operations are add-or-update, so the next
// successful run converges on the same content.
func (p *Publisher) CommitCase(ctx context.Context, caseID string, files []dataset.File) {
	if p.dataset == nil || len(files) == 0 {
		return
	}
	err := p.dataset.CommitFiles(ctx, files, "publish "+caseID)
	if err == nil {
		return
	}
	p.suppressedCommits.Add(1)
	p.logger.Warn("dataset commit failed, continuing",
		logging.String(logging.FieldCaseID, caseID),
		logging.Int("files", len(files)),
		logging.Error(err))
}

// SuppressedCommitCount reports how many dataset commits have been swallowed
// since startup. Exposed for monitoring.
func (p *Publisher) SuppressedCommitCount() uint64 {
	return p.suppressedCommits.Load()
}
