// Package imaging is the first pipeline stage: it claims pending cases,
// extracts their image references, converts each image, and publishes the
// results to both destinations.
package imaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"caseflow/internal/config"
	"caseflow/internal/convert"
	"caseflow/internal/dataset"
	"caseflow/internal/extract"
	"caseflow/internal/logging"
	"caseflow/internal/publish"
	"caseflow/internal/services"
	"caseflow/internal/stage"
	"caseflow/internal/store"
)

const stageName = "imaging"

// Stage drives cases through extract, convert, and publish.
type Stage struct {
	store     *store.Store
	fetcher   Fetcher
	publisher *publish.Publisher
	logger    *slog.Logger

	convertOpts       convert.Options
	workers           int
	heartbeatInterval time.Duration
}

// New builds the imaging stage from configuration.
func New(cfg *config.Config, st *store.Store, publisher *publish.Publisher, logger *slog.Logger) *Stage {
	return NewWithDependencies(cfg, st, NewHTTPFetcher(time.Duration(cfg.Blob.TimeoutSeconds)*time.Second), publisher, logger)
}

// NewWithDependencies allows substituting the fetcher. Used by tests.
func NewWithDependencies(cfg *config.Config, st *store.Store, fetcher Fetcher, publisher *publish.Publisher, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		store:     st,
		fetcher:   fetcher,
		publisher: publisher,
		logger:    logging.WithComponent(logger, stageName),
		convertOpts: convert.Options{
			MaxWidth:  cfg.Convert.MaxWidth,
			MaxHeight: cfg.Convert.MaxHeight,
			Quality:   cfg.Convert.Quality,
		},
		workers:           cfg.Workflow.AssetWorkers,
		heartbeatInterval: time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second,
	}
}

// Name implements stage.Handler.
func (s *Stage) Name() string { return stageName }

// HealthCheck implements stage.Handler.
func (s *Stage) HealthCheck(ctx context.Context) stage.Health {
	if _, err := s.store.ProgressSnapshot(ctx); err != nil {
		return stage.Unhealthy(stageName, "status store unreachable: "+err.Error())
	}
	return stage.Healthy(stageName)
}

// RunOnce claims up to batch pending cases and processes each one to a
// definite outcome: done, released for retry, or parked on a failure code.
func (s *Stage) RunOnce(ctx context.Context, batch int) (int, error) {
	claimed, err := s.store.ClaimPendingCases(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("claim cases: %w", err)
	}

	for _, record := range claimed {
		caseCtx := services.WithCaseID(ctx, record.CaseID)
		caseCtx = services.WithStage(caseCtx, stageName)
		logger := logging.WithContext(caseCtx, s.logger)

		beat := func(beatCtx context.Context) error {
			return s.store.UpdateHeartbeat(beatCtx, record.ID)
		}
		err := stage.WithHeartbeat(caseCtx, s.heartbeatInterval, logger, beat, func(runCtx context.Context) error {
			return s.processCase(runCtx, record, logger)
		})
		if err == nil {
			continue
		}

		if services.IsRetryable(err) {
			logger.Warn("imaging attempt failed, releasing for retry", logging.Error(err))
			if releaseErr := s.store.ReleaseCase(ctx, record.ID, err.Error()); releaseErr != nil {
				return len(claimed), releaseErr
			}
			continue
		}
		code := services.FailureStatus(err)
		logger.Error("imaging failed", logging.Error(err), logging.String(logging.FieldStatus, code.String()))
		if failErr := s.store.FailCase(ctx, record.ID, code, err.Error()); failErr != nil {
			return len(claimed), failErr
		}
	}
	return len(claimed), nil
}

func (s *Stage) processCase(ctx context.Context, record *store.Case, logger *slog.Logger) error {
	refs, err := extract.Images(record.InfoHTML, "")
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "extract", "parsing case html", err)
	}
	if len(refs) == 0 {
		return services.Wrap(services.ErrNotFound, stageName, "extract", "case has no usable images", nil)
	}

	if err := s.store.SetImageCount(ctx, record.ID, len(refs)); err != nil {
		return err
	}

	var (
		mu        sync.Mutex
		committed []dataset.File
		assetErrs []error
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for i, ref := range refs {
		group.Go(func() error {
			file, err := s.processAsset(groupCtx, record, ref, i)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				// Siblings keep going; the case outcome is decided below.
				assetErrs = append(assetErrs, err)
				return nil
			}
			if file != nil {
				committed = append(committed, *file)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	s.publisher.CommitCase(ctx, record.CaseID, committed)

	if len(assetErrs) > 0 {
		logger.Warn("case had asset failures",
			logging.Int("failed", len(assetErrs)),
			logging.Int("published", len(committed)))
		return errors.Join(assetErrs...)
	}

	if err := s.store.CompleteCaseConversion(ctx, record.ID); err != nil {
		return err
	}
	logger.Info("case images published", logging.Int("images", len(refs)))
	return nil
}

// processAsset converts and uploads one image. Returns the dataset file to
// commit, or nil when the asset was already published by an earlier attempt.
func (s *Stage) processAsset(ctx context.Context, record *store.Case, ref extract.ImageRef, index int) (*dataset.File, error) {
	filename := fmt.Sprintf("%s-%d.jpg", record.CaseID, index+1)

	asset, err := s.store.UpsertAsset(ctx, &store.Asset{
		CaseID:    record.CaseID,
		Filename:  filename,
		SourceURL: ref.URL,
		IsPrimary: index == 0,
		SortOrder: index,
	})
	if err != nil {
		return nil, err
	}
	if asset.BlobURL != "" {
		// Published by a previous attempt; only the failed portion retries.
		return nil, nil
	}

	data, err := s.fetcher.Fetch(ctx, ref.URL)
	if err != nil {
		return nil, err
	}

	result, err := convert.Image(data, s.convertOpts)
	if err != nil {
		return nil, services.Wrap(services.ErrConversion, stageName, "convert", filename, err)
	}

	key := assetKey(record, filename)
	blobURL, err := s.publisher.PutAsset(ctx, key, result.Data, result.ContentType)
	if err != nil {
		return nil, err
	}

	if err := s.store.RecordAssetPublished(ctx, asset.ID, blobURL, result.Width, result.Height, int64(len(result.Data))); err != nil {
		return nil, err
	}
	return &dataset.File{Path: key, Content: result.Data}, nil
}

func assetKey(record *store.Case, filename string) string {
	if record.URLPath != "" {
		return path.Join(record.URLPath, record.CaseID, filename)
	}
	return path.Join(record.CaseID, filename)
}
