// Package captioning is the second pipeline stage: it claims published
// assets and attaches localized alt text and captions to them.
package captioning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"caseflow/internal/config"
	"caseflow/internal/extract"
	"caseflow/internal/logging"
	"caseflow/internal/services"
	"caseflow/internal/services/captioner"
	"caseflow/internal/stage"
	"caseflow/internal/store"
)

const stageName = "captioning"

// summaryMaxRunes bounds how much case text goes into the prompt.
const summaryMaxRunes = 2000

// Annotator produces localized text for a batch of images.
type Annotator interface {
	Annotate(ctx context.Context, req captioner.Request) ([]captioner.Annotation, error)
}

// Stage drives published assets through the caption service.
type Stage struct {
	store     *store.Store
	annotator Annotator
	logger    *slog.Logger
}

// New builds the captioning stage from configuration.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Stage, error) {
	client, err := captioner.New(cfg.Captioner)
	if err != nil {
		return nil, err
	}
	return NewWithDependencies(st, client, logger), nil
}

// NewWithDependencies allows substituting the annotator. Used by tests.
func NewWithDependencies(st *store.Store, annotator Annotator, logger *slog.Logger) *Stage {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Stage{
		store:     st,
		annotator: annotator,
		logger:    logging.WithComponent(logger, stageName),
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

// RunOnce claims up to batch caption-pending assets, grouped per case so
// each case's images share one annotation request and one prompt context.
func (s *Stage) RunOnce(ctx context.Context, batch int) (int, error) {
	claimed, err := s.store.ClaimPendingAssets(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("claim assets: %w", err)
	}
	if len(claimed) == 0 {
		return 0, nil
	}

	byCase := make(map[string][]*store.Asset)
	var order []string
	for _, asset := range claimed {
		if _, seen := byCase[asset.CaseID]; !seen {
			order = append(order, asset.CaseID)
		}
		byCase[asset.CaseID] = append(byCase[asset.CaseID], asset)
	}

	for _, caseID := range order {
		assets := byCase[caseID]
		caseCtx := services.WithCaseID(ctx, caseID)
		caseCtx = services.WithStage(caseCtx, stageName)
		logger := logging.WithContext(caseCtx, s.logger)

		if err := s.annotateCase(caseCtx, caseID, assets, logger); err != nil {
			if storeErr := s.settleFailure(ctx, assets, err, logger); storeErr != nil {
				return len(claimed), storeErr
			}
		}
	}
	return len(claimed), nil
}

func (s *Stage) annotateCase(ctx context.Context, caseID string, assets []*store.Asset, logger *slog.Logger) error {
	record, err := s.store.GetCase(ctx, caseID)
	if err != nil {
		return err
	}
	summary, err := extract.Summary(record.InfoHTML, summaryMaxRunes)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "summary", "rendering case text", err)
	}

	images := make([]captioner.ImageInput, 0, len(assets))
	for _, asset := range assets {
		images = append(images, captioner.ImageInput{Filename: asset.Filename, URL: asset.BlobURL})
	}

	annotations, err := s.annotator.Annotate(ctx, captioner.Request{
		CaseID:  caseID,
		Summary: summary,
		Images:  images,
	})
	if err != nil {
		if errors.Is(err, captioner.ErrBadPayload) {
			return services.Wrap(services.ErrValidation, stageName, "annotate", "caption payload rejected", err)
		}
		return services.Wrap(services.ErrCaptionService, stageName, "annotate", "caption request failed", err)
	}

	byFilename := make(map[string]captioner.Annotation, len(annotations))
	for _, annotation := range annotations {
		byFilename[annotation.Filename] = annotation
	}
	for _, asset := range assets {
		annotation, ok := byFilename[asset.Filename]
		if !ok {
			return services.Wrap(services.ErrValidation, stageName, "annotate", "no annotation for "+asset.Filename, nil)
		}
		if err := s.store.RecordAssetCaption(ctx, asset.ID, annotation.AltText, annotation.Caption); err != nil {
			return err
		}
	}
	logger.Info("assets captioned", logging.Int("assets", len(assets)))
	return nil
}

// settleFailure decides the fate of every claimed asset in the failed group:
// transient failures go back to pending, the rest park on a failure code.
func (s *Stage) settleFailure(ctx context.Context, assets []*store.Asset, cause error, logger *slog.Logger) error {
	retryable := services.IsRetryable(cause)
	code := services.FailureStatus(cause)
	if retryable {
		logger.Warn("captioning attempt failed, releasing for retry", logging.Error(cause))
	} else {
		logger.Error("captioning failed", logging.Error(cause), logging.String(logging.FieldStatus, code.String()))
	}

	for _, asset := range assets {
		var err error
		if retryable {
			err = s.store.ReleaseAsset(ctx, asset.ID, cause.Error())
		} else {
			err = s.store.FailAsset(ctx, asset.ID, code, cause.Error())
		}
		if err != nil {
			return err
		}
	}
	return nil
}
