// Package daemonrun assembles the pipeline from configuration and runs the
// daemon process loop. The CLI's one-shot mode reuses the same assembly.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"caseflow/internal/blob"
	"caseflow/internal/captioning"
	"caseflow/internal/config"
	"caseflow/internal/daemon"
	"caseflow/internal/dataset"
	"caseflow/internal/imaging"
	"caseflow/internal/publish"
	"caseflow/internal/stage"
	"caseflow/internal/store"
	"caseflow/internal/workflow"
)

// BuildStages constructs the pipeline stages with their real backends.
// Requires publishing and captioning credentials to be present.
func BuildStages(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) ([]stage.Handler, error) {
	if err := cfg.ValidatePublishing(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCaptioning(); err != nil {
		return nil, err
	}

	blobClient, err := blob.New(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("blob client: %w", err)
	}

	var repo publish.DatasetRepo
	if cfg.Dataset.Enabled {
		client, err := dataset.New(cfg.Dataset)
		if err != nil {
			return nil, fmt.Errorf("dataset client: %w", err)
		}
		repo = client
	}
	publisher := publish.New(blobClient, repo, logger)

	captioningStage, err := captioning.New(cfg, st, logger)
	if err != nil {
		return nil, fmt.Errorf("captioner client: %w", err)
	}

	return []stage.Handler{
		imaging.New(cfg, st, publisher, logger),
		captioningStage,
	}, nil
}

// Run starts the daemon and blocks until the context is cancelled or a
// termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	stages, err := BuildStages(signalCtx, cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return err
	}

	manager := workflow.NewManager(cfg, st, stages, logger)
	d, err := daemon.New(cfg, st, manager, logger)
	if err != nil {
		_ = st.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	d.Stop()
	return nil
}
