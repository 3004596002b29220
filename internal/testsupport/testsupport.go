// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"path/filepath"
	"testing"

	"caseflow/internal/config"
	"caseflow/internal/store"
)

// ConfigOption mutates the test configuration before use.
type ConfigOption func(*config.Config)

// NewConfig returns a validated configuration rooted in a temp directory.
func NewConfig(t *testing.T, opts ...ConfigOption) *config.Config {
	t.Helper()
	base := t.TempDir()

	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Database.Backend = "sqlite"
	cfg.Database.SQLitePath = filepath.Join(base, "caseflow.db")

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("invalid test config: %v", err)
	}
	return &cfg
}

// MustOpenStore opens a SQLite store in a temp directory and closes it when
// the test finishes.
func MustOpenStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "caseflow.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

// SeedCase inserts a case ready for the imaging stage.
func SeedCase(t *testing.T, st *store.Store, caseID, infoHTML string) *store.Case {
	t.Helper()
	record, err := st.UpsertCase(context.Background(), &store.Case{
		CaseID:   caseID,
		Title:    caseID,
		URLPath:  "cases",
		InfoHTML: infoHTML,
	})
	if err != nil {
		t.Fatalf("seed case %s: %v", caseID, err)
	}
	return record
}

// PNGImage renders a solid-color PNG of the given dimensions.
func PNGImage(t *testing.T, width, height int, fill color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}
