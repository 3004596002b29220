package workflow_test

import (
	"context"
	"fmt"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/captioning"
	"caseflow/internal/dataset"
	"caseflow/internal/imaging"
	"caseflow/internal/publish"
	"caseflow/internal/services/captioner"
	"caseflow/internal/stage"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"
	"caseflow/internal/workflow"
)

type memFetcher struct {
	images map[string][]byte
}

func (f *memFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	data, ok := f.images[url]
	if !ok {
		return nil, fmt.Errorf("unexpected fetch: %s", url)
	}
	return data, nil
}

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (b *memBlob) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[key] = body
	return "https://cdn.example.org/" + key, nil
}

type memDataset struct {
	mu    sync.Mutex
	files []dataset.File
}

func (d *memDataset) CommitFiles(_ context.Context, files []dataset.File, _ string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.files = append(d.files, files...)
	return nil
}

type echoAnnotator struct{}

func (echoAnnotator) Annotate(_ context.Context, req captioner.Request) ([]captioner.Annotation, error) {
	annotations := make([]captioner.Annotation, 0, len(req.Images))
	for _, img := range req.Images {
		annotations = append(annotations, captioner.Annotation{
			Filename: img.Filename,
			AltText:  "portrait from " + req.CaseID,
			Caption:  "photograph published for case " + req.CaseID,
		})
	}
	return annotations, nil
}

// Full pipeline pass over one case: two source images end published,
// captioned, and counted complete.
func TestPipelineProcessesCaseEndToEnd(t *testing.T) {
	cfg := fastConfig(t)
	st := testsupport.MustOpenStore(t)
	ctx := context.Background()

	png := testsupport.PNGImage(t, 64, 48, color.White)
	fetcher := &memFetcher{images: map[string][]byte{
		"https://src.example.org/photo-a.png": png,
		"https://src.example.org/photo-b.png": png,
	}}
	blobStore := &memBlob{}
	repo := &memDataset{}
	publisher := publish.New(blobStore, repo, nil)

	stages := []stage.Handler{
		imaging.NewWithDependencies(cfg, st, fetcher, publisher, nil),
		captioning.NewWithDependencies(st, echoAnnotator{}, nil),
	}
	mgr := workflow.NewManager(cfg, st, stages, nil)

	testsupport.SeedCase(t, st, "alan-rhys-dowden",
		`<div><img src="https://src.example.org/photo-a.png"><img src="https://src.example.org/photo-b.png"></div>`)

	// Cycle one publishes the images and captions them; cycle two is idle.
	claimed, err := mgr.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, claimed, "one case plus its two published assets")

	claimed, err = mgr.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, claimed)

	record, err := st.GetCase(ctx, "alan-rhys-dowden")
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, record.ConvertStatus)
	assert.Equal(t, 2, record.ImageCount)

	assets, err := st.ListAssets(ctx, "alan-rhys-dowden")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	for i, asset := range assets {
		filename := fmt.Sprintf("alan-rhys-dowden-%d.jpg", i+1)
		assert.Equal(t, filename, asset.Filename)
		assert.Equal(t, "https://cdn.example.org/cases/alan-rhys-dowden/"+filename, asset.BlobURL)
		assert.Equal(t, store.StatusDone, asset.AIProcessed)
		assert.NotEmpty(t, asset.AltText)
		assert.NotEmpty(t, asset.Caption)
		assert.True(t, asset.Done())
	}

	complete, err := st.CaseComplete(ctx, "alan-rhys-dowden")
	require.NoError(t, err)
	assert.True(t, complete)

	// Both destinations received both images.
	assert.Len(t, blobStore.objects, 2)
	assert.Len(t, repo.files, 2)

	snapshot, err := st.ProgressSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshot.Completed)
	assert.Equal(t, 2, snapshot.AssetsDone)
	assert.InDelta(t, 1.0, snapshot.CompletionRatio(), 0.001)
}
