package captioning_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/captioning"
	"caseflow/internal/services/captioner"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"
)

type fakeAnnotator struct {
	requests []captioner.Request
	err      error
}

func (f *fakeAnnotator) Annotate(_ context.Context, req captioner.Request) ([]captioner.Annotation, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	annotations := make([]captioner.Annotation, 0, len(req.Images))
	for _, img := range req.Images {
		annotations = append(annotations, captioner.Annotation{
			Filename: img.Filename,
			AltText:  "alt for " + img.Filename,
			Caption:  "caption for " + img.Filename,
		})
	}
	return annotations, nil
}

func seedPublishedAssets(t *testing.T, st *store.Store, caseID string, n int) []*store.Asset {
	t.Helper()
	testsupport.SeedCase(t, st, caseID, "<p>summary of "+caseID+"</p>")
	ctx := context.Background()
	assets := make([]*store.Asset, 0, n)
	for i := 1; i <= n; i++ {
		filename := fmt.Sprintf("%s-%d.jpg", caseID, i)
		asset, err := st.UpsertAsset(ctx, &store.Asset{CaseID: caseID, Filename: filename, SortOrder: i - 1})
		require.NoError(t, err)
		require.NoError(t, st.RecordAssetPublished(ctx, asset.ID,
			"https://cdn.example.org/"+caseID+"/"+filename, 10, 10, 100))
		assets = append(assets, asset)
	}
	return assets
}

func TestRunOnceCaptionsClaimedAssets(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	annotator := &fakeAnnotator{}
	stg := captioning.NewWithDependencies(st, annotator, nil)
	ctx := context.Background()

	seeded := seedPublishedAssets(t, st, "alan-rhys-dowden", 2)

	claimed, err := stg.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, claimed)

	require.Len(t, annotator.requests, 1)
	assert.Equal(t, "alan-rhys-dowden", annotator.requests[0].CaseID)
	assert.Contains(t, annotator.requests[0].Summary, "summary of alan-rhys-dowden")

	for _, asset := range seeded {
		got, err := st.GetAssetByID(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, store.StatusDone, got.AIProcessed)
		assert.True(t, got.Done())
	}
}

func TestRunOnceGroupsByCase(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	annotator := &fakeAnnotator{}
	stg := captioning.NewWithDependencies(st, annotator, nil)

	seedPublishedAssets(t, st, "case-one", 2)
	seedPublishedAssets(t, st, "case-two", 1)

	claimed, err := stg.RunOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 3, claimed)
	assert.Len(t, annotator.requests, 2)
}

func TestRunOnceServiceOutageReleasesAssets(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	annotator := &fakeAnnotator{err: errors.New("upstream 503")}
	stg := captioning.NewWithDependencies(st, annotator, nil)
	ctx := context.Background()

	seeded := seedPublishedAssets(t, st, "outage-case", 1)

	_, err := stg.RunOnce(ctx, 10)
	require.NoError(t, err)

	got, err := st.GetAssetByID(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, got.AIProcessed)

	// Released assets are claimable again.
	annotator.err = nil
	claimed, err := stg.RunOnce(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, claimed)
}

func TestRunOnceBadPayloadParksAssets(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	annotator := &fakeAnnotator{err: fmt.Errorf("%w: gibberish", captioner.ErrBadPayload)}
	stg := captioning.NewWithDependencies(st, annotator, nil)
	ctx := context.Background()

	seeded := seedPublishedAssets(t, st, "bad-payload-case", 1)

	_, err := stg.RunOnce(ctx, 10)
	require.NoError(t, err)

	got, err := st.GetAssetByID(ctx, seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusBadPayload, got.AIProcessed)
	assert.NotEmpty(t, got.ErrorMessage)
}

func TestRunOnceIdleWithNothingPublished(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	stg := captioning.NewWithDependencies(st, &fakeAnnotator{}, nil)

	// Unpublished assets are not eligible.
	testsupport.SeedCase(t, st, "unpublished", "<p>x</p>")
	_, err := st.UpsertAsset(context.Background(), &store.Asset{CaseID: "unpublished", Filename: "u-1.jpg"})
	require.NoError(t, err)

	claimed, err := stg.RunOnce(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, claimed)
}
