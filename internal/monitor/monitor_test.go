package monitor_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/monitor"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"
)

func completeCase(t *testing.T, st *store.Store, caseID string, images int) {
	t.Helper()
	ctx := context.Background()
	testsupport.SeedCase(t, st, caseID, "<p>"+caseID+"</p>")
	claimed, err := st.ClaimPendingCases(ctx, 100)
	require.NoError(t, err)
	var record *store.Case
	for _, c := range claimed {
		if c.CaseID == caseID {
			record = c
			continue
		}
		// Unrelated pending cases go straight back.
		require.NoError(t, st.ReleaseCase(ctx, c.ID, ""))
	}
	require.NotNil(t, record)
	require.NoError(t, st.SetImageCount(ctx, record.ID, images))
	for i := 1; i <= images; i++ {
		filename := fmt.Sprintf("%s-%d.jpg", caseID, i)
		asset, err := st.UpsertAsset(ctx, &store.Asset{CaseID: caseID, Filename: filename})
		require.NoError(t, err)
		require.NoError(t, st.RecordAssetPublished(ctx, asset.ID, "https://cdn.example.org/"+filename, 10, 10, 100))
	}
	assets, err := st.ClaimPendingAssets(ctx, 100)
	require.NoError(t, err)
	for _, asset := range assets {
		if asset.CaseID != caseID {
			continue
		}
		require.NoError(t, st.RecordAssetCaption(ctx, asset.ID, "alt", "caption"))
	}
	require.NoError(t, st.CompleteCaseConversion(ctx, record.ID))
}

func TestPollReportsProgress(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	var reported []store.Snapshot
	mon := monitor.New(st, time.Minute, nil, monitor.WithReporter(func(s store.Snapshot) {
		reported = append(reported, s)
	}))
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		completeCase(t, st, fmt.Sprintf("done-%d", i), 1)
	}
	testsupport.SeedCase(t, st, "pending-1", "<p>x</p>")
	testsupport.SeedCase(t, st, "pending-2", "<p>x</p>")

	snapshot, err := mon.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.Total)
	assert.Equal(t, 3, snapshot.Completed)
	assert.Equal(t, 2, snapshot.Pending)
	assert.InDelta(t, 0.6, snapshot.CompletionRatio(), 0.001)

	completeCase(t, st, "pending-1", 1)
	completeCase(t, st, "pending-2", 1)

	snapshot, err = mon.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, snapshot.Completed)
	assert.InDelta(t, 1.0, snapshot.CompletionRatio(), 0.001)

	assert.Len(t, reported, 2)
}

func TestPollEmptyStoreHasZeroRatio(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	mon := monitor.New(st, time.Minute, nil)

	snapshot, err := mon.Poll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snapshot.Total)
	assert.Zero(t, snapshot.CompletionRatio())
}

func TestStartStop(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	polls := make(chan store.Snapshot, 16)
	mon := monitor.New(st, 10*time.Millisecond, nil, monitor.WithReporter(func(s store.Snapshot) {
		select {
		case polls <- s:
		default:
		}
	}))

	mon.Start(context.Background())
	select {
	case <-polls:
	case <-time.After(5 * time.Second):
		t.Fatal("monitor never polled")
	}
	mon.Stop()
	mon.Stop()
}
