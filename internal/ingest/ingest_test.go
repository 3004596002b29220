package ingest_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/ingest"
	"caseflow/internal/store"
	"caseflow/internal/testsupport"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImportFileJSONArray(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	imp := ingest.New(st, nil)
	ctx := context.Background()

	path := writeFile(t, t.TempDir(), "batch.json", `[
		{"case_id": "alan-rhys-dowden", "case_title": "Alan Rhys Dowden", "scraped_content": "<p>details</p>"},
		{"case_id": "second-case", "case_title": "Second Case", "scraped_content": "<p>more</p>", "url_path": "archive/"}
	]`)

	count, err := imp.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	record, err := st.GetCase(ctx, "alan-rhys-dowden")
	require.NoError(t, err)
	assert.Equal(t, "Alan Rhys Dowden", record.Title)
	assert.Equal(t, "cases", record.URLPath)
	assert.Equal(t, store.StatusPending, record.ConvertStatus)

	record, err = st.GetCase(ctx, "second-case")
	require.NoError(t, err)
	assert.Equal(t, "archive", record.URLPath)
}

func TestImportFileSingleObject(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	imp := ingest.New(st, nil)

	path := writeFile(t, t.TempDir(), "one.json",
		`{"case_id": "solo", "case_title": "Solo", "scraped_content": "<p>x</p>"}`)

	count, err := imp.ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestImportFileIndexHTML(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	imp := ingest.New(st, nil)
	ctx := context.Background()

	path := writeFile(t, t.TempDir(), "index.html", `<ul>
		<li><a href="https://charleyproject.org/case/alan-rhys-dowden">Alan Rhys Dowden</a></li>
		<li><a href="https://charleyproject.org/case/alan-rhys-dowden">Alan Rhys Dowden (duplicate)</a></li>
		<li><a href="https://charleyproject.org/about">About</a></li>
		<li><a href="https://charleyproject.org/case/jane-doe">Jane Doe</a></li>
	</ul>`)

	count, err := imp.ImportFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "non-case links and duplicates skipped")

	record, err := st.GetCase(ctx, "jane-doe")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", record.Title)
	assert.Contains(t, record.InfoHTML, "charleyproject.org/case/jane-doe")
}

func TestReimportPreservesPipelineState(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	imp := ingest.New(st, nil)
	ctx := context.Background()

	dir := t.TempDir()
	writeFile(t, dir, "case.json", `{"case_id": "done-case", "case_title": "Before", "scraped_content": "<p>v1</p>"}`)

	_, err := imp.ImportDir(ctx, dir)
	require.NoError(t, err)

	claimed, err := st.ClaimPendingCases(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, st.SetImageCount(ctx, claimed[0].ID, 3))
	require.NoError(t, st.CompleteCaseConversion(ctx, claimed[0].ID))

	writeFile(t, dir, "case.json", `{"case_id": "done-case", "case_title": "After", "scraped_content": "<p>v2</p>"}`)
	summary, err := imp.ImportDir(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Files)
	assert.Equal(t, 1, summary.Cases)

	record, err := st.GetCase(ctx, "done-case")
	require.NoError(t, err)
	assert.Equal(t, "After", record.Title)
	assert.Contains(t, record.InfoHTML, "v2")
	assert.Equal(t, store.StatusDone, record.ConvertStatus, "re-import must not rewind status")
	assert.Equal(t, 3, record.ImageCount)
}

func TestImportFileRejectsMissingCaseID(t *testing.T) {
	st := testsupport.MustOpenStore(t)
	imp := ingest.New(st, nil)

	path := writeFile(t, t.TempDir(), "bad.json", `{"case_title": "No ID"}`)
	_, err := imp.ImportFile(context.Background(), path)
	require.Error(t, err)
}
