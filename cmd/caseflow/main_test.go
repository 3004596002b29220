package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/store"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	path := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[database]
backend = "sqlite"
sqlite_path = %q
`, filepath.Join(base, "data"), filepath.Join(base, "logs"), filepath.Join(base, "caseflow.db"))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestQueueStatsEmpty(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, configPath, "queue", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "total")
	assert.Contains(t, out, "0")
}

func TestImportListAndStatus(t *testing.T) {
	configPath := writeTestConfig(t)
	caseFile := filepath.Join(t.TempDir(), "case.json")
	require.NoError(t, os.WriteFile(caseFile, []byte(
		`{"case_id": "alan-rhys-dowden", "case_title": "Alan Rhys Dowden", "scraped_content": "<p>x</p>"}`,
	), 0o644))

	out, err := runCLI(t, configPath, "import", caseFile)
	require.NoError(t, err)
	assert.Contains(t, out, "1 case(s)")

	out, err = runCLI(t, configPath, "queue", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "alan-rhys-dowden")
	assert.Contains(t, out, "pending")

	out, err = runCLI(t, configPath, "status", "alan-rhys-dowden")
	require.NoError(t, err)
	assert.Contains(t, out, "Alan Rhys Dowden")
	assert.Contains(t, out, "Complete: no")

	out, err = runCLI(t, configPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "1 total")
}

func TestQueueRetryMovesFailedBack(t *testing.T) {
	configPath := writeTestConfig(t)
	ctx := context.Background()

	// Seed a failed case directly through the store the CLI will use.
	dbPath := testDatabasePath(configPath)
	st, err := store.OpenSQLite(dbPath)
	require.NoError(t, err)
	record, err := st.UpsertCase(ctx, &store.Case{CaseID: "failed-case", Title: "Failed", URLPath: "cases", InfoHTML: "<p>x</p>"})
	require.NoError(t, err)
	claimed, err := st.ClaimPendingCases(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, st.FailCase(ctx, record.ID, store.StatusInternalError, "boom"))
	require.NoError(t, st.Close())

	out, err := runCLI(t, configPath, "queue", "retry")
	require.NoError(t, err)
	assert.Contains(t, out, "Retrying 1 case(s)")

	st, err = store.OpenSQLite(dbPath)
	require.NoError(t, err)
	defer st.Close()
	got, err := st.GetCase(ctx, "failed-case")
	require.NoError(t, err)
	assert.Equal(t, store.StatusPending, got.ConvertStatus)
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")
	cmd := newRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	require.NoError(t, cmd.Execute())

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[database]")

	// Second init without --overwrite refuses.
	cmd = newRootCommand()
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs([]string{"config", "init", "--path", target})
	require.Error(t, cmd.Execute())
}

// testDatabasePath returns the sqlite path the test config points at.
func testDatabasePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "caseflow.db")
}
