package dataset

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/internal/config"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	client, err := New(config.Dataset{
		Endpoint: serverURL,
		Repo:     "org/case-images",
		Branch:   "main",
		Token:    "token-123",
	}, WithRetryPolicy(3, time.Millisecond))
	require.NoError(t, err)
	client.sleeper = func(context.Context, time.Duration) error { return nil }
	return client
}

type recordedCommit struct {
	path  string
	auth  string
	lines []map[string]json.RawMessage
}

func decodeCommit(t *testing.T, r *http.Request) recordedCommit {
	t.Helper()
	rec := recordedCommit{path: r.URL.Path, auth: r.Header.Get("Authorization")}
	scanner := bufio.NewScanner(r.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var decoded map[string]json.RawMessage
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
		rec.lines = append(rec.lines, decoded)
	}
	require.NoError(t, scanner.Err())
	return rec
}

func TestCommitFilesSendsNDJSON(t *testing.T) {
	var got recordedCommit
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = decodeCommit(t, r)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.CommitFiles(context.Background(), []File{
		{Path: "alan-rhys-dowden/alan-rhys-dowden-1.jpg", Content: []byte("jpeg-bytes")},
		{Path: "alan-rhys-dowden/alan-rhys-dowden-2.jpg", Content: []byte("more-bytes")},
	}, "publish alan-rhys-dowden")
	require.NoError(t, err)

	assert.Equal(t, "/api/datasets/org/case-images/commit/main", got.path)
	assert.Equal(t, "Bearer token-123", got.auth)
	require.Len(t, got.lines, 3)

	var key string
	require.NoError(t, json.Unmarshal(got.lines[0]["key"], &key))
	assert.Equal(t, "header", key)

	var file commitFile
	require.NoError(t, json.Unmarshal(got.lines[1]["value"], &file))
	assert.Equal(t, "alan-rhys-dowden/alan-rhys-dowden-1.jpg", file.Path)
	assert.Equal(t, "base64", file.Encoding)
	decoded, err := base64.StdEncoding.DecodeString(file.Content)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg-bytes"), decoded)
}

func TestCommitFilesRetriesTransientFailures(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		_, _ = io.Copy(io.Discard, r.Body)
		if attempts < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.CommitFiles(context.Background(), []File{{Path: "a.jpg", Content: []byte("x")}}, "retry test")
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestCommitFilesDoesNotRetryClientErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	err := client.CommitFiles(context.Background(), []File{{Path: "a.jpg", Content: []byte("x")}}, "auth test")
	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Contains(t, err.Error(), "401")
}

func TestCommitFilesEmptyBatchIsNoop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.CommitFiles(context.Background(), nil, "empty"))
}

func TestRepeatedCommitIsAccepted(t *testing.T) {
	commits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		commits++
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	files := []File{{Path: "same.jpg", Content: []byte("payload")}}
	require.NoError(t, client.CommitFiles(context.Background(), files, "first"))
	require.NoError(t, client.CommitFiles(context.Background(), files, "second"))
	assert.Equal(t, 2, commits)
}

func TestNewRequiresRepoAndToken(t *testing.T) {
	_, err := New(config.Dataset{Token: "t"})
	require.Error(t, err)
	_, err = New(config.Dataset{Repo: "r"})
	require.Error(t, err)
}
