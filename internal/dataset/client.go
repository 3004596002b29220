// Package dataset commits published images to a versioned dataset repository
// over its HTTP commit API.
package dataset

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"caseflow/internal/config"
)

// File is one object included in a commit.
type File struct {
	Path    string
	Content []byte
}

// Client batches file uploads into single commits against one repository
// branch. Commit operations are add-or-update, so re-committing files that
// already landed is safe; that property is what makes a retried publish after
// partial success idempotent.
type Client struct {
	endpoint   string
	repo       string
	branch     string
	token      string
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	sleeper          func(context.Context, time.Duration) error
}

// Option adjusts client construction.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithRetryPolicy adjusts retry attempts and base delay.
func WithRetryPolicy(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) {
		if maxAttempts > 0 {
			c.retryMaxAttempts = maxAttempts
		}
		if baseDelay > 0 {
			c.retryBaseDelay = baseDelay
		}
	}
}

// New builds a Client from the dataset configuration section.
func New(cfg config.Dataset, opts ...Option) (*Client, error) {
	if cfg.Repo == "" {
		return nil, fmt.Errorf("dataset client: repo is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("dataset client: token is required")
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}
	client := &Client{
		endpoint:         strings.TrimRight(cfg.Endpoint, "/"),
		repo:             cfg.Repo,
		branch:           branch,
		token:            cfg.Token,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: 3,
		retryBaseDelay:   2 * time.Second,
		sleeper: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type commitLine struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type commitHeader struct {
	Summary string `json:"summary"`
}

type commitFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
}

// CommitFiles uploads the batch as one commit. Transient upstream failures
// (429, 5xx) are retried with exponential backoff before the error is
// surfaced to the caller.
func (c *Client) CommitFiles(ctx context.Context, files []File, message string) error {
	if len(files) == 0 {
		return nil
	}

	body, err := c.encodeCommit(files, message)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/api/datasets/%s/commit/%s", c.endpoint, c.repo, c.branch)

	var lastErr error
	delay := c.retryBaseDelay
	for attempt := 0; attempt < c.retryMaxAttempts; attempt++ {
		if attempt > 0 {
			if err := c.sleeper(ctx, delay); err != nil {
				return err
			}
			delay *= 2
		}
		lastErr = c.postCommit(ctx, url, body)
		if lastErr == nil {
			return nil
		}
		var statusErr *httpStatusError
		if !isRetryableCommitError(lastErr) {
			return lastErr
		}
		if asStatusError(lastErr, &statusErr) && statusErr.retryAfter > 0 {
			delay = statusErr.retryAfter
		}
	}
	return lastErr
}

func (c *Client) encodeCommit(files []File, message string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(commitLine{Key: "header", Value: commitHeader{Summary: message}}); err != nil {
		return nil, fmt.Errorf("encode commit header: %w", err)
	}
	for _, file := range files {
		if file.Path == "" {
			return nil, fmt.Errorf("encode commit: file path is empty")
		}
		line := commitLine{Key: "file", Value: commitFile{
			Path:     file.Path,
			Content:  base64.StdEncoding.EncodeToString(file.Content),
			Encoding: "base64",
		}}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("encode commit file %s: %w", file.Path, err)
		}
	}
	return buf.Bytes(), nil
}

func (c *Client) postCommit(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build commit request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post commit: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &httpStatusError{
		status:     resp.StatusCode,
		body:       strings.TrimSpace(string(payload)),
		retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}
}

type httpStatusError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("commit rejected with status %d", e.status)
	}
	return fmt.Sprintf("commit rejected with status %d: %s", e.status, e.body)
}

func asStatusError(err error, target **httpStatusError) bool {
	statusErr, ok := err.(*httpStatusError)
	if ok {
		*target = statusErr
	}
	return ok
}

func isRetryableCommitError(err error) bool {
	statusErr, ok := err.(*httpStatusError)
	if !ok {
		// Network-level failures are worth retrying.
		return true
	}
	switch {
	case statusErr.status == http.StatusTooManyRequests:
		return true
	case statusErr.status >= 500:
		return true
	default:
		return false
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}
