// Package captioner generates localized alt text and captions for published
// case images through a chat-completions API.
package captioner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"caseflow/internal/config"
)

// ErrBadPayload indicates the service answered but the payload could not be
// interpreted. Not retryable; the asset is parked for review.
var ErrBadPayload = errors.New("caption payload malformed")

// ImageInput identifies one published image to annotate.
type ImageInput struct {
	Filename string
	URL      string
}

// Request asks for annotations for every image of one case.
type Request struct {
	CaseID  string
	Summary string
	Images  []ImageInput
}

// Annotation is the localized text produced for one image.
type Annotation struct {
	Filename string
	AltText  string
	Caption  string
}

// Client talks to the caption service with bounded retries.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	locale  language.Tag

	httpClient       *http.Client
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
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

// New builds a Client from the captioner configuration section.
func New(cfg config.Captioner, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("captioner client: api key is required")
	}
	tag, err := language.Parse(cfg.Locale)
	if err != nil {
		return nil, fmt.Errorf("captioner client: locale %q: %w", cfg.Locale, err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	client := &Client{
		apiKey:           cfg.APIKey,
		baseURL:          cfg.BaseURL,
		model:            cfg.Model,
		locale:           tag,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: maxAttempts,
		retryBaseDelay:   2 * time.Second,
		retryMaxDelay:    30 * time.Second,
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

// Annotate produces one annotation per requested image. The service must
// answer one line per image in "filename|alt|caption" form; anything else is
// an ErrBadPayload.
func (c *Client) Annotate(ctx context.Context, req Request) ([]Annotation, error) {
	if len(req.Images) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("marshal caption request: %w", err)
	}

	content, err := c.completionContentWithRetry(ctx, body)
	if err != nil {
		return nil, err
	}
	return parseAnnotations(content, req.Images)
}

type chatPayload struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

func (c *Client) buildPayload(req Request) chatPayload {
	languageName := display.English.Languages().Name(c.locale)

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "You are annotating photographs for the missing persons case %q.\n", req.CaseID)
	if req.Summary != "" {
		prompt.WriteString("Case summary:\n")
		prompt.WriteString(req.Summary)
		prompt.WriteString("\n\n")
	}
	fmt.Fprintf(&prompt, "For each image, write respectful %s alt text (one short sentence) and a %s caption (one or two sentences).\n", languageName, languageName)
	prompt.WriteString("Answer with exactly one line per image, no other text, in this format:\n")
	prompt.WriteString("filename|alt text|caption\n")
	prompt.WriteString("The filenames are:\n")
	for _, img := range req.Images {
		prompt.WriteString(img.Filename)
		prompt.WriteString("\n")
	}

	parts := []contentPart{{Type: "text", Text: prompt.String()}}
	for _, img := range req.Images {
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: img.URL}})
	}

	return chatPayload{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: parts}},
		MaxTokens: 2048,
	}
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) completionContentWithRetry(ctx context.Context, body []byte) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.retryMaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay(lastErr, attempt)
			if err := c.sleeper(ctx, delay); err != nil {
				return "", err
			}
		}
		content, err := c.completionContent(ctx, body)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}

func (c *Client) completionContent(ctx context.Context, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build caption request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("caption request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read caption response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpStatusError{
			status:     resp.StatusCode,
			body:       strings.TrimSpace(string(payload)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrBadPayload, err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrBadPayload)
	}
	return decoded.Choices[0].Message.Content, nil
}

func (c *Client) retryDelay(err error, attempt int) time.Duration {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) && statusErr.retryAfter > 0 {
		return statusErr.retryAfter
	}
	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.retryMaxDelay {
			return c.retryMaxDelay
		}
	}
	return delay
}

func isRetryable(err error) bool {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.status == http.StatusRequestTimeout:
			return true
		case statusErr.status == http.StatusTooManyRequests:
			return true
		case statusErr.status >= 500:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, ErrBadPayload) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	// Other transport failures get the benefit of the doubt.
	return !errors.Is(err, context.Canceled)
}

type httpStatusError struct {
	status     int
	body       string
	retryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("caption service returned status %d", e.status)
	}
	return fmt.Sprintf("caption service returned status %d: %s", e.status, e.body)
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
