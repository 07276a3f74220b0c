package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/claude/repform/internal/progression"
	"github.com/claude/repform/internal/session"
	"github.com/klauspost/compress/gzip"
)

// maxAttempts bounds upload retries.
const maxAttempts = 3

// Client sends scored sessions to the RepForm server over HTTP.
type Client struct {
	serverURL  string
	apiKey     string
	httpClient *http.Client
	backoff    time.Duration
}

// NewClient creates a new HTTP client for the RepForm server.
func NewClient(serverURL, apiKey string) *Client {
	return &Client{
		serverURL: strings.TrimRight(serverURL, "/"),
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff: time.Second,
	}
}

// UploadResult is the server's answer to a session upload.
type UploadResult struct {
	ID          string                `json:"id"`
	Duplicate   bool                  `json:"duplicate"`
	Progression *progression.Decision `json:"progression"`
}

// UploadSession POSTs a gzip-compressed session record to the server.
// Retries up to 3 times with exponential backoff on network errors and 5xx
// responses. Other client errors fail immediately.
func (c *Client) UploadSession(ctx context.Context, rec session.Record) (*UploadResult, error) {
	data, err := rec.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshaling session: %w", err)
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("compressing session: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compressing session: %w", err)
	}
	body := buf.Bytes()

	var lastErr error
	for attempt := range maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff << uint(attempt-1)):
			}
		}

		res, retry, err := c.post(ctx, body)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retry {
			return nil, err
		}
	}

	return nil, fmt.Errorf("after %d attempts: %w", maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) (*UploadResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/api/v1/sessions", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, err
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		var res UploadResult
		if err := json.Unmarshal(respBody, &res); err != nil {
			return nil, false, fmt.Errorf("decoding upload response: %w", err)
		}
		return &res, false, nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, true, fmt.Errorf("upload failed (status %d): %s", resp.StatusCode, respBody)
	default:
		return nil, false, fmt.Errorf("upload rejected (status %d): %s", resp.StatusCode, respBody)
	}
}
