package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding/htmlindex"
)

const maxBodySize = 10 << 20

// ErrBodyTooLarge is returned when a response body exceeds the client's limit.
var ErrBodyTooLarge = errors.New("response body too large")

// HTTPError is returned for responses outside the 2xx range.
type HTTPError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %s from %s", e.Status, e.URL)
}

type Client struct {
	httpClient  *http.Client
	userAgent   string
	maxBodySize int64
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient:  &http.Client{Timeout: timeout},
		userAgent:   userAgent,
		maxBodySize: maxBodySize,
	}
}

// Get fetches url and returns the body decoded to UTF-8. A non-empty forced
// charset overrides detection from the response headers and markup.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string, forcedCharset string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &HTTPError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodySize+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxBodySize {
		return "", fmt.Errorf("%w: more than %d bytes from %s", ErrBodyTooLarge, c.maxBodySize, url)
	}

	body, err := decode(data, resp.Header.Get("Content-Type"), forcedCharset)
	if err != nil {
		return "", err
	}

	slog.Debug("Fetched", "url", url, "status", resp.StatusCode, "bytes", len(data), "duration", time.Since(started))

	return body, nil
}

func decode(data []byte, contentType, forcedCharset string) (string, error) {
	if forcedCharset != "" {
		enc, err := htmlindex.Get(forcedCharset)
		if err != nil {
			return "", fmt.Errorf("unknown charset %s: %w", forcedCharset, err)
		}
		decoded, err := enc.NewDecoder().Bytes(data)
		if err != nil {
			return "", fmt.Errorf("failed to decode %s body: %w", forcedCharset, err)
		}
		return string(decoded), nil
	}

	reader, err := charset.NewReader(bytes.NewReader(data), contentType)
	if err != nil {
		// Unknown declared charset; keep the raw bytes.
		return string(data), nil
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("failed to decode body: %w", err)
	}
	return string(decoded), nil
}
