package connector

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

const (
	defaultTimeout = 30 * time.Second

	// maxBodyBytes caps how much of a response is read into memory.
	maxBodyBytes = 32 << 20

	// maxErrorBody is how much of a failed response is kept for the error.
	maxErrorBody = 512
)

// ErrStatus matches any *StatusError with errors.Is.
var ErrStatus = errors.New("connector: unexpected status")

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("connector: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is reports ErrStatus equality so callers need not type-assert.
func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}

// Auth selects how outgoing requests are authenticated.
type Auth struct {
	// Mode is one of: basic | token | bearer | none.
	Mode string

	Username string
	Secret   string
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth Auth
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Secret)
	case "token":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "token "+t.auth.Secret)
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Secret)
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient wraps base (http.DefaultTransport when nil) with auth.
func buildHTTPClient(base http.RoundTripper, auth Auth, timeout time.Duration) *http.Client {
	if base == nil {
		base = http.DefaultTransport
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Transport: &authRoundTripper{base: base, auth: auth},
		Timeout:   timeout,
	}
}

// getJSON performs a GET and returns the body once it is known to be JSON.
// Non-2xx answers become *StatusError; an HTML login page served with 200
// is rejected as invalid JSON.
func getJSON(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{
			Method:     http.MethodGet,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       string(snippet),
		}
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("GET %s: response is not valid JSON", url)
	}
	return body, nil
}
