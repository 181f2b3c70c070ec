package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"fittrack/internal/observability/metrics"
)

// transport performs JSON calls against the identity service REST API
type transport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	metrics    *metrics.Collector
}

func newTransport(baseURL, apiKey string, timeout time.Duration, collector *metrics.Collector) transport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return transport{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    collector,
	}
}

// call sends body as JSON and decodes a 2xx answer into out. Non-2xx answers
// become *Error; transport failures are wrapped as-is.
func (t transport) call(ctx context.Context, operation, method, path string, query url.Values, bearer string, body, out any) (err error) {
	defer func() { t.metrics.RecordIdentityCall(operation, err) }()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint := t.baseURL + "/auth/v1" + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", operation, err)
	}
	req.Header.Set("apikey", t.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer == "" {
		bearer = t.apiKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity service %s failed: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if len(raw) > 0 {
			_ = json.Unmarshal(raw, &eb)
		}
		return eb.toError(resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode %s response: %w", operation, err)
	}
	return nil
}
