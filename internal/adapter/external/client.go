// Package external holds HTTP JSON clients for the services the marketplace
// calls out to: the bank payout gateway and the automated proof reviewer.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxErrorBody caps how much of a failed response is copied into an error.
const maxErrorBody = 512

// jsonClient posts JSON to one base URL with an optional bearer key.
type jsonClient struct {
	name       string
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func newJSONClient(name, baseURL, apiKey string, timeout time.Duration) jsonClient {
	return jsonClient{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// statusError is a non-2xx answer from the remote service.
type statusError struct {
	service string
	code    int
	body    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.service, e.code, e.body)
}

func (c jsonClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", c.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s unavailable: %w", c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &statusError{service: c.name, code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}
