// Package cardapi talks to the card endpoint
package cardapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/arcanaland/cardwatch/internal/card"
)

// FetchError reports a failed request for the card list
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Result holds the decoded cards and the raw body they were decoded from
type Result struct {
	Cards []card.Card
	Raw   []byte
}

// Client fetches the card list
type Client struct {
	URL     string
	HTTP    *http.Client
	Timeout time.Duration
}

// NewClient creates a client for the cards endpoint at url. A zero timeout
// leaves requests bounded only by the caller's context.
func NewClient(url string, httpClient *http.Client, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		URL:     url,
		HTTP:    httpClient,
		Timeout: timeout,
	}
}

// Fetch requests the current card list. Network errors, non-2xx statuses
// and payloads that are not a JSON array all return a *FetchError.
func (c *Client) Fetch(ctx context.Context) (*Result, error) {
	raw, status, err := c.get(ctx, c.URL, "application/json")
	if err != nil {
		return nil, &FetchError{URL: c.URL, StatusCode: status, Err: err}
	}

	cards, err := card.Decode(raw)
	if err != nil {
		return nil, &FetchError{URL: c.URL, Err: err}
	}

	return &Result{Cards: cards, Raw: raw}, nil
}

// Download fetches an arbitrary resource such as a card image
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	raw, status, err := c.get(ctx, url, "*/*")
	if err != nil {
		return nil, &FetchError{URL: url, StatusCode: status, Err: err}
	}
	return raw, nil
}

func (c *Client) get(ctx context.Context, url, accept string) ([]byte, int, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", accept)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, fmt.Errorf("api status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}
