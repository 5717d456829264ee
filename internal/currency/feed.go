package currency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Doer executes an HTTP request. Satisfied by resilience.HTTPClient so the
// feed can sit behind retries and a circuit breaker.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Feed loads exchange rates from a remote JSON endpoint. Each request
// carries a hard timeout; a failed fetch leaves the previous snapshot in
// place, which is the deterministic fallback required of live sources.
type Feed struct {
	URL     string
	Timeout time.Duration
	Client  Doer
}

type plainDoer struct {
	client *http.Client
}

func (d plainDoer) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return d.client.Do(req.WithContext(ctx))
}

type feedPayload struct {
	Rates []ExchangeRate `json:"rates"`
}

// LoadRates implements Source against the configured endpoint.
func (f Feed) LoadRates(ctx context.Context) ([]ExchangeRate, error) {
	if strings.TrimSpace(f.URL) == "" {
		return nil, errors.New("currency: feed url not configured")
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequest(http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("currency: build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = plainDoer{client: http.DefaultClient}
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("currency: fetch rates: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("currency: feed returned status %d", resp.StatusCode)
	}
	var payload feedPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("currency: decode feed payload: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, errors.New("currency: feed returned no rates")
	}
	return payload.Rates, nil
}
