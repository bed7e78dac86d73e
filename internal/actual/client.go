// Package actual is a thin client for an Actual Budget HTTP bridge.
// It exposes only the five operations the bot needs; everything else
// the backend can do is out of scope.
package actual

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to the budgeting backend over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	syncID     string
	httpClient *http.Client
}

// NewClient creates a backend client for the given budget sync ID.
func NewClient(baseURL, apiKey, syncID string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		syncID:     syncID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Sync asks the backend to synchronize the budget file with its server.
func (c *Client) Sync(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/sync", nil, nil); err != nil {
		return fmt.Errorf("actual: sync: %w", err)
	}
	return nil
}

// Accounts lists all accounts in the budget.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var out struct {
		Data []Account `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/accounts", nil, &out); err != nil {
		return nil, fmt.Errorf("actual: list accounts: %w", err)
	}
	return out.Data, nil
}

// Categories lists all categories in the budget.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	var out struct {
		Data []Category `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", nil, &out); err != nil {
		return nil, fmt.Errorf("actual: list categories: %w", err)
	}
	return out.Data, nil
}

// Payees lists all payees in the budget.
func (c *Client) Payees(ctx context.Context) ([]Payee, error) {
	var out struct {
		Data []Payee `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/payees", nil, &out); err != nil {
		return nil, fmt.Errorf("actual: list payees: %w", err)
	}
	return out.Data, nil
}

// AddTransactions imports the given records into one account. The
// response is normalized into an Outcome regardless of which wire
// shape the backend speaks.
func (c *Client) AddTransactions(ctx context.Context, accountID string, txs []Transaction) (Outcome, error) {
	body := map[string]interface{}{
		"transactions": txs,
	}
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	path := fmt.Sprintf("/accounts/%s/transactions", accountID)
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return Outcome{}, fmt.Errorf("actual: add transactions: %w", err)
	}
	return normalizeOutcome(out.Data, len(txs))
}

// normalizeOutcome collapses the two known response shapes into counts.
// A boolean (or "ok" string) means all-or-nothing; an object carries
// per-transaction lists.
func normalizeOutcome(data json.RawMessage, submitted int) (Outcome, error) {
	if len(data) == 0 {
		return Outcome{}, nil
	}

	var counted struct {
		Added   []json.RawMessage `json:"added"`
		Updated []json.RawMessage `json:"updated"`
		Errors  []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(data, &counted); err == nil {
		if counted.Added != nil || counted.Updated != nil || counted.Errors != nil {
			return Outcome{
				Added:   len(counted.Added),
				Updated: len(counted.Updated),
				Errors:  len(counted.Errors),
			}, nil
		}
	}

	var ok bool
	if err := json.Unmarshal(data, &ok); err == nil {
		if ok {
			return Outcome{Added: submitted}, nil
		}
		return Outcome{}, nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "ok" {
			return Outcome{Added: submitted}, nil
		}
		return Outcome{}, nil
	}

	return Outcome{}, fmt.Errorf("normalizeOutcome: unrecognized response shape: %s", string(data))
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	url := fmt.Sprintf("%s/v1/budgets/%s%s", c.baseURL, c.syncID, path)

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
