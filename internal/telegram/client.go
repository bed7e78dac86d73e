// Package telegram is a minimal Bot API client covering what the bot
// needs: identity checks, long polling, webhook management, and
// sending replies.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultAPIURL is the Bot API endpoint root.
const DefaultAPIURL = "https://api.telegram.org"

// Client talks to the Telegram Bot API over HTTPS.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Bot API client for the given token.
func NewClient(token string) *Client {
	return &Client{
		token:   token,
		baseURL: DefaultAPIURL,
		// Long polls block server-side for up to pollTimeout; leave
		// headroom on top of that.
		httpClient: &http.Client{Timeout: 50 * time.Second},
	}
}

// apiResponse is the Bot API envelope around every method result.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

func (c *Client) call(ctx context.Context, method string, params interface{}, result interface{}) error {
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)

	var body bytes.Buffer
	if params != nil {
		if err := json.NewEncoder(&body).Encode(params); err != nil {
			return fmt.Errorf("telegram: encoding %s params: %w", method, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return fmt.Errorf("telegram: building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram: calling %s: %w", method, err)
	}
	defer resp.Body.Close()

	var env apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("telegram: decoding %s response: %w", method, err)
	}
	if !env.OK {
		return fmt.Errorf("telegram: %s failed: %s (code %d)", method, env.Description, env.ErrorCode)
	}
	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("telegram: decoding %s result: %w", method, err)
		}
	}
	return nil
}

// GetMe returns the bot's own identity. Used as a token check at startup.
func (c *Client) GetMe(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.call(ctx, "getMe", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetUpdates long-polls for new updates past offset. timeout is the
// server-side hold in seconds.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	params := map[string]interface{}{
		"offset":          offset,
		"timeout":         timeout,
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// SetWebhook points Telegram at url for update delivery.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	params := map[string]interface{}{
		"url":             url,
		"allowed_updates": []string{"message"},
	}
	return c.call(ctx, "setWebhook", params, nil)
}

// DeleteWebhook removes any registered webhook. With dropPending, the
// backlog accumulated while the bot was down is discarded too.
func (c *Client) DeleteWebhook(ctx context.Context, dropPending bool) error {
	params := map[string]interface{}{
		"drop_pending_updates": dropPending,
	}
	return c.call(ctx, "deleteWebhook", params, nil)
}

// SendMessage sends Markdown-formatted text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	params := map[string]interface{}{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "Markdown",
	}
	return c.call(ctx, "sendMessage", params, nil)
}
