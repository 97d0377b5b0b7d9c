package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const defaultTimeout = 10 * time.Second

// Client posts messages through the Telegram bot API. Notifications are
// fire and forget: Notify logs failures and never returns them.
type Client struct {
	log     *slog.Logger
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(log *slog.Logger, token string) *Client {
	return &Client{
		log:     log,
		baseURL: "https://api.telegram.org",
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// NewClientWithBaseURL is used by tests to point at a local server.
func NewClientWithBaseURL(log *slog.Logger, baseURL, token string) *Client {
	c := NewClient(log, token)
	c.baseURL = baseURL
	return c
}

// Notify sends the text to a chat. Delivery problems must never affect the
// order flow, so the error stays here.
func (c *Client) Notify(ctx context.Context, chatID, text string) {
	if c.token == "" || chatID == "" {
		return
	}
	if err := c.send(ctx, chatID, text); err != nil {
		c.log.Warn("telegram notify failed", "chat_id", chatID, "error", err)
	}
}

func (c *Client) send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Description string `json:"description"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("telegram: status %d: %s", resp.StatusCode, apiErr.Description)
	}
	return nil
}
