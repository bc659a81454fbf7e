package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Client is the Bot API implementation of MembershipChecker and Sender. One
// instance is shared by all services; it is safe for concurrent use.
type Client struct {
	token string
	base  string
	http  *http.Client
	log   zerolog.Logger
}

// NewClient builds a Client for the given bot token.
func NewClient(token string, log zerolog.Logger) *Client {
	return &Client{
		token: token,
		base:  "https://api.telegram.org",
		http:  &http.Client{Timeout: 10 * time.Second},
		log:   log.With().Str("component", "platform.client").Logger(),
	}
}

// apiResponse is the envelope every Bot API method answers with.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
}

// APIError is a Bot API level rejection (the HTTP exchange itself succeeded).
type APIError struct {
	Code        int
	Description string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("bot api error %d: %s", e.Code, e.Description)
}

// call posts params to the named Bot API method and decodes the result
// envelope.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("call %s: read: %w", method, err)
	}
	var env apiResponse
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("call %s: decode: %w", method, err)
	}
	if !env.OK {
		return nil, &APIError{Code: env.ErrorCode, Description: env.Description}
	}
	return env.Result, nil
}

// ChatMember implements MembershipChecker via the getChatMember method.
func (c *Client) ChatMember(ctx context.Context, channel string, userID int64) (string, error) {
	res, err := c.call(ctx, "getChatMember", map[string]any{
		"chat_id": channel,
		"user_id": userID,
	})
	if err != nil {
		return "", err
	}
	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return "", fmt.Errorf("getChatMember: decode: %w", err)
	}
	return out.Status, nil
}

// SendMessage implements Sender.
func (c *Client) SendMessage(ctx context.Context, userID int64, text string) error {
	_, err := c.call(ctx, "sendMessage", map[string]any{
		"chat_id": userID,
		"text":    text,
	})
	return err
}

// SendPhoto implements Sender.
func (c *Client) SendPhoto(ctx context.Context, userID int64, fileID, caption string) error {
	_, err := c.call(ctx, "sendPhoto", map[string]any{
		"chat_id": userID,
		"photo":   fileID,
		"caption": caption,
	})
	return err
}

// SendVoice implements Sender.
func (c *Client) SendVoice(ctx context.Context, userID int64, fileID, caption string) error {
	_, err := c.call(ctx, "sendVoice", map[string]any{
		"chat_id": userID,
		"voice":   fileID,
		"caption": caption,
	})
	return err
}

// SendSticker implements Sender.
func (c *Client) SendSticker(ctx context.Context, userID int64, fileID string) error {
	_, err := c.call(ctx, "sendSticker", map[string]any{
		"chat_id": userID,
		"sticker": fileID,
	})
	return err
}
