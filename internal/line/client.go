// Package line talks to the LINE Messaging API.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/comigor/duckling-go/internal/config"
)

// Client is a client for the LINE Messaging API. Every method is a single
// request returning the raw response; callers close the body.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a new Client
func NewClient(cfg config.LINEConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.ChannelAccessToken,
		client:  &http.Client{},
	}
}

// Reply answers an event through its reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, messages []Message) (*http.Response, error) {
	return c.post(ctx, "/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   messages,
	})
}

// StartLoading shows the loading animation in a one-on-one chat. LINE accepts
// multiples of five between 5 and 60 seconds; other values are rounded into range.
func (c *Client) StartLoading(ctx context.Context, chatID string, seconds int) (*http.Response, error) {
	return c.post(ctx, "/chat/loading/start", map[string]any{
		"chatId":         chatID,
		"loadingSeconds": loadingSeconds(seconds),
	})
}

// GetProfile fetches a user's profile.
func (c *Client) GetProfile(ctx context.Context, userID string) (*http.Response, error) {
	return c.get(ctx, "/profile/"+url.PathEscape(userID))
}

// GetGroupChatHistory fetches the messages of a group chat.
func (c *Client) GetGroupChatHistory(ctx context.Context, groupID string) (*http.Response, error) {
	return c.get(ctx, "/group/"+url.PathEscape(groupID)+"/messages")
}

// GetMessageContent fetches the binary content of a message.
func (c *Client) GetMessageContent(ctx context.Context, messageID string) (*http.Response, error) {
	return c.get(ctx, "/message/"+url.PathEscape(messageID)+"/content")
}

func (c *Client) post(ctx context.Context, path string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.token))
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("line %s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

// CheckResponse returns an error for non-2xx responses and closes the body.
func CheckResponse(resp *http.Response) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("unexpected status code: %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

// DecodeProfile reads a GetProfile response and closes the body.
func DecodeProfile(resp *http.Response) (*Profile, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}
	var p Profile
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &p, nil
}

func loadingSeconds(s int) int {
	switch {
	case s <= 5:
		return 5
	case s >= 60:
		return 60
	case s%5 != 0:
		return s + 5 - s%5
	default:
		return s
	}
}
