// Package wasender implements ports.TextSender against the WaSender WhatsApp API.
package wasender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"whatsapp-bulk-worker/internal/domain"
	"whatsapp-bulk-worker/internal/ports"

	"github.com/sethvargo/go-retry"
)

const (
	DefaultBaseURL    = "https://www.wasenderapi.com"
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 3

	sendPath = "/api/send-message"
)

// Config holds the provider credentials and client tuning.
type Config struct {
	BaseURL             string
	APIKey              string
	PersonalAccessToken string
	Timeout             time.Duration
	MaxRetries          uint64
	// RetryBase is the first backoff step; it doubles on every retry.
	RetryBase time.Duration
}

var _ ports.TextSender = (*Client)(nil)

// Client implements ports.TextSender.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// New creates a Client. Zero values in cfg fall back to the package defaults.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Configured reports whether an API key or a personal access token is set.
func (c *Client) Configured() bool {
	return c.cfg.APIKey != "" || c.cfg.PersonalAccessToken != ""
}

type sendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		MsgID  json.Number `json:"msgId"`
		JID    string      `json:"jid"`
		Status string      `json:"status"`
	} `json:"data"`
}

// SendText posts one text message, retrying transport errors, 429 and 5xx
// responses with exponential backoff.
func (c *Client) SendText(ctx context.Context, to, text string) (ports.SendResult, error) {
	if !c.Configured() {
		return ports.SendResult{}, domain.ErrProviderNotConfigured
	}

	body, err := json.Marshal(sendRequest{To: to, Text: text})
	if err != nil {
		return ports.SendResult{}, fmt.Errorf("marshal send request: %w", err)
	}

	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewExponential(c.cfg.RetryBase))

	var result ports.SendResult
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := c.send(ctx, body)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return ports.SendResult{}, err
	}
	return result, nil
}

func (c *Client) send(ctx context.Context, body []byte) (ports.SendResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+sendPath, bytes.NewReader(body))
	if err != nil {
		return ports.SendResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.SendResult{}, retry.RetryableError(fmt.Errorf("do request: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ports.SendResult{}, retry.RetryableError(fmt.Errorf("read response: %w", err))
	}

	var sr sendResponse
	decodeErr := json.Unmarshal(raw, &sr)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		perr := &domain.ProviderError{StatusCode: resp.StatusCode, Message: sr.Message}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return ports.SendResult{}, retry.RetryableError(perr)
		}
		return ports.SendResult{}, perr
	}

	if decodeErr != nil {
		return ports.SendResult{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	if !sr.Success {
		return ports.SendResult{}, &domain.ProviderError{StatusCode: resp.StatusCode, Message: sr.Message}
	}

	return ports.SendResult{ProviderID: sr.Data.MsgID.String(), Status: sr.Data.Status}, nil
}

// token prefers the session API key; the personal access token is the fallback.
func (c *Client) token() string {
	if c.cfg.APIKey != "" {
		return c.cfg.APIKey
	}
	return c.cfg.PersonalAccessToken
}
