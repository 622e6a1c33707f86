// Package notify turns booking events into client-facing messages. Delivery
// is best-effort: a failed send is logged in the notifications table and never
// blocks the booking flow that produced the event.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type SMSSender interface {
	Send(ctx context.Context, to string, body string) error
	ProviderID() string
}

// TextbeltSender posts to a textbelt-compatible gateway: form-encoded
// phone/message/key, JSON {"success": bool, "error": string} back.
type TextbeltSender struct {
	endpoint string
	key      string
	http     *http.Client
}

func NewTextbeltSender(endpoint, key string) *TextbeltSender {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = "https://textbelt.com/text"
	}
	return &TextbeltSender{
		endpoint: endpoint,
		key:      strings.TrimSpace(key),
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (s *TextbeltSender) ProviderID() string {
	return "sms-textbelt"
}

func (s *TextbeltSender) Send(ctx context.Context, to string, body string) error {
	if s.key == "" {
		return fmt.Errorf("sms gateway key not configured")
	}
	form := url.Values{}
	form.Set("phone", to)
	form.Set("message", body)
	form.Set("key", s.key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway returned %d", resp.StatusCode)
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decode sms gateway response: %w", err)
	}
	if !result.Success {
		if result.Error == "" {
			result.Error = "unknown gateway error"
		}
		return fmt.Errorf("sms gateway: %s", result.Error)
	}
	return nil
}

// NoopSender is for local development without a gateway key.
type NoopSender struct{}

func NewNoopSender() *NoopSender { return &NoopSender{} }

func (s *NoopSender) ProviderID() string { return "sms-noop" }

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error { return nil }
