package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Notifier delivers a message to a phone number. Delivery failures are
// reported as false and never as an error: callers treat them as warnings.
type Notifier interface {
	Notify(ctx context.Context, phone, message string) bool
}

// LogNotifier only logs. Used when no gateway is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, phone, message string) bool {
	log.Printf("[notify] no gateway configured, message for %s: %s", phone, message)
	return true
}

// SMSGateway posts {"phone", "message"} as JSON to an HTTP gateway.
type SMSGateway struct {
	URL    string
	Token  string
	Client *http.Client
}

func NewSMSGateway(url, token string) *SMSGateway {
	return &SMSGateway{
		URL:    url,
		Token:  token,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (g *SMSGateway) Notify(ctx context.Context, phone, message string) bool {
	if err := g.send(ctx, phone, message); err != nil {
		log.Printf("[WARN] sms to %s failed: %v", phone, err)
		return false
	}
	return true
}

func (g *SMSGateway) send(ctx context.Context, phone, message string) error {
	payload, err := json.Marshal(map[string]string{
		"phone":   phone,
		"message": message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("gateway responded %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
