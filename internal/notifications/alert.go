package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"qms/booking-client/internal/models"
)

// Alerter raises a transient, user-facing alert for a notification.
type Alerter interface {
	Alert(ctx context.Context, n models.Notification) error
}

// NewAlerter picks an alerter by name: "log" (default), "noop", "webhook"
// (ALERT_WEBHOOK_URL) or a literal http(s) URL.
func NewAlerter(kind string) Alerter {
	switch kind {
	case "", "stub", "log":
		return logAlerter{}
	case "noop":
		return noopAlerter{}
	case "webhook":
		url := os.Getenv("ALERT_WEBHOOK_URL")
		if url == "" {
			return logAlerter{}
		}
		return webhookAlerter{url: url, token: os.Getenv("ALERT_WEBHOOK_TOKEN")}
	default:
		if strings.HasPrefix(kind, "http://") || strings.HasPrefix(kind, "https://") {
			return webhookAlerter{url: kind}
		}
		return logAlerter{}
	}
}

type logAlerter struct{}

func (logAlerter) Alert(ctx context.Context, n models.Notification) error {
	log.Printf("alert kind=%s id=%s: %s", n.Kind, n.ID, n.Message)
	return nil
}

type noopAlerter struct{}

func (noopAlerter) Alert(ctx context.Context, n models.Notification) error {
	return nil
}

type webhookAlerter struct {
	url   string
	token string
}

func (a webhookAlerter) Alert(ctx context.Context, n models.Notification) error {
	body, err := json.Marshal(map[string]string{
		"id":      n.ID,
		"kind":    n.Kind,
		"message": n.Message,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alert webhook rejected request: %d", resp.StatusCode)
	}
	return nil
}
