package services

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

// Notifier delivers user-facing notices for wallet and tournament events.
// Delivery is best effort: callers log failures and carry on, a lost notice
// never rolls back a ledger write.
type Notifier interface {
	Notify(ctx context.Context, userID, kind, message string) error
}

// NotificationClient posts to the notification service.
type NotificationClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func NewNotificationClient(baseURL, token string) *NotificationClient {
	return &NotificationClient{
		BaseURL: baseURL,
		Token:   token,
		Client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *NotificationClient) Notify(ctx context.Context, userID, kind, message string) error {
	payload := map[string]interface{}{
		"user_id": userID,
		"kind":    kind,
		"message": message,
	}
	jsonData, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/notifications", bytes.NewBuffer(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		log.Printf("notification service returned %d: %s", resp.StatusCode, string(body))
		return fmt.Errorf("notification delivery failed: %d", resp.StatusCode)
	}
	return nil
}

// LogNotifier writes notices to the process log. Used when no notification
// service is configured, and in tests.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, userID, kind, message string) error {
	log.Printf("notify user=%s kind=%s: %s", userID, kind, message)
	return nil
}
