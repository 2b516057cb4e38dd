package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Sender описывает провайдера push-уведомлений. Одна отправка — один токен,
// порядок доставки между токенами не гарантируется.
type Sender interface {
	Send(ctx context.Context, token, title, body string) error
}

// Client — HTTP-клиент push-провайдера (Expo-совместимый API).
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient создаёт клиента push-провайдера.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type pushMessage struct {
	To    string `json:"to"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Send отправляет одно push-сообщение на устройство.
func (c *Client) Send(ctx context.Context, token, title, body string) error {
	payload, err := json.Marshal(pushMessage{To: token, Title: title, Body: body})
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push provider returned status %d", resp.StatusCode)
	}
	return nil
}
