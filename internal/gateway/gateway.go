package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Session — результат открытия платёжной сессии на стороне шлюза.
type Session struct {
	SessionID       string // токен для чекаута на клиенте
	GatewayOrderRef string // идентификатор заказа на стороне шлюза
}

// PaymentGateway описывает внешний платёжный шлюз.
// Подтверждение оплаты приходит асинхронным callback'ом, здесь только открытие сессии.
type PaymentGateway interface {
	CreateSession(ctx context.Context, amount int, orderID uuid.UUID, customerName string) (*Session, error)
}

// Client — HTTP-клиент шлюза. Все вызовы ограничены таймаутом:
// зависший шлюз не должен держать заказ.
type Client struct {
	baseURL    string
	apiVersion string
	appID      string
	secretKey  string
	httpClient *http.Client
}

// NewClient создаёт клиента платёжного шлюза.
func NewClient(baseURL, apiVersion, appID, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiVersion: apiVersion,
		appID:      appID,
		secretKey:  secretKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type createOrderRequest struct {
	OrderAmount   int             `json:"order_amount"`
	OrderCurrency string          `json:"order_currency"`
	Customer      customerDetails `json:"customer_details"`
}

type customerDetails struct {
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
}

type createOrderResponse struct {
	GatewayOrderID   string `json:"cf_order_id"`
	PaymentSessionID string `json:"payment_session_id"`
	OrderStatus      string `json:"order_status"`
}

// CreateSession открывает платёжную сессию на сумму заказа.
func (c *Client) CreateSession(ctx context.Context, amount int, orderID uuid.UUID, customerName string) (*Session, error) {
	body, err := json.Marshal(createOrderRequest{
		OrderAmount:   amount,
		OrderCurrency: "INR",
		Customer: customerDetails{
			CustomerID:   orderID.String(),
			CustomerName: customerName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/pg/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("X-Client-Id", c.appID)
	req.Header.Set("X-Client-Secret", c.secretKey)
	req.Header.Set("x-api-version", c.apiVersion)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var parsed createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode gateway response: %w", err)
	}
	if parsed.PaymentSessionID == "" || parsed.GatewayOrderID == "" {
		return nil, fmt.Errorf("gateway response is missing identifiers")
	}

	return &Session{
		SessionID:       parsed.PaymentSessionID,
		GatewayOrderRef: parsed.GatewayOrderID,
	}, nil
}
