// Package paystack содержит клиент API Paystack и проверку подписи вебхуков.
package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL адрес публичного API Paystack.
const DefaultBaseURL = "https://api.paystack.co"

// Client инкапсулирует HTTP-взаимодействие с API Paystack.
type Client struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

// Transaction описывает транзакцию, возвращаемую методом проверки.
type Transaction struct {
	ID        int64      `json:"id"`
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	PaidAt    *time.Time `json:"paid_at"`
	Customer  Customer   `json:"customer"`
}

// Succeeded сообщает, что транзакция успешно оплачена.
func (t *Transaction) Succeeded() bool {
	return t != nil && t.Status == "success"
}

type verifyResponse struct {
	Status  bool         `json:"status"`
	Message string       `json:"message"`
	Data    *Transaction `json:"data"`
}

// NewClient создаёт HTTP-клиент API Paystack.
func NewClient(baseURL, secretKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// VerifyTransaction запрашивает состояние транзакции по её референсу.
// Возвращает транзакцию, HTTP-код ответа и задержку из Retry-After при ответе 429.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, int, time.Duration, error) {
	if c == nil || c.baseURL == "" || c.secretKey == "" {
		return nil, 0, 0, fmt.Errorf("paystack client not configured")
	}

	endpoint := fmt.Sprintf("%s/transaction/verify/%s", c.baseURL, url.PathEscape(reference))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return nil, resp.StatusCode, retryAfter, nil
	}

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return nil, resp.StatusCode, 0, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode, 0, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("decode response: %w", err)
	}

	if !result.Status || result.Data == nil {
		return nil, resp.StatusCode, 0, fmt.Errorf("verify transaction: %s", result.Message)
	}

	return result.Data, resp.StatusCode, 0, nil
}
