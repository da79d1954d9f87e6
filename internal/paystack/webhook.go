package paystack

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SignatureHeader заголовок, в котором Paystack передаёт подпись тела запроса.
const SignatureHeader = "x-paystack-signature"

// EventChargeSuccess тип события об успешном списании.
const EventChargeSuccess = "charge.success"

// ErrMissingReference возвращается, если событие не содержит референс транзакции.
var ErrMissingReference = errors.New("event has no transaction reference")

// Customer описывает плательщика.
type Customer struct {
	Email string `json:"email"`
}

// EventData содержит данные транзакции из события.
type EventData struct {
	ID        int64      `json:"id"`
	Status    string     `json:"status"`
	Reference string     `json:"reference"`
	Amount    int64      `json:"amount"`
	Currency  string     `json:"currency"`
	Channel   string     `json:"channel"`
	PaidAt    *time.Time `json:"paid_at"`
	Customer  Customer   `json:"customer"`
}

// Event конверт события вебхука.
type Event struct {
	Event string    `json:"event"`
	Data  EventData `json:"data"`
}

// Sign вычисляет HMAC-SHA512 тела запроса и возвращает его в hex.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature сравнивает подпись из заголовка с вычисленной за постоянное время.
func VerifySignature(body []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	expected := Sign(body, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

// ParseEvent разбирает тело вебхука.
func ParseEvent(body []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Event == EventChargeSuccess && strings.TrimSpace(ev.Data.Reference) == "" {
		return nil, ErrMissingReference
	}
	return &ev, nil
}
