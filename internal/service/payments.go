package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/paystack"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
)

// GatewayConfig содержит параметры, с которыми клиент открывает форму оплаты шлюза.
type GatewayConfig struct {
	Provider    model.PaymentProvider `json:"provider"`
	PublicKey   string                `json:"publicKey"`
	Reference   string                `json:"reference"`
	Amount      decimal.Decimal       `json:"amount"`
	AmountMinor int64                 `json:"amountMinor"`
	Currency    string                `json:"currency"`
	Email       string                `json:"email"`
	Name        string                `json:"name,omitempty"`
	Phone       string                `json:"phone,omitempty"`
	Extras      map[string]string     `json:"extras,omitempty"`
}

// InitiatePayment готовит параметры оплаты заказа и привязывает к нему платёжный референс.
func (s *Service) InitiatePayment(ctx context.Context, orderID uuid.UUID, provider model.PaymentProvider) (*GatewayConfig, error) {
	if !provider.Valid() {
		return nil, ErrInvalidProvider
	}

	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status != model.OrderStatusPending || o.PaymentStatus != model.PaymentStatusUnpaid {
		return nil, repository.ErrOrderNotPayable
	}

	settings, err := s.repo.GetStoreSettings(ctx)
	if err != nil {
		return nil, err
	}

	cfg, err := gatewayConfig(settings, o, provider)
	if err != nil {
		return nil, err
	}

	if err := s.repo.SetPaymentReference(ctx, o.ID, provider, cfg.Reference); err != nil {
		return nil, err
	}

	s.logger.Info("payment initiated",
		zap.String("order_id", o.ID.String()), zap.String("provider", string(provider)), zap.Int64("amount", cfg.AmountMinor))
	return cfg, nil
}

func gatewayConfig(settings *model.StoreSettings, o *model.Order, provider model.PaymentProvider) (*GatewayConfig, error) {
	cfg := &GatewayConfig{
		Provider:    provider,
		Reference:   o.ID.String(),
		Amount:      o.Total.Round(2),
		AmountMinor: model.ToMinor(o.Total),
		Currency:    settings.Currency,
		Email:       o.ContactEmail,
		Name:        o.GuestName,
		Phone:       o.GuestPhone,
	}
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}

	switch provider {
	case model.ProviderPaystack:
		cfg.PublicKey = settings.PaystackPublicKey
	case model.ProviderFlutterwave:
		cfg.PublicKey = settings.FlutterwavePublicKey
		cfg.Extras = map[string]string{"paymentOptions": "card,banktransfer,ussd"}
	case model.ProviderMonnify:
		if settings.MonnifyContractCode == "" {
			return nil, ErrGatewayNotConfigured
		}
		cfg.PublicKey = settings.MonnifyAPIKey
		cfg.Extras = map[string]string{"contractCode": settings.MonnifyContractCode}
	case model.ProviderRemita:
		if settings.RemitaMerchantID == "" || settings.RemitaServiceTypeID == "" {
			return nil, ErrGatewayNotConfigured
		}
		cfg.PublicKey = settings.RemitaPublicKey
		cfg.Extras = map[string]string{
			"merchantId":    settings.RemitaMerchantID,
			"serviceTypeId": settings.RemitaServiceTypeID,
		}
	}
	if cfg.PublicKey == "" {
		return nil, ErrGatewayNotConfigured
	}
	return cfg, nil
}

// ConfirmClientPayment фиксирует сообщение браузера об успешной оплате и возвращает актуальный заказ.
// Статус оплаты меняет только вебхук.
func (s *Service) ConfirmClientPayment(ctx context.Context, orderID uuid.UUID) (*model.Order, error) {
	o, err := s.repo.MarkClientConfirmed(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentStatus != model.PaymentStatusPaid {
		s.logger.Info("client reported payment, awaiting webhook", zap.String("order_id", orderID.String()))
	}
	return o, nil
}

// WebhookOutcome описывает результат обработки вебхука.
type WebhookOutcome string

const (
	WebhookPaid           WebhookOutcome = "paid"
	WebhookDuplicate      WebhookOutcome = "duplicate"
	WebhookIgnored        WebhookOutcome = "ignored"
	WebhookAmountMismatch WebhookOutcome = "amount_mismatch"
	WebhookUnauthorized   WebhookOutcome = "unauthorized"
	WebhookMalformed      WebhookOutcome = "malformed"
	WebhookNotFound       WebhookOutcome = "not_found"
	WebhookFailed         WebhookOutcome = "failed"
)

// StatusCode возвращает HTTP-код ответа шлюзу. Подписанное, но нечитаемое событие подтверждается 200.
func (o WebhookOutcome) StatusCode() int {
	switch o {
	case WebhookUnauthorized:
		return http.StatusUnauthorized
	case WebhookNotFound:
		return http.StatusNotFound
	case WebhookFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusOK
	}
}

// HandlePaystackWebhook проверяет подпись события Paystack и идемпотентно отмечает заказ оплаченным.
func (s *Service) HandlePaystackWebhook(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	outcome, err := s.handlePaystackWebhook(ctx, body, signature)
	s.metrics.WebhookEvents.WithLabelValues(string(outcome)).Inc()
	return outcome, err
}

func (s *Service) handlePaystackWebhook(ctx context.Context, body []byte, signature string) (WebhookOutcome, error) {
	if !paystack.VerifySignature(body, signature, s.opts.WebhookSecret) {
		s.logger.Warn("webhook signature rejected")
		return WebhookUnauthorized, nil
	}

	ev, err := paystack.ParseEvent(body)
	if err != nil {
		s.logger.Error("signed webhook body is not a paystack event", zap.Error(err), zap.Int("size", len(body)))
		return WebhookMalformed, err
	}

	if err := s.repo.RecordPaymentEvent(ctx, string(model.ProviderPaystack), ev.Event, ev.Data.Reference, body); err != nil {
		s.logger.Warn("record payment event failed", zap.Error(err), zap.String("reference", ev.Data.Reference))
	}

	if ev.Event != paystack.EventChargeSuccess {
		s.logger.Info("webhook event ignored", zap.String("event", ev.Event), zap.String("reference", ev.Data.Reference))
		return WebhookIgnored, nil
	}

	o, err := s.repo.GetOrderByPaymentReference(ctx, ev.Data.Reference)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			s.logger.Warn("webhook for unknown order", zap.String("reference", ev.Data.Reference))
			return WebhookNotFound, nil
		}
		return WebhookFailed, err
	}

	return s.applyPayment(ctx, o, ev.Data.Reference, ev.Data.Amount, ev.Data.PaidAt)
}

// applyPayment отмечает заказ оплаченным. Общий путь для вебхука и сверки зависших заказов.
func (s *Service) applyPayment(ctx context.Context, o *model.Order, reference string, amountMinor int64, paidAt *time.Time) (WebhookOutcome, error) {
	if o.PaymentStatus == model.PaymentStatusPaid {
		return WebhookDuplicate, nil
	}

	if want := model.ToMinor(o.Total); amountMinor < want {
		s.logger.Error("paid amount lower than order total",
			zap.String("order_id", o.ID.String()), zap.Int64("paid", amountMinor), zap.Int64("total", want))
		return WebhookAmountMismatch, nil
	}

	if o.Status == model.OrderStatusCancelled {
		// Деньги списаны, статус отмены сохраняется до ручного возврата.
		s.logger.Error("payment received for cancelled order",
			zap.String("order_id", o.ID.String()), zap.String("reference", reference))
	}

	at := s.now()
	if paidAt != nil && !paidAt.IsZero() {
		at = *paidAt
	}

	transitioned, err := s.repo.MarkOrderPaid(ctx, o.ID, reference, at)
	if err != nil {
		return WebhookFailed, err
	}
	if !transitioned {
		return WebhookDuplicate, nil
	}

	o.PaymentStatus = model.PaymentStatusPaid
	if o.Status == model.OrderStatusPending {
		o.Status = model.OrderStatusProcessing
	}
	o.PaidAt = &at
	if o.PaymentReference == nil {
		o.PaymentReference = &reference
	}

	s.logger.Info("order paid", zap.String("order_id", o.ID.String()), zap.String("reference", reference))
	s.notifyAsync(ctx, func(ctx context.Context) error { return s.notifier.PaymentReceived(ctx, o) })
	return WebhookPaid, nil
}
