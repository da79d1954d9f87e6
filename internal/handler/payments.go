package handler

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/paystack"
	"github.com/idyWilliams/nadinekollections-sub000/internal/validation"
)

type initiatePaymentRequest struct {
	Provider string `json:"provider" validate:"required,oneof=paystack flutterwave monnify remita"`
}

// InitiatePayment возвращает параметры формы оплаты для выбранного шлюза.
func (h *Handler) InitiatePayment(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req initiatePaymentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, "initiate payment", err)
		return
	}

	userID, admin := currentUser(r)
	if _, err := h.service.GetOrderForUser(r.Context(), id, userID, admin); err != nil {
		h.writeServiceError(w, "initiate payment", err)
		return
	}

	cfg, err := h.service.InitiatePayment(r.Context(), id, model.PaymentProvider(req.Provider))
	if err != nil {
		h.writeServiceError(w, "initiate payment", err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PaymentStatusAwaitingConfirmation отдаётся клиенту, пока вебхук шлюза не подтвердил оплату.
const PaymentStatusAwaitingConfirmation = "awaiting_confirmation"

type paymentCallbackResponse struct {
	OrderID       string `json:"orderId"`
	OrderNumber   string `json:"orderNumber"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	Confirmed     bool   `json:"confirmed"`
}

// PaymentCallback принимает сообщение браузера об успешной оплате.
// Оплата подтверждается только вебхуком, ответ отражает текущее состояние заказа.
func (h *Handler) PaymentCallback(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	userID, admin := currentUser(r)
	if _, err := h.service.GetOrderForUser(r.Context(), id, userID, admin); err != nil {
		h.writeServiceError(w, "payment callback", err)
		return
	}

	o, err := h.service.ConfirmClientPayment(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, "payment callback", err)
		return
	}

	resp := paymentCallbackResponse{
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Confirmed:     o.PaymentStatus == model.PaymentStatusPaid,
	}
	if !resp.Confirmed {
		resp.PaymentStatus = PaymentStatusAwaitingConfirmation
	}
	writeJSON(w, http.StatusOK, resp)
}

// PaystackWebhook принимает события Paystack. Тело читается целиком, подпись считается по сырым байтам.
func (h *Handler) PaystackWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	outcome, err := h.service.HandlePaystackWebhook(r.Context(), body, r.Header.Get(paystack.SignatureHeader))
	status := outcome.StatusCode()
	if err != nil {
		h.logger.Error("paystack webhook error", zap.Error(err), zap.String("outcome", string(outcome)))
	}

	http.Error(w, http.StatusText(status), status)
}
