// Package handler содержит HTTP-обработчики API магазина.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/cart"
	"github.com/idyWilliams/nadinekollections-sub000/internal/middleware"
	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/promotion"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
	"github.com/idyWilliams/nadinekollections-sub000/internal/service"
	"github.com/idyWilliams/nadinekollections-sub000/internal/validation"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	ValidatePromotion(ctx context.Context, code string, orderTotal decimal.Decimal) (promotion.Result, error)
	CreatePromotion(ctx context.Context, p *model.Promotion) error
	ListPromotions(ctx context.Context) ([]model.Promotion, error)

	CheckAvailability(ctx context.Context, productID int64, variantID *int64, quantity int) (*model.Availability, error)
	AdjustStock(ctx context.Context, productID int64, variantID *int64, op service.StockOp, quantity int) (int, error)

	CreateOrder(ctx context.Context, in service.OrderInput) (*model.Order, error)
	GetOrderForUser(ctx context.Context, id uuid.UUID, userID string, admin bool) (*model.Order, error)
	ListOrders(ctx context.Context, f repository.OrderFilter) ([]model.Order, error)
	ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]model.Order, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, payment *model.PaymentStatus) (*model.Order, error)
	CancelOrder(ctx context.Context, id uuid.UUID, userID string, admin bool) (*model.Order, error)

	InitiatePayment(ctx context.Context, orderID uuid.UUID, provider model.PaymentProvider) (*service.GatewayConfig, error)
	ConfirmClientPayment(ctx context.Context, orderID uuid.UUID) (*model.Order, error)
	HandlePaystackWebhook(ctx context.Context, body []byte, signature string) (service.WebhookOutcome, error)

	ListNotifications(ctx context.Context, userID string, admin bool) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, userID string, admin bool) error
}

// Handler реализует HTTP-обработчики API магазина.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	promoLimiter   *middleware.RateLimiter
	metrics        http.Handler
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
// promoLimiter и metrics могут быть nil.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware, promoLimiter *middleware.RateLimiter, metrics http.Handler) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
		promoLimiter:   promoLimiter,
		metrics:        metrics,
	}
}

const maxBodySize = 1 << 20

type errorResponse struct {
	Error  string                 `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ. Внутренние ошибки логируются без деталей в ответе.
func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Fields: verrs})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidQuantity),
		errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrInvalidProvider),
		errors.Is(err, service.ErrInvalidStockOp),
		errors.Is(err, promotion.ErrInvalid),
		errors.Is(err, promotion.ErrMinimumNotMet):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrVariantNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, promotion.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrInsufficientStock),
		errors.Is(err, repository.ErrPromotionExists),
		errors.Is(err, repository.ErrOrderNotPayable),
		errors.Is(err, repository.ErrOrderNotCancellable),
		errors.Is(err, repository.ErrReferenceInUse),
		errors.Is(err, promotion.ErrLimitReached),
		errors.Is(err, service.ErrProductUnavailable):
		status = http.StatusConflict
	case errors.Is(err, service.ErrGatewayNotConfigured):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		h.logger.Error(op+" error", zap.Error(err))
		writeError(w, status, http.StatusText(status))
		return
	}
	writeError(w, status, err.Error())
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(r *http.Request) (userID string, admin bool) {
	u, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		return "", false
	}
	return u.ID, u.Admin
}

func pagination(r *http.Request) (limit, offset int) {
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type orderItemRequest struct {
	ID        int64            `json:"id" validate:"required,gt=0"`
	VariantID *int64           `json:"variantId,omitempty"`
	Quantity  int              `json:"quantity" validate:"gt=0"`
	Price     *decimal.Decimal `json:"price" validate:"required"`
}

type shippingRequest struct {
	Name    string `json:"name" validate:"required"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"required"`
	Address string `json:"address" validate:"required"`
	Line1   string `json:"line1,omitempty"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode,omitempty"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingDetails shippingRequest    `json:"shippingDetails"`
	PromoCode       string             `json:"promoCode" validate:"omitempty,promocode"`
	Total           *decimal.Decimal   `json:"total" validate:"required"`
}

// normalize сводит синонимы полей адреса к одному представлению.
func (req *createOrderRequest) normalize() {
	s := &req.ShippingDetails
	if s.Address == "" {
		s.Address = s.Line1
	}
	if s.ZipCode == "" {
		s.ZipCode = s.Zip
	}
}

func (req *createOrderRequest) toInput(userID string) service.OrderInput {
	items := make([]cart.Item, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, cart.Item{
			ProductID: it.ID,
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
			Price:     *it.Price,
		})
	}

	s := req.ShippingDetails
	in := service.OrderInput{
		Items: items,
		Contact: service.Contact{
			Name:  s.Name,
			Email: s.Email,
			Phone: s.Phone,
			Address: model.Address{
				Line1:   s.Address,
				City:    s.City,
				State:   s.State,
				Zip:     s.ZipCode,
				Country: s.Country,
			},
		},
		PromoCode:   req.PromoCode,
		ClientTotal: *req.Total,
	}
	if userID != "" {
		in.UserID = &userID
	}
	return in
}

type createOrderResponse struct {
	OrderID     string  `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	Total       float64 `json:"total"`
}

// CreateOrder оформляет заказ из корзины покупателя.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.normalize()

	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, "create order", err)
		return
	}

	userID, _ := currentUser(r)
	o, err := h.service.CreateOrder(r.Context(), req.toInput(userID))
	if err != nil {
		// Неизвестный промокод или товар в корзине это ошибка запроса, а не отсутствующий ресурс.
		if errors.Is(err, promotion.ErrNotFound) ||
			errors.Is(err, repository.ErrProductNotFound) ||
			errors.Is(err, repository.ErrVariantNotFound) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeServiceError(w, "create order", err)
		return
	}

	writeJSON(w, http.StatusOK, createOrderResponse{
		OrderID:     o.ID.String(),
		OrderNumber: o.OrderNumber,
		Total:       o.Total.InexactFloat64(),
	})
}

type orderItemResponse struct {
	ProductID int64   `json:"productId"`
	VariantID *int64  `json:"variantId,omitempty"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	OrderNumber      string              `json:"orderNumber"`
	Status           string              `json:"status"`
	PaymentStatus    string              `json:"paymentStatus"`
	Subtotal         float64             `json:"subtotal"`
	Shipping         float64             `json:"shippingCost"`
	Tax              float64             `json:"tax"`
	Discount         float64             `json:"discount"`
	Total            float64             `json:"total"`
	Email            string              `json:"email"`
	ShippingAddress  model.Address       `json:"shippingAddress"`
	PaymentProvider  string              `json:"paymentProvider,omitempty"`
	PaymentReference string              `json:"paymentReference,omitempty"`
	PaidAt           string              `json:"paidAt,omitempty"`
	Items            []orderItemResponse `json:"items"`
	CreatedAt        string              `json:"createdAt"`
}

func toOrderResponse(o *model.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		Subtotal:        o.Subtotal.InexactFloat64(),
		Shipping:        o.Shipping.InexactFloat64(),
		Tax:             o.Tax.InexactFloat64(),
		Discount:        o.Discount.InexactFloat64(),
		Total:           o.Total.InexactFloat64(),
		Email:           o.ContactEmail,
		ShippingAddress: o.ShippingAddress,
		Items:           make([]orderItemResponse, 0, len(o.Items)),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
	if o.PaymentProvider != nil {
		resp.PaymentProvider = string(*o.PaymentProvider)
	}
	if o.PaymentReference != nil {
		resp.PaymentReference = *o.PaymentReference
	}
	if o.PaidAt != nil {
		resp.PaidAt = o.PaidAt.Format(time.RFC3339)
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID: it.ProductID,
			VariantID: it.VariantID,
			Title:     it.Title,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice.InexactFloat64(),
		})
	}
	return resp
}

func toOrderList(orders []model.Order) []orderResponse {
	resp := make([]orderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	return resp
}

// GetOrder возвращает заказ. Заказ пользователя доступен владельцу и администратору.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	userID, admin := currentUser(r)

	o, err := h.service.GetOrderForUser(r.Context(), id, userID, admin)
	if err != nil {
		h.writeServiceError(w, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

// GetUserOrders возвращает заказы текущего пользователя.
func (h *Handler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		return
	}

	limit, offset := pagination(r)
	orders, err := h.service.ListUserOrders(r.Context(), userID, limit, offset)
	if err != nil {
		h.writeServiceError(w, "list user orders", err)
		return
	}

	if len(orders) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(orders))
}

// CancelOrder отменяет заказ текущего пользователя.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	userID, admin := currentUser(r)

	o, err := h.service.CancelOrder(r.Context(), id, userID, admin)
	if err != nil {
		h.writeServiceError(w, "cancel order", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type availabilityResponse struct {
	ProductID int64 `json:"productId"`
	model.Availability
}

// CheckAvailability сообщает, достаточно ли остатка для заказа.
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || productID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	quantity := 1
	if q := r.URL.Query().Get("quantity"); q != "" {
		if quantity, err = strconv.Atoi(q); err != nil {
			writeError(w, http.StatusBadRequest, "invalid quantity")
			return
		}
	}

	var variantID *int64
	if v := r.URL.Query().Get("variant"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid variant id")
			return
		}
		variantID = &id
	}

	res, err := h.service.CheckAvailability(r.Context(), productID, variantID, quantity)
	if err != nil {
		h.writeServiceError(w, "check availability", err)
		return
	}
	writeJSON(w, http.StatusOK, availabilityResponse{ProductID: productID, Availability: *res})
}

type validatePromotionRequest struct {
	Code       string           `json:"code" validate:"required"`
	OrderTotal *decimal.Decimal `json:"orderTotal" validate:"required"`
}

type validatePromotionResponse struct {
	Valid        bool    `json:"valid"`
	Code         string  `json:"code,omitempty"`
	PromoID      int64   `json:"promoId,omitempty"`
	Discount     float64 `json:"discount"`
	FreeShipping bool    `json:"freeShipping"`
	Error        string  `json:"error,omitempty"`
}

// ValidatePromotion проверяет промокод для суммы заказа.
func (h *Handler) ValidatePromotion(w http.ResponseWriter, r *http.Request) {
	var req validatePromotionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, "validate promotion", err)
		return
	}
	if req.OrderTotal.IsNegative() {
		writeJSON(w, http.StatusBadRequest, validatePromotionResponse{Error: "orderTotal must not be negative"})
		return
	}

	res, err := h.service.ValidatePromotion(r.Context(), req.Code, *req.OrderTotal)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, promotion.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, promotion.ErrInvalid),
			errors.Is(err, promotion.ErrLimitReached),
			errors.Is(err, promotion.ErrMinimumNotMet):
			status = http.StatusBadRequest
		default:
			h.logger.Error("validate promotion error", zap.Error(err))
			writeJSON(w, status, validatePromotionResponse{Error: http.StatusText(status)})
			return
		}
		writeJSON(w, status, validatePromotionResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, validatePromotionResponse{
		Valid:        true,
		Code:         res.Code,
		PromoID:      res.PromotionID,
		Discount:     res.Discount.InexactFloat64(),
		FreeShipping: res.FreeShipping,
	})
}

type notificationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Type      string `json:"type"`
	Link      string `json:"link,omitempty"`
	IsRead    bool   `json:"isRead"`
	System    bool   `json:"system"`
	CreatedAt string `json:"createdAt"`
}

// ListNotifications возвращает уведомления текущего пользователя.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	userID, admin := currentUser(r)

	items, err := h.service.ListNotifications(r.Context(), userID, admin)
	if err != nil {
		h.writeServiceError(w, "list notifications", err)
		return
	}

	resp := make([]notificationResponse, 0, len(items))
	for _, n := range items {
		resp = append(resp, notificationResponse{
			ID:        n.ID.String(),
			Title:     n.Title,
			Message:   n.Message,
			Type:      n.Type,
			Link:      n.Link,
			IsRead:    n.IsRead,
			System:    n.UserID == nil,
			CreatedAt: n.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkNotificationRead отмечает уведомление прочитанным.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	userID, admin := currentUser(r)

	if err := h.service.MarkNotificationRead(r.Context(), id, userID, admin); err != nil {
		h.writeServiceError(w, "mark notification read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
