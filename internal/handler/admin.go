package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
	"github.com/idyWilliams/nadinekollections-sub000/internal/service"
	"github.com/idyWilliams/nadinekollections-sub000/internal/validation"
)

// ListOrders возвращает заказы магазина с фильтром по статусу.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	f := repository.OrderFilter{Limit: limit, Offset: offset}
	if s := r.URL.Query().Get("status"); s != "" {
		status := model.OrderStatus(s)
		f.Status = &status
	}

	orders, err := h.service.ListOrders(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderList(orders))
}

type updateStatusRequest struct {
	Status        string  `json:"status" validate:"required,oneof=pending processing shipped delivered cancelled returned failed refunded"`
	PaymentStatus *string `json:"paymentStatus,omitempty" validate:"omitempty,oneof=unpaid paid failed refunded"`
}

// UpdateOrderStatus меняет статус исполнения и оплаты заказа.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, "update order status", err)
		return
	}

	var payment *model.PaymentStatus
	if req.PaymentStatus != nil {
		ps := model.PaymentStatus(*req.PaymentStatus)
		payment = &ps
	}

	o, err := h.service.UpdateOrderStatus(r.Context(), id, model.OrderStatus(req.Status), payment)
	if err != nil {
		h.writeServiceError(w, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type createPromotionRequest struct {
	Code          string           `json:"code" validate:"required,promocode"`
	Description   string           `json:"description"`
	Type          string           `json:"type" validate:"required,oneof=percentage fixed_amount free_shipping"`
	Value         decimal.Decimal  `json:"value"`
	UsageLimit    *int             `json:"usageLimit,omitempty"`
	StartDate     *time.Time       `json:"startDate,omitempty"`
	EndDate       *time.Time       `json:"endDate,omitempty"`
	MinOrderValue *decimal.Decimal `json:"minOrderValue,omitempty"`
	MaxDiscount   *decimal.Decimal `json:"maxDiscount,omitempty"`
	IsActive      *bool            `json:"isActive,omitempty"`
}

type promotionResponse struct {
	ID            int64    `json:"id"`
	Code          string   `json:"code"`
	Description   string   `json:"description,omitempty"`
	Type          string   `json:"type"`
	Value         float64  `json:"value"`
	UsageLimit    *int     `json:"usageLimit,omitempty"`
	UsageCount    int      `json:"usageCount"`
	StartDate     string   `json:"startDate,omitempty"`
	EndDate       string   `json:"endDate,omitempty"`
	MinOrderValue *float64 `json:"minOrderValue,omitempty"`
	MaxDiscount   *float64 `json:"maxDiscount,omitempty"`
	IsActive      bool     `json:"isActive"`
}

func toPromotionResponse(p *model.Promotion) promotionResponse {
	resp := promotionResponse{
		ID:          p.ID,
		Code:        p.Code,
		Description: p.Description,
		Type:        string(p.Type),
		Value:       p.Value.InexactFloat64(),
		UsageLimit:  p.UsageLimit,
		UsageCount:  p.UsageCount,
		IsActive:    p.IsActive,
	}
	if p.StartDate != nil {
		resp.StartDate = p.StartDate.Format(time.RFC3339)
	}
	if p.EndDate != nil {
		resp.EndDate = p.EndDate.Format(time.RFC3339)
	}
	if p.MinOrderValue != nil {
		v := p.MinOrderValue.InexactFloat64()
		resp.MinOrderValue = &v
	}
	if p.MaxDiscount != nil {
		v := p.MaxDiscount.InexactFloat64()
		resp.MaxDiscount = &v
	}
	return resp
}

// CreatePromotion создаёт промо-акцию.
func (h *Handler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	var req createPromotionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, "create promotion", err)
		return
	}

	p := &model.Promotion{
		Code:          req.Code,
		Description:   req.Description,
		Type:          model.PromotionType(req.Type),
		Value:         req.Value,
		UsageLimit:    req.UsageLimit,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		MinOrderValue: req.MinOrderValue,
		MaxDiscount:   req.MaxDiscount,
		IsActive:      req.IsActive == nil || *req.IsActive,
	}
	if err := h.service.CreatePromotion(r.Context(), p); err != nil {
		h.writeServiceError(w, "create promotion", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPromotionResponse(p))
}

// ListPromotions возвращает все промо-акции.
func (h *Handler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	promos, err := h.service.ListPromotions(r.Context())
	if err != nil {
		h.writeServiceError(w, "list promotions", err)
		return
	}
	resp := make([]promotionResponse, 0, len(promos))
	for i := range promos {
		resp = append(resp, toPromotionResponse(&promos[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

type adjustStockRequest struct {
	Op        string `json:"op" validate:"required,oneof=increment decrement set"`
	Quantity  int    `json:"quantity" validate:"gte=0"`
	VariantID *int64 `json:"variantId,omitempty"`
}

type stockResponse struct {
	ProductID int64  `json:"productId"`
	VariantID *int64 `json:"variantId,omitempty"`
	Stock     int    `json:"stock"`
}

// AdjustStock изменяет остаток товара или варианта.
func (h *Handler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || productID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}

	var req adjustStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := validation.Struct(req); err != nil {
		h.writeServiceError(w, "adjust stock", err)
		return
	}

	stock, err := h.service.AdjustStock(r.Context(), productID, req.VariantID, service.StockOp(req.Op), req.Quantity)
	if err != nil {
		h.writeServiceError(w, "adjust stock", err)
		return
	}
	writeJSON(w, http.StatusOK, stockResponse{ProductID: productID, VariantID: req.VariantID, Stock: stock})
}
