package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/cart"
	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/promotion"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
)

// Contact содержит контактные данные и адрес доставки покупателя.
type Contact struct {
	Name    string
	Email   string
	Phone   string
	Address model.Address
}

// OrderInput описывает запрос на оформление заказа.
type OrderInput struct {
	Items       []cart.Item
	Contact     Contact
	PromoCode   string
	ClientTotal decimal.Decimal
	UserID      *string
}

const orderNumberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CreateOrder пересчитывает корзину по каталогу, применяет промокод и атомарно создаёт заказ.
func (s *Service) CreateOrder(ctx context.Context, in OrderInput) (*model.Order, error) {
	c, err := cart.New(in.Items...)
	if err != nil {
		return nil, ErrInvalidQuantity
	}
	if c.Empty() {
		return nil, ErrEmptyCart
	}
	lines := c.Items()

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]model.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, fmt.Errorf("%w: %d", repository.ErrProductNotFound, l.ProductID)
		}
		if !p.IsActive {
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, p.Title)
		}

		price := p.EffectivePrice()
		title := p.Title
		stock := p.Stock
		if l.VariantID != nil {
			v := findVariant(p, *l.VariantID)
			if v == nil {
				return nil, fmt.Errorf("%w: %d", repository.ErrVariantNotFound, *l.VariantID)
			}
			if v.Price != nil && v.Price.IsPositive() {
				price = *v.Price
			}
			title = p.Title + " - " + v.Name
			stock = min(stock, v.Stock)
		}
		if stock < l.Quantity {
			return nil, fmt.Errorf("%w: %s", repository.ErrInsufficientStock, title)
		}
		if !l.Price.IsZero() && !l.Price.Equal(price) {
			s.logger.Warn("client price differs from catalog",
				zap.Int64("product_id", p.ID), zap.String("client", l.Price.String()), zap.String("catalog", price.String()))
		}

		item := model.OrderItem{
			ProductID: p.ID,
			VariantID: l.VariantID,
			Title:     title,
			Quantity:  l.Quantity,
			UnitPrice: price.Round(2),
		}
		items = append(items, item)
		subtotal = subtotal.Add(item.LineTotal())
	}

	settings, err := s.repo.GetStoreSettings(ctx)
	if err != nil {
		return nil, err
	}
	shipping := settings.ShippingFee.Round(2)
	tax := subtotal.Mul(settings.TaxRate).Round(2)

	discount := decimal.Zero
	var promotionID *int64
	if in.PromoCode != "" {
		res, err := s.ValidatePromotion(ctx, in.PromoCode, subtotal)
		if err != nil {
			return nil, err
		}
		id := res.PromotionID
		promotionID = &id
		discount = res.Discount
		if res.FreeShipping {
			shipping = decimal.Zero
		}
	}

	total := subtotal.Add(shipping).Add(tax).Sub(discount)
	if !in.ClientTotal.IsZero() && !in.ClientTotal.Round(2).Equal(total) {
		s.logger.Warn("client total differs from computed total",
			zap.String("client", in.ClientTotal.String()), zap.String("computed", total.String()))
	}

	now := s.now()
	o := &model.Order{
		ID:              uuid.New(),
		OrderNumber:     newOrderNumber(now),
		UserID:          in.UserID,
		ContactEmail:    in.Contact.Email,
		Subtotal:        subtotal,
		Shipping:        shipping,
		Tax:             tax,
		Discount:        discount,
		Total:           total,
		Status:          model.OrderStatusPending,
		PaymentStatus:   model.PaymentStatusUnpaid,
		ShippingAddress: in.Contact.Address,
		PromotionID:     promotionID,
		Items:           items,
	}
	if o.IsGuest() {
		o.GuestEmail = in.Contact.Email
		o.GuestName = in.Contact.Name
		o.GuestPhone = in.Contact.Phone
	}

	if err := s.repo.CreateOrder(ctx, o); err != nil {
		if errors.Is(err, repository.ErrPromotionUnavailable) {
			return nil, fmt.Errorf("%w: %w", promotion.ErrLimitReached, err)
		}
		return nil, err
	}

	s.metrics.OrdersCreated.Inc()
	s.logger.Info("order created",
		zap.String("order_id", o.ID.String()), zap.String("order_number", o.OrderNumber), zap.String("total", o.Total.StringFixed(2)))

	s.notifyAsync(ctx, func(ctx context.Context) error { return s.notifier.OrderCreated(ctx, o) })
	return o, nil
}

func newOrderNumber(now time.Time) string {
	suffix := make([]byte, 6)
	limit := big.NewInt(int64(len(orderNumberAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			n = big.NewInt(now.UnixNano() % limit.Int64())
		}
		suffix[i] = orderNumberAlphabet[n.Int64()]
	}
	return fmt.Sprintf("NK-%d-%s", now.Unix(), suffix)
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// GetOrderForUser возвращает заказ, если его может видеть пользователь.
// Гостевые заказы доступны по идентификатору, заказы пользователей только владельцу и администратору.
func (s *Service) GetOrderForUser(ctx context.Context, id uuid.UUID, userID string, admin bool) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAccess(o, userID, admin) {
		return nil, ErrForbidden
	}
	return o, nil
}

func canAccess(o *model.Order, userID string, admin bool) bool {
	return admin || o.UserID == nil || *o.UserID == userID
}

// ListOrders возвращает заказы по фильтру.
func (s *Service) ListOrders(ctx context.Context, f repository.OrderFilter) ([]model.Order, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	return s.repo.ListOrders(ctx, f)
}

// ListUserOrders возвращает заказы пользователя.
func (s *Service) ListUserOrders(ctx context.Context, userID string, limit, offset int) ([]model.Order, error) {
	return s.repo.ListOrders(ctx, repository.OrderFilter{UserID: &userID, Limit: limit, Offset: offset})
}

// UpdateOrderStatus меняет статус заказа. Отмена возвращает товары на склад.
// Ручная отметка оплаты проставляет референс manual-<id>, если платёж не проходил через шлюз.
func (s *Service) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, payment *model.PaymentStatus) (*model.Order, error) {
	if !status.Valid() || (payment != nil && !payment.Valid()) {
		return nil, ErrInvalidStatus
	}
	// Оплату отменённого заказа проводит только шлюз.
	if status == model.OrderStatusCancelled && payment != nil && *payment == model.PaymentStatusPaid {
		return nil, fmt.Errorf("%w: cancelled order can not be marked paid", ErrInvalidStatus)
	}

	switch {
	case status == model.OrderStatusCancelled:
		if err := s.repo.CancelOrder(ctx, id); err != nil {
			return nil, err
		}
		if payment != nil {
			if err := s.repo.UpdateOrderStatus(ctx, id, status, payment); err != nil {
				return nil, err
			}
		}
	case payment != nil && *payment == model.PaymentStatusPaid:
		if _, err := s.repo.MarkOrderPaid(ctx, id, "manual-"+id.String(), s.now()); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateOrderStatus(ctx, id, status, nil); err != nil {
			return nil, err
		}
	default:
		if err := s.repo.UpdateOrderStatus(ctx, id, status, payment); err != nil {
			return nil, err
		}
	}

	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status updated",
		zap.String("order_id", id.String()), zap.String("status", string(o.Status)), zap.String("payment_status", string(o.PaymentStatus)))

	s.notifyAsync(ctx, func(ctx context.Context) error { return s.notifier.OrderStatusChanged(ctx, o) })
	return o, nil
}

// CancelOrder отменяет заказ по запросу покупателя. Оплаченный заказ может отменить только администратор.
func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID, userID string, admin bool) (*model.Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !admin {
		if o.UserID == nil || *o.UserID != userID {
			return nil, ErrForbidden
		}
		if o.PaymentStatus == model.PaymentStatusPaid {
			return nil, repository.ErrOrderNotCancellable
		}
	}
	return s.UpdateOrderStatus(ctx, id, model.OrderStatusCancelled, nil)
}
