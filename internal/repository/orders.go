package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

const orderColumns = `id, order_number, user_id, contact_email, guest_email, guest_name, guest_phone,
	subtotal, shipping_cost, tax, discount_amount, total, status, payment_status, shipping_address,
	promotion_id, payment_provider, payment_reference, paid_at, client_confirmed_at, created_at, updated_at`

// OrderFilter задаёт параметры выборки заказов.
type OrderFilter struct {
	Status *model.OrderStatus
	UserID *string
	Limit  int
	Offset int
}

// CreateOrder в одной транзакции гасит промокод, списывает остатки, сохраняет заказ и его строки.
// Любая ошибка откатывает все изменения.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode shipping address: %w", err)
	}

	// Фиксированный порядок блокировок строк товаров между параллельными заказами.
	changes := make([]StockChange, 0, len(o.Items))
	for _, it := range o.Items {
		changes = append(changes, StockChange{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].ProductID < changes[j].ProductID })

	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		if o.PromotionID != nil {
			if err := redeemPromotion(ctx, tx, *o.PromotionID, time.Now()); err != nil {
				return err
			}
		}

		for _, ch := range changes {
			if _, err := decrementStock(ctx, tx, ch); err != nil {
				return err
			}
		}

		err = tx.QueryRow(ctx,
			`INSERT INTO orders (id, order_number, user_id, contact_email, guest_email, guest_name, guest_phone,
				subtotal, shipping_cost, tax, discount_amount, total, status, payment_status, shipping_address, promotion_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
			 RETURNING created_at, updated_at`,
			o.ID, o.OrderNumber, o.UserID, o.ContactEmail, nullIfEmpty(o.GuestEmail), nullIfEmpty(o.GuestName), nullIfEmpty(o.GuestPhone),
			model.ToMinor(o.Subtotal), model.ToMinor(o.Shipping), model.ToMinor(o.Tax), model.ToMinor(o.Discount), model.ToMinor(o.Total),
			string(o.Status), string(o.PaymentStatus), addr, o.PromotionID,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		for idx := range o.Items {
			it := &o.Items[idx]
			it.OrderID = o.ID
			err := tx.QueryRow(ctx,
				`INSERT INTO order_items (order_id, product_id, variant_id, title, quantity, unit_price)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 RETURNING id`,
				o.ID, it.ProductID, it.VariantID, it.Title, it.Quantity, model.ToMinor(it.UnitPrice),
			).Scan(&it.ID)
			if err != nil {
				return fmt.Errorf("insert order item: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// GetOrder возвращает заказ вместе со строками.
func (r *PostgresRepository) GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return r.getOrder(ctx, r.pool, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

// GetOrderByPaymentReference ищет заказ по платёжному референсу.
// Заказ без сохранённого референса находится по собственному идентификатору, который передаётся шлюзу как референс.
func (r *PostgresRepository) GetOrderByPaymentReference(ctx context.Context, reference string) (*model.Order, error) {
	return r.getOrder(ctx, r.pool,
		`SELECT `+orderColumns+` FROM orders
		 WHERE payment_reference = $1 OR (payment_reference IS NULL AND id::text = $1)
		 LIMIT 1`,
		reference,
	)
}

func (r *PostgresRepository) getOrder(ctx context.Context, q querier, query string, arg any) (*model.Order, error) {
	o, err := scanOrder(q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := loadItems(ctx, q, []uuid.UUID{o.ID})
	if err != nil {
		return nil, err
	}
	o.Items = items[o.ID]
	return o, nil
}

// ListOrders возвращает заказы по фильтру, новые первыми.
func (r *PostgresRepository) ListOrders(ctx context.Context, f OrderFilter) ([]model.Order, error) {
	limit := f.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	var status *string
	if f.Status != nil {
		s := string(*f.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE ($1::text IS NULL OR status = $1)
		   AND ($2::text IS NULL OR user_id = $2)
		 ORDER BY created_at DESC
		 LIMIT $3 OFFSET $4`,
		status, f.UserID, limit, f.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	return r.collectOrders(ctx, rows)
}

// ListStalePendingOrders возвращает неоплаченные заказы, созданные раньше указанного момента.
func (r *PostgresRepository) ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE status = $1 AND payment_status = $2 AND created_at < $3
		 ORDER BY created_at
		 LIMIT $4`,
		string(model.OrderStatusPending), string(model.PaymentStatusUnpaid), before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select stale orders: %w", err)
	}
	return r.collectOrders(ctx, rows)
}

func (r *PostgresRepository) collectOrders(ctx context.Context, rows pgx.Rows) ([]model.Order, error) {
	defer rows.Close()

	var (
		orders []model.Order
		ids    []uuid.UUID
	)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	rows.Close()

	if len(ids) == 0 {
		return orders, nil
	}

	items, err := loadItems(ctx, r.pool, ids)
	if err != nil {
		return nil, err
	}
	for idx := range orders {
		orders[idx].Items = items[orders[idx].ID]
	}
	return orders, nil
}

// SetPaymentReference сохраняет шлюз и референс платежа для заказа, ожидающего оплаты.
func (r *PostgresRepository) SetPaymentReference(ctx context.Context, id uuid.UUID, provider model.PaymentProvider, reference string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET payment_provider = $2, payment_reference = $3, updated_at = now()
		 WHERE id = $1 AND status = $4 AND payment_status = $5`,
		id, string(provider), reference, string(model.OrderStatusPending), string(model.PaymentStatusUnpaid),
	)
	if err != nil {
		if isUniqueViolation(err, "") {
			return ErrReferenceInUse
		}
		return fmt.Errorf("set payment reference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetOrder(ctx, id); err != nil {
			return err
		}
		return ErrOrderNotPayable
	}
	return nil
}

// MarkClientConfirmed отмечает, что браузер сообщил об успешной оплате. Статусы заказа не меняются.
func (r *PostgresRepository) MarkClientConfirmed(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET client_confirmed_at = COALESCE(client_confirmed_at, now()), updated_at = now()
		 WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("mark client confirmed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrOrderNotFound
	}
	return r.GetOrder(ctx, id)
}

// MarkOrderPaid переводит заказ в оплаченное состояние, если он ещё не оплачен.
// Возвращает true, только если переход произошёл в этом вызове.
func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, id uuid.UUID, reference string, paidAt time.Time) (bool, error) {
	var transitioned bool
	err := r.withRetry(ctx, func() error {
		tag, err := r.pool.Exec(ctx,
			`UPDATE orders SET
				payment_status = $2,
				status = CASE WHEN status = $3 THEN $4 ELSE status END,
				payment_reference = COALESCE(payment_reference, $5),
				paid_at = $6,
				updated_at = now()
			 WHERE id = $1 AND payment_status <> $2`,
			id, string(model.PaymentStatusPaid), string(model.OrderStatusPending), string(model.OrderStatusProcessing),
			reference, paidAt,
		)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		transitioned = tag.RowsAffected() == 1
		return nil
	})
	return transitioned, err
}

// UpdateOrderStatus записывает статус исполнения и, при необходимости, статус оплаты.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, payment *model.PaymentStatus) error {
	var ps *string
	if payment != nil {
		v := string(*payment)
		ps = &v
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, payment_status = COALESCE($3, payment_status), updated_at = now()
		 WHERE id = $1`,
		id, string(status), ps,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// CancelOrder отменяет неотправленный заказ, возвращает товары на склад и освобождает промокод.
func (r *PostgresRepository) CancelOrder(ctx context.Context, id uuid.UUID) error {
	return r.cancelOrder(ctx, id, false)
}

// CancelStaleOrder отменяет заказ, только если он всё ещё ожидает оплаты.
// Иначе возвращает ErrOrderNotStale и ничего не меняет.
func (r *PostgresRepository) CancelStaleOrder(ctx context.Context, id uuid.UUID) error {
	return r.cancelOrder(ctx, id, true)
}

func (r *PostgresRepository) cancelOrder(ctx context.Context, id uuid.UUID, staleOnly bool) error {
	return r.withRetry(ctx, func() error {
		tx, err := r.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx)

		var (
			status        string
			paymentStatus string
			promotionID   *int64
		)
		err = tx.QueryRow(ctx,
			`SELECT status, payment_status, promotion_id FROM orders WHERE id = $1 FOR UPDATE`,
			id,
		).Scan(&status, &paymentStatus, &promotionID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrOrderNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		if staleOnly && (model.OrderStatus(status) != model.OrderStatusPending ||
			model.PaymentStatus(paymentStatus) != model.PaymentStatusUnpaid) {
			return fmt.Errorf("%w: status %s, payment %s", ErrOrderNotStale, status, paymentStatus)
		}

		switch model.OrderStatus(status) {
		case model.OrderStatusPending, model.OrderStatusProcessing, model.OrderStatusFailed:
		default:
			return fmt.Errorf("%w: status %s", ErrOrderNotCancellable, status)
		}

		items, err := loadItems(ctx, tx, []uuid.UUID{id})
		if err != nil {
			return err
		}
		for _, it := range items[id] {
			_, err := incrementStock(ctx, tx, StockChange{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
			if err != nil && !errors.Is(err, ErrProductNotFound) && !errors.Is(err, ErrVariantNotFound) {
				return err
			}
		}

		if promotionID != nil {
			if err := releasePromotion(ctx, tx, *promotionID); err != nil {
				return err
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`,
			id, string(model.OrderStatusCancelled),
		)
		if err != nil {
			return fmt.Errorf("cancel order: %w", err)
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit tx: %w", err)
		}
		return nil
	})
}

// RecordPaymentEvent сохраняет входящее событие платёжного шлюза для аудита.
func (r *PostgresRepository) RecordPaymentEvent(ctx context.Context, provider, event, reference string, payload []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO payment_events (provider, event, reference, payload) VALUES ($1, $2, $3, $4)`,
		provider, event, reference, payload,
	)
	if err != nil {
		return fmt.Errorf("insert payment event: %w", err)
	}
	return nil
}

func loadItems(ctx context.Context, q querier, orderIDs []uuid.UUID) (map[uuid.UUID][]model.OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT id, order_id, product_id, variant_id, title, quantity, unit_price
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY id`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := make(map[uuid.UUID][]model.OrderItem, len(orderIDs))
	for rows.Next() {
		var (
			it        model.OrderItem
			unitPrice int64
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Title, &it.Quantity, &unitPrice); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.UnitPrice = model.FromMinor(unitPrice)
		res[it.OrderID] = append(res[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return res, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                                    model.Order
		guestEmail, guestName, guestPhone    *string
		subtotal, shipping, tax, disc, total int64
		status, paymentStatus                string
		addr                                 []byte
		provider                             *string
		clientConfirmedAt                    *time.Time
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.ContactEmail, &guestEmail, &guestName, &guestPhone,
		&subtotal, &shipping, &tax, &disc, &total, &status, &paymentStatus, &addr,
		&o.PromotionID, &provider, &o.PaymentReference, &o.PaidAt, &clientConfirmedAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}

	o.GuestEmail = derefString(guestEmail)
	o.GuestName = derefString(guestName)
	o.GuestPhone = derefString(guestPhone)
	o.Subtotal = model.FromMinor(subtotal)
	o.Shipping = model.FromMinor(shipping)
	o.Tax = model.FromMinor(tax)
	o.Discount = model.FromMinor(disc)
	o.Total = model.FromMinor(total)
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.ClientConfirmed = clientConfirmedAt != nil
	if provider != nil {
		p := model.PaymentProvider(*provider)
		o.PaymentProvider = &p
	}
	if len(addr) > 0 {
		if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	return &o, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
