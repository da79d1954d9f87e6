// Package service реализует бизнес-логику магазина: заказы, промокоды, остатки и сверку платежей.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/metrics"
	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
	"github.com/idyWilliams/nadinekollections-sub000/internal/paystack"
	"github.com/idyWilliams/nadinekollections-sub000/internal/repository"
)

var (
	// ErrInvalidQuantity возвращается при неположительном количестве товара.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrEmptyCart возвращается при оформлении пустой корзины.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrProductUnavailable возвращается, если товар снят с продажи.
	ErrProductUnavailable = errors.New("product is not available")
	// ErrInvalidStatus возвращается при неизвестном статусе заказа или оплаты.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrInvalidProvider возвращается при неизвестном платёжном шлюзе.
	ErrInvalidProvider = errors.New("unsupported payment provider")
	// ErrGatewayNotConfigured возвращается, если для шлюза не заданы ключи в настройках магазина.
	ErrGatewayNotConfigured = errors.New("payment provider is not configured")
	// ErrForbidden возвращается, если заказ принадлежит другому пользователю.
	ErrForbidden = errors.New("access to order denied")
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	GetProduct(ctx context.Context, id int64) (*model.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]*model.Product, error)
	DecrementStock(ctx context.Context, ch repository.StockChange) (int, error)
	IncrementStock(ctx context.Context, ch repository.StockChange) (int, error)
	SetStock(ctx context.Context, productID int64, variantID *int64, value int) (int, error)

	GetActivePromotionByCode(ctx context.Context, code string) (*model.Promotion, error)
	CreatePromotion(ctx context.Context, p *model.Promotion) error
	ListPromotions(ctx context.Context) ([]model.Promotion, error)

	CreateOrder(ctx context.Context, o *model.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*model.Order, error)
	GetOrderByPaymentReference(ctx context.Context, reference string) (*model.Order, error)
	ListOrders(ctx context.Context, f repository.OrderFilter) ([]model.Order, error)
	ListStalePendingOrders(ctx context.Context, before time.Time, limit int) ([]model.Order, error)
	SetPaymentReference(ctx context.Context, id uuid.UUID, provider model.PaymentProvider, reference string) error
	MarkClientConfirmed(ctx context.Context, id uuid.UUID) (*model.Order, error)
	MarkOrderPaid(ctx context.Context, id uuid.UUID, reference string, paidAt time.Time) (bool, error)
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, payment *model.PaymentStatus) error
	CancelOrder(ctx context.Context, id uuid.UUID) error
	CancelStaleOrder(ctx context.Context, id uuid.UUID) error
	RecordPaymentEvent(ctx context.Context, provider, event, reference string, payload []byte) error

	ListNotifications(ctx context.Context, userID string, includeSystem bool, limit int) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id uuid.UUID, userID string, includeSystem bool) error

	GetStoreSettings(ctx context.Context) (*model.StoreSettings, error)
}

// Notifier рассылает уведомления о событиях заказа.
type Notifier interface {
	OrderCreated(ctx context.Context, o *model.Order) error
	PaymentReceived(ctx context.Context, o *model.Order) error
	OrderStatusChanged(ctx context.Context, o *model.Order) error
}

// TransactionVerifier проверяет состояние транзакции на стороне шлюза.
type TransactionVerifier interface {
	VerifyTransaction(ctx context.Context, reference string) (*paystack.Transaction, int, time.Duration, error)
}

// Options содержит параметры сервиса, не зависящие от хранилища.
type Options struct {
	WebhookSecret   string
	PendingOrderTTL time.Duration
	ReapInterval    time.Duration
	ReapBatchSize   int
}

// Service содержит бизнес-логику магазина.
type Service struct {
	repo     Repository
	notifier Notifier
	verifier TransactionVerifier
	metrics  *metrics.Registry
	logger   *zap.Logger
	opts     Options
	now      func() time.Time

	wg sync.WaitGroup
}

// NewService создаёт сервис. verifier может быть nil, тогда зависшие заказы отменяются без сверки со шлюзом.
func NewService(repo Repository, notifier Notifier, verifier TransactionVerifier, m *metrics.Registry, logger *zap.Logger, opts Options) *Service {
	if m == nil {
		m = metrics.NewRegistry()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		notifier: notifier,
		verifier: verifier,
		metrics:  m,
		logger:   logger,
		opts:     opts,
		now:      time.Now,
	}
}

// Close дожидается фоновых уведомлений и закрывает ресурсы сервиса.
func (s *Service) Close() error {
	s.Wait()
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Wait дожидается завершения отправленных уведомлений.
func (s *Service) Wait() {
	s.wg.Wait()
}

// notifyAsync выполняет побочный эффект после ответа клиенту. Отмена запроса его не прерывает.
func (s *Service) notifyAsync(ctx context.Context, fn func(context.Context) error) {
	if s.notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_ = fn(ctx)
	}()
}
