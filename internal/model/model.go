// Package model содержит доменные сущности интернет-магазина.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus описывает статус исполнения заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusReturned   OrderStatus = "returned"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Valid сообщает, является ли значение допустимым статусом заказа.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
		OrderStatusCancelled, OrderStatusReturned, OrderStatusFailed, OrderStatusRefunded:
		return true
	}
	return false
}

// PaymentStatus описывает статус оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Valid сообщает, является ли значение допустимым статусом оплаты.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

// PaymentProvider перечисляет поддерживаемые платёжные шлюзы.
type PaymentProvider string

const (
	ProviderPaystack    PaymentProvider = "paystack"
	ProviderFlutterwave PaymentProvider = "flutterwave"
	ProviderMonnify     PaymentProvider = "monnify"
	ProviderRemita      PaymentProvider = "remita"
)

// Valid сообщает, поддерживается ли провайдер.
func (p PaymentProvider) Valid() bool {
	switch p {
	case ProviderPaystack, ProviderFlutterwave, ProviderMonnify, ProviderRemita:
		return true
	}
	return false
}

// Address описывает адрес доставки в едином каноническом виде.
type Address struct {
	Line1   string `json:"line1"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip,omitempty"`
	Country string `json:"country,omitempty"`
}

// Order описывает заказ покупателя.
type Order struct {
	ID          uuid.UUID
	OrderNumber string

	UserID       *string
	ContactEmail string
	GuestEmail   string
	GuestName    string
	GuestPhone   string

	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Discount decimal.Decimal
	Total    decimal.Decimal

	Status        OrderStatus
	PaymentStatus PaymentStatus

	ShippingAddress Address
	PromotionID     *int64

	PaymentProvider  *PaymentProvider
	PaymentReference *string
	PaidAt           *time.Time
	ClientConfirmed  bool

	Items     []OrderItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsGuest сообщает, оформлен ли заказ без учётной записи.
func (o *Order) IsGuest() bool {
	return o.UserID == nil
}

// OrderItem описывает строку заказа.
type OrderItem struct {
	ID        int64
	OrderID   uuid.UUID
	ProductID int64
	VariantID *int64
	Title     string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal возвращает стоимость строки.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PromotionType задаёт способ расчёта скидки.
type PromotionType string

const (
	PromotionPercentage   PromotionType = "percentage"
	PromotionFixedAmount  PromotionType = "fixed_amount"
	PromotionFreeShipping PromotionType = "free_shipping"
)

// Valid сообщает, известен ли тип промо-акции.
func (t PromotionType) Valid() bool {
	switch t {
	case PromotionPercentage, PromotionFixedAmount, PromotionFreeShipping:
		return true
	}
	return false
}

// Promotion описывает правило скидки по промокоду.
type Promotion struct {
	ID            int64
	Code          string
	Description   string
	Type          PromotionType
	Value         decimal.Decimal
	UsageLimit    *int
	UsageCount    int
	StartDate     *time.Time
	EndDate       *time.Time
	MinOrderValue *decimal.Decimal
	MaxDiscount   *decimal.Decimal
	IsActive      bool
	CreatedAt     time.Time
}

// Product описывает товар каталога.
type Product struct {
	ID        int64
	Title     string
	Slug      string
	Price     decimal.Decimal
	SalePrice *decimal.Decimal
	Stock     int
	IsActive  bool
	Variants  []Variant
}

// EffectivePrice возвращает цену с учётом распродажи.
func (p *Product) EffectivePrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.Price) {
		return *p.SalePrice
	}
	return p.Price
}

// Variant описывает вариант товара со своим остатком.
type Variant struct {
	ID        int64
	ProductID int64
	Name      string
	SKU       string
	Stock     int
	Price     *decimal.Decimal
}

// Availability содержит результат проверки остатка.
type Availability struct {
	Available bool   `json:"available"`
	Stock     int    `json:"stock"`
	Message   string `json:"message,omitempty"`
}

// StoreSettings содержит общие настройки магазина, включая ключи платёжных шлюзов.
type StoreSettings struct {
	Currency    string
	ShippingFee decimal.Decimal
	TaxRate     decimal.Decimal

	PaystackPublicKey    string
	FlutterwavePublicKey string
	MonnifyAPIKey        string
	MonnifyContractCode  string
	RemitaPublicKey      string
	RemitaMerchantID     string
	RemitaServiceTypeID  string

	AdminEmail string
}

// Notification описывает уведомление пользователя или общее уведомление администраторов.
type Notification struct {
	ID        uuid.UUID
	UserID    *string
	Title     string
	Message   string
	Type      string
	Link      string
	IsRead    bool
	CreatedAt time.Time
}

// EmailJob описывает письмо, поставленное в очередь отправки.
type EmailJob struct {
	To       string            `json:"to"`
	Template string            `json:"template"`
	Subject  string            `json:"subject"`
	OrderID  string            `json:"orderId"`
	Data     map[string]string `json:"data,omitempty"`
}
