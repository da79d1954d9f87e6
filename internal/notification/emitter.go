// Package notification создаёт уведомления в приложении и ставит в очередь транзакционные письма.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

// Store сохраняет уведомления.
type Store interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
}

// Mailer отправляет транзакционные письма.
type Mailer interface {
	Send(ctx context.Context, job model.EmailJob) error
	Close() error
}

const (
	TemplateOrderConfirmation = "order_confirmation"
	TemplatePaymentReceipt    = "payment_receipt"
	TemplateOrderStatus       = "order_status"
)

// Emitter рассылает уведомления о событиях заказа. Ошибки логируются и не возвращаются вызывающему коду.
type Emitter struct {
	store    Store
	mailer   Mailer
	logger   *zap.Logger
	failures prometheus.Counter
	timeout  time.Duration
}

// NewEmitter создаёт Emitter. failures может быть nil.
func NewEmitter(store Store, mailer Mailer, logger *zap.Logger, failures prometheus.Counter) *Emitter {
	return &Emitter{
		store:    store,
		mailer:   mailer,
		logger:   logger,
		failures: failures,
		timeout:  10 * time.Second,
	}
}

// OrderCreated сообщает администраторам о новом заказе, а покупателю отправляет уведомление или письмо.
func (e *Emitter) OrderCreated(ctx context.Context, o *model.Order) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var errs []error
	errs = append(errs, e.system(ctx, "New order received",
		fmt.Sprintf("Order %s was placed for %s", o.OrderNumber, o.Total.StringFixed(2)), "order", o))

	if o.UserID != nil {
		errs = append(errs, e.user(ctx, *o.UserID, "Order placed",
			fmt.Sprintf("Your order %s has been received and is awaiting payment", o.OrderNumber), "order", o))
	} else {
		errs = append(errs, e.email(ctx, o, TemplateOrderConfirmation, "Your order "+o.OrderNumber))
	}
	return e.report("order created", o, errs)
}

// PaymentReceived сообщает об успешной оплате. Вызывается только при первом переходе заказа в оплаченное состояние.
func (e *Emitter) PaymentReceived(ctx context.Context, o *model.Order) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var errs []error
	errs = append(errs, e.system(ctx, "Payment received",
		fmt.Sprintf("Payment of %s confirmed for order %s", o.Total.StringFixed(2), o.OrderNumber), "payment", o))

	if o.UserID != nil {
		errs = append(errs, e.user(ctx, *o.UserID, "Payment confirmed",
			fmt.Sprintf("We have received your payment for order %s", o.OrderNumber), "payment", o))
	} else {
		errs = append(errs, e.email(ctx, o, TemplatePaymentReceipt, "Payment receipt for "+o.OrderNumber))
	}
	return e.report("payment received", o, errs)
}

// OrderStatusChanged сообщает покупателю о новом статусе заказа.
func (e *Emitter) OrderStatusChanged(ctx context.Context, o *model.Order) error {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var err error
	if o.UserID != nil {
		err = e.user(ctx, *o.UserID, "Order update",
			fmt.Sprintf("Your order %s is now %s", o.OrderNumber, o.Status), "order", o)
	} else {
		err = e.email(ctx, o, TemplateOrderStatus, fmt.Sprintf("Order %s is %s", o.OrderNumber, o.Status))
	}
	return e.report("order status changed", o, []error{err})
}

func (e *Emitter) system(ctx context.Context, title, message, typ string, o *model.Order) error {
	return e.store.CreateNotification(ctx, &model.Notification{
		Title:   title,
		Message: message,
		Type:    typ,
		Link:    "/admin/orders/" + o.ID.String(),
	})
}

func (e *Emitter) user(ctx context.Context, userID, title, message, typ string, o *model.Order) error {
	return e.store.CreateNotification(ctx, &model.Notification{
		UserID:  &userID,
		Title:   title,
		Message: message,
		Type:    typ,
		Link:    "/account/orders/" + o.ID.String(),
	})
}

func (e *Emitter) email(ctx context.Context, o *model.Order, template, subject string) error {
	to := o.GuestEmail
	if to == "" {
		to = o.ContactEmail
	}
	if to == "" {
		return nil
	}
	return e.mailer.Send(ctx, model.EmailJob{
		To:       to,
		Template: template,
		Subject:  subject,
		OrderID:  o.ID.String(),
		Data: map[string]string{
			"orderNumber": o.OrderNumber,
			"name":        o.GuestName,
			"total":       o.Total.StringFixed(2),
			"status":      string(o.Status),
		},
	})
}

func (e *Emitter) report(event string, o *model.Order, errs []error) error {
	err := errors.Join(errs...)
	if err != nil {
		if e.failures != nil {
			e.failures.Inc()
		}
		e.logger.Warn("notification failed",
			zap.String("event", event),
			zap.String("order", o.ID.String()),
			zap.Error(err),
		)
	}
	return err
}
