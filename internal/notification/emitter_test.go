package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateNotification(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) Send(ctx context.Context, job model.EmailJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockMailer) Close() error { return nil }

func guestOrder() *model.Order {
	return &model.Order{
		ID:           uuid.New(),
		OrderNumber:  "NK-1700000000-ABC123",
		ContactEmail: "ada@example.com",
		GuestEmail:   "ada@example.com",
		GuestName:    "Ada",
		Total:        decimal.NewFromInt(45000),
		Status:       model.OrderStatusPending,
	}
}

func TestEmitter_OrderCreatedGuestSendsEmail(t *testing.T) {
	store := &mockStore{}
	mailer := &mockMailer{}
	o := guestOrder()

	store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *model.Notification) bool {
		return n.UserID == nil && n.Title == "New order received"
	})).Return(nil).Once()
	mailer.On("Send", mock.Anything, mock.MatchedBy(func(job model.EmailJob) bool {
		return job.To == "ada@example.com" && job.Template == TemplateOrderConfirmation && job.OrderID == o.ID.String()
	})).Return(nil).Once()

	e := NewEmitter(store, mailer, zap.NewNop(), nil)
	require.NoError(t, e.OrderCreated(context.Background(), o))

	store.AssertExpectations(t)
	mailer.AssertExpectations(t)
}

func TestEmitter_PaymentReceivedUserGetsNotice(t *testing.T) {
	store := &mockStore{}
	mailer := &mockMailer{}
	o := guestOrder()
	userID := "user-1"
	o.UserID = &userID
	o.GuestEmail = ""

	store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *model.Notification) bool {
		return n.UserID == nil
	})).Return(nil).Once()
	store.On("CreateNotification", mock.Anything, mock.MatchedBy(func(n *model.Notification) bool {
		return n.UserID != nil && *n.UserID == userID && n.Type == "payment"
	})).Return(nil).Once()

	e := NewEmitter(store, mailer, zap.NewNop(), nil)
	require.NoError(t, e.PaymentReceived(context.Background(), o))

	store.AssertExpectations(t)
	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestEmitter_FailuresAreCountedAndJoined(t *testing.T) {
	store := &mockStore{}
	mailer := &mockMailer{}
	o := guestOrder()

	store.On("CreateNotification", mock.Anything, mock.Anything).Return(errors.New("db down"))
	mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	failures := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_failures_total"})
	e := NewEmitter(store, mailer, zap.NewNop(), failures)

	err := e.PaymentReceived(context.Background(), o)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Contains(t, err.Error(), "broker down")
	assert.Equal(t, float64(1), testutil.ToFloat64(failures))
}

func TestEmitter_StatusChangeWithoutEmailIsNoop(t *testing.T) {
	store := &mockStore{}
	mailer := &mockMailer{}
	o := guestOrder()
	o.GuestEmail = ""
	o.ContactEmail = ""

	e := NewEmitter(store, mailer, zap.NewNop(), nil)
	require.NoError(t, e.OrderStatusChanged(context.Background(), o))

	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
