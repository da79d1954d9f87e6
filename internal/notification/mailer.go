package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/idyWilliams/nadinekollections-sub000/internal/model"
)

// KafkaMailer ставит письма в очередь Kafka для внешнего отправителя.
type KafkaMailer struct {
	w *kafka.Writer
}

// NewKafkaMailer создаёт продюсера писем. Ключ сообщения равен идентификатору заказа,
// поэтому письма одного заказа попадают в одну партицию.
func NewKafkaMailer(brokers []string, topic string) *KafkaMailer {
	return &KafkaMailer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  5,
			WriteTimeout: 5 * time.Second,
			ReadTimeout:  5 * time.Second,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Send публикует письмо.
func (m *KafkaMailer) Send(ctx context.Context, job model.EmailJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode email job: %w", err)
	}
	if err := m.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(job.OrderID),
		Value: b,
	}); err != nil {
		return fmt.Errorf("publish email job: %w", err)
	}
	return nil
}

// Close освобождает ресурсы продюсера.
func (m *KafkaMailer) Close() error { return m.w.Close() }

// LogMailer только пишет письма в лог. Используется, когда брокеры не настроены.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer создаёт LogMailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

// Send логирует письмо.
func (m *LogMailer) Send(_ context.Context, job model.EmailJob) error {
	m.logger.Info("email job",
		zap.String("to", job.To),
		zap.String("template", job.Template),
		zap.String("order", job.OrderID),
	)
	return nil
}

// Close ничего не делает.
func (m *LogMailer) Close() error { return nil }
