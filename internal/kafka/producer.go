package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"tickio/internal/logger"
	"tickio/internal/models"
)

type Producer struct {
	PaidWriter     *kafka.Writer
	RefundedWriter *kafka.Writer
	Logger         *logger.Logger
}

func NewProducer(brokers []string, paidTopic, refundedTopic string, log *logger.Logger) *Producer {
	return &Producer{
		PaidWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   paidTopic,
		}),
		RefundedWriter: kafka.NewWriter(kafka.WriterConfig{
			Brokers: brokers,
			Topic:   refundedTopic,
		}),
		Logger: log,
	}
}

// PublishOrderPaid streams the paid-order event, keyed by order id so
// consumers see a purchaser's orders in commit order.
func (p *Producer) PublishOrderPaid(ctx context.Context, order *models.OrderWithItems) error {
	msgBytes, err := json.Marshal(order)
	if err != nil {
		return err
	}

	p.Logger.Info("KAFKA", fmt.Sprintf("Publishing order.paid for %s", order.OrderID))
	return p.PaidWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.OrderID),
		Value: msgBytes,
	})
}

// PublishOrderRefunded streams the refund event.
func (p *Producer) PublishOrderRefunded(ctx context.Context, order *models.Order) error {
	msgBytes, err := json.Marshal(order)
	if err != nil {
		return err
	}

	p.Logger.Info("KAFKA", fmt.Sprintf("Publishing order.refunded for %s", order.OrderID))
	return p.RefundedWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(order.OrderID),
		Value: msgBytes,
	})
}

func (p *Producer) Close() error {
	if err := p.PaidWriter.Close(); err != nil {
		return err
	}
	return p.RefundedWriter.Close()
}
