package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"destiny-server/internal/generation"
	"destiny-server/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const appID = "destiny-server"

// Publisher - часть amqp.Channel, нужная уведомителю.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

var (
	_ generation.Notifier = (*RabbitMQNotifier)(nil)
	_ generation.Notifier = NoopNotifier{}
)

// RabbitMQNotifier публикует ReportNotification в durable-очередь.
type RabbitMQNotifier struct {
	mu        sync.Mutex
	publisher Publisher
	queueName string
	logger    *zap.Logger
}

// NewRabbitMQNotifier объявляет очередь и возвращает уведомитель поверх канала.
func NewRabbitMQNotifier(ch *amqp.Channel, queueName string, logger *zap.Logger) (*RabbitMQNotifier, error) {
	_, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		amqp.Table{"x-queue-mode": "lazy"},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare queue '%s': %w", queueName, err)
	}
	logger.Info("Report events queue declared", zap.String("queue", queueName))
	return NewNotifierWithPublisher(ch, queueName, logger), nil
}

// NewNotifierWithPublisher создает уведомитель без объявления очереди.
func NewNotifierWithPublisher(p Publisher, queueName string, logger *zap.Logger) *RabbitMQNotifier {
	return &RabbitMQNotifier{
		publisher: p,
		queueName: queueName,
		logger:    logger.Named("RabbitMQNotifier"),
	}
}

func (n *RabbitMQNotifier) NotifyReportFinished(ctx context.Context, payload models.ReportNotification) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshaling notification for report %s: %w", payload.ReportID, err)
	}

	// публикации в один канал сериализуются
	n.mu.Lock()
	err = n.publisher.PublishWithContext(ctx,
		"",
		n.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			AppId:        appID,
			MessageId:    payload.ReportID + "-" + string(payload.Status),
		},
	)
	n.mu.Unlock()
	if err != nil {
		n.logger.Error("Failed to publish report notification", zap.String("report_id", payload.ReportID), zap.Error(err))
		return fmt.Errorf("error publishing notification for report %s: %w", payload.ReportID, err)
	}

	n.logger.Info("Report notification published",
		zap.String("report_id", payload.ReportID),
		zap.String("queue", n.queueName),
		zap.String("status", string(payload.Status)),
	)
	return nil
}

// NoopNotifier используется, когда RabbitMQ не настроен.
type NoopNotifier struct{}

func (NoopNotifier) NotifyReportFinished(context.Context, models.ReportNotification) error {
	return nil
}
