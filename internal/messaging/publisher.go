package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	publishAttempts = 3
	publishTimeout  = 10 * time.Second
	appID           = "simulation-server"
)

// EventPublisher публикует доменные события. Ошибки публикации вызывающий код только логирует.
type EventPublisher interface {
	PublishTurnCreated(ctx context.Context, event TurnCreatedEvent) error
	PublishVideoStatusChanged(ctx context.Context, event VideoStatusChangedEvent) error
}

// rabbitMQPublisher публикует события в одну durable-очередь через default exchange.
type rabbitMQPublisher struct {
	channel   *amqp.Channel
	queueName string
	logger    *zap.Logger
}

var _ EventPublisher = (*rabbitMQPublisher)(nil)

// NewRabbitMQEventPublisher открывает канал на conn и объявляет durable-очередь событий.
func NewRabbitMQEventPublisher(conn *amqp.Connection, queueName string, logger *zap.Logger) (EventPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("event publisher: failed to open channel: %w", err)
	}
	_, err = ch.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("event publisher: failed to declare queue '%s': %w", queueName, err)
	}
	log := logger.Named("EventPublisher")
	log.Info("Events queue declared", zap.String("queue", queueName))
	return &rabbitMQPublisher{channel: ch, queueName: queueName, logger: log}, nil
}

func (p *rabbitMQPublisher) PublishTurnCreated(ctx context.Context, event TurnCreatedEvent) error {
	return p.publish(ctx, EventTurnCreated, event)
}

func (p *rabbitMQPublisher) PublishVideoStatusChanged(ctx context.Context, event VideoStatusChangedEvent) error {
	return p.publish(ctx, EventVideoStatusChanged, event)
}

func (p *rabbitMQPublisher) publish(ctx context.Context, eventType EventType, payload any) error {
	if p.channel == nil {
		return errors.New("rabbitmq channel is not initialized")
	}
	envelope := Envelope{
		EventID:    uuid.New(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	for attempt := 1; attempt <= publishAttempts; attempt++ {
		err = p.channel.PublishWithContext(ctx,
			"",          // exchange (default)
			p.queueName, // routing key
			false,       // mandatory
			false,       // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    envelope.EventID.String(),
				Type:         string(eventType),
				Body:         body,
				Timestamp:    envelope.OccurredAt,
				AppId:        appID,
			},
		)
		if err == nil {
			p.logger.Debug("Event published", zap.String("type", string(eventType)), zap.Int("attempt", attempt))
			return nil
		}
		p.logger.Warn("Event publish attempt failed",
			zap.String("type", string(eventType)),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to publish %s event: %w", eventType, ctx.Err())
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
	return fmt.Errorf("failed to publish %s event to %s after retries: %w", eventType, p.queueName, err)
}

// NoopPublisher используется, когда RABBITMQ_URL не задан.
type NoopPublisher struct{}

var _ EventPublisher = NoopPublisher{}

func (NoopPublisher) PublishTurnCreated(context.Context, TurnCreatedEvent) error { return nil }

func (NoopPublisher) PublishVideoStatusChanged(context.Context, VideoStatusChangedEvent) error {
	return nil
}

// Connect подключается к RabbitMQ с несколькими попытками.
func Connect(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second
	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", i+1),
			zap.Int("max_attempts", maxRetries),
			zap.Duration("retry_delay", retryDelay),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return nil, err
}
