package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	amqp "github.com/streadway/amqp"

	"trades-api/internal/models"
)

// EventPublisher announces persisted ingestion batches.
type EventPublisher interface {
	PublishTradesIngested(ctx context.Context, event models.TradesIngestedEvent) error
	Close() error
}

// TradePublisher publishes trades.ingested events to a durable direct exchange
type TradePublisher struct {
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *logrus.Logger
	mu         sync.Mutex // amqp channels are not safe for concurrent publishes
}

// NewTradePublisher dials RabbitMQ and declares the exchange
func NewTradePublisher(rabbitURL, exchange, routingKey string, logger *logrus.Logger) (*TradePublisher, error) {
	conn, err := amqp.Dial(rabbitURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"exchange":    exchange,
		"routing_key": routingKey,
	}).Info("Trade event publisher initialized")

	return &TradePublisher{
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		routingKey: routingKey,
		logger:     logger,
	}, nil
}

// PublishTradesIngested sends event with the batch id as correlation id
func (p *TradePublisher) PublishTradesIngested(ctx context.Context, event models.TradesIngestedEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.Publish(
		p.exchange,   // exchange
		p.routingKey, // routing key
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			CorrelationId: event.BatchID,
			ContentType:   "application/json",
			Body:          body,
			Timestamp:     time.Now(),
			DeliveryMode:  amqp.Persistent,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.WithField("batch_id", event.BatchID).Debug("Published trades.ingested event")
	return nil
}

// Close closes the publisher channel and connection
func (p *TradePublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Warnf("Error closing channel: %v", err)
	}
	if err := p.conn.Close(); err != nil {
		p.logger.Warnf("Error closing connection: %v", err)
		return err
	}
	p.logger.Info("Trade event publisher closed")
	return nil
}

// NoopPublisher is used when RabbitMQ is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishTradesIngested(context.Context, models.TradesIngestedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
