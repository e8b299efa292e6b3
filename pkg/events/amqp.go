package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Jacobbrewer1/plexcord/pkg/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPPublisher publishes events as JSON to a topic exchange, using the event
// type as the routing key.
type AMQPPublisher struct {
	l        *slog.Logger
	exchange string

	mut  sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher dials url and declares a durable topic exchange.
func NewAMQPPublisher(l *slog.Logger, url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		return nil, errors.New("exchange name is required")
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("error dialing amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error opening amqp channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("error declaring exchange %s: %w", exchange, err)
	}

	return &AMQPPublisher{
		l:        l,
		exchange: exchange,
		conn:     conn,
		ch:       ch,
	}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, e *Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("error encoding event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing.
	p.mut.Lock()
	defer p.mut.Unlock()

	err = p.ch.PublishWithContext(ctx, p.exchange, e.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    e.Timestamp,
		Body:         body,
	})
	if err != nil {
		p.l.Error("error publishing event",
			slog.String("type", e.Type),
			slog.Int(logging.KeyTicketID, e.TicketID),
			slog.String(logging.KeyError, err.Error()))
		return fmt.Errorf("error publishing %s: %w", e.Type, err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	p.mut.Lock()
	defer p.mut.Unlock()

	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		_ = p.conn.Close()
		return fmt.Errorf("error closing amqp channel: %w", err)
	}
	return p.conn.Close()
}
