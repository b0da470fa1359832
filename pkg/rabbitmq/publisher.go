package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"video-gate/config"
	"video-gate/dto"
)

// Publisher puts transcode jobs on the durable queue consumed by the worker command.
type Publisher struct {
	cfg config.RabbitMQ
	mu  sync.Mutex
	ch  *amqp.Channel
}

func NewPublisher(ctx context.Context, conn *amqp.Connection, cfg config.RabbitMQ) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, err
	}
	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		return nil, err
	}
	zerolog.Ctx(ctx).Info().Str("exchange", exchangeName(cfg)).Msg("transcode publisher ready")
	return &Publisher{cfg: cfg, ch: ch}, nil
}

func (p *Publisher) Enqueue(ctx context.Context, message dto.JobMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, exchangeName(p.cfg), routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    message.VideoId,
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.Close()
}
