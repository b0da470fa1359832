package rabbitmq

import (
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
	"video-gate/config"
)

const (
	queueName     = "transcode_queue"
	routingKey    = "video.transcode"
	dlxSuffix     = "_dlx"
	dlqName       = "transcode_queue_dlq"
	dlqRoutingKey = "dlq.video.transcode"
)

// ErrReject marks a delivery that can never be processed; it is dead-lettered instead of acked.
var ErrReject = errors.New("reject message")

func exchangeName(cfg config.RabbitMQ) string {
	if cfg.ExchangeName == "" {
		return "video_exchange"
	}
	return cfg.ExchangeName
}

// declareTopology declares the durable job queue and its dead-letter queue.
// Publisher and consumer both call it so either may start first.
func declareTopology(ch *amqp.Channel, cfg config.RabbitMQ) error {
	exchange := exchangeName(cfg)
	dlx := exchange + dlxSuffix

	if err := ch.ExchangeDeclare(exchange, cfg.Kind, true, false, false, false, nil); err != nil {
		return err
	}
	if err := ch.ExchangeDeclare(dlx, cfg.Kind, true, false, false, false, nil); err != nil {
		return err
	}
	dlq, err := ch.QueueDeclare(dlqName, true, false, false, false, nil)
	if err != nil {
		return err
	}
	if err := ch.QueueBind(dlq.Name, dlqRoutingKey, dlx, false, nil); err != nil {
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    dlx,
		"x-dead-letter-routing-key": dlqRoutingKey,
	}
	q, err := ch.QueueDeclare(queueName, true, false, false, false, args)
	if err != nil {
		return err
	}
	return ch.QueueBind(q.Name, routingKey, exchange, false, nil)
}
