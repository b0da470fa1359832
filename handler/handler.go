package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"video-gate/dto"
	"video-gate/pkg/rabbitmq"
	"video-gate/service"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

type ServiceDependencies struct {
	TranscodeService service.Service
}

// JobHandler runs one transcode job delivered over RabbitMQ. Undecodable bodies are dead-lettered.
func JobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.JobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("message_id", msg.MessageId).Msg("failed to unmarshal job message")
		return fmt.Errorf("%w: %w", rabbitmq.ErrReject, err)
	}

	return deps.TranscodeService.Process(ctx, job)
}
