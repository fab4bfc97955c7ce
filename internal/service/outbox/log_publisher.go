package outbox

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/fulfillment/internal/domain"
)

// LogPublisher пишет события в лог. Используется, когда Kafka не настроена,
// чтобы outbox не копил backlog.
type LogPublisher struct {
	logger *log.Entry
}

// NewLogPublisher создаёт publisher, логирующий события.
func NewLogPublisher(logger *log.Entry) *LogPublisher {
	if logger == nil {
		logger = log.WithField("component", "outbox-log-publisher")
	}
	return &LogPublisher{logger: logger}
}

// Publish логирует событие и всегда завершается успешно.
func (p *LogPublisher) Publish(_ context.Context, event domain.OutboxMessage) error {
	p.logger.WithFields(log.Fields{
		"outbox_id":      event.ID,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID,
		"event_type":     event.EventType,
		"payload_bytes":  len(event.Payload),
	}).Info("outbox event published to log")
	return nil
}

var _ domain.OutboxPublisher = (*LogPublisher)(nil)
