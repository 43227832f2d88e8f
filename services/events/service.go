package events

import (
	"context"

	"github.com/dnsscience/telemetry/dto"
	"github.com/dnsscience/telemetry/interfaces"
	"github.com/dnsscience/telemetry/internal/logger"
)

type EventsService struct {
	Publisher interfaces.EventPublisher
	closer    func() error
}

// NewEventsService connects to RabbitMQ. An empty URL or an unreachable
// broker yields a service that drops every event; scanning never depends on
// the broker.
func NewEventsService(rabbitmqURL string, log logger.Logger, publisherConfig *PublisherConfig) (*EventsService, error) {
	if rabbitmqURL == "" {
		log.Info("RABBITMQ_URL not set, scan events disabled")
		return &EventsService{Publisher: NoopPublisher{}}, nil
	}

	publisher, err := NewRabbitMQPublisher(rabbitmqURL, log, publisherConfig)
	if err != nil {
		log.Warnf("RabbitMQ unreachable, scan events disabled: %v", err)
		return &EventsService{Publisher: NoopPublisher{}}, nil
	}

	return &EventsService{
		Publisher: publisher,
		closer:    publisher.Close,
	}, nil
}

func (s *EventsService) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}

type NoopPublisher struct{}

func (NoopPublisher) PublishScanCompleted(context.Context, dto.ScanCompleted) error {
	return nil
}
