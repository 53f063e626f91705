package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"modelrepo/src/infra/kafka"
	"modelrepo/src/repositories"

	"github.com/google/uuid"
)

const (
	EventEntityCreated = "entity.created"
	EventEntityUpdated = "entity.updated"
	EventEntityDeleted = "entity.deleted"

	sourceService = "modelrepo"
	schemaVersion = "v1"
)

// MessageProducer is the producing side of the kafka client.
type MessageProducer interface {
	Producer(messages []kafka.Message, topic string) error
}

// MutationEvent is the payload published after a successful repository write.
type MutationEvent struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	ID         int64          `json:"id"`
	Type       string         `json:"type"`
	Method     string         `json:"method"`
	Properties map[string]any `json:"properties,omitempty"`
}

type MutationEventPublisher struct {
	logger   *slog.Logger
	producer MessageProducer
	topic    string
}

func NewMutationEventPublisher(
	logger *slog.Logger,
	producer MessageProducer,
	topic string,
) *MutationEventPublisher {
	return &MutationEventPublisher{
		logger:   logger,
		producer: producer,
		topic:    topic,
	}
}

// PublishEvents publishes a batch of mutation events to Kafka.
func (p *MutationEventPublisher) PublishEvents(ctx context.Context, events []MutationEvent) error {
	if len(events) == 0 {
		return nil
	}

	p.logger.DebugContext(ctx, "Publishing mutation events batch", "count", len(events))

	kafkaMessages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		eventBytes, err := json.Marshal(event)
		if err != nil {
			p.logger.ErrorContext(ctx, "Failed to marshal mutation event",
				"error", err,
				"event_id", event.EventID,
				"entity_id", event.Data.ID)
			continue
		}

		kafkaMessages = append(kafkaMessages, kafka.Message{
			// Particiona por entidade para manter a ordem
			Key:     event.Data.Type + ":" + strconv.FormatInt(event.Data.ID, 10),
			Value:   eventBytes,
			Headers: p.createEventHeaders(event),
		})
	}

	if err := p.producer.Producer(kafkaMessages, p.topic); err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish mutation events to Kafka",
			"error", err,
			"topic", p.topic,
			"events_count", len(kafkaMessages))
		return fmt.Errorf("MutationEventPublisher.PublishEvents - failed to publish to topic %s: %w", p.topic, err)
	}

	p.logger.InfoContext(ctx, "Successfully published mutation events",
		"topic", p.topic,
		"events_count", len(kafkaMessages))

	return nil
}

// createEventHeaders creates Kafka headers for event filtering
func (p *MutationEventPublisher) createEventHeaders(event MutationEvent) map[string]string {
	headers := map[string]string{
		"event_type":     event.EventType,
		"source_service": sourceService,
		"schema_version": schemaVersion,
		"event_id":       event.EventID,
	}

	if event.Data.Type != "" {
		headers["entity_type"] = event.Data.Type
	}

	if len(event.Data.Properties) > 0 {
		fields := make([]string, 0, len(event.Data.Properties))
		for field := range event.Data.Properties {
			fields = append(fields, field)
		}
		sort.Strings(fields)
		headers["fields_changed"] = strings.Join(fields, ",")
	}

	return headers
}

// NewMutationEvent builds the event for a finished invocation. ok is false
// when the call failed or touched no identifiable entity.
func NewMutationEvent(entityType string, inv *repositories.Invocation) (MutationEvent, bool) {
	if inv.Err != nil {
		return MutationEvent{}, false
	}

	id, ok := inv.AffectedID()
	if !ok {
		return MutationEvent{}, false
	}

	data := EventData{ID: id, Type: entityType, Method: inv.Method}
	if model, ok := inv.Model(); ok {
		if model.GetType() != "" {
			data.Type = model.GetType()
		}
		if inv.Method != repositories.MethodDelete {
			data.Properties = model.Fields()
		}
	}

	return MutationEvent{
		EventID:    uuid.NewString(),
		EventType:  eventType(inv.Method),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}, true
}

func eventType(method string) string {
	switch method {
	case repositories.MethodCreate:
		return EventEntityCreated
	case repositories.MethodUpdate:
		return EventEntityUpdated
	case repositories.MethodDelete:
		return EventEntityDeleted
	}
	return "entity." + method
}

// MutationEventInterceptor publishes an event after every successful
// proxied call of one repository.
type MutationEventInterceptor struct {
	publisher  *MutationEventPublisher
	entityType string
}

func NewMutationEventInterceptor(publisher *MutationEventPublisher, entityType string) *MutationEventInterceptor {
	return &MutationEventInterceptor{publisher: publisher, entityType: entityType}
}

func (i *MutationEventInterceptor) BeforeProxy(ctx context.Context, inv *repositories.Invocation) error {
	return nil
}

func (i *MutationEventInterceptor) AfterProxy(ctx context.Context, inv *repositories.Invocation) {
	event, ok := NewMutationEvent(i.entityType, inv)
	if !ok {
		return
	}

	// Falha de publicação não desfaz a escrita já confirmada.
	_ = i.publisher.PublishEvents(ctx, []MutationEvent{event})
}
