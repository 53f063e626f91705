package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/infra/kafka"
	"modelrepo/src/repositories"
)

// Ações aceitas no campo action da mensagem.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var ErrUnknownAction = errors.New("unknown mutation action")

// KafkaMutationMessage representa o schema da mensagem Kafka
type KafkaMutationMessage struct {
	Action     string         `json:"action"`
	EntityType string         `json:"entity_type"`
	ID         any            `json:"id,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// RepositoryLocator returns the repository registered for an entity type.
type RepositoryLocator interface {
	Lookup(entityType string) (repositories.Repository, error)
}

// MessageConsumer is the consuming side of the kafka client.
type MessageConsumer interface {
	Consumer(ctx context.Context, handler kafka.Handler, topic string) error
}

type EntityMutationsConsumer struct {
	logger   *slog.Logger
	registry RepositoryLocator
}

func NewEntityMutationsConsumer(
	logger *slog.Logger,
	registry RepositoryLocator,
) *EntityMutationsConsumer {
	return &EntityMutationsConsumer{
		logger:   logger,
		registry: registry,
	}
}

func (c *EntityMutationsConsumer) Start(ctx context.Context, kafkaClient MessageConsumer, topic string) error {
	c.logger.Info("Starting entity mutations consumer", "topic", topic)

	handler := func(messages []kafka.Message) error {
		return c.HandleMessages(ctx, messages)
	}

	return kafkaClient.Consumer(ctx, handler, topic)
}

// HandleMessages applies the batch in order. The first failure stops the
// batch so the kafka client does not mark it and it gets redelivered.
func (c *EntityMutationsConsumer) HandleMessages(ctx context.Context, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}

	c.logger.Info("Processing messages batch", "count", len(messages))

	for _, msg := range messages {
		var mutation KafkaMutationMessage
		if err := json.Unmarshal(msg.Value, &mutation); err != nil {
			c.logger.Error("Failed to unmarshal message",
				"error", err,
				"key", msg.Key,
				"value", string(msg.Value))
			return fmt.Errorf("failed to unmarshal message with key %s: %w", msg.Key, err)
		}

		if err := c.apply(ctx, mutation); err != nil {
			c.logger.Error("Failed to apply mutation",
				"error", err,
				"key", msg.Key,
				"action", mutation.Action,
				"entity_type", mutation.EntityType)
			return fmt.Errorf("failed to apply message with key %s: %w", msg.Key, err)
		}
	}

	c.logger.Info("Successfully processed messages batch", "count", len(messages))
	return nil
}

func (c *EntityMutationsConsumer) apply(ctx context.Context, mutation KafkaMutationMessage) error {
	if mutation.EntityType == "" {
		return fmt.Errorf("entity_type is required: %w", domain.ErrInvalidArgument)
	}

	repository, err := c.registry.Lookup(mutation.EntityType)
	if err != nil {
		return err
	}

	switch mutation.Action {
	case ActionCreate:
		model := c.buildModel(mutation)
		_, err = repository.Create(ctx, model)
		return err

	case ActionUpdate:
		model := c.buildModel(mutation)
		if model.GetID() == 0 {
			return fmt.Errorf("update of %s without id: %w", mutation.EntityType, domain.ErrInvalidArgument)
		}
		_, err = repository.Update(ctx, model)
		return err

	case ActionDelete:
		id, ok := entities.ToID(mutation.ID)
		if !ok {
			return fmt.Errorf("delete of %s with invalid id %v: %w", mutation.EntityType, mutation.ID, domain.ErrInvalidArgument)
		}
		return repository.Delete(ctx, id)
	}

	return fmt.Errorf("%w: %q", ErrUnknownAction, mutation.Action)
}

func (c *EntityMutationsConsumer) buildModel(mutation KafkaMutationMessage) *entities.Model {
	data := make(map[string]any, len(mutation.Data)+2)
	for key, value := range mutation.Data {
		data[key] = value
	}

	model := entities.NewModel(data)
	model.Set(model.TypeKey(), mutation.EntityType)
	if id, ok := entities.ToID(mutation.ID); ok {
		model.Set(model.IDKey(), id)
	}
	return model
}
