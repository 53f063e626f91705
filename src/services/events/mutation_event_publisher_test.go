package events_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelrepo/src/domain/entities"
	"modelrepo/src/infra/kafka"
	"modelrepo/src/repositories"
	"modelrepo/src/services/events"
)

type fakeProducer struct {
	topics   []string
	messages []kafka.Message
	err      error
}

func (f *fakeProducer) Producer(messages []kafka.Message, topic string) error {
	f.topics = append(f.topics, topic)
	f.messages = append(f.messages, messages...)
	return f.err
}

var _ = Describe("MutationEventPublisher", func() {
	var (
		ctx         context.Context
		producer    *fakeProducer
		publisher   *events.MutationEventPublisher
		interceptor *events.MutationEventInterceptor
	)

	BeforeEach(func() {
		ctx = context.Background()
		producer = &fakeProducer{}
		publisher = events.NewMutationEventPublisher(slog.New(slog.NewTextHandler(io.Discard, nil)), producer, "entity-events")
		interceptor = events.NewMutationEventInterceptor(publisher, "product")
	})

	Context("after a successful create", func() {
		It("publishes an entity.created event keyed by type and id", func() {
			// ARRANGE
			model := entities.NewModel(map[string]any{"id": int64(42), "type": "product", "name": "Widget"})
			inv := &repositories.Invocation{Method: repositories.MethodCreate, Args: []any{model}, Result: model}

			// ACT
			interceptor.AfterProxy(ctx, inv)

			// ASSERT
			Expect(producer.topics).To(Equal([]string{"entity-events"}))
			Expect(producer.messages).To(HaveLen(1))

			msg := producer.messages[0]
			Expect(msg.Key).To(Equal("product:42"))
			Expect(msg.Headers).To(HaveKeyWithValue("event_type", events.EventEntityCreated))
			Expect(msg.Headers).To(HaveKeyWithValue("entity_type", "product"))
			Expect(msg.Headers).To(HaveKeyWithValue("source_service", "modelrepo"))
			Expect(msg.Headers).To(HaveKeyWithValue("fields_changed", "id,name,type"))

			var event events.MutationEvent
			Expect(json.Unmarshal(msg.Value, &event)).To(Succeed())
			Expect(event.EventID).NotTo(BeEmpty())
			Expect(msg.Headers).To(HaveKeyWithValue("event_id", event.EventID))
			Expect(event.Data.ID).To(Equal(int64(42)))
			Expect(event.Data.Method).To(Equal(repositories.MethodCreate))
			Expect(event.Data.Properties).To(HaveKeyWithValue("name", "Widget"))
		})
	})

	Context("after a delete", func() {
		It("publishes the id without properties", func() {
			// ARRANGE
			inv := &repositories.Invocation{Method: repositories.MethodDelete, Args: []any{int64(7)}}

			// ACT
			interceptor.AfterProxy(ctx, inv)

			// ASSERT
			Expect(producer.messages).To(HaveLen(1))
			Expect(producer.messages[0].Key).To(Equal("product:7"))
			Expect(producer.messages[0].Headers).To(HaveKeyWithValue("event_type", events.EventEntityDeleted))
			Expect(producer.messages[0].Headers).NotTo(HaveKey("fields_changed"))
		})
	})

	Context("when the call failed", func() {
		It("publishes nothing", func() {
			// ARRANGE
			inv := &repositories.Invocation{Method: repositories.MethodDelete, Args: []any{int64(7)}, Err: errors.New("boom")}

			// ACT
			interceptor.AfterProxy(ctx, inv)

			// ASSERT
			Expect(producer.messages).To(BeEmpty())
		})
	})

	Context("for a domain method", func() {
		It("names the event after the method", func() {
			// ARRANGE
			model := entities.NewModel(map[string]any{"id": int64(3), "type": "product", "status": "published"})
			inv := &repositories.Invocation{Method: "changeStatus", Args: []any{int64(3), "published"}, Result: model}

			// ACT
			event, ok := events.NewMutationEvent("product", inv)

			// ASSERT
			Expect(ok).To(BeTrue())
			Expect(event.EventType).To(Equal("entity.changeStatus"))
		})
	})

	Context("when the producer fails", func() {
		It("returns the wrapped error", func() {
			// ARRANGE
			producer.err = errors.New("broker down")
			event := events.MutationEvent{EventID: "e1", EventType: events.EventEntityUpdated, Data: events.EventData{ID: 1, Type: "product"}}

			// ACT
			err := publisher.PublishEvents(ctx, []events.MutationEvent{event})

			// ASSERT
			Expect(err).To(MatchError(ContainSubstring("broker down")))
		})
	})
})
