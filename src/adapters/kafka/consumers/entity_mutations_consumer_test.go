package consumers_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"modelrepo/src/adapters/kafka/consumers"
	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/infra/kafka"
	"modelrepo/src/repositories"
)

type fakeRepository struct {
	entityType string
	created    []*entities.Model
	updated    []*entities.Model
	deleted    []int64
	err        error
}

func (f *fakeRepository) EntityType() string { return f.entityType }

func (f *fakeRepository) Find(ctx context.Context, id int64, opts domain.FetchOptions) (*entities.Model, error) {
	return nil, domain.ErrEntityNotFound
}

func (f *fakeRepository) FindMany(ctx context.Context, params domain.QueryParams) (entities.Collection, error) {
	return nil, nil
}

func (f *fakeRepository) Create(ctx context.Context, model *entities.Model) (*entities.Model, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = append(f.created, model)
	return model, nil
}

func (f *fakeRepository) Update(ctx context.Context, model *entities.Model) (*entities.Model, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.updated = append(f.updated, model)
	return model, nil
}

func (f *fakeRepository) Delete(ctx context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRepository) Call(ctx context.Context, name string, args ...any) (any, error) {
	return nil, &domain.UnknownMethodError{Method: name}
}

func message(key, value string) kafka.Message {
	return kafka.Message{Key: key, Value: []byte(value)}
}

var _ = Describe("EntityMutationsConsumer", func() {
	var (
		ctx        context.Context
		products   *fakeRepository
		consumer   *consumers.EntityMutationsConsumer
		repository repositories.Repository
	)

	BeforeEach(func() {
		ctx = context.Background()
		products = &fakeRepository{entityType: "product"}
		repository = products
		registry := repositories.NewRegistry(repository)
		consumer = consumers.NewEntityMutationsConsumer(slog.New(slog.NewTextHandler(io.Discard, nil)), registry)
	})

	It("dispatches create, update and delete to the repository of the type", func() {
		// ARRANGE
		batch := []kafka.Message{
			message("1", `{"action":"create","entity_type":"product","data":{"name":"Widget"}}`),
			message("2", `{"action":"update","entity_type":"product","id":5,"data":{"name":"Gadget"}}`),
			message("3", `{"action":"delete","entity_type":"product","id":"9"}`),
		}

		// ACT
		err := consumer.HandleMessages(ctx, batch)

		// ASSERT
		Expect(err).NotTo(HaveOccurred())
		Expect(products.created).To(HaveLen(1))
		Expect(products.created[0].GetType()).To(Equal("product"))
		Expect(products.created[0].GetID()).To(BeZero())
		Expect(products.updated).To(HaveLen(1))
		Expect(products.updated[0].GetID()).To(Equal(int64(5)))
		Expect(products.updated[0].GetString("name")).To(Equal("Gadget"))
		Expect(products.deleted).To(Equal([]int64{9}))
	})

	It("accepts an empty batch", func() {
		Expect(consumer.HandleMessages(ctx, nil)).To(Succeed())
	})

	Context("when a message cannot be applied", func() {
		DescribeTable("stops the batch with an error",
			func(value string, expected error) {
				// ARRANGE
				batch := []kafka.Message{
					message("bad", value),
					message("next", `{"action":"delete","entity_type":"product","id":1}`),
				}

				// ACT
				err := consumer.HandleMessages(ctx, batch)

				// ASSERT
				Expect(err).To(MatchError(expected))
				Expect(products.deleted).To(BeEmpty())
			},
			Entry("unknown action", `{"action":"upsert","entity_type":"product"}`, consumers.ErrUnknownAction),
			Entry("unmapped type", `{"action":"create","entity_type":"brand"}`, domain.ErrUnmappedType),
			Entry("missing type", `{"action":"create"}`, domain.ErrInvalidArgument),
			Entry("update without id", `{"action":"update","entity_type":"product","data":{}}`, domain.ErrInvalidArgument),
			Entry("delete with invalid id", `{"action":"delete","entity_type":"product","id":"abc"}`, domain.ErrInvalidArgument),
		)

		It("fails on malformed JSON", func() {
			// ACT
			err := consumer.HandleMessages(ctx, []kafka.Message{message("bad", "{")})

			// ASSERT
			Expect(err).To(MatchError(ContainSubstring("failed to unmarshal message with key bad")))
		})

		It("propagates repository errors", func() {
			// ARRANGE
			products.err = domain.ErrEntityNotFound

			// ACT
			err := consumer.HandleMessages(ctx, []kafka.Message{message("1", `{"action":"delete","entity_type":"product","id":1}`)})

			// ASSERT
			Expect(err).To(MatchError(domain.ErrEntityNotFound))
		})
	})
})
