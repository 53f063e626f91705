package stubs

import (
	"modelrepo/src/domain/entities"

	"github.com/brianvoe/gofakeit/v6"
)

// ModelStub builds models for unit specs. No id is set unless WithID is used.
type ModelStub struct {
	data map[string]any
	opts []entities.ModelOption
}

func NewModelStub() ModelStub {
	return ModelStub{
		data: map[string]any{
			"type":  "product",
			"name":  gofakeit.ProductName(),
			"price": gofakeit.Price(1, 500),
		},
	}
}

func (ms ModelStub) with(key string, value any) ModelStub {
	data := make(map[string]any, len(ms.data)+1)
	for k, v := range ms.data {
		data[k] = v
	}
	data[key] = value
	ms.data = data
	return ms
}

func (ms ModelStub) WithID(id int64) ModelStub {
	return ms.with("id", id)
}

func (ms ModelStub) WithType(entityType string) ModelStub {
	return ms.with("type", entityType)
}

func (ms ModelStub) WithField(name string, value any) ModelStub {
	return ms.with(name, value)
}

func (ms ModelStub) WithReference(name string, entityType string, id int64) ModelStub {
	return ms.with(name, map[string]any{"id": id, "type": entityType})
}

func (ms ModelStub) WithResolver(resolver entities.Resolver) ModelStub {
	ms.opts = append(append([]entities.ModelOption(nil), ms.opts...), entities.WithResolver(resolver))
	return ms
}

func (ms ModelStub) Get() *entities.Model {
	return entities.NewModel(ms.data, ms.opts...)
}
