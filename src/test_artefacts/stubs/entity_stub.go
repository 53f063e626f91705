package stubs

import (
	"encoding/json"
	"time"

	"modelrepo/src/domain/entities"

	"github.com/brianvoe/gofakeit/v6"
)

type EntityStub struct {
	entity entities.Entity
}

func NewEntityStub() EntityStub {
	now := time.Now().UTC()

	properties := map[string]interface{}{
		"name":  gofakeit.ProductName(),
		"price": gofakeit.Price(1, 500),
	}
	propsJSON, _ := json.Marshal(properties)

	entity := entities.Entity{
		Type:       "product",
		Properties: propsJSON,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	return EntityStub{entity: entity}
}

func (es EntityStub) WithID(id int64) EntityStub {
	es.entity.ID = id
	return es
}

func (es EntityStub) WithType(entityType string) EntityStub {
	es.entity.Type = entityType
	return es
}

func (es EntityStub) WithLocale(locale string) EntityStub {
	es.entity.Locale = &locale
	return es
}

func (es EntityStub) WithStatus(status string) EntityStub {
	es.entity.Status = &status
	return es
}

func (es EntityStub) WithProperties(properties map[string]interface{}) EntityStub {
	propsJSON, _ := json.Marshal(properties)
	es.entity.Properties = propsJSON
	return es
}

func (es EntityStub) Get() entities.Entity {
	return es.entity
}
