package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// Chaves que viram colunas próprias e não ficam dentro de properties.
const (
	LocaleKey    = "locale"
	StatusKey    = "status"
	CreatedAtKey = "created_at"
	UpdatedAtKey = "updated_at"
)

// É a linha persistida da tabela entities.
type Entity struct {
	ID     int64   `json:"id"`
	Type   string  `json:"type"`
	Locale *string `json:"locale,omitempty"`
	Status *string `json:"status,omitempty"`
	// Campos livres do modelo; relacionamentos ficam como {id, type}.
	Properties json.RawMessage `json:"properties,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// ToModel builds a Model from the row; columns are merged into the data.
func (e Entity) ToModel(opts ...ModelOption) (*Model, error) {
	data := make(map[string]any)
	if len(e.Properties) > 0 && string(e.Properties) != "null" {
		if err := json.Unmarshal(e.Properties, &data); err != nil {
			return nil, fmt.Errorf("Entity.ToModel - failed to unmarshal properties of entity %d: %w", e.ID, err)
		}
	}

	m := NewModel(data, opts...)
	m.Set(m.IDKey(), e.ID)
	m.Set(m.TypeKey(), e.Type)
	if e.Locale != nil {
		m.Set(LocaleKey, *e.Locale)
	}
	if e.Status != nil {
		m.Set(StatusKey, *e.Status)
	}
	if !e.CreatedAt.IsZero() {
		m.Set(CreatedAtKey, e.CreatedAt)
	}
	if !e.UpdatedAt.IsZero() {
		m.Set(UpdatedAtKey, e.UpdatedAt)
	}
	return m, nil
}

// EntityFromModel splits a Model into its columns and the properties document.
func EntityFromModel(m *Model) (Entity, error) {
	properties := m.Fields()

	entity := Entity{
		ID:   m.GetID(),
		Type: m.GetType(),
	}

	if locale, ok := properties[LocaleKey].(string); ok {
		entity.Locale = &locale
	}
	if status, ok := properties[StatusKey].(string); ok {
		entity.Status = &status
	}

	for _, key := range []string{m.IDKey(), m.TypeKey(), LocaleKey, StatusKey, CreatedAtKey, UpdatedAtKey} {
		delete(properties, key)
	}

	raw, err := json.Marshal(properties)
	if err != nil {
		return Entity{}, fmt.Errorf("EntityFromModel - failed to marshal properties of %s %d: %w", entity.Type, entity.ID, err)
	}
	entity.Properties = raw
	return entity, nil
}
