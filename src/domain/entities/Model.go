package entities

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"modelrepo/src/domain"
)

var ErrNoResolver = errors.New("model has no resolver attached")

// Resolver materialises references into models. It is implemented by the
// object resolver service.
type Resolver interface {
	Resolve(ctx context.Context, entityType string, id int64, opts domain.FetchOptions) (*Model, error)
	ResolveMany(ctx context.Context, entityType string, ids []int64, opts domain.FetchOptions) (Collection, error)
}

type ModelOption func(*Model)

func WithIDKey(key string) ModelOption {
	return func(m *Model) {
		m.idKey = key
	}
}

func WithTypeKey(key string) ModelOption {
	return func(m *Model) {
		m.typeKey = key
	}
}

func WithResolver(resolver Resolver) ModelOption {
	return func(m *Model) {
		m.resolver = resolver
	}
}

// WithFetchOptions sets the locale/status used when related entities are resolved.
func WithFetchOptions(opts domain.FetchOptions) ModelOption {
	return func(m *Model) {
		m.fetch = domain.FetchOptions{Locale: opts.Locale, Status: opts.Status}
	}
}

// Model is a single record with identity. Related entities are stored as
// {id, type} references and resolved on read; resolved values are memoised
// next to the data, never inside it.
type Model struct {
	DataTransferObject

	id         int64
	entityType string
	resolver   Resolver
	fetch      domain.FetchOptions
	resolved   map[string]any
}

func NewModel(data map[string]any, opts ...ModelOption) *Model {
	m := &Model{
		DataTransferObject: DataTransferObject{idKey: DefaultIDKey, typeKey: DefaultTypeKey},
		resolved:           make(map[string]any),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.records = []Record{m.buildRecord(data)}
	m.syncIdentity()
	return m
}

func (m *Model) record() Record {
	return m.records[0]
}

func (m *Model) syncIdentity() {
	m.id = 0
	m.entityType = ""

	if field, ok := m.record()[m.idKey]; ok && field.Kind() == FieldConcrete {
		if id, ok := ToID(field.Value()); ok {
			m.id = id
		}
	}
	if field, ok := m.record()[m.typeKey]; ok && field.Kind() == FieldConcrete {
		if entityType, ok := field.Value().(string); ok {
			m.entityType = entityType
		}
	}
}

func (m *Model) GetID() int64 {
	return m.id
}

func (m *Model) GetType() string {
	return m.entityType
}

func (m *Model) IDKey() string {
	return m.idKey
}

func (m *Model) TypeKey() string {
	return m.typeKey
}

func (m *Model) Reference() Reference {
	return Reference{ID: m.id, Type: m.entityType}
}

func (m *Model) Resolver() Resolver {
	return m.resolver
}

// SetResolver attaches the resolver used for lazy reads.
func (m *Model) SetResolver(resolver Resolver) {
	m.resolver = resolver
}

func (m *Model) FetchOptions() domain.FetchOptions {
	return m.fetch
}

// Get returns the value of name, resolving references on first read.
func (m *Model) Get(ctx context.Context, name string) (any, error) {
	field, ok := m.record()[name]
	if !ok {
		return nil, &domain.UndefinedPropertyError{Property: name}
	}

	if !field.IsStub() {
		return field.Value(), nil
	}

	if value, ok := m.resolved[name]; ok {
		return value, nil
	}

	value, err := m.resolveField(ctx, field)
	if err != nil {
		return nil, fmt.Errorf("Model.Get - failed to resolve %q: %w", name, err)
	}

	m.resolved[name] = value
	return value, nil
}

func (m *Model) resolveField(ctx context.Context, field Field) (any, error) {
	if m.resolver == nil {
		return nil, ErrNoResolver
	}

	if ref, ok := field.Reference(); ok {
		return m.resolver.Resolve(ctx, ref.Type, ref.ID, m.fetch)
	}

	refs, _ := field.References()
	types, idsByType := groupReferences(refs)

	resolved := make(Collection, 0, len(refs))
	for _, entityType := range types {
		items, err := m.resolver.ResolveMany(ctx, entityType, idsByType[entityType], m.fetch)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, items...)
	}
	return resolved, nil
}

// GetModel reads name and expects a single related model.
func (m *Model) GetModel(ctx context.Context, name string) (*Model, error) {
	value, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	related, ok := value.(*Model)
	if !ok {
		return nil, fmt.Errorf("Model.GetModel - field %q holds %T, not a model", name, value)
	}
	return related, nil
}

// GetCollection reads name and expects a list of related models.
func (m *Model) GetCollection(ctx context.Context, name string) (Collection, error) {
	value, err := m.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	related, ok := value.(Collection)
	if !ok {
		return nil, fmt.Errorf("Model.GetCollection - field %q holds %T, not a collection", name, value)
	}
	return related, nil
}

func (m *Model) GetString(name string) (string, error) {
	field, ok := m.record()[name]
	if !ok {
		return "", &domain.UndefinedPropertyError{Property: name}
	}
	s, ok := field.Value().(string)
	if !ok {
		return "", fmt.Errorf("Model.GetString - field %q holds %T, not a string", name, field.Value())
	}
	return s, nil
}

// Raw returns the stored value of name without resolving it.
func (m *Model) Raw(name string) (any, error) {
	field, ok := m.record()[name]
	if !ok {
		return nil, &domain.UndefinedPropertyError{Property: name}
	}
	return field.render(m.idKey, m.typeKey), nil
}

// Set stores value under name. Models and collections are reduced to their
// references; writing the id or type key updates the identity.
func (m *Model) Set(name string, value any) {
	m.record()[name] = normalizeField(value, m.idKey, m.typeKey)
	delete(m.resolved, name)

	if name == m.idKey || name == m.typeKey {
		m.syncIdentity()
	}
}

func (m *Model) Unset(name string) {
	delete(m.record(), name)
	delete(m.resolved, name)

	if name == m.idKey || name == m.typeKey {
		m.syncIdentity()
	}
}

func (m *Model) Isset(name string) bool {
	_, ok := m.record()[name]
	return ok
}

// Refresh drops the memoised value of name so the next read resolves again.
func (m *Model) Refresh(name string) {
	delete(m.resolved, name)
}

func (m *Model) IsResolved(name string) bool {
	_, ok := m.resolved[name]
	return ok
}

// Preload resolves the given fields ahead of reading them.
func (m *Model) Preload(ctx context.Context, names ...string) error {
	for _, name := range names {
		if !m.Isset(name) {
			continue
		}
		if _, err := m.Get(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) memoise(name string, value any) {
	m.resolved[name] = value
}

// Fields returns a plain copy of the data, references rendered as {id, type}.
func (m *Model) Fields() map[string]any {
	return m.renderRecord(m.record())
}

func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Fields())
}

func (m *Model) UnmarshalJSON(b []byte) error {
	var data map[string]any
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}

	if m.idKey == "" {
		m.idKey = DefaultIDKey
	}
	if m.typeKey == "" {
		m.typeKey = DefaultTypeKey
	}
	m.isCollection = false
	m.resolved = make(map[string]any)
	m.records = []Record{m.buildRecord(data)}
	m.syncIdentity()
	return nil
}

func groupReferences(refs []Reference) ([]string, map[string][]int64) {
	var types []string
	idsByType := make(map[string][]int64)
	for _, ref := range refs {
		if _, seen := idsByType[ref.Type]; !seen {
			types = append(types, ref.Type)
		}
		idsByType[ref.Type] = append(idsByType[ref.Type], ref.ID)
	}
	return types, idsByType
}
