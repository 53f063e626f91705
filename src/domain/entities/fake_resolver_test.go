package entities_test

import (
	"context"
	"fmt"
	"sync"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
)

type resolveCall struct {
	EntityType string
	IDs        []int64
	Many       bool
	Options    domain.FetchOptions
}

// fakeResolver answers from an in-memory store and records every call.
type fakeResolver struct {
	mu    sync.Mutex
	store map[entities.Reference]map[string]any
	calls []resolveCall
	err   error
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{store: make(map[entities.Reference]map[string]any)}
}

func (f *fakeResolver) add(entityType string, id int64, data map[string]any) {
	record := map[string]any{"id": id, "type": entityType}
	for k, v := range data {
		record[k] = v
	}
	f.store[entities.Reference{ID: id, Type: entityType}] = record
}

func (f *fakeResolver) Resolve(ctx context.Context, entityType string, id int64, opts domain.FetchOptions) (*entities.Model, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, resolveCall{EntityType: entityType, IDs: []int64{id}, Options: opts})
	if f.err != nil {
		return nil, f.err
	}

	data, ok := f.store[entities.Reference{ID: id, Type: entityType}]
	if !ok {
		return nil, fmt.Errorf("%s %d: %w", entityType, id, domain.ErrEntityNotFound)
	}
	return entities.NewModel(data, entities.WithResolver(f)), nil
}

func (f *fakeResolver) ResolveMany(ctx context.Context, entityType string, ids []int64, opts domain.FetchOptions) (entities.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, resolveCall{EntityType: entityType, IDs: ids, Many: true, Options: opts})
	if f.err != nil {
		return nil, f.err
	}

	var models entities.Collection
	for _, id := range ids {
		if data, ok := f.store[entities.Reference{ID: id, Type: entityType}]; ok {
			models = append(models, entities.NewModel(data, entities.WithResolver(f)))
		}
	}
	return models, nil
}

func (f *fakeResolver) Calls() []resolveCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]resolveCall(nil), f.calls...)
}
