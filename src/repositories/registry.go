package repositories

import (
	"context"
	"sort"
	"sync"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
)

// Finder is the read side of a repository.
type Finder interface {
	Find(ctx context.Context, id int64, opts domain.FetchOptions) (*entities.Model, error)
	FindMany(ctx context.Context, params domain.QueryParams) (entities.Collection, error)
}

// Repository is what the registry hands out for an entity type.
type Repository interface {
	Finder
	EntityType() string
	Create(ctx context.Context, model *entities.Model) (*entities.Model, error)
	Update(ctx context.Context, model *entities.Model) (*entities.Model, error)
	Delete(ctx context.Context, id int64) error
	Call(ctx context.Context, name string, args ...any) (any, error)
}

// Registry maps entity types to repositories. Reads may be served by a
// different Finder, e.g. a cache in front of the repository.
type Registry struct {
	mu           sync.RWMutex
	repositories map[string]Repository
	finders      map[string]Finder
}

func NewRegistry(repositories ...Repository) *Registry {
	r := &Registry{
		repositories: make(map[string]Repository),
		finders:      make(map[string]Finder),
	}
	for _, repository := range repositories {
		r.Register(repository)
	}
	return r
}

// Register adds repository under its entity type, replacing any previous one.
func (r *Registry) Register(repository Repository) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repositories[repository.EntityType()] = repository
}

// RegisterFinder overrides the read side of entityType.
func (r *Registry) RegisterFinder(entityType string, finder Finder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finders[entityType] = finder
}

// Lookup returns the repository of entityType.
func (r *Registry) Lookup(entityType string) (Repository, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	repository, ok := r.repositories[entityType]
	if !ok {
		return nil, &domain.UnmappedTypeError{EntityType: entityType}
	}
	return repository, nil
}

// Finder returns the read side of entityType, preferring a registered override.
func (r *Registry) Finder(entityType string) (Finder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if finder, ok := r.finders[entityType]; ok {
		return finder, nil
	}
	if repository, ok := r.repositories[entityType]; ok {
		return repository, nil
	}
	return nil, &domain.UnmappedTypeError{EntityType: entityType}
}

func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.repositories))
	for entityType := range r.repositories {
		types = append(types, entityType)
	}
	sort.Strings(types)
	return types
}

type resolverAware interface {
	SetResolver(resolver entities.Resolver)
}

// AttachResolver hands resolver to every registered repository and finder
// that accepts one, so the models they return resolve their references.
func (r *Registry) AttachResolver(resolver entities.Resolver) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, repository := range r.repositories {
		if aware, ok := repository.(resolverAware); ok {
			aware.SetResolver(resolver)
		}
	}
	for _, finder := range r.finders {
		if aware, ok := finder.(resolverAware); ok {
			aware.SetResolver(resolver)
		}
	}
}
