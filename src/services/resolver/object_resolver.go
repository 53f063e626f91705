package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/repositories"
)

// Locator finds the read side registered for an entity type.
type Locator interface {
	Finder(entityType string) (repositories.Finder, error)
}

// ObjectResolver routes {id, type} references to the repository of their type.
type ObjectResolver struct {
	locator Locator
	logger  *slog.Logger
}

var _ entities.Resolver = (*ObjectResolver)(nil)

func NewObjectResolver(locator Locator, logger *slog.Logger) *ObjectResolver {
	return &ObjectResolver{
		locator: locator,
		logger:  logger,
	}
}

// Resolve fetches a single entity.
func (o *ObjectResolver) Resolve(ctx context.Context, entityType string, id int64, opts domain.FetchOptions) (*entities.Model, error) {
	finder, err := o.locator.Finder(entityType)
	if err != nil {
		return nil, err
	}

	o.logger.DebugContext(ctx, "Resolving entity", "entity_type", entityType, "id", id)

	model, err := finder.Find(ctx, id, opts)
	if err != nil {
		return nil, fmt.Errorf("ObjectResolver.Resolve - failed to fetch %s %d: %w", entityType, id, err)
	}

	o.attach(model)
	return model, nil
}

// ResolveMany fetches the entities whose id is in ids. Order follows the
// repository, not ids.
func (o *ObjectResolver) ResolveMany(ctx context.Context, entityType string, ids []int64, opts domain.FetchOptions) (entities.Collection, error) {
	return o.ResolveWithParams(ctx, entityType, domain.QueryParams{
		Filter:       domain.IDsFilter(ids),
		FetchOptions: opts,
	})
}

// ResolveWithParams runs a filtered, paginated fetch on the type's repository.
func (o *ObjectResolver) ResolveWithParams(ctx context.Context, entityType string, params domain.QueryParams) (entities.Collection, error) {
	finder, err := o.locator.Finder(entityType)
	if err != nil {
		return nil, err
	}

	o.logger.DebugContext(ctx, "Resolving entities", "entity_type", entityType, "filter", params.Filter)

	models, err := finder.FindMany(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("ObjectResolver.ResolveWithParams - failed to fetch %s: %w", entityType, err)
	}

	for _, model := range models {
		o.attach(model)
	}
	return models, nil
}

func (o *ObjectResolver) attach(model *entities.Model) {
	if model != nil && model.Resolver() == nil {
		model.SetResolver(o)
	}
}
