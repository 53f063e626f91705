package repositories

import (
	"context"
	"fmt"
	"time"

	"modelrepo/src/domain"
	"modelrepo/src/domain/entities"
	"modelrepo/src/infra/postgres"

	"github.com/jackc/pgx/v5"
)

// Métodos de domínio registrados por todo EntityRepository.
const (
	MethodChangeStatus = "changeStatus"
	MethodAttach       = "attach"
)

// EntityRepository persists the models of one entity type in the entities
// table. Writes go through the embedded BaseRepository proxy.
type EntityRepository struct {
	*BaseRepository
	writePool  postgres.Pool
	readPool   postgres.Executor
	entityType string
	resolver   entities.Resolver
}

func NewEntityRepository(
	writePool postgres.Pool,
	readPool postgres.Executor,
	entityType string,
	opts ...Option,
) *EntityRepository {
	r := &EntityRepository{
		writePool:  writePool,
		readPool:   readPool,
		entityType: entityType,
	}

	methods := WithDomainMethods(map[string]DomainMethod{
		MethodChangeStatus: r.changeStatus,
		MethodAttach:       r.attach,
	})

	r.BaseRepository = NewBaseRepository(writePool, r, append([]Option{methods}, opts...)...)
	return r
}

func (r *EntityRepository) EntityType() string {
	return r.entityType
}

// SetResolver attaches the resolver handed to every model this repository reads.
func (r *EntityRepository) SetResolver(resolver entities.Resolver) {
	r.resolver = resolver
}

// ChangeStatus sets the status column of entity id.
func (r *EntityRepository) ChangeStatus(ctx context.Context, id int64, status string) (*entities.Model, error) {
	result, err := r.Call(ctx, MethodChangeStatus, id, status)
	if err != nil {
		return nil, err
	}
	return resultModel(result), nil
}

// Attach stores related (a model or a collection) under field of entity id.
func (r *EntityRepository) Attach(ctx context.Context, id int64, field string, related any) (*entities.Model, error) {
	result, err := r.Call(ctx, MethodAttach, id, field, related)
	if err != nil {
		return nil, err
	}
	return resultModel(result), nil
}

func (r *EntityRepository) changeStatus(ctx context.Context, args ...any) (any, error) {
	id, err := IDArg(MethodChangeStatus, args, 0)
	if err != nil {
		return nil, err
	}
	status, err := StringArg(MethodChangeStatus, args, 1)
	if err != nil {
		return nil, err
	}

	model, err := r.Find(ctx, id, domain.FetchOptions{})
	if err != nil {
		return nil, err
	}
	model.Set(entities.StatusKey, status)

	return r.UpdateModel(ctx, model)
}

func (r *EntityRepository) attach(ctx context.Context, args ...any) (any, error) {
	id, err := IDArg(MethodAttach, args, 0)
	if err != nil {
		return nil, err
	}
	field, err := StringArg(MethodAttach, args, 1)
	if err != nil {
		return nil, err
	}
	if len(args) < 3 {
		return nil, fmt.Errorf("%s: missing argument 2: %w", MethodAttach, domain.ErrInvalidArgument)
	}

	model, err := r.Find(ctx, id, domain.FetchOptions{})
	if err != nil {
		return nil, err
	}
	model.Set(field, args[2])

	if f, _ := model.Field(field); !f.IsStub() {
		return nil, fmt.Errorf("%s: %q must hold models or references, got %T: %w", MethodAttach, field, args[2], domain.ErrInvalidArgument)
	}

	return r.UpdateModel(ctx, model)
}

func (r *EntityRepository) CreateModel(ctx context.Context, model *entities.Model) (*entities.Model, error) {
	if err := r.checkType(model); err != nil {
		return nil, err
	}

	entity, err := entities.EntityFromModel(model)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO entities (type, locale, status, properties)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`

	db := postgres.ExecutorFrom(ctx, r.writePool)
	err = db.QueryRow(ctx, query,
		r.entityType,
		postgres.NewNullString(entity.Locale),
		postgres.NewNullString(entity.Status),
		entity.Properties,
	).Scan(&entity.ID, &entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("EntityRepository.CreateModel - failed to insert %s: %w", r.entityType, err)
	}

	model.Set(model.IDKey(), entity.ID)
	model.Set(entities.CreatedAtKey, entity.CreatedAt)
	model.Set(entities.UpdatedAtKey, entity.UpdatedAt)
	r.attachResolver(model)

	return model, nil
}

func (r *EntityRepository) UpdateModel(ctx context.Context, model *entities.Model) (*entities.Model, error) {
	if err := r.checkType(model); err != nil {
		return nil, err
	}
	if model.GetID() == 0 {
		return nil, fmt.Errorf("EntityRepository.UpdateModel - %s without id: %w", r.entityType, domain.ErrInvalidArgument)
	}

	entity, err := entities.EntityFromModel(model)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE entities
		SET locale = $3, status = $4, properties = $5, updated_at = NOW()
		WHERE id = $1 AND type = $2
		RETURNING updated_at
	`

	var updatedAt time.Time
	db := postgres.ExecutorFrom(ctx, r.writePool)
	err = db.QueryRow(ctx, query,
		entity.ID,
		r.entityType,
		postgres.NewNullString(entity.Locale),
		postgres.NewNullString(entity.Status),
		entity.Properties,
	).Scan(&updatedAt)
	if postgres.IsNoRows(err) {
		return nil, fmt.Errorf("EntityRepository.UpdateModel - %s %d: %w", r.entityType, entity.ID, domain.ErrEntityNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("EntityRepository.UpdateModel - failed to update %s %d: %w", r.entityType, entity.ID, err)
	}

	model.Set(entities.UpdatedAtKey, updatedAt)
	r.attachResolver(model)

	return model, nil
}

func (r *EntityRepository) DeleteModel(ctx context.Context, id int64) error {
	db := postgres.ExecutorFrom(ctx, r.writePool)
	tag, err := db.Exec(ctx, `DELETE FROM entities WHERE id = $1 AND type = $2`, id, r.entityType)
	if err != nil {
		return fmt.Errorf("EntityRepository.DeleteModel - failed to delete %s %d: %w", r.entityType, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("EntityRepository.DeleteModel - %s %d: %w", r.entityType, id, domain.ErrEntityNotFound)
	}
	return nil
}

// Find fetches one entity by id. Inside a proxied call it reads through the
// open transaction so it sees the call's own writes.
func (r *EntityRepository) Find(ctx context.Context, id int64, opts domain.FetchOptions) (*entities.Model, error) {
	models, err := r.FindMany(ctx, domain.QueryParams{
		Filter:       domain.Filter{"id": domain.Condition{domain.OpEq: id}},
		Limit:        1,
		FetchOptions: opts,
	})
	if err != nil {
		return nil, err
	}
	if len(models) == 0 {
		return nil, fmt.Errorf("EntityRepository.Find - %s %d: %w", r.entityType, id, domain.ErrEntityNotFound)
	}
	return models[0], nil
}

func (r *EntityRepository) FindMany(ctx context.Context, params domain.QueryParams) (entities.Collection, error) {
	query, args, err := buildSelectQuery(r.entityType, params)
	if err != nil {
		return nil, fmt.Errorf("EntityRepository.FindMany - %w", err)
	}

	db := postgres.ExecutorFrom(ctx, r.readPool)
	rows, err := db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("EntityRepository.FindMany - failed to query %s: %w", r.entityType, err)
	}

	found, err := pgx.CollectRows(rows, scanEntity)
	if err != nil {
		return nil, fmt.Errorf("EntityRepository.FindMany - failed to scan %s: %w", r.entityType, err)
	}

	models := make(entities.Collection, 0, len(found))
	for _, entity := range found {
		model, err := entity.ToModel(r.modelOptions(params.FetchOptions)...)
		if err != nil {
			return nil, err
		}
		models = append(models, model)
	}

	if len(params.Include) > 0 {
		if err := models.Preload(ctx, params.Include...); err != nil {
			return nil, fmt.Errorf("EntityRepository.FindMany - %w", err)
		}
	}

	return models, nil
}

func scanEntity(row pgx.CollectableRow) (entities.Entity, error) {
	var entity entities.Entity
	err := row.Scan(
		&entity.ID,
		&entity.Type,
		&entity.Locale,
		&entity.Status,
		&entity.Properties,
		&entity.CreatedAt,
		&entity.UpdatedAt,
	)
	return entity, err
}

func (r *EntityRepository) modelOptions(opts domain.FetchOptions) []entities.ModelOption {
	options := []entities.ModelOption{entities.WithFetchOptions(opts)}
	if r.resolver != nil {
		options = append(options, entities.WithResolver(r.resolver))
	}
	return options
}

func (r *EntityRepository) attachResolver(model *entities.Model) {
	if model.Resolver() == nil && r.resolver != nil {
		model.SetResolver(r.resolver)
	}
}

// checkType fills in the repository type on untyped models and rejects models
// of another type.
func (r *EntityRepository) checkType(model *entities.Model) error {
	switch model.GetType() {
	case "":
		model.Set(model.TypeKey(), r.entityType)
	case r.entityType:
	default:
		return fmt.Errorf("EntityRepository - %s repository got a %s model: %w", r.entityType, model.GetType(), domain.ErrInvalidArgument)
	}
	return nil
}
