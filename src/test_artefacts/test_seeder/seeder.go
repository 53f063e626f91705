package test_seeder

import (
	"context"
	"fmt"

	"modelrepo/src/domain/entities"

	"github.com/jackc/pgx/v5/pgxpool"
)

type TestSeeder struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) TestSeeder {
	return TestSeeder{pool: pool}
}

// EnsureSchema creates the entities table when the test database is empty.
func (ts TestSeeder) EnsureSchema(ctx context.Context) {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS entities (
			id BIGSERIAL PRIMARY KEY,
			type TEXT NOT NULL,
			locale TEXT NULL,
			status TEXT NULL,
			properties JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_type ON entities (type)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_properties ON entities USING GIN (properties jsonb_path_ops)`,
	}

	for _, statement := range statements {
		if _, err := ts.pool.Exec(ctx, statement); err != nil {
			panic(fmt.Sprintf("Seeder.EnsureSchema failed: %v", err))
		}
	}
}

func (ts TestSeeder) TruncateTables(ctx context.Context) {
	_, err := ts.pool.Exec(ctx, "TRUNCATE TABLE entities RESTART IDENTITY CASCADE")
	if err != nil {
		panic(fmt.Sprintf("Failed to truncate entities: %v", err))
	}
}

// InsertEntity inserts an entity into the database for testing
func (ts TestSeeder) InsertEntity(ctx context.Context, entity *entities.Entity) {
	query := `
		INSERT INTO entities (type, locale, status, properties, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`

	err := ts.pool.QueryRow(ctx, query,
		entity.Type,
		entity.Locale,
		entity.Status,
		entity.Properties,
		entity.CreatedAt,
		entity.UpdatedAt,
	).Scan(&entity.ID)

	if err != nil {
		panic(fmt.Sprintf("Seeder.InsertEntity failed: %v", err))
	}
}

func (ts TestSeeder) SelectEntitiesByIDs(ctx context.Context, ids []int64) ([]entities.Entity, error) {
	query := `SELECT id, type, locale, status, properties, created_at, updated_at
			  FROM entities WHERE id = ANY($1) ORDER BY id`

	rows, err := ts.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entitiesList []entities.Entity
	for rows.Next() {
		var entity entities.Entity
		err := rows.Scan(
			&entity.ID,
			&entity.Type,
			&entity.Locale,
			&entity.Status,
			&entity.Properties,
			&entity.CreatedAt,
			&entity.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		entitiesList = append(entitiesList, entity)
	}

	return entitiesList, rows.Err()
}

func (ts TestSeeder) CountEntities(ctx context.Context, entityType string) int {
	var count int
	if err := ts.pool.QueryRow(ctx, `SELECT COUNT(*) FROM entities WHERE type = $1`, entityType).Scan(&count); err != nil {
		panic(fmt.Sprintf("Seeder.CountEntities failed: %v", err))
	}
	return count
}
