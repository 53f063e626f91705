package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgtype"
	pgxv3 "github.com/jackc/pgx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config agrupa os parâmetros de conexão lidos do ambiente.
type Config struct {
	Host            string
	Port            string
	Database        string
	User            string
	Password        string
	MaxConnections  int
	ApplicationName string
}

func NewPostgresClient(cfg Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}

	config.MaxConns = int32(cfg.MaxConnections) //nolint:all
	config.MinConns = 1
	config.MaxConnIdleTime = 5 * time.Minute
	config.MaxConnLifetime = 30 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	config.ConnConfig.RuntimeParams = map[string]string{
		"timezone":          "UTC",
		"statement_timeout": "30s",
		"lock_timeout":      "10s",
		// Uma transação aberta pelo proxy e esquecida não pode segurar locks para sempre.
		"idle_in_transaction_session_timeout": "60s",
	}
	if cfg.ApplicationName != "" {
		config.ConnConfig.RuntimeParams["application_name"] = cfg.ApplicationName
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect postgres: %w", err)
	}

	return pool, nil
}

func NewNullString(s *string) pgtype.Text {
	if s == nil || len(*s) == 0 {
		return pgtype.Text{Status: pgtype.Null}
	}
	return pgtype.Text{
		String: *s,
		Status: pgtype.Present,
	}
}

// IsNoRows reconhece o "sem linhas" do pgx v5, do pgx v3 e do database/sql.
// Os repositórios só chegam aqui pelo pgx v5; os outros dois cobrem erros
// vindos de clientes legados embrulhados com %w.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows) || errors.Is(err, pgxv3.ErrNoRows) || errors.Is(err, sql.ErrNoRows)
}

// BuildSearchJSON builds the payload for the @> containment operator, which
// lets equality filters on properties use the GIN index.
// "brand.name", "Acme" -> {"brand": {"name": "Acme"}}
func BuildSearchJSON(path string, value interface{}) (string, error) {
	keys := strings.Split(path, ".")
	jsonMap := map[string]interface{}{keys[len(keys)-1]: value}

	for i := len(keys) - 2; i >= 0; i-- {
		jsonMap = map[string]interface{}{keys[i]: jsonMap}
	}

	bytes, err := json.Marshal(jsonMap)
	if err != nil {
		return "", err
	}

	return string(bytes), nil
}
