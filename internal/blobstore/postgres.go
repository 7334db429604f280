package blobstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Postgres is a Store persisted in a PostgreSQL table, for deployments that
// prefer self-managed container storage over an external blob service.
//
// Expected schema:
//
//	CREATE TABLE IF NOT EXISTS containers (
//	    id         UUID PRIMARY KEY,
//	    content    BYTEA NOT NULL,
//	    version    BIGINT NOT NULL DEFAULT 1,
//	    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
type Postgres struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a Postgres store backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *Postgres {
	return &Postgres{pool: pool, logger: logger}
}

// Create implements Store.
func (p *Postgres) Create(ctx context.Context, content []byte) (string, error) {
	id := uuid.NewString()
	if _, err := p.pool.Exec(ctx,
		"INSERT INTO containers (id, content, version) VALUES ($1, $2, 1)",
		id, content,
	); err != nil {
		return "", fmt.Errorf("%w: insert container: %v", ErrUnavailable, err)
	}
	p.logger.Debug("container created", zap.String("container_id", id))
	return id, nil
}

// Read implements Store.
func (p *Postgres) Read(ctx context.Context, id string) ([]byte, string, error) {
	var content []byte
	var version int64
	err := p.pool.QueryRow(ctx,
		"SELECT content, version FROM containers WHERE id = $1", id,
	).Scan(&content, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("%w: read container %s: %v", ErrUnavailable, id, err)
	}
	return content, strconv.FormatInt(version, 10), nil
}

// Update implements Store. The version check and the overwrite are a single
// conditional UPDATE, so two racing writers cannot both succeed.
func (p *Postgres) Update(ctx context.Context, id string, content []byte, version string) error {
	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed version token %q: %w", version, err)
	}

	tag, err := p.pool.Exec(ctx,
		`UPDATE containers
		 SET content = $2, version = version + 1, updated_at = now()
		 WHERE id = $1 AND version = $3`,
		id, content, v,
	)
	if err != nil {
		return fmt.Errorf("%w: update container %s: %v", ErrUnavailable, id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: either the container is gone or the version is stale.
	var exists bool
	if err := p.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM containers WHERE id = $1)", id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("%w: check container %s: %v", ErrUnavailable, id, err)
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConcurrentModification
}
