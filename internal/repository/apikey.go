package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarko/marketplace-api/internal/domain/actor"
)

const getActorByKeyHashSQL = `SELECT user_id, role
	FROM api_keys WHERE key_hash = $1 AND active = TRUE`

var _ actor.Repository = (*APIKeyRepository)(nil)

// APIKeyRepository resolves API key hashes to actors, backed by PostgreSQL.
type APIKeyRepository struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository returns an APIKeyRepository that uses the given pool.
func NewAPIKeyRepository(pool *pgxpool.Pool) *APIKeyRepository {
	return &APIKeyRepository{pool: pool}
}

// FindByKeyHash looks up the actor behind an active API key by the key's
// HMAC-SHA256 hash.
func (r *APIKeyRepository) FindByKeyHash(ctx context.Context, hash string) (*actor.Actor, error) {
	var (
		act  actor.Actor
		role string
	)
	err := q(ctx, r.pool).QueryRow(ctx, getActorByKeyHashSQL, hash).Scan(&act.ID, &role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, actor.ErrUnknownKey
		}
		return nil, fmt.Errorf("finding api key by hash: %w", err)
	}
	act.Role = actor.Role(role)
	return &act, nil
}
