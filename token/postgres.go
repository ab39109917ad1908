package token

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nousware/authkit/pkg/pg"
)

// PostgresStore implements Store on a pgx connection pool. The tokens
// table carries unique constraints on the value and on
// (identity_id, token_type); Replace leans on the latter to serialize
// concurrent issuance for the same identity.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by PostgreSQL.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Replace(ctx context.Context, tok *Token) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`DELETE FROM tokens WHERE identity_id = $1 AND token_type = $2`,
		tok.IdentityID, tok.Type)
	if err != nil {
		return fmt.Errorf("delete prior token: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tokens (value, token_type, identity_id, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		tok.Value, tok.Type, tok.IdentityID, tok.ExpiresAt, tok.CreatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return errors.Join(ErrDuplicate, err)
		}
		return fmt.Errorf("insert token: %w", err)
	}

	return tx.Commit(ctx)
}

func (s *PostgresStore) Find(ctx context.Context, value string) (*Token, error) {
	var tok Token
	err := s.pool.QueryRow(ctx, `
		SELECT value, token_type, identity_id, expires_at, created_at
		FROM tokens WHERE value = $1`, value,
	).Scan(&tok.Value, &tok.Type, &tok.IdentityID, &tok.ExpiresAt, &tok.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query token: %w", err)
	}
	return &tok, nil
}

func (s *PostgresStore) Delete(ctx context.Context, value string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM tokens WHERE value = $1`, value); err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteByIdentityAndType(ctx context.Context, identityID int64, typ Type) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM tokens WHERE identity_id = $1 AND token_type = $2`, identityID, typ)
	if err != nil {
		return fmt.Errorf("delete tokens by pair: %w", err)
	}
	return nil
}
