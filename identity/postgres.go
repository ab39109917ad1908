package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nousware/authkit/pkg/pg"
)

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Store backed by PostgreSQL.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const identityColumns = `id, email, first_name, last_name, password_hash, subject, provider,
	enabled, picture_url, avatar_url, last_login_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, ident *Identity) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now()
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = now
	}
	ident.UpdatedAt = now

	err = tx.QueryRow(ctx, `
		INSERT INTO identities (email, first_name, last_name, password_hash, subject, provider,
			enabled, picture_url, avatar_url, last_login_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		ident.Email, ident.FirstName, ident.LastName, ident.PasswordHash, ident.Subject,
		ident.Provider, ident.Enabled, ident.PictureURL, ident.AvatarURL,
		ident.LastLoginAt, ident.CreatedAt, ident.UpdatedAt,
	).Scan(&ident.ID)
	if err != nil {
		return mapConstraintError(err)
	}

	roles := NormalizeRoles(ident.Roles)
	if len(roles) == 0 {
		roles = []string{DefaultRole}
	}
	for _, role := range roles {
		if err := assignRoleTx(ctx, tx, ident.ID, role); err != nil {
			return err
		}
	}
	ident.Roles = roles

	return tx.Commit(ctx)
}

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Identity, error) {
	return s.getBy(ctx, "id = $1", id)
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	return s.getBy(ctx, "email = $1", email)
}

func (s *PostgresStore) GetBySubject(ctx context.Context, subject string) (*Identity, error) {
	return s.getBy(ctx, "subject = $1", subject)
}

func (s *PostgresStore) getBy(ctx context.Context, where string, arg any) (*Identity, error) {
	var ident Identity
	err := s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE `+where, arg,
	).Scan(
		&ident.ID, &ident.Email, &ident.FirstName, &ident.LastName, &ident.PasswordHash,
		&ident.Subject, &ident.Provider, &ident.Enabled, &ident.PictureURL, &ident.AvatarURL,
		&ident.LastLoginAt, &ident.CreatedAt, &ident.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query identity: %w", err)
	}

	roles, err := s.loadRoles(ctx, ident.ID)
	if err != nil {
		return nil, err
	}
	ident.Roles = roles

	return &ident, nil
}

func (s *PostgresStore) loadRoles(ctx context.Context, id int64) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT r.name FROM roles r
		JOIN identities_roles ir ON ir.role_id = r.id
		WHERE ir.identity_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	var roles []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, name)
	}
	return roles, rows.Err()
}

func (s *PostgresStore) Update(ctx context.Context, ident *Identity) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE identities SET
			first_name = $2, last_name = $3, subject = $4, provider = $5,
			enabled = $6, picture_url = $7, avatar_url = $8, updated_at = now()
		WHERE id = $1`,
		ident.ID, ident.FirstName, ident.LastName, ident.Subject, ident.Provider,
		ident.Enabled, ident.PictureURL, ident.AvatarURL,
	)
	if err != nil {
		return mapConstraintError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdatePasswordHash(ctx context.Context, id int64, hash []byte) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET password_hash = $2, updated_at = now() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET enabled = $2, updated_at = now() WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("update enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE identities SET last_login_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AssignRole(ctx context.Context, id int64, role string) error {
	role = NormalizeRole(role)
	if role == "" {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := assignRoleTx(ctx, tx, id, role); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func assignRoleTx(ctx context.Context, tx pgx.Tx, identityID int64, role string) error {
	var roleID int64
	err := tx.QueryRow(ctx, `
		INSERT INTO roles (name) VALUES ($1)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`, role,
	).Scan(&roleID)
	if err != nil {
		return fmt.Errorf("upsert role: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO identities_roles (identity_id, role_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, identityID, roleID)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	return nil
}

// mapConstraintError converts unique violations into domain sentinels so
// callers can distinguish lost upsert races from real failures.
func mapConstraintError(err error) error {
	if err == nil {
		return nil
	}
	if pg.IsDuplicateKeyError(err) {
		if strings.Contains(err.Error(), "subject") {
			return errors.Join(ErrSubjectTaken, err)
		}
		return errors.Join(ErrEmailTaken, err)
	}
	return err
}
