package session

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate brings the session_tokens schema at databaseURL up to date.
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer func() { _, _ = m.Close() }()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// PgStore keeps tokens in the session_tokens table.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

func (p *PgStore) Load(ctx context.Context, sessionID string) (string, error) {
	var token string
	err := p.db.QueryRow(ctx, `SELECT token FROM session_tokens WHERE session_id = $1`, sessionID).Scan(&token)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("failed to load session token: %w", err)
	}
	return token, nil
}

func (p *PgStore) Save(ctx context.Context, sessionID, token string) error {
	_, err := p.db.Exec(ctx, `
		INSERT INTO session_tokens (session_id, token, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (session_id) DO UPDATE SET token = EXCLUDED.token, updated_at = now()`,
		sessionID, token)
	if err != nil {
		return fmt.Errorf("failed to save session token: %w", err)
	}
	return nil
}

func (p *PgStore) Delete(ctx context.Context, sessionID string) error {
	if _, err := p.db.Exec(ctx, `DELETE FROM session_tokens WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to delete session token: %w", err)
	}
	return nil
}
