// Package postgres implements the repository interfaces on PostgreSQL
// using pgx/v5 connection pooling. It is selected when DATABASE_URL is set.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/xid"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/model"
	"github.com/sakif/calculations-api/internal/repository"
)

// uniqueViolation is the SQLSTATE for a UNIQUE constraint failure.
const uniqueViolation = "23505"

var _ repository.Store = (*Store)(nil)

// Store is a PostgreSQL-backed repository.Store.
type Store struct {
	pool *pgxpool.Pool
}

// New connects to databaseURL, verifies connectivity and applies migrations.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parsing database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: connecting to database: %w", err)
	}

	s := &Store{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return s, nil
}

// Close releases the pool. It always returns nil.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: ping: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS calculations (
			id         TEXT PRIMARY KEY,
			a          DOUBLE PRECISION NOT NULL,
			b          DOUBLE PRECISION NOT NULL,
			type       TEXT NOT NULL,
			user_id    TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_calculations_user_id ON calculations (user_id, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: applying migrations: %w", err)
		}
	}
	return nil
}

// =========================================================================
// USERS
// =========================================================================

func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		user.ID, user.Username, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return apperror.Conflict("user", "email")
		}
		return fmt.Errorf("postgres: inserting user: %w", err)
	}
	return nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash, created_at FROM users WHERE email = $1`,
		email,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: getting user by email: %w", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("user")
		}
		return nil, err
	}
	return &u, nil
}

// =========================================================================
// CALCULATIONS
// =========================================================================

const calculationColumns = `id, a, b, type, user_id, created_at, updated_at`

func scanCalculation(row pgx.Row) (*model.Calculation, error) {
	var c model.Calculation
	var typ string
	if err := row.Scan(&c.ID, &c.A, &c.B, &typ, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Type = model.CalculationType(typ)
	return &c, nil
}

func (s *Store) CreateCalculation(ctx context.Context, calc *model.Calculation) error {
	if calc.UserID == "" {
		return errors.New("postgres: creating calculation: owner is required")
	}

	calc.ID = xid.New().String()
	now := time.Now().UTC()
	calc.CreatedAt = now
	calc.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO calculations (`+calculationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		calc.ID, calc.A, calc.B, string(calc.Type), calc.UserID, calc.CreatedAt, calc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: creating calculation: %w", err)
	}
	return nil
}

func (s *Store) ListCalculations(ctx context.Context, userID string) ([]model.Calculation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+calculationColumns+`
		 FROM calculations
		 WHERE user_id = $1
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing calculations: %w", err)
	}
	defer rows.Close()

	calcs := make([]model.Calculation, 0)
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning calculation row: %w", err)
		}
		calcs = append(calcs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating calculations: %w", err)
	}
	return calcs, nil
}

func (s *Store) GetCalculation(ctx context.Context, userID, id string) (*model.Calculation, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+calculationColumns+` FROM calculations WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	c, err := scanCalculation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("calculation")
		}
		return nil, fmt.Errorf("postgres: getting calculation %s: %w", id, err)
	}
	return c, nil
}

// UpdateCalculation uses UPDATE ... RETURNING, so the write and the
// refreshed row come from a single statement.
func (s *Store) UpdateCalculation(ctx context.Context, userID string, calc *model.Calculation) error {
	row := s.pool.QueryRow(ctx,
		`UPDATE calculations
		 SET a = $1, b = $2, type = $3, updated_at = $4
		 WHERE id = $5 AND user_id = $6
		 RETURNING `+calculationColumns,
		calc.A, calc.B, string(calc.Type), time.Now().UTC(), calc.ID, userID,
	)
	stored, err := scanCalculation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperror.NotFound("calculation")
		}
		return fmt.Errorf("postgres: updating calculation %s: %w", calc.ID, err)
	}
	*calc = *stored
	return nil
}

func (s *Store) DeleteCalculation(ctx context.Context, userID, id string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM calculations WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("postgres: deleting calculation %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("calculation")
	}
	return nil
}
