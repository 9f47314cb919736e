package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/model"
)

const calculationColumns = `id, a, b, type, user_id, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCalculation(s rowScanner) (*model.Calculation, error) {
	var c model.Calculation
	var typ string
	if err := s.Scan(&c.ID, &c.A, &c.B, &typ, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Type = model.CalculationType(typ)
	return &c, nil
}

// CreateCalculation inserts calc, assigning its ID and timestamps.
func (db *DB) CreateCalculation(ctx context.Context, calc *model.Calculation) error {
	if calc.UserID == "" {
		return errors.New("sqlite: creating calculation: owner is required")
	}

	calc.ID = xid.New().String()
	now := time.Now().UTC()
	calc.CreatedAt = now
	calc.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO calculations (`+calculationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		calc.ID,
		calc.A,
		calc.B,
		string(calc.Type),
		calc.UserID,
		calc.CreatedAt,
		calc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating calculation: %w", err)
	}

	return nil
}

// ListCalculations returns the user's calculations, oldest first.
func (db *DB) ListCalculations(ctx context.Context, userID string) ([]model.Calculation, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+calculationColumns+`
		 FROM calculations
		 WHERE user_id = ?
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing calculations: %w", err)
	}
	defer rows.Close()

	calcs := make([]model.Calculation, 0)
	for rows.Next() {
		c, err := scanCalculation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning calculation row: %w", err)
		}
		calcs = append(calcs, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating calculations: %w", err)
	}

	return calcs, nil
}

// GetCalculation returns the calculation only if userID owns it.
func (db *DB) GetCalculation(ctx context.Context, userID, id string) (*model.Calculation, error) {
	return getCalculation(ctx, db.conn, userID, id)
}

// UpdateCalculation overwrites A, B and Type of an owned calculation and
// reloads calc from the stored row. Both steps run in one transaction so
// the returned record is the one this update wrote.
func (db *DB) UpdateCalculation(ctx context.Context, userID string, calc *model.Calculation) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning update: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE calculations
		 SET a = ?, b = ?, type = ?, updated_at = ?
		 WHERE id = ? AND user_id = ?`,
		calc.A,
		calc.B,
		string(calc.Type),
		time.Now().UTC(),
		calc.ID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating calculation %s: %w", calc.ID, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("calculation")
	}

	stored, err := getCalculation(ctx, tx, userID, calc.ID)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing update: %w", err)
	}

	*calc = *stored
	return nil
}

// DeleteCalculation permanently removes an owned calculation.
func (db *DB) DeleteCalculation(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM calculations WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting calculation %s: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("calculation")
	}

	return nil
}

// querier is the subset of *sql.DB and *sql.Tx used by getCalculation.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getCalculation(ctx context.Context, q querier, userID, id string) (*model.Calculation, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+calculationColumns+`
		 FROM calculations
		 WHERE id = ? AND user_id = ?`,
		id,
		userID,
	)
	c, err := scanCalculation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("calculation")
		}
		return nil, fmt.Errorf("sqlite: getting calculation %s: %w", id, err)
	}
	return c, nil
}
