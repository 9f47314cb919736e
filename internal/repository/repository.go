// Package repository declares the persistence interfaces the services
// depend on. Implementations live in the sqlite and postgres subpackages.
//
// Every calculation method takes the owner's user ID and filters on it in
// the query itself. A row owned by someone else is indistinguishable from a
// missing row: both return apperror.ErrNotFound.
package repository

import (
	"context"

	"github.com/sakif/calculations-api/internal/model"
)

type UserRepository interface {
	// CreateUser assigns ID and CreatedAt. A duplicate email returns
	// apperror.ErrConflict.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

type CalculationRepository interface {
	// CreateCalculation assigns ID and timestamps; calc.UserID must be set.
	CreateCalculation(ctx context.Context, calc *model.Calculation) error
	ListCalculations(ctx context.Context, userID string) ([]model.Calculation, error)
	GetCalculation(ctx context.Context, userID, id string) (*model.Calculation, error)
	// UpdateCalculation writes A, B and Type, then refreshes calc from the
	// stored row in the same transaction.
	UpdateCalculation(ctx context.Context, userID string, calc *model.Calculation) error
	DeleteCalculation(ctx context.Context, userID, id string) error
}

// Store is everything the server needs from a backend.
type Store interface {
	UserRepository
	CalculationRepository
	Ping(ctx context.Context) error
	Close() error
}
