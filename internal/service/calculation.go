package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/model"
	"github.com/sakif/calculations-api/internal/repository"
)

// CalculationService handles business logic for calculations.
//
// Every method takes the current user. The owner's ID is passed down to the
// repository, which filters on it in the query, so there is no code path
// that loads a calculation and checks ownership afterwards.
type CalculationService struct {
	repo   repository.CalculationRepository
	logger *slog.Logger
}

func NewCalculationService(repo repository.CalculationRepository, logger *slog.Logger) *CalculationService {
	return &CalculationService{
		repo:   repo,
		logger: logger,
	}
}

// CalculationInput is the user-supplied part of a calculation.
type CalculationInput struct {
	A    float64
	B    float64
	Type string
}

// validate normalises the type and checks the operands.
func (in CalculationInput) validate() (model.CalculationType, error) {
	typ, ok := model.ParseCalculationType(in.Type)
	if !ok {
		names := make([]string, len(model.CalculationTypes))
		for i, t := range model.CalculationTypes {
			names[i] = string(t)
		}
		return "", apperror.ValidationFailed("type",
			fmt.Sprintf("type must be one of: %s", strings.Join(names, ", ")))
	}
	if math.IsNaN(in.A) || math.IsInf(in.A, 0) {
		return "", apperror.ValidationFailed("a", "a must be a finite number")
	}
	if math.IsNaN(in.B) || math.IsInf(in.B, 0) {
		return "", apperror.ValidationFailed("b", "b must be a finite number")
	}
	if typ == model.TypeDivide && in.B == 0 {
		return "", apperror.ValidationFailed("b", "cannot divide by zero")
	}
	return typ, nil
}

// Create stores a new calculation owned by owner.
func (s *CalculationService) Create(ctx context.Context, owner *model.User, in CalculationInput) (*model.Calculation, error) {
	typ, err := in.validate()
	if err != nil {
		return nil, err
	}

	calc := &model.Calculation{
		A:      in.A,
		B:      in.B,
		Type:   typ,
		UserID: owner.ID,
	}
	if err := s.repo.CreateCalculation(ctx, calc); err != nil {
		s.logger.Error("failed to create calculation",
			slog.String("userID", owner.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating calculation: %w", err)
	}

	s.logger.Info("calculation created",
		slog.String("id", calc.ID),
		slog.String("userID", owner.ID),
		slog.String("type", string(calc.Type)),
	)
	return calc, nil
}

// List returns every calculation owned by owner.
func (s *CalculationService) List(ctx context.Context, owner *model.User) ([]model.Calculation, error) {
	calcs, err := s.repo.ListCalculations(ctx, owner.ID)
	if err != nil {
		s.logger.Error("failed to list calculations",
			slog.String("userID", owner.ID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("listing calculations: %w", err)
	}
	return calcs, nil
}

// Get returns apperror.ErrNotFound both for a missing id and for an id
// owned by someone else.
func (s *CalculationService) Get(ctx context.Context, owner *model.User, id string) (*model.Calculation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "calculation ID is required")
	}

	calc, err := s.repo.GetCalculation(ctx, owner.ID, id)
	if err != nil {
		return nil, s.storeError("get", id, err)
	}
	return calc, nil
}

// Update overwrites a, b and type. id and owner never change.
func (s *CalculationService) Update(ctx context.Context, owner *model.User, id string, in CalculationInput) (*model.Calculation, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "calculation ID is required")
	}

	typ, err := in.validate()
	if err != nil {
		return nil, err
	}

	calc := &model.Calculation{
		ID:   id,
		A:    in.A,
		B:    in.B,
		Type: typ,
	}
	if err := s.repo.UpdateCalculation(ctx, owner.ID, calc); err != nil {
		return nil, s.storeError("update", id, err)
	}

	s.logger.Info("calculation updated",
		slog.String("id", calc.ID),
		slog.String("userID", owner.ID),
	)
	return calc, nil
}

// Delete permanently removes an owned calculation.
func (s *CalculationService) Delete(ctx context.Context, owner *model.User, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "calculation ID is required")
	}

	if err := s.repo.DeleteCalculation(ctx, owner.ID, id); err != nil {
		return s.storeError("delete", id, err)
	}

	s.logger.Info("calculation deleted",
		slog.String("id", id),
		slog.String("userID", owner.ID),
	)
	return nil
}

// storeError passes NotFound through untouched and logs anything else.
func (s *CalculationService) storeError(op, id string, err error) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return err
	}
	s.logger.Error("calculation store failure",
		slog.String("op", op),
		slog.String("id", id),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%s calculation %s: %w", op, id, err)
}
