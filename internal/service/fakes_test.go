package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================
//
// fakeStore is an in-memory implementation of both repository interfaces.
// It mirrors the real stores' rules: unique email, owner-scoped lookups,
// and identical NotFound errors for missing and foreign rows.
type fakeStore struct {
	mu     sync.Mutex
	users  map[string]*model.User        // keyed by email
	calcs  map[string]*model.Calculation // keyed by ID
	order  []string                      // calculation IDs in creation order
	nextID int

	// set to a non-nil error to simulate a database failure
	createUserErr error
	getUserErr    error
	calcErr       error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[string]*model.User),
		calcs: make(map[string]*model.Calculation),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateUser(_ context.Context, user *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createUserErr != nil {
		return f.createUserErr
	}
	if _, exists := f.users[user.Email]; exists {
		return apperror.Conflict("user", "email")
	}
	user.ID = f.id("user")
	user.CreatedAt = time.Now()
	stored := *user
	f.users[user.Email] = &stored
	return nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getUserErr != nil {
		return nil, f.getUserErr
	}
	u, ok := f.users[email]
	if !ok {
		return nil, apperror.NotFound("user")
	}
	result := *u
	return &result, nil
}

func (f *fakeStore) CreateCalculation(_ context.Context, calc *model.Calculation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calcErr != nil {
		return f.calcErr
	}
	calc.ID = f.id("calc")
	calc.CreatedAt = time.Now()
	calc.UpdatedAt = calc.CreatedAt
	stored := *calc
	f.calcs[calc.ID] = &stored
	f.order = append(f.order, calc.ID)
	return nil
}

func (f *fakeStore) ListCalculations(_ context.Context, userID string) ([]model.Calculation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calcErr != nil {
		return nil, f.calcErr
	}
	result := make([]model.Calculation, 0)
	for _, id := range f.order {
		if c, ok := f.calcs[id]; ok && c.UserID == userID {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (f *fakeStore) owned(userID, id string) (*model.Calculation, error) {
	c, ok := f.calcs[id]
	if !ok || c.UserID != userID {
		return nil, apperror.NotFound("calculation")
	}
	return c, nil
}

func (f *fakeStore) GetCalculation(_ context.Context, userID, id string) (*model.Calculation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calcErr != nil {
		return nil, f.calcErr
	}
	c, err := f.owned(userID, id)
	if err != nil {
		return nil, err
	}
	result := *c
	return &result, nil
}

func (f *fakeStore) UpdateCalculation(_ context.Context, userID string, calc *model.Calculation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calcErr != nil {
		return f.calcErr
	}
	c, err := f.owned(userID, calc.ID)
	if err != nil {
		return err
	}
	c.A, c.B, c.Type = calc.A, calc.B, calc.Type
	c.UpdatedAt = time.Now()
	*calc = *c
	return nil
}

func (f *fakeStore) DeleteCalculation(_ context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calcErr != nil {
		return f.calcErr
	}
	if _, err := f.owned(userID, id); err != nil {
		return err
	}
	delete(f.calcs, id)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
