package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/sakif/calculations-api/internal/apperror"
	"github.com/sakif/calculations-api/internal/model"
)

func createTestCalculation(t *testing.T, db *DB, owner *model.User, a, b float64, typ model.CalculationType) *model.Calculation {
	t.Helper()
	calc := &model.Calculation{A: a, B: b, Type: typ, UserID: owner.ID}
	if err := db.CreateCalculation(context.Background(), calc); err != nil {
		t.Fatalf("failed to create test calculation: %v", err)
	}
	return calc
}

// =========================================================================
// CREATE / GET TESTS
// =========================================================================

func TestCreateCalculation_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")

	created := createTestCalculation(t, db, alice, 4, 2, model.TypeDivide)
	if created.ID == "" {
		t.Fatal("CreateCalculation() did not set ID")
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Error("CreateCalculation() did not set timestamps")
	}

	found, err := db.GetCalculation(context.Background(), alice.ID, created.ID)
	if err != nil {
		t.Fatalf("GetCalculation() error = %v", err)
	}
	if found.A != 4 || found.B != 2 || found.Type != model.TypeDivide {
		t.Errorf("GetCalculation() = %+v, want a=4 b=2 type=divide", found)
	}
	if found.UserID != alice.ID {
		t.Errorf("UserID = %q, want %q", found.UserID, alice.ID)
	}
}

func TestCreateCalculation_RequiresOwner(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateCalculation(context.Background(), &model.Calculation{A: 1, B: 1, Type: model.TypeAdd})
	if err == nil {
		t.Fatal("CreateCalculation() should fail without an owner")
	}
}

func TestCreateCalculation_UnknownOwnerViolatesForeignKey(t *testing.T) {
	db := newTestDB(t)

	err := db.CreateCalculation(context.Background(), &model.Calculation{
		A: 1, B: 1, Type: model.TypeAdd, UserID: "ghost",
	})
	if err == nil {
		t.Fatal("CreateCalculation() should fail for a user that does not exist")
	}
}

func TestGetCalculation_NotFoundAndForeignAreIdentical(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	bobs := createTestCalculation(t, db, bob, 1, 2, model.TypeAdd)

	_, errForeign := db.GetCalculation(context.Background(), alice.ID, bobs.ID)
	_, errMissing := db.GetCalculation(context.Background(), alice.ID, "does-not-exist")

	if !errors.Is(errForeign, apperror.ErrNotFound) {
		t.Fatalf("foreign GetCalculation() error = %v, want ErrNotFound", errForeign)
	}
	if !errors.Is(errMissing, apperror.ErrNotFound) {
		t.Fatalf("missing GetCalculation() error = %v, want ErrNotFound", errMissing)
	}
	if errForeign.Error() != errMissing.Error() {
		t.Errorf("error messages differ: %q vs %q", errForeign, errMissing)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListCalculations_OnlyOwnRecords(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")

	createTestCalculation(t, db, alice, 1, 1, model.TypeAdd)
	createTestCalculation(t, db, bob, 2, 2, model.TypeMultiply)
	createTestCalculation(t, db, alice, 3, 3, model.TypeSubtract)

	calcs, err := db.ListCalculations(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListCalculations() error = %v", err)
	}
	if len(calcs) != 2 {
		t.Fatalf("len = %d, want 2", len(calcs))
	}
	for _, c := range calcs {
		if c.UserID != alice.ID {
			t.Errorf("ListCalculations() returned calculation owned by %q", c.UserID)
		}
	}
	if calcs[0].A != 1 || calcs[1].A != 3 {
		t.Errorf("ListCalculations() order = [%v, %v], want creation order [1, 3]", calcs[0].A, calcs[1].A)
	}
}

func TestListCalculations_EmptyIsNotNil(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")

	calcs, err := db.ListCalculations(context.Background(), alice.ID)
	if err != nil {
		t.Fatalf("ListCalculations() error = %v", err)
	}
	if calcs == nil || len(calcs) != 0 {
		t.Errorf("ListCalculations() = %#v, want empty non-nil slice", calcs)
	}
}

func TestListCalculations_ConcurrentCreatesStayScoped(t *testing.T) {
	db := newTestDB(t)
	users := []*model.User{
		createTestUser(t, db, "u1@example.com"),
		createTestUser(t, db, "u2@example.com"),
		createTestUser(t, db, "u3@example.com"),
	}

	const perUser = 10
	var wg sync.WaitGroup
	errs := make(chan error, len(users)*perUser)
	for _, u := range users {
		for i := 0; i < perUser; i++ {
			wg.Add(1)
			go func(owner string, n int) {
				defer wg.Done()
				calc := &model.Calculation{A: float64(n), B: 1, Type: model.TypeAdd, UserID: owner}
				if err := db.CreateCalculation(context.Background(), calc); err != nil {
					errs <- fmt.Errorf("owner %s: %w", owner, err)
				}
			}(u.ID, i)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}

	for _, u := range users {
		calcs, err := db.ListCalculations(context.Background(), u.ID)
		if err != nil {
			t.Fatalf("ListCalculations(%s) error = %v", u.Email, err)
		}
		if len(calcs) != perUser {
			t.Errorf("ListCalculations(%s) len = %d, want %d", u.Email, len(calcs), perUser)
		}
		for _, c := range calcs {
			if c.UserID != u.ID {
				t.Errorf("ListCalculations(%s) leaked record of %s", u.Email, c.UserID)
			}
		}
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdateCalculation(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	original := createTestCalculation(t, db, alice, 1, 2, model.TypeAdd)

	update := &model.Calculation{ID: original.ID, A: 10, B: 5, Type: model.TypeSubtract, UserID: "attempted-takeover"}
	if err := db.UpdateCalculation(context.Background(), alice.ID, update); err != nil {
		t.Fatalf("UpdateCalculation() error = %v", err)
	}

	if update.A != 10 || update.B != 5 || update.Type != model.TypeSubtract {
		t.Errorf("UpdateCalculation() refreshed = %+v, want a=10 b=5 type=subtract", update)
	}
	if update.ID != original.ID {
		t.Errorf("ID = %q, want %q", update.ID, original.ID)
	}
	if update.UserID != alice.ID {
		t.Errorf("UserID = %q, want %q (owner is immutable)", update.UserID, alice.ID)
	}
	if !update.CreatedAt.Equal(original.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", original.CreatedAt, update.CreatedAt)
	}

	found, err := db.GetCalculation(context.Background(), alice.ID, original.ID)
	if err != nil {
		t.Fatalf("GetCalculation() after update: %v", err)
	}
	if found.A != 10 || found.B != 5 || found.Type != model.TypeSubtract {
		t.Errorf("stored = %+v, want a=10 b=5 type=subtract", found)
	}
}

func TestUpdateCalculation_ForeignOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	bobs := createTestCalculation(t, db, bob, 1, 2, model.TypeAdd)

	err := db.UpdateCalculation(context.Background(), alice.ID, &model.Calculation{
		ID: bobs.ID, A: 99, B: 99, Type: model.TypeMultiply,
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("UpdateCalculation() error = %v, want ErrNotFound", err)
	}

	found, err := db.GetCalculation(context.Background(), bob.ID, bobs.ID)
	if err != nil {
		t.Fatalf("GetCalculation() error = %v", err)
	}
	if found.A != 1 || found.B != 2 || found.Type != model.TypeAdd {
		t.Errorf("foreign update modified the record: %+v", found)
	}
}

func TestUpdateCalculation_NotFound(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")

	err := db.UpdateCalculation(context.Background(), alice.ID, &model.Calculation{
		ID: "does-not-exist", A: 1, B: 1, Type: model.TypeAdd,
	})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateCalculation() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDeleteCalculation(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	calc := createTestCalculation(t, db, alice, 1, 2, model.TypeAdd)

	if err := db.DeleteCalculation(context.Background(), alice.ID, calc.ID); err != nil {
		t.Fatalf("DeleteCalculation() error = %v", err)
	}

	_, err := db.GetCalculation(context.Background(), alice.ID, calc.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetCalculation() after delete error = %v, want ErrNotFound", err)
	}

	err = db.DeleteCalculation(context.Background(), alice.ID, calc.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("second DeleteCalculation() error = %v, want ErrNotFound", err)
	}
}

func TestDeleteCalculation_ForeignOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice@example.com")
	bob := createTestUser(t, db, "bob@example.com")
	bobs := createTestCalculation(t, db, bob, 1, 2, model.TypeAdd)

	err := db.DeleteCalculation(context.Background(), alice.ID, bobs.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("DeleteCalculation() error = %v, want ErrNotFound", err)
	}

	if _, err := db.GetCalculation(context.Background(), bob.ID, bobs.ID); err != nil {
		t.Errorf("bob's calculation should survive a foreign delete: %v", err)
	}
}
