package repo

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/tbourn/go-call-agent/internal/domain"
)

func newCallRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	db, err := OpenSQLite(memDSN("call_repo"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func mkCall(id, name string) *domain.Call {
	return &domain.Call{
		ID:           id,
		CustomerName: name,
		Phone:        "555",
		Date:         "2025-01-01",
		Time:         "09:00",
		Status:       domain.StatusScheduled,
	}
}

func ids(cs []domain.Call) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestInsertCall_Error_NoTable(t *testing.T) {
	db := newCallRepoDB(t /* no migrations */)
	if err := InsertCall(context.Background(), db, mkCall("1", "a")); err == nil {
		t.Fatalf("expected error inserting without table")
	}
}

func TestInsertCall_AssignsIncreasingPositions(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	ctx := context.Background()

	a, b := mkCall("a", "A"), mkCall("b", "B")
	if err := InsertCall(ctx, db, a); err != nil {
		t.Fatalf("insert a: %v", err)
	}
	if err := InsertCall(ctx, db, b); err != nil {
		t.Fatalf("insert b: %v", err)
	}
	if a.Position != 1 || b.Position != 2 {
		t.Fatalf("positions = %d,%d; want 1,2", a.Position, b.Position)
	}

	// Deleting the tail must not let the next insert jump ahead of survivors.
	if err := DeleteCall(ctx, db, "b"); err != nil {
		t.Fatalf("delete b: %v", err)
	}
	c := mkCall("c", "C")
	if err := InsertCall(ctx, db, c); err != nil {
		t.Fatalf("insert c: %v", err)
	}
	if c.Position <= a.Position {
		t.Fatalf("c.Position=%d should be after a.Position=%d", c.Position, a.Position)
	}
}

func TestInsertCall_DuplicateIDFails(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	ctx := context.Background()
	if err := InsertCall(ctx, db, mkCall("1", "a")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := InsertCall(ctx, db, mkCall("1", "b")); err == nil {
		t.Fatalf("expected primary key violation")
	}
}

func TestListCalls_InsertionOrder_SurvivesEdits(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	ctx := context.Background()

	// IDs deliberately sort differently from insertion order.
	for _, id := range []string{"z", "a", "m"} {
		if err := InsertCall(ctx, db, mkCall(id, id)); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := UpdateCallDetails(ctx, db, "z", domain.CallForm{CustomerName: "Zed"}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := UpdateCallStatus(ctx, db, "a", domain.StatusMissed); err != nil {
		t.Fatalf("status: %v", err)
	}

	got, err := ListCalls(ctx, db)
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if want := []string{"z", "a", "m"}; !equalIDs(ids(got), want) {
		t.Fatalf("order = %v; want %v", ids(got), want)
	}
}

func TestListCalls_EmptyIsNonNil(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	got, err := ListCalls(context.Background(), db)
	if err != nil {
		t.Fatalf("ListCalls: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", got)
	}
}

func TestGetCall_NotFound(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	c, err := GetCall(context.Background(), db, "missing")
	if c != nil || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected (nil, ErrNotFound), got (%v, %v)", c, err)
	}
}

func TestUpdateCallDetails_OverwritesEditableFieldsOnly(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	ctx := context.Background()

	d := "45 min"
	orig := mkCall("1", "Ann")
	orig.Status = domain.StatusCompleted
	orig.Notes = "old notes"
	orig.Duration = &d
	if err := InsertCall(ctx, db, orig); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Empty notes must be written, not skipped as a zero value.
	form := domain.CallForm{CustomerName: "Bob", Phone: "not a phone", Date: "1999-12-31", Time: "23:59", Notes: ""}
	if err := UpdateCallDetails(ctx, db, "1", form); err != nil {
		t.Fatalf("UpdateCallDetails: %v", err)
	}

	got, err := GetCall(ctx, db, "1")
	if err != nil {
		t.Fatalf("GetCall: %v", err)
	}
	if got.Form() != form {
		t.Fatalf("form fields = %+v; want %+v", got.Form(), form)
	}
	if got.ID != "1" || got.Status != domain.StatusCompleted || got.Position != orig.Position {
		t.Fatalf("identity/status/position changed: %+v", got)
	}
	if got.Duration == nil || *got.Duration != "45 min" {
		t.Fatalf("duration changed: %v", got.Duration)
	}
}

func TestUpdateCallDetails_NotFound(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	err := UpdateCallDetails(context.Background(), db, "nope", domain.CallForm{CustomerName: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateCallStatus_SuccessAndNotFound(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	ctx := context.Background()
	if err := InsertCall(ctx, db, mkCall("1", "Ann")); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := UpdateCallStatus(ctx, db, "1", domain.StatusCompleted); err != nil {
		t.Fatalf("UpdateCallStatus: %v", err)
	}
	got, _ := GetCall(ctx, db, "1")
	if got.Status != domain.StatusCompleted || got.CustomerName != "Ann" {
		t.Fatalf("unexpected call after status update: %+v", got)
	}

	// Setting the same status again still matches the row.
	if err := UpdateCallStatus(ctx, db, "1", domain.StatusCompleted); err != nil {
		t.Fatalf("idempotent UpdateCallStatus: %v", err)
	}

	if err := UpdateCallStatus(ctx, db, "nope", domain.StatusMissed); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCall_SuccessAndNotFound(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	ctx := context.Background()
	for _, id := range []string{"1", "2"} {
		if err := InsertCall(ctx, db, mkCall(id, id)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	if err := DeleteCall(ctx, db, "1"); err != nil {
		t.Fatalf("DeleteCall: %v", err)
	}
	if err := DeleteCall(ctx, db, "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: expected ErrNotFound, got %v", err)
	}

	got, _ := ListCalls(ctx, db)
	if want := []string{"2"}; !equalIDs(ids(got), want) {
		t.Fatalf("remaining = %v; want %v", ids(got), want)
	}
}

func TestSeedCalls_OnlyIntoEmptyTable(t *testing.T) {
	db := newCallRepoDB(t, &domain.Call{})
	ctx := context.Background()

	seed := []domain.Call{*mkCall("1", "John"), *mkCall("2", "Sarah")}
	if err := SeedCalls(ctx, db, seed); err != nil {
		t.Fatalf("SeedCalls: %v", err)
	}
	if err := SeedCalls(ctx, db, []domain.Call{*mkCall("3", "Again")}); err != nil {
		t.Fatalf("SeedCalls (second): %v", err)
	}

	got, _ := ListCalls(ctx, db)
	if want := []string{"1", "2"}; !equalIDs(ids(got), want) {
		t.Fatalf("seeded = %v; want %v", ids(got), want)
	}
}
