package repo

import (
	"context"
	"errors"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-gif-backend/internal/domain"
)

func newTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestPending_RoundTrip(t *testing.T) {
	db := newTestDB(t, "pending_roundtrip")
	ctx := context.Background()

	rec := &domain.PendingGeneration{
		ID:       "pred-1",
		UserID:   "u1",
		RoomID:   "r1",
		ThreadID: "t1",
		Prompt:   "a corgi surfing",
	}
	if err := CreatePending(ctx, db, rec); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Errorf("CreatedAt not set")
	}

	got, err := GetPending(ctx, db, "pred-1")
	if err != nil {
		t.Fatalf("GetPending: %v", err)
	}
	if got.UserID != "u1" || got.RoomID != "r1" || got.Prompt != "a corgi surfing" {
		t.Errorf("unexpected record: %+v", got)
	}
}

func TestPending_GetMissing(t *testing.T) {
	db := newTestDB(t, "pending_missing")
	_, err := GetPending(context.Background(), db, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestPending_DeleteIdempotent(t *testing.T) {
	db := newTestDB(t, "pending_delete")
	ctx := context.Background()

	if err := CreatePending(ctx, db, &domain.PendingGeneration{ID: "pred-2", UserID: "u1", RoomID: "r1", Prompt: "p"}); err != nil {
		t.Fatalf("CreatePending: %v", err)
	}

	found, err := DeletePending(ctx, db, "pred-2")
	if err != nil || !found {
		t.Fatalf("first delete: found=%v err=%v", found, err)
	}

	// Second delete is a not-found no-op, never an error.
	found, err = DeletePending(ctx, db, "pred-2")
	if err != nil {
		t.Fatalf("second delete errored: %v", err)
	}
	if found {
		t.Fatalf("second delete reported found")
	}

	if _, err := GetPending(ctx, db, "pred-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("record still present after delete: %v", err)
	}
}
