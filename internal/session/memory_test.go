package session

import (
	"context"
	"testing"
	"time"
)

func newRecord(userID int64, ttl time.Duration) *Record {
	return &Record{
		ID:        NewID(),
		UserID:    userID,
		CSRFToken: "token",
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestMemoryStoreSaveAndGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := newRecord(42, time.Hour)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := store.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a record")
	}
	if got.UserID != 42 || got.CSRFToken != "token" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.CreatedAt.IsZero() || got.UpdatedAt.IsZero() {
		t.Fatal("Save must stamp CreatedAt/UpdatedAt")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := NewMemoryStore()

	got, err := store.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("missing session must be (nil, nil), got %+v", got)
	}
}

func TestMemoryStoreGetExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := newRecord(42, -time.Minute)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	got, err := store.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expired session must be (nil, nil), got %+v", got)
	}
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := newRecord(42, time.Hour)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	first, _ := store.Get(ctx, record.ID)
	first.CSRFToken = "mutated"

	second, _ := store.Get(ctx, record.ID)
	if second.CSRFToken != "token" {
		t.Fatal("Get must return a copy, not the stored record")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	record := newRecord(42, time.Hour)
	if err := store.Save(ctx, record); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if err := store.Delete(ctx, record.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if got, _ := store.Get(ctx, record.ID); got != nil {
		t.Fatalf("record should be gone, got %+v", got)
	}

	// 存在しないIDの削除はエラーにしない
	if err := store.Delete(ctx, "does-not-exist"); err != nil {
		t.Fatalf("Delete of a missing id returned error: %v", err)
	}
}

func TestMemoryStoreDeleteByUser(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	mine1 := newRecord(42, time.Hour)
	mine2 := newRecord(42, time.Hour)
	other := newRecord(7, time.Hour)
	anon := newRecord(0, time.Hour)
	for _, r := range []*Record{mine1, mine2, other, anon} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}

	deleted, err := store.DeleteByUser(ctx, 42)
	if err != nil {
		t.Fatalf("DeleteByUser returned error: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deletions, got %d", deleted)
	}
	if got, _ := store.Get(ctx, mine1.ID); got != nil {
		t.Fatal("user 42 sessions must all be gone")
	}
	if got, _ := store.Get(ctx, other.ID); got == nil {
		t.Fatal("other users' sessions must survive")
	}
	if got, _ := store.Get(ctx, anon.ID); got == nil {
		t.Fatal("anonymous sessions must survive")
	}
}

func TestMemoryStoreDeleteByUserAnonymous(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	anon := newRecord(0, time.Hour)
	if err := store.Save(ctx, anon); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	// UserID 0 は匿名の意味なので一括削除の対象外
	deleted, err := store.DeleteByUser(ctx, 0)
	if err != nil {
		t.Fatalf("DeleteByUser returned error: %v", err)
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deletions for userID 0, got %d", deleted)
	}
	if got, _ := store.Get(ctx, anon.ID); got == nil {
		t.Fatal("anonymous session must survive DeleteByUser(0)")
	}
}

func TestMemoryStorePruneExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	live := newRecord(42, time.Hour)
	dead1 := newRecord(42, -time.Minute)
	dead2 := newRecord(0, -time.Minute)
	for _, r := range []*Record{live, dead1, dead2} {
		if err := store.Save(ctx, r); err != nil {
			t.Fatalf("Save returned error: %v", err)
		}
	}

	removed, err := store.PruneExpired(ctx)
	if err != nil {
		t.Fatalf("PruneExpired returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removals, got %d", removed)
	}
	if got, _ := store.Get(ctx, live.ID); got == nil {
		t.Fatal("live session must survive pruning")
	}
}
