package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yourusername/member-gate/internal/session"
	"github.com/yourusername/member-gate/internal/users"
)

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	store := users.NewMemoryStore()
	hasher := NewHasher()
	seeded := seedUser(t, store, hasher, "alice01", "a@example.com", "P@ssw0rd1")

	serializer := NewSerializer(store)
	record := &session.Record{
		ID:        session.NewID(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	serializer.Serialize(seeded.Public(), record)

	if record.UserID != seeded.ID || record.Name != "alice01" {
		t.Fatalf("unexpected record: %+v", record)
	}

	identity, err := serializer.Deserialize(context.Background(), record)
	if err != nil {
		t.Fatalf("Deserialize returned error: %v", err)
	}
	if identity != seeded.Public() {
		t.Fatalf("round trip mismatch: %+v != %+v", identity, seeded.Public())
	}
}

func TestDeserializeDeletedAccount(t *testing.T) {
	store := users.NewMemoryStore()
	hasher := NewHasher()
	seeded := seedUser(t, store, hasher, "alice01", "a@example.com", "P@ssw0rd1")

	serializer := NewSerializer(store)
	record := &session.Record{ID: session.NewID(), ExpiresAt: time.Now().Add(time.Hour)}
	serializer.Serialize(seeded.Public(), record)

	if err := store.Delete(context.Background(), seeded.ID); err != nil {
		t.Fatalf("failed to delete user: %v", err)
	}

	if _, err := serializer.Deserialize(context.Background(), record); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession, got: %v", err)
	}
}

func TestDeserializeAnonymousRecord(t *testing.T) {
	serializer := NewSerializer(users.NewMemoryStore())

	record := &session.Record{ID: session.NewID(), ExpiresAt: time.Now().Add(time.Hour)}
	if _, err := serializer.Deserialize(context.Background(), record); !errors.Is(err, ErrInvalidSession) {
		t.Fatalf("expected ErrInvalidSession for anonymous record, got: %v", err)
	}
}
