package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

// exerciseStore runs the shared Store contract against s.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "tms_token"); err != nil || ok {
		t.Fatalf("Get(absent): ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "tms_token", "a.b.c"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "tms_user", `{"id":"1"}`); err != nil {
		t.Fatalf("Set user: %v", err)
	}

	v, ok, err := s.Get(ctx, "tms_token")
	if err != nil || !ok || v != "a.b.c" {
		t.Fatalf("Get: v=%q ok=%v err=%v", v, ok, err)
	}

	if err := s.Set(ctx, "tms_token", "d.e.f"); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	v, _, _ = s.Get(ctx, "tms_token")
	if v != "d.e.f" {
		t.Fatalf("expected overwrite, got %q", v)
	}

	if err := s.Delete(ctx, "tms_token"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "tms_token"); err != nil {
		t.Fatalf("Delete(absent): %v", err)
	}
	if _, ok, _ := s.Get(ctx, "tms_token"); ok {
		t.Fatalf("expected key to be gone")
	}
	if v, ok, _ := s.Get(ctx, "tms_user"); !ok || v != `{"id":"1"}` {
		t.Fatalf("unrelated key disturbed: v=%q ok=%v", v, ok)
	}

	if err := s.Set(ctx, "", "x"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "session.json"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	exerciseStore(t, s)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "session.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)

	if err := Ping(context.Background(), s); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestPing_LocalStoresAlwaysReady(t *testing.T) {
	t.Parallel()

	if err := Ping(context.Background(), NewMemoryStore()); err != nil {
		t.Fatalf("Ping(memory): %v", err)
	}
}
