package directory

import (
	"context"
	"errors"
	"testing"
)

func TestMockUpsertFailures(t *testing.T) {
	m := NewMockService()
	m.UpsertFailures = 2
	ctx := context.Background()

	for i := range 2 {
		if err := m.Upsert(ctx, "u1", Record{Name: "A"}); !errors.Is(err, ErrStorage) {
			t.Fatalf("attempt %d: expected ErrStorage, got %v", i, err)
		}
	}
	if err := m.Upsert(ctx, "u1", Record{Name: "A"}); err != nil {
		t.Fatalf("expected success after failures, got %v", err)
	}
	if m.UpsertCalls != 3 || m.Len() != 1 {
		t.Fatalf("unexpected state calls=%d len=%d", m.UpsertCalls, m.Len())
	}
}

func TestMockListOrderAndFilter(t *testing.T) {
	m := NewMockService()
	ctx := context.Background()
	_ = m.Upsert(ctx, "b", Record{Name: "Ada"})
	_ = m.Upsert(ctx, "a", Record{Name: "Ada"})
	_ = m.Upsert(ctx, "c", Record{Name: "Bob"})

	got, err := m.List(ctx, Filter{Name: "Ada"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected result %+v", got)
	}
	if _, err := m.List(ctx, Filter{Name: "ada"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected case-sensitive miss, got %v", err)
	}
}

func TestGRPCCategory(t *testing.T) {
	if got := grpcCategory(errors.New("plain")); got != "internal_error" {
		t.Fatalf("expected internal_error, got %q", got)
	}
}
