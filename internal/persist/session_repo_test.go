package persist

import (
	"context"
	"testing"
	"time"
)

func TestMemoryResolver(t *testing.T) {
	m := NewMemoryResolver()
	ctx := context.Background()

	if _, ok := m.Resolve(ctx, "nope"); ok {
		t.Fatal("unknown token resolved")
	}

	m.Put("tok-1", "alice", 0)
	id, ok := m.Resolve(ctx, "tok-1")
	if !ok || id != "alice" {
		t.Fatalf("Resolve = %q,%v", id, ok)
	}

	m.Delete("tok-1")
	if _, ok := m.Resolve(ctx, "tok-1"); ok {
		t.Fatal("deleted token resolved")
	}
}

func TestMemoryResolverExpiry(t *testing.T) {
	m := NewMemoryResolver()
	m.Put("tok-2", "bob", time.Nanosecond)
	time.Sleep(time.Millisecond)
	if _, ok := m.Resolve(context.Background(), "tok-2"); ok {
		t.Fatal("expired token resolved")
	}
}
