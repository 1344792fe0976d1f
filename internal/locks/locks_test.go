package locks

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLockerMutualExclusion(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	ok, err := l.TryAcquire(ctx, "user:component", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = l.TryAcquire(ctx, "user:component", time.Minute)
	if err != nil {
		t.Fatalf("second acquire errored: %v", err)
	}
	if ok {
		t.Fatalf("second acquire must fail while the key is held")
	}

	// independent keys do not contend
	ok, _ = l.TryAcquire(ctx, "other:component", time.Minute)
	if !ok {
		t.Fatalf("unrelated key must be acquirable")
	}

	if err := l.Release(ctx, "user:component"); err != nil {
		t.Fatalf("release: %v", err)
	}
	ok, _ = l.TryAcquire(ctx, "user:component", time.Minute)
	if !ok {
		t.Fatalf("acquire after release must succeed")
	}
}

func TestMemoryLockerTTLExpiry(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	if ok, _ := l.TryAcquire(ctx, "k", time.Millisecond); !ok {
		t.Fatalf("first acquire failed")
	}
	time.Sleep(5 * time.Millisecond)
	if ok, _ := l.TryAcquire(ctx, "k", time.Minute); !ok {
		t.Fatalf("expired hold must be reacquirable")
	}
}
