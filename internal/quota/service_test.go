package quota

import (
	"context"
	"errors"
	"testing"
)

func TestCanStoreDocCeiling(t *testing.T) {
	svc := NewService(Defaults{DocLimit: 2, BytesLimit: 1 << 20})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, _, err := svc.CanStore(ctx, "user-1", 100)
		if err != nil {
			t.Fatalf("CanStore: %v", err)
		}
		if !ok {
			t.Fatalf("expected CanStore true on doc %d", i+1)
		}
		if _, err := svc.Consume(ctx, "user-1", 100); err != nil {
			t.Fatalf("Consume: %v", err)
		}
	}

	ok, _, err := svc.CanStore(ctx, "user-1", 100)
	if err != nil {
		t.Fatalf("CanStore: %v", err)
	}
	if ok {
		t.Fatal("expected CanStore false after limit")
	}
	if _, err := svc.Consume(ctx, "user-1", 100); !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
}

func TestCanStoreByteCeiling(t *testing.T) {
	svc := NewService(Defaults{DocLimit: 100, BytesLimit: 1000})
	ctx := context.Background()

	if _, err := svc.Consume(ctx, "user-1", 900); err != nil {
		t.Fatalf("Consume: %v", err)
	}
	ok, _, err := svc.CanStore(ctx, "user-1", 200)
	if err != nil {
		t.Fatalf("CanStore: %v", err)
	}
	if ok {
		t.Fatal("expected byte ceiling to reject upload")
	}
	ok, _, err = svc.CanStore(ctx, "user-1", 100)
	if err != nil {
		t.Fatalf("CanStore: %v", err)
	}
	if !ok {
		t.Fatal("expected upload within byte ceiling to pass")
	}
}

func TestQuotaIsPerUser(t *testing.T) {
	svc := NewService(Defaults{DocLimit: 1, BytesLimit: 1 << 20})
	ctx := context.Background()

	if _, err := svc.Consume(ctx, "user-a", 10); err != nil {
		t.Fatalf("Consume a: %v", err)
	}
	ok, _, err := svc.CanStore(ctx, "user-b", 10)
	if err != nil {
		t.Fatalf("CanStore b: %v", err)
	}
	if !ok {
		t.Fatal("user-b should not share user-a's quota")
	}
}
