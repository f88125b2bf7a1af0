package alerts

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRedisStore_ReserveDaily(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 2; i++ {
		ok, err := store.ReserveDaily(ctx, id, "2026-03-02", 2)
		if err != nil || !ok {
			t.Fatalf("slot %d: expected reservation, got %v (%v)", i, ok, err)
		}
	}
	ok, err := store.ReserveDaily(ctx, id, "2026-03-02", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected the third slot to be refused")
	}

	key := store.capKey(id, "2026-03-02")
	if got, _ := mr.Get(key); got != "2" {
		t.Fatalf("refused reservation must not move the counter, got %q", got)
	}
	if mr.TTL(key) <= 0 {
		t.Fatalf("expected counter expiry to be set")
	}

	if err := store.ReleaseDaily(ctx, id, "2026-03-02"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := store.ReserveDaily(ctx, id, "2026-03-02", 2); !ok {
		t.Fatalf("expected a released slot to be reusable")
	}
	if ok, _ := store.ReserveDaily(ctx, id, "2026-03-03", 2); !ok {
		t.Fatalf("expected a fresh counter for the next day")
	}
}

func TestRedisStore_ReleaseDailyNeverGoesNegative(t *testing.T) {
	store, mr := newTestStore(t)
	id := uuid.New()

	if err := store.ReleaseDaily(context.Background(), id, "2026-03-02"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(store.capKey(id, "2026-03-02")) {
		t.Fatalf("release without a reservation must not create a counter")
	}
}
