package idempotency

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestInMemoryRepository_StoreAndGet(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	rec := &Record{
		Key:                ScopedKey("u1", "k1"),
		UserID:             "u1",
		Method:             "POST",
		Route:              "/requirements",
		Status:             StatusCompleted,
		ResponseBody:       `{"sessionId":"s"}`,
		ResponseStatusCode: 201,
	}
	if err := repo.Store(ctx, rec); err != nil {
		t.Fatalf("Store() error = %v", err)
	}
	if rec.CreatedAt.IsZero() {
		t.Error("Store() should set CreatedAt")
	}

	got, err := repo.Get(ctx, rec.Key)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ResponseStatusCode != 201 || got.ResponseBody != rec.ResponseBody {
		t.Errorf("Get() = %+v", got)
	}

	got.ResponseBody = "mutated"
	again, _ := repo.Get(ctx, rec.Key)
	if again.ResponseBody == "mutated" {
		t.Error("Get() should return a copy")
	}

	if err := repo.Store(ctx, &Record{Key: rec.Key}); err != ErrKeyExists {
		t.Errorf("duplicate Store() error = %v, want ErrKeyExists", err)
	}
	if _, err := repo.Get(ctx, ScopedKey("u2", "k1")); err != ErrKeyNotFound {
		t.Errorf("other user's key error = %v, want ErrKeyNotFound", err)
	}
	if err := repo.Store(ctx, &Record{}); err != ErrInvalidKey {
		t.Errorf("empty key error = %v, want ErrInvalidKey", err)
	}
}

func TestInMemoryRepository_Concurrent(t *testing.T) {
	repo := NewInMemoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	stored := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := repo.Store(ctx, &Record{Key: "same", ResponseBody: fmt.Sprint(i)})
			if err == nil {
				mu.Lock()
				stored++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if stored != 1 {
		t.Errorf("expected exactly one successful store, got %d", stored)
	}
}
