package storage

import (
	"context"
	"sync"
	"testing"
	"time"
)

func sampleSnapshot(instrument string) Snapshot {
	return Snapshot{
		RunID:       "run-1",
		Instrument:  instrument,
		GeneratedAt: time.Now().UTC(),
		Horizon:     5,
		Values:      []float64{101, 102, 103, 104, 105},
		Lower:       []float64{99, 99, 99, 99, 99},
		Upper:       []float64{107, 108, 109, 110, 111},
		BestOrder:   "(1,1,0)(0,1,1,5)",
		BestAIC:     412.7,
		MAPE:        1.8,
		Diagnostics: Diagnostics{
			ADFStatistic: -1.2,
			ADFPValue:    0.68,
			D:            1,
			SD:           1,
			S:            5,
			Observations: 1000,
		},
	}
}

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, found, err := store.GetLatest(ctx, "ACME"); err != nil || found {
		t.Fatalf("GetLatest on empty store = found=%v err=%v", found, err)
	}

	want := sampleSnapshot("ACME")
	if err := store.Put(ctx, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, found, err := store.GetLatest(ctx, "ACME")
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if !found {
		t.Fatal("snapshot not found after Put")
	}
	if got.RunID != want.RunID || got.BestOrder != want.BestOrder || got.MAPE != want.MAPE {
		t.Errorf("got %+v, want %+v", got, want)
	}

	// Replacement keeps only the latest.
	next := want
	next.RunID = "run-2"
	if err := store.Put(ctx, next); err != nil {
		t.Fatalf("Put replacement: %v", err)
	}
	got, _, _ = store.GetLatest(ctx, "ACME")
	if got.RunID != "run-2" {
		t.Errorf("RunID = %q, want run-2", got.RunID)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}
}

func TestMemoryStoreEmptyInstrument(t *testing.T) {
	store := NewMemoryStore()
	if err := store.Put(context.Background(), Snapshot{}); err == nil {
		t.Error("Put with empty instrument succeeded, want error")
	}
}

func TestMemoryStoreCanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, sampleSnapshot("ACME")); err == nil {
		t.Error("Put with canceled context succeeded, want error")
	}
	if _, _, err := store.GetLatest(ctx, "ACME"); err == nil {
		t.Error("GetLatest with canceled context succeeded, want error")
	}
}

func TestMemoryStoreTTLCleanup(t *testing.T) {
	store := NewMemoryStoreWithTTL(10*time.Millisecond, 5*time.Millisecond)
	defer store.Stop()

	stale := sampleSnapshot("ACME")
	stale.GeneratedAt = time.Now().Add(-time.Minute)
	if err := store.Put(context.Background(), stale); err != nil {
		t.Fatalf("Put: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("stale snapshot not cleaned up")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestMemoryStoreStopIdempotent(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Minute, time.Minute)
	store.Stop()
	store.Stop()

	NewMemoryStore().Stop()
}

func TestMemoryStoreConcurrency(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = store.Put(ctx, sampleSnapshot("ACME"))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _, _ = store.GetLatest(ctx, "ACME")
			}
		}()
	}
	wg.Wait()
}
