package stats

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestGet_CachesWithinTTL(t *testing.T) {
	cache := NewCache[int](time.Minute, false)
	var calls atomic.Int32
	compute := func() (int, error) {
		calls.Add(1)
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.Get(context.Background(), "answer", compute)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != 42 {
			t.Fatalf("got %d, want 42", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
}

func TestGet_ConcurrentCallersShareOneComputation(t *testing.T) {
	cache := NewCache[int](time.Minute, false)
	var calls atomic.Int32
	compute := func() (int, error) {
		calls.Add(1)
		time.Sleep(50 * time.Millisecond)
		return 7, nil
	}

	const k = 8
	var wg sync.WaitGroup
	results := make([]int, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := cache.Get(context.Background(), "k", compute)
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
	for i, v := range results {
		if v != 7 {
			t.Errorf("caller %d got %d, want 7", i, v)
		}
	}
}

func TestGet_RecomputesAfterTTL(t *testing.T) {
	cache := NewCache[int](30*time.Millisecond, false)
	var calls atomic.Int32
	compute := func() (int, error) {
		time.Sleep(10 * time.Millisecond)
		return int(calls.Add(1)), nil
	}

	if _, err := cache.Get(context.Background(), "k", compute); err != nil {
		t.Fatalf("Get: %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	// Every caller sees a stale entry, yet only one new computation runs.
	const k = 6
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Get(context.Background(), "k", compute); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := calls.Load(); n != 2 {
		t.Errorf("compute ran %d times, want 2", n)
	}
}

func TestGet_DisabledComputesEveryTime(t *testing.T) {
	cache := NewCache[int](time.Minute, true)
	var calls atomic.Int32
	compute := func() (int, error) {
		return int(calls.Add(1)), nil
	}

	for want := 1; want <= 3; want++ {
		got, err := cache.Get(context.Background(), "k", compute)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	}
}

func TestGet_FailureNotCached(t *testing.T) {
	cache := NewCache[int](time.Minute, false)
	boom := errors.New("aggregate failed")
	var calls atomic.Int32
	compute := func() (int, error) {
		if calls.Add(1) == 1 {
			return 0, boom
		}
		return 99, nil
	}

	if _, err := cache.Get(context.Background(), "k", compute); !errors.Is(err, boom) {
		t.Fatalf("first Get error = %v, want %v", err, boom)
	}
	got, err := cache.Get(context.Background(), "k", compute)
	if err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if got != 99 {
		t.Errorf("got %d, want 99", got)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("compute ran %d times, want 2", n)
	}
}

func TestGet_ConcurrentAwaitersShareFailure(t *testing.T) {
	cache := NewCache[int](time.Minute, false)
	boom := errors.New("aggregate failed")
	var calls atomic.Int32
	compute := func() (int, error) {
		calls.Add(1)
		time.Sleep(40 * time.Millisecond)
		return 0, boom
	}

	const k = 5
	errs := make(chan error, k)
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), "k", compute)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	if n := calls.Load(); n != 1 {
		t.Errorf("compute ran %d times, want 1", n)
	}
	for err := range errs {
		if !errors.Is(err, boom) {
			t.Errorf("awaiter error = %v, want %v", err, boom)
		}
	}
}

func TestGet_ContextBoundsTheWait(t *testing.T) {
	cache := NewCache[int](time.Minute, false)
	compute := func() (int, error) {
		time.Sleep(300 * time.Millisecond)
		return 1, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := cache.Get(ctx, "slow", compute)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Get error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("Get blocked for %v, want an early return", elapsed)
	}
}

func TestInvalidate(t *testing.T) {
	cache := NewCache[int](time.Minute, false)
	var calls atomic.Int32
	compute := func() (int, error) {
		return int(calls.Add(1)), nil
	}

	if _, err := cache.Get(context.Background(), "k", compute); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cache.Invalidate("k")
	got, err := cache.Get(context.Background(), "k", compute)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 2 {
		t.Errorf("got %d, want recomputed value 2", got)
	}
}

func TestInvalidateAll(t *testing.T) {
	cache := NewCache[string](time.Minute, false)
	compute := func(v string) func() (string, error) {
		return func() (string, error) { return v, nil }
	}

	if _, err := cache.Get(context.Background(), "a", compute("a1")); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := cache.Get(context.Background(), "b", compute("b1")); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cache.InvalidateAll()

	got, err := cache.Get(context.Background(), "a", compute("a2"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "a2" {
		t.Errorf("got %q, want fresh %q", got, "a2")
	}
}
