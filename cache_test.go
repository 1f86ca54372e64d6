package wirebot

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetOrHydrateCallsHydrateOnce(t *testing.T) {
	cache := NewBotCache()
	var calls int32

	hydrate := func() (*BotState, error) {
		atomic.AddInt32(&calls, 1)
		return NewBotState("bot-1", "client-1", "tok", nil, nil, nil), nil
	}

	var wg sync.WaitGroup
	results := make([]*BotState, 10)
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			state, err := cache.GetOrHydrate("bot-1", hydrate)
			if err != nil {
				t.Errorf("GetOrHydrate: %v", err)
				return
			}
			results[i] = state
		}()
	}
	wg.Wait()

	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("hydrate called %d times, want 1", calls)
	}
	for i, r := range results {
		if r != results[0] {
			t.Fatalf("result %d differs from result 0: concurrent callers must share one BotState", i)
		}
	}
}

func TestGetOrHydratePropagatesError(t *testing.T) {
	cache := NewBotCache()
	wantErr := errors.New("disk fault")

	_, err := cache.GetOrHydrate("bot-2", func() (*BotState, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got error %v, want %v", err, wantErr)
	}

	// A failed hydration must not be cached - the next call retries.
	var called bool
	_, err = cache.GetOrHydrate("bot-2", func() (*BotState, error) {
		called = true
		return NewBotState("bot-2", "client-2", "tok", nil, nil, nil), nil
	})
	if err != nil {
		t.Fatalf("second GetOrHydrate: %v", err)
	}
	if !called {
		t.Fatal("expected hydrate to be retried after a prior failure")
	}
}

func TestPutBypassesHydration(t *testing.T) {
	cache := NewBotCache()
	state := NewBotState("bot-3", "client-3", "tok", nil, nil, nil)
	cache.Put("bot-3", state)

	got, err := cache.GetOrHydrate("bot-3", func() (*BotState, error) {
		t.Fatal("hydrate should not be called for a state already Put")
		return nil, nil
	})
	if err != nil {
		t.Fatalf("GetOrHydrate: %v", err)
	}
	if got != state {
		t.Fatal("expected the Put state to be returned as-is")
	}
}

func TestEvictForcesRehydration(t *testing.T) {
	cache := NewBotCache()
	first := NewBotState("bot-4", "client-4", "tok", nil, nil, nil)
	cache.Put("bot-4", first)
	cache.Evict("bot-4")

	var called bool
	second := NewBotState("bot-4", "client-4", "tok", nil, nil, nil)
	got, err := cache.GetOrHydrate("bot-4", func() (*BotState, error) {
		called = true
		return second, nil
	})
	if err != nil {
		t.Fatalf("GetOrHydrate: %v", err)
	}
	if !called || got != second {
		t.Fatal("expected Evict to force a fresh hydrate")
	}
}
