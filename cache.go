package wirebot

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// BotCache is a process-wide map of bot id to its in-memory BotState,
// hydrated lazily from disk on first access and evicted when a bot leaves
// its conversation. Concurrent first accesses for the same bot id must
// hydrate exactly once - singleflight.Group gives that double-checked-
// insertion contract directly instead of a hand-rolled
// check/release-lock/build/re-check/insert dance.
type BotCache struct {
	states sync.Map // string -> *BotState
	group  singleflight.Group
}

func NewBotCache() *BotCache {
	return &BotCache{}
}

// GetOrHydrate returns the cached BotState for id, calling hydrate to load
// it from disk (or construct it fresh) if this is the first access.
// Concurrent callers for the same id block on the same hydrate call and
// share its result; callers for different ids never block each other.
func (c *BotCache) GetOrHydrate(id string, hydrate func() (*BotState, error)) (*BotState, error) {
	if v, ok := c.states.Load(id); ok {
		return v.(*BotState), nil
	}

	v, err, _ := c.group.Do(id, func() (any, error) {
		if v, ok := c.states.Load(id); ok {
			return v.(*BotState), nil
		}
		state, err := hydrate()
		if err != nil {
			return nil, err
		}
		c.states.Store(id, state)
		return state, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*BotState), nil
}

// Put inserts state directly, used by bot creation where the caller
// already has everything needed and hydration from disk would be wasted
// work.
func (c *BotCache) Put(id string, state *BotState) {
	c.states.Store(id, state)
}

// Evict drops id's cached state, e.g. when the bot is removed from its
// conversation. The next GetOrHydrate call for id rehydrates from disk.
func (c *BotCache) Evict(id string) {
	c.states.Delete(id)
}
