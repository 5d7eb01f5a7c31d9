package caching

import (
	"context"
	"sync"
	"time"
)

// DebounceGate collapses repeated revalidation work for the same entity.
// Admit returns the subset of targets not yet handled for id inside the
// current window and records them as handled. The window opens on the first
// admitted call for id and is not extended by later calls.
type DebounceGate interface {
	Admit(ctx context.Context, id int64, targets []string) ([]string, error)
}

type gateEntry struct {
	expires time.Time
	handled map[string]struct{}
}

// MemoryGate is a per-process DebounceGate. Expired entries are ignored by
// Admit and dropped by Sweep.
type MemoryGate struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[int64]*gateEntry
	now     func() time.Time
}

// NewMemoryGate creates a gate. A window <= 0 admits everything.
func NewMemoryGate(window time.Duration) *MemoryGate {
	return &MemoryGate{
		window:  window,
		entries: make(map[int64]*gateEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (g *MemoryGate) WithClock(now func() time.Time) *MemoryGate {
	g.now = now
	return g
}

func (g *MemoryGate) Admit(_ context.Context, id int64, targets []string) ([]string, error) {
	if g.window <= 0 {
		return dedupe(targets), nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	entry, exists := g.entries[id]
	if !exists || !now.Before(entry.expires) {
		entry = &gateEntry{expires: now.Add(g.window), handled: make(map[string]struct{})}
		g.entries[id] = entry
	}

	admitted := make([]string, 0, len(targets))
	for _, target := range targets {
		if _, done := entry.handled[target]; done {
			continue
		}
		entry.handled[target] = struct{}{}
		admitted = append(admitted, target)
	}
	return admitted, nil
}

// Sweep drops expired entries and returns how many were removed.
func (g *MemoryGate) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	removed := 0
	for id, entry := range g.entries {
		if !now.Before(entry.expires) {
			delete(g.entries, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of open windows, expired ones included.
func (g *MemoryGate) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}

func dedupe(targets []string) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, target := range targets {
		if _, ok := seen[target]; ok {
			continue
		}
		seen[target] = struct{}{}
		out = append(out, target)
	}
	return out
}
