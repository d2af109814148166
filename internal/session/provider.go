package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/metrics"
)

// Provider returns the slot backend of one browser session.
type Provider interface {
	Backend(sid string) Backend
}

type memoryEntry struct {
	backend  *MemoryBackend
	lastSeen time.Time
}

// MemoryProvider keeps one MemoryBackend per browser session. Idle entries
// are removed by a Reaper.
type MemoryProvider struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (p *MemoryProvider) Backend(sid string) Backend {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[sid]
	if !ok {
		e = &memoryEntry{backend: NewMemoryBackend()}
		p.entries[sid] = e
	}
	e.lastSeen = p.now()
	return &trackedBackend{MemoryBackend: e.backend, sid: sid, provider: p}
}

// touch marks sid as used through backend. A backend whose entry was
// reaped while still held is adopted back, unless a newer backend took its
// place.
func (p *MemoryProvider) touch(sid string, backend *MemoryBackend) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[sid]
	switch {
	case !ok:
		p.entries[sid] = &memoryEntry{backend: backend, lastSeen: p.now()}
	case e.backend == backend:
		e.lastSeen = p.now()
	}
}

// trackedBackend keeps its session alive on every access.
type trackedBackend struct {
	*MemoryBackend
	sid      string
	provider *MemoryProvider
}

func (b *trackedBackend) Get(ctx context.Context, key string) (string, bool, error) {
	b.provider.touch(b.sid, b.MemoryBackend)
	return b.MemoryBackend.Get(ctx, key)
}

func (b *trackedBackend) Set(ctx context.Context, key, value string) error {
	b.provider.touch(b.sid, b.MemoryBackend)
	return b.MemoryBackend.Set(ctx, key, value)
}

func (b *trackedBackend) Delete(ctx context.Context, keys ...string) error {
	b.provider.touch(b.sid, b.MemoryBackend)
	return b.MemoryBackend.Delete(ctx, keys...)
}

// Len reports the number of live browser sessions.
func (p *MemoryProvider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// evictIdle drops sessions not touched since cutoff.
func (p *MemoryProvider) evictIdle(cutoff time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := 0
	for sid, e := range p.entries {
		if e.lastSeen.Before(cutoff) {
			delete(p.entries, sid)
			n++
		}
	}
	return n
}

// Reaper periodically evicts idle in-memory sessions.
type Reaper struct {
	provider *MemoryProvider
	logger   *slog.Logger
	interval time.Duration
	idleTTL  time.Duration
}

func NewReaper(provider *MemoryProvider, logger *slog.Logger, interval, idleTTL time.Duration) *Reaper {
	return &Reaper{
		provider: provider,
		logger:   logger.With("component", "session_reaper"),
		interval: interval,
		idleTTL:  idleTTL,
	}
}

func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("reaper started", "interval", r.interval, "idle_ttl", r.idleTTL)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reaper shut down")
			return
		case <-ticker.C:
			r.reap()
		}
	}
}

func (r *Reaper) reap() {
	evicted := r.provider.evictIdle(r.provider.now().Add(-r.idleTTL))
	if evicted > 0 {
		metrics.SessionsEvictedTotal.Add(float64(evicted))
		r.logger.Info("evicted idle sessions", "count", evicted, "remaining", r.provider.Len())
	}
}
