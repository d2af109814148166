package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ErlanBelekov/agentgate/internal/domain"
	"github.com/ErlanBelekov/agentgate/internal/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// mapRedis serves the handful of commands RedisBackend issues from a map
// and records the expiry last applied to each key.
type mapRedis struct {
	redis.Cmdable

	mu   sync.Mutex
	vals map[string]string
	ttls map[string]time.Duration
}

func newMapRedis() *mapRedis {
	return &mapRedis{vals: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *mapRedis) Get(_ context.Context, key string) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mapRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[key] = fmt.Sprint(value)
	m.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mapRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := m.vals[k]; ok {
			delete(m.vals, k)
			delete(m.ttls, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (m *mapRedis) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.vals[key]; !ok {
		return redis.NewBoolResult(false, nil)
	}
	m.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (m *mapRedis) decay(to time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.ttls {
		m.ttls[k] = to
	}
}

func TestRedisBackend_KeysAreScopedBySession(t *testing.T) {
	ctx := context.Background()
	rdb := newMapRedis()
	p := session.NewRedisProvider(rdb, "", time.Hour)

	require.NoError(t, session.Open(p.Backend("sid-1"), discard).Save(ctx, domain.Session{AccessToken: "tok"}))

	require.Equal(t, "tok", rdb.vals["agentgate:sess:sid-1:access_token"])
	_, ok := session.Open(p.Backend("sid-2"), discard).Load(ctx)
	require.False(t, ok)
}

func TestRedisBackend_ReadSlidesWholeSession(t *testing.T) {
	ctx := context.Background()
	rdb := newMapRedis()
	p := session.NewRedisProvider(rdb, "", time.Hour)
	store := session.Open(p.Backend("sid"), discard)

	require.NoError(t, store.Save(ctx, domain.Session{AccessToken: "tok", UserScope: "sc"}))
	require.NoError(t, store.SaveLink(ctx, domain.AgentLink{SignedURL: "https://agent/abc"}))

	rdb.decay(time.Second)
	require.True(t, store.Authenticated(ctx))

	for _, k := range []string{session.KeyAccessToken, session.KeyTokenType, session.KeyUserScope, session.KeyAgentLink} {
		require.Equal(t, time.Hour, rdb.ttls["agentgate:sess:sid:"+k], k)
	}
}

func TestRedisBackend_ClearRemovesAllSlots(t *testing.T) {
	ctx := context.Background()
	rdb := newMapRedis()
	store := session.Open(session.NewRedisProvider(rdb, "p:", time.Hour).Backend("sid"), discard)

	require.NoError(t, store.Save(ctx, domain.Session{AccessToken: "tok"}))
	require.NoError(t, store.SaveLink(ctx, domain.AgentLink{SignedURL: "https://agent/abc"}))
	require.NoError(t, store.Clear(ctx))

	require.Empty(t, rdb.vals)
}
