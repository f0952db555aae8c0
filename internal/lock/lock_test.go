package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

func TestMemoryClaimExcludesSecondCaller(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	release, err := m.Claim(context.Background(), "a1", time.Minute)
	require.NoError(t, err)

	_, err = m.Claim(context.Background(), "a1", time.Minute)
	require.ErrorIs(t, err, article.ErrInProgress)

	other, err := m.Claim(context.Background(), "a2", time.Minute)
	require.NoError(t, err)
	other()

	release()
	release()

	again, err := m.Claim(context.Background(), "a1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestMemoryClaimExpires(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	stale, err := m.Claim(context.Background(), "a1", time.Second)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	fresh, err := m.Claim(context.Background(), "a1", time.Minute)
	require.NoError(t, err)

	// The stale holder must not drop the new claim.
	stale()
	_, err = m.Claim(context.Background(), "a1", time.Minute)
	require.ErrorIs(t, err, article.ErrInProgress)
	fresh()
}

func TestMemoryClaimConcurrent(t *testing.T) {
	t.Parallel()

	m := NewMemory()
	var (
		wg      sync.WaitGroup
		granted atomic.Int32
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Claim(context.Background(), "same", time.Minute); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), granted.Load())
}

func newRedisClaimer(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, "test:claim:", zap.NewNop()), mr
}

func TestRedisClaimAndRelease(t *testing.T) {
	t.Parallel()

	r, mr := newRedisClaimer(t)
	ctx := context.Background()

	release, err := r.Claim(ctx, "a1", time.Minute)
	require.NoError(t, err)
	assert.True(t, mr.Exists("test:claim:a1"))
	assert.Equal(t, time.Minute, mr.TTL("test:claim:a1"))

	_, err = r.Claim(ctx, "a1", time.Minute)
	require.ErrorIs(t, err, article.ErrInProgress)

	release()
	assert.False(t, mr.Exists("test:claim:a1"))

	again, err := r.Claim(ctx, "a1", time.Minute)
	require.NoError(t, err)
	again()
}

func TestRedisReleaseKeepsForeignClaim(t *testing.T) {
	t.Parallel()

	r, mr := newRedisClaimer(t)
	ctx := context.Background()

	stale, err := r.Claim(ctx, "a1", time.Second)
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)
	fresh, err := r.Claim(ctx, "a1", time.Minute)
	require.NoError(t, err)

	stale()
	assert.True(t, mr.Exists("test:claim:a1"))

	fresh()
	assert.False(t, mr.Exists("test:claim:a1"))
}

func TestRedisClaimServerDown(t *testing.T) {
	t.Parallel()

	r, mr := newRedisClaimer(t)
	mr.Close()

	_, err := r.Claim(context.Background(), "a1", time.Minute)
	require.Error(t, err)
	assert.NotErrorIs(t, err, article.ErrInProgress)
}

func TestDial(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	r, err := Dial(context.Background(), "redis://"+mr.Addr()+"/0", "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	assert.Equal(t, defaultKeyPrefix, r.prefix)

	_, err = Dial(context.Background(), "not a url", "", nil)
	require.Error(t, err)
}
