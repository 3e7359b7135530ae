package repository

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return mr, rdb
}

func TestOrderNumberRepoPublish(t *testing.T) {
	mr, rdb := newRedis(t)
	repo := NewOrderNumberRepo(rdb)
	ctx := context.Background()
	day := time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)

	first, err := repo.Publish(ctx, "118", day)
	require.NoError(t, err)
	second, err := repo.Publish(ctx, "118", day)
	require.NoError(t, err)
	other, err := repo.Publish(ctx, "101", day)
	require.NoError(t, err)

	assert.Equal(t, "118-261018-000001", first)
	assert.Equal(t, "118-261018-000002", second)
	assert.Equal(t, "101-261018-000001", other)
	assert.True(t, mr.TTL("orderNumber:118:261018") > 0)

	// 15:30 UTC is already the next business day in Tokyo
	late, err := repo.Publish(ctx, "118", time.Date(2026, 10, 18, 15, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "118-261019-000001", late)
}

func TestOrderNumberRepoUnavailable(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	_, err := NewOrderNumberRepo(rdb).Publish(context.Background(), "118", time.Now())
	assert.Equal(t, apperr.KindServiceUnavailable, apperr.KindOf(err))
}

func TestLockRepo(t *testing.T) {
	mr, rdb := newRedis(t)
	repo := NewLockRepo(rdb)
	ctx := context.Background()

	token, err := repo.Lock(ctx, "register:MB0001:pm-1", time.Minute)
	require.NoError(t, err)
	_, err = repo.Lock(ctx, "register:MB0001:pm-1", time.Minute)
	assert.Equal(t, apperr.KindAlreadyInUse, apperr.KindOf(err))

	// a stale token does not release somebody else's lock
	require.NoError(t, repo.Unlock(ctx, "register:MB0001:pm-1", "stale"))
	assert.True(t, mr.Exists("lock:register:MB0001:pm-1"))

	require.NoError(t, repo.Unlock(ctx, "register:MB0001:pm-1", token))
	assert.False(t, mr.Exists("lock:register:MB0001:pm-1"))

	_, err = repo.Lock(ctx, "register:MB0001:pm-1", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = repo.Lock(ctx, "register:MB0001:pm-1", time.Minute)
	assert.NoError(t, err, "an expired lock can be taken again")
}

func TestPassportCounterRepoIncr(t *testing.T) {
	mr, rdb := newRedis(t)
	repo := NewPassportCounterRepo(rdb)
	ctx := context.Background()
	window := time.Date(2026, 10, 18, 3, 0, 0, 0, time.UTC)

	for i := int64(1); i <= 3; i++ {
		n, err := repo.Incr(ctx, "placeOrderTransaction:seller-1", window, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, err := repo.Incr(ctx, "placeOrderTransaction:seller-1", window.Add(time.Minute), time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	mr.FastForward(3 * time.Minute)
	assert.False(t, mr.Exists("passport:placeOrderTransaction:seller-1:"+strconv.FormatInt(window.Unix(), 10)))
}
