package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-ticket-order/internal/apperr"
)

// jst is the business day zone of the theaters; order numbers roll over at
// local midnight.
var jst = time.FixedZone("Asia/Tokyo", 9*60*60)

// OrderNumberRepo issues order numbers from a Redis counter scoped by seller
// branch and business day. INCR never hands out the same value twice.
type OrderNumberRepo struct{ RDB *redis.Client }

func NewOrderNumberRepo(rdb *redis.Client) *OrderNumberRepo { return &OrderNumberRepo{RDB: rdb} }

// Publish returns the next order number, formatted
// "<branch>-<yymmdd>-<6 digit sequence>".
func (r *OrderNumberRepo) Publish(ctx context.Context, branchCode string, orderDate time.Time) (string, error) {
	day := orderDate.In(jst).Format("060102")
	key := fmt.Sprintf("orderNumber:%s:%s", branchCode, day)
	n, err := r.RDB.Incr(ctx, key).Result()
	if err != nil {
		return "", apperr.ServiceUnavailable(err, "publish order number")
	}
	if n == 1 {
		// the counter is only needed for the day it counts
		_ = r.RDB.Expire(ctx, key, 48*time.Hour).Err()
	}
	return fmt.Sprintf("%s-%s-%06d", branchCode, day, n), nil
}

// unlockScript deletes the lock only if it still holds our token.
var unlockScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// LockRepo is an advisory lock on Redis. A lock expires after its ttl, so a
// crashed holder cannot keep it forever.
type LockRepo struct {
	RDB    *redis.Client
	Prefix string
}

func NewLockRepo(rdb *redis.Client) *LockRepo { return &LockRepo{RDB: rdb, Prefix: "lock"} }

// Lock takes key and returns the token needed to release it. A held lock
// is reported as AlreadyInUse.
func (r *LockRepo) Lock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	ok, err := r.RDB.SetNX(ctx, r.Prefix+":"+key, token, ttl).Result()
	if err != nil {
		return "", apperr.ServiceUnavailable(err, "acquire lock")
	}
	if !ok {
		return "", apperr.AlreadyInUse("lock", "%s is locked by another request", key)
	}
	return token, nil
}

// Unlock releases key if token still owns it.
func (r *LockRepo) Unlock(ctx context.Context, key, token string) error {
	return unlockScript.Run(ctx, r.RDB, []string{r.Prefix + ":" + key}, token).Err()
}

// PassportCounterRepo counts passports issued per scope and time window.
type PassportCounterRepo struct{ RDB *redis.Client }

func NewPassportCounterRepo(rdb *redis.Client) *PassportCounterRepo {
	return &PassportCounterRepo{RDB: rdb}
}

// Incr counts one more passport for scope in the window starting at
// windowStart and returns the new count.
func (r *PassportCounterRepo) Incr(ctx context.Context, scope string, windowStart time.Time, unit time.Duration) (int64, error) {
	key := fmt.Sprintf("passport:%s:%d", scope, windowStart.Unix())
	pipe := r.RDB.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, unit+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, apperr.ServiceUnavailable(err, "count passport")
	}
	return incr.Val(), nil
}
