package cache

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"companion_gateway/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

var (
	// ErrQuorumNotReached means the lock could not be taken on a majority
	// of nodes within the configured retries.
	ErrQuorumNotReached = errors.New("redlock: quorum not reached")
	// ErrLockExpired means the extend CAS found the lock no longer owned.
	ErrLockExpired = errors.New("redlock: lock expired")
)

const lockTokenLen = 22

const lockTokenChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// unlockScript deletes the key only while we still own it.
const unlockScript = `if redis.call("get",KEYS[1]) == ARGV[1] then
    return redis.call("del",KEYS[1])
else
    return 0
end`

// extendScript refreshes the expiry only while we still own it.
const extendScript = `if redis.call("get",KEYS[1]) == ARGV[1] then
    return redis.call("pexpire",KEYS[1],ARGV[2])
else
    return 0
end`

// Lock is an acquired distributed lock. Validity is the time the caller can
// rely on before the nodes may expire the entry.
type Lock struct {
	Resource string
	Value    string
	Validity time.Duration
}

// Redlock is a Redlock-style mutex over one or more redis nodes. With a
// single node it degrades to a plain SET NX PX lock.
type Redlock struct {
	servers    []*redis.Client
	quorum     int
	retryCount int
	retryDelay time.Duration
}

func NewRedlock(servers []*redis.Client) *Redlock {
	return &Redlock{
		servers:    servers,
		quorum:     len(servers)/2 + 1,
		retryCount: 3,
		retryDelay: 200 * time.Millisecond,
	}
}

func newLockToken() string {
	b := make([]byte, lockTokenLen)
	for i := range b {
		b[i] = lockTokenChars[rand.Intn(len(lockTokenChars))]
	}
	return string(b)
}

// Acquire takes the lock on resource for ttl. It writes SET NX PX on every
// node, requires quorum, and subtracts elapsed time plus clock drift from
// the ttl; a non-positive remainder counts as failure. Failed rounds release
// best-effort and retry up to retryCount times.
func (r *Redlock) Acquire(ctx context.Context, resource string, ttl time.Duration) (*Lock, error) {
	val := newLockToken()
	// 1% of ttl plus 2ms covers redis expiry precision and small ttls.
	drift := ttl/100 + 2*time.Millisecond

	for attempt := 0; attempt < r.retryCount; attempt++ {
		n := 0
		start := time.Now()
		for _, srv := range r.servers {
			ok, err := srv.SetNX(ctx, resource, val, ttl).Result()
			if err != nil {
				logger.Error("redlock node write failed", "resource", resource, "error", err)
				continue
			}
			if ok {
				n++
			}
		}
		elapsed := time.Since(start)

		validity := ttl - elapsed - drift
		if validity > 0 && n >= r.quorum {
			return &Lock{Resource: resource, Value: val, Validity: validity}, nil
		}

		for _, srv := range r.servers {
			_ = srv.Eval(ctx, unlockScript, []string{resource}, val).Err()
		}
		if attempt < r.retryCount-1 {
			select {
			case <-time.After(r.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, ErrQuorumNotReached
}

// Release gives the lock back on every node, best effort.
func (r *Redlock) Release(ctx context.Context, lock *Lock) error {
	var firstErr error
	for _, srv := range r.servers {
		if err := srv.Eval(ctx, unlockScript, []string{lock.Resource}, lock.Value).Err(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		logger.Error("redlock release failed", "resource", lock.Resource, "error", firstErr)
	}
	return firstErr
}

// Extend refreshes the lock's ttl on every node. It fails with
// ErrLockExpired when fewer than quorum nodes still held our token.
func (r *Redlock) Extend(ctx context.Context, lock *Lock, ttl time.Duration) error {
	n := 0
	for _, srv := range r.servers {
		res, err := srv.Eval(ctx, extendScript, []string{lock.Resource}, lock.Value, ttl.Milliseconds()).Int64()
		if err != nil {
			logger.Error("redlock extend failed", "resource", lock.Resource, "error", err)
			continue
		}
		if res == 1 {
			n++
		}
	}
	if n < r.quorum {
		return ErrLockExpired
	}
	return nil
}
