package shipping

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/instance"
)

const (
	defaultCartLockTTL  = 30 * time.Second
	defaultCartLockWait = 10 * time.Second
	cartLockPoll        = 25 * time.Millisecond
)

// CartLocker serializes selections for one cart across API instances.
type CartLocker interface {
	Lock(ctx context.Context, cartID string) (release func(context.Context) error, err error)
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	CheckoutKey(scope, kind string) string
}

// RedisCartLock is a per-cart SETNX lock. Waiters poll until the holder releases it,
// the TTL expires or the wait budget runs out.
type RedisCartLock struct {
	store lockStore
	ttl   time.Duration
	wait  time.Duration
}

func NewRedisCartLock(store lockStore, ttl, wait time.Duration) *RedisCartLock {
	if ttl <= 0 {
		ttl = defaultCartLockTTL
	}
	if wait <= 0 {
		wait = defaultCartLockWait
	}
	return &RedisCartLock{store: store, ttl: ttl, wait: wait}
}

func (l *RedisCartLock) Lock(ctx context.Context, cartID string) (func(context.Context) error, error) {
	key := l.store.CheckoutKey(cartID, "shipping_lock")
	owner := instance.ID() + ":" + uuid.NewString()

	waitCtx, cancel := context.WithTimeout(ctx, l.wait)
	defer cancel()
	ticker := time.NewTicker(cartLockPoll)
	defer ticker.Stop()

	for {
		ok, err := l.store.SetNX(waitCtx, key, owner, l.ttl)
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return nil, busy()
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("setnx %s: %w", key, err), "lock cart shipping")
		}
		if ok {
			return func(releaseCtx context.Context) error {
				if _, err := l.store.DelIfValue(context.WithoutCancel(releaseCtx), key, owner); err != nil {
					return fmt.Errorf("release %s: %w", key, err)
				}
				return nil
			}, nil
		}
		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, busy()
		case <-ticker.C:
		}
	}
}

func busy() error {
	return pkgerrors.New(pkgerrors.CodeConflict, "another shipping selection for this cart is in progress")
}
