package locks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"

	"tickio/internal/logger"
)

// Locks serializes checkout against a set of ticket types. Each ticket type
// gets its own Redis key so unrelated checkouts never contend. Lock values
// carry an owner token so only the acquirer can release, and the TTL bounds
// how long a crashed checkout can block others.
type Locks struct {
	Client     *redis.Client
	TTL        time.Duration
	Retries    int
	RetryDelay time.Duration
	Logger     *logger.Logger
}

func NewLocks(client *redis.Client, ttl time.Duration, retries int, retryDelay time.Duration, log *logger.Logger) *Locks {
	return &Locks{
		Client:     client,
		TTL:        ttl,
		Retries:    retries,
		RetryDelay: retryDelay,
		Logger:     log,
	}
}

func lockKey(ticketTypeID string) string {
	return "inventory_lock:" + ticketTypeID
}

func (l *Locks) acquireOne(ctx context.Context, ticketTypeID, token string) (bool, error) {
	ok, err := l.Client.SetNX(ctx, lockKey(ticketTypeID), token, l.TTL).Result()
	if err != nil || ok {
		return ok, err
	}
	for i := 0; i < l.Retries; i++ {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(l.RetryDelay):
		}
		ok, err = l.Client.SetNX(ctx, lockKey(ticketTypeID), token, l.TTL).Result()
		if err != nil || ok {
			return ok, err
		}
	}
	return false, nil
}

func (l *Locks) releaseOne(ctx context.Context, ticketTypeID, token string) error {
	key := lockKey(ticketTypeID)
	val, err := l.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	// Never delete a lock held by someone else, the TTL may have expired
	// our own acquisition mid-flight.
	if val == token {
		_, err = l.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// Acquire locks every ticket type in the cart, always in ascending id order
// so two overlapping carts cannot deadlock each other. On any failure the
// locks already taken are released before returning.
func (l *Locks) Acquire(ctx context.Context, ticketTypeIDs []string, token string) (bool, error) {
	ids := append([]string(nil), ticketTypeIDs...)
	sort.Strings(ids)

	acquired := []string{}
	for _, id := range ids {
		ok, err := l.acquireOne(ctx, id, token)
		if err != nil || !ok {
			for _, held := range acquired {
				_ = l.releaseOne(ctx, held, token)
			}
			if err != nil {
				return false, err
			}
			l.Logger.Warn("LOCKS", fmt.Sprintf("Contention on ticket type %s, giving up after %d retries", id, l.Retries))
			return false, nil
		}
		acquired = append(acquired, id)
	}
	return true, nil
}

// Release frees all locks owned by token. Errors are collected so one bad
// key does not strand the rest.
func (l *Locks) Release(ctx context.Context, ticketTypeIDs []string, token string) error {
	var firstErr error
	for _, id := range ticketTypeIDs {
		if err := l.releaseOne(ctx, id, token); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
