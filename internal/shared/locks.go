package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// EntityLockKey builds redis keys for per-entity critical sections.
func EntityLockKey(entity string, id int64) string {
	return fmt.Sprintf("wf:%s:%d:lock", entity, id)
}

// releaseScript deletes the lock only when the caller still owns it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// EntityLocker serializes mutating commands per entity id using
// short-lived redis locks. Commands that lose the race observe
// ErrLockHeld instead of double-applying a transition.
type EntityLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewEntityLocker constructs an EntityLocker.
func NewEntityLocker(client *redis.Client, ttl time.Duration) *EntityLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &EntityLocker{client: client, ttl: ttl}
}

// Acquire takes the lock for entity/id and returns a release func.
// Returns ErrLockHeld when another command holds the lock.
func (l *EntityLocker) Acquire(ctx context.Context, entity string, id int64) (func(), error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}
	key := EntityLockKey(entity, id)
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("shared: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLockHeld, key)
	}
	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, nil
}
