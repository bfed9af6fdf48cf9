package shared

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T) *EntityLocker {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewEntityLocker(client, 5*time.Second)
}

func TestEntityLockerSerializesPerID(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "dealer_order", 42)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "dealer_order", 42)
	assert.ErrorIs(t, err, ErrLockHeld)

	// A different entity id is independent.
	release2, err := locker.Acquire(ctx, "dealer_order", 43)
	require.NoError(t, err)
	release2()

	release()

	release3, err := locker.Acquire(ctx, "dealer_order", 42)
	require.NoError(t, err)
	release3()
}

func TestEntityLockerReleaseIsScopedToOwner(t *testing.T) {
	locker := newTestLocker(t)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "quotation", 7)
	require.NoError(t, err)
	release()
	// Double release must not panic or delete a lock taken afterwards.
	release2, err := locker.Acquire(ctx, "quotation", 7)
	require.NoError(t, err)
	release()
	_, err = locker.Acquire(ctx, "quotation", 7)
	assert.ErrorIs(t, err, ErrLockHeld)
	release2()
}

func TestEntityLockerNilClientIsNoop(t *testing.T) {
	var locker *EntityLocker
	release, err := locker.Acquire(context.Background(), "invoice", 1)
	require.NoError(t, err)
	release()
}
