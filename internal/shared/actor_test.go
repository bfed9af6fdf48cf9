package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRole(t *testing.T) {
	for _, valid := range []string{"admin", "evm_staff", "dealer_manager", "dealer_staff", "customer"} {
		role, err := ParseRole(valid)
		require.NoError(t, err)
		assert.Equal(t, Role(valid), role)
	}

	_, err := ParseRole("ADMIN")
	assert.Error(t, err, "role parsing is strict, no case coercion")
	_, err = ParseRole("superuser")
	assert.Error(t, err)
}

func TestActorContextRoundTrip(t *testing.T) {
	actor := Actor{ID: 99, Role: RoleDealerManager}
	ctx := ContextWithActor(context.Background(), actor)
	assert.Equal(t, actor, ActorFromContext(ctx))

	// Missing actor resolves to the anonymous public customer.
	anon := ActorFromContext(context.Background())
	assert.Equal(t, RoleCustomer, anon.Role)
	assert.Zero(t, anon.ID)
}

func TestParseTrack(t *testing.T) {
	track, err := ParseTrack("dealer")
	require.NoError(t, err)
	assert.Equal(t, TrackDealer, track)

	_, err = ParseTrack("retail")
	assert.Error(t, err)
}
