package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpertease/internal/model"
)

func TestHashAndCompare(t *testing.T) {
	hash, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)

	assert.True(t, ComparePassword(hash, "s3cret-pass"))
	assert.False(t, ComparePassword(hash, "wrong"))
	assert.False(t, ComparePassword("not-a-hash", "s3cret-pass"))

	BurnCompare("anything")
}

func TestNewResetToken(t *testing.T) {
	a, err := NewResetToken()
	require.NoError(t, err)
	b, err := NewResetToken()
	require.NoError(t, err)

	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}

func TestIdentityContext(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), &Identity{})
	_, ok = IdentityFromContext(ctx)
	assert.False(t, ok, "identity without a user is anonymous")

	ctx = WithIdentity(context.Background(), &Identity{User: &model.User{ID: "u1", Role: model.RoleAdmin}})
	id, ok := IdentityFromContext(ctx)
	require.True(t, ok)
	assert.True(t, id.IsAdmin())

	var nilID *Identity
	assert.False(t, nilID.IsAdmin())
}
