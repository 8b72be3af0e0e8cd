package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lexpertease/internal/logging"
	"lexpertease/internal/model"
	"lexpertease/internal/repository/memory"
)

func TestPurge(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	now := time.Now()

	require.NoError(t, store.Sessions().Create(ctx, &model.Session{UserID: "u1", Token: "old", Type: model.SessionRefresh, ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.Sessions().Create(ctx, &model.Session{UserID: "u1", Token: "live", Type: model.SessionRefresh, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.PasswordResets().Create(ctx, &model.PasswordReset{UserID: "u1", Token: "expired", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, store.PasswordResets().Create(ctx, &model.PasswordReset{UserID: "u1", Token: "used", ExpiresAt: now.Add(time.Hour), IsUsed: true}))
	require.NoError(t, store.PasswordResets().Create(ctx, &model.PasswordReset{UserID: "u1", Token: "fresh", ExpiresAt: now.Add(time.Hour)}))

	require.NoError(t, purge(ctx, store, now, logging.Discard()))

	sessions := store.SessionsFor("u1")
	require.Len(t, sessions, 1)
	assert.Equal(t, "live", sessions[0].Token)

	resets := store.ResetsFor("u1")
	require.Len(t, resets, 1)
	assert.Equal(t, "fresh", resets[0].Token)
}
