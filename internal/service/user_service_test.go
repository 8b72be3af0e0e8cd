package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lexpertease/internal/errors"
	"lexpertease/internal/logging"
	"lexpertease/internal/model"
	"lexpertease/internal/repository/memory"
)

func TestUserService_SetRole(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	admin := &model.User{Email: "admin@example.com", Role: model.RoleAdmin}
	client := &model.User{Email: "client@example.com"}
	require.NoError(t, store.Users().Create(ctx, admin))
	require.NoError(t, store.Users().Create(ctx, client))

	svc := NewUserService(store.Users(), logging.Discard())

	tests := []struct {
		name     string
		actorID  string
		userID   string
		role     model.Role
		wantKind apperrors.Kind
	}{
		{name: "promote client", actorID: admin.ID, userID: client.ID, role: model.RoleAdmin},
		{name: "unknown role", actorID: admin.ID, userID: client.ID, role: "owner", wantKind: apperrors.KindValidation},
		{name: "own role", actorID: admin.ID, userID: admin.ID, role: model.RoleClient, wantKind: apperrors.KindForbidden},
		{name: "missing user", actorID: admin.ID, userID: "missing", role: model.RoleAdmin, wantKind: apperrors.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := svc.SetRole(ctx, tt.actorID, tt.userID, tt.role)
			if tt.wantKind != "" {
				assertKind(t, err, tt.wantKind, "")
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.role, user.Role)
		})
	}
}

func TestUserService_ListAndGet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := NewUserService(store.Users(), logging.Discard())

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)

	u := &model.User{Email: "ada@example.com"}
	require.NoError(t, store.Users().Create(ctx, u))

	users, err = svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)

	got, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	_, err = svc.GetUser(ctx, "missing")
	assertKind(t, err, apperrors.KindNotFound, MsgUserNotFound)

	_, err = NewUserService(failingUserRepository{}, nil).ListUsers(ctx)
	assertKind(t, err, apperrors.KindDatabase, "")
}
