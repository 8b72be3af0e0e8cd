package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lexpertease/internal/auth"
	apperrors "lexpertease/internal/errors"
	"lexpertease/internal/logging"
	"lexpertease/internal/mailer"
	"lexpertease/internal/model"
	"lexpertease/internal/repository"
	"lexpertease/internal/repository/memory"
)

// MockMailer is a mock implementation of mailer.Sender.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMailer) Verify(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

// failingUserRepository fails every call with a storage error.
type failingUserRepository struct{}

var errStorageDown = errors.New("connection refused")

func (failingUserRepository) Create(context.Context, *model.User) error { return errStorageDown }
func (failingUserRepository) FindByID(context.Context, string) (*model.User, error) {
	return nil, errStorageDown
}
func (failingUserRepository) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, errStorageDown
}
func (failingUserRepository) UpdateProfile(context.Context, string, model.ProfilePatch) (*model.User, error) {
	return nil, errStorageDown
}
func (failingUserRepository) UpdatePassword(context.Context, string, string) error {
	return errStorageDown
}
func (failingUserRepository) UpdateRole(context.Context, string, model.Role) (*model.User, error) {
	return nil, errStorageDown
}
func (failingUserRepository) List(context.Context) ([]model.User, error) { return nil, errStorageDown }

type testEnv struct {
	svc    AuthService
	store  *memory.Store
	mailer *MockMailer
	tokens *MockTokenStore
	now    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	now := time.Now()
	env := &testEnv{
		store:  memory.NewStore(),
		mailer: new(MockMailer),
		tokens: new(MockTokenStore),
		now:    &now,
	}
	env.svc = NewAuthService(AuthDeps{
		Users:          env.store.Users(),
		Sessions:       env.store.Sessions(),
		PasswordResets: env.store.PasswordResets(),
		JWT:            auth.NewJWTService("test-secret"),
		Tokens:         env.tokens,
		Mailer:         env.mailer,
		Logger:         logging.Discard(),
		AppURL:         "https://lexpertease.test",
		Now:            func() time.Time { return *env.now },
	})
	return env
}

func (e *testEnv) advance(d time.Duration) {
	*e.now = e.now.Add(d)
}

func validSignup(email string) SignupInput {
	return SignupInput{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     email,
		Phone:     "+15551234567",
		Password:  "password123",
	}
}

func assertKind(t *testing.T, err error, kind apperrors.Kind, message string) {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.Error
	require.True(t, errors.As(err, &appErr), "expected *errors.Error, got %T", err)
	assert.Equal(t, kind, appErr.Kind)
	if message != "" {
		assert.Equal(t, message, appErr.Message)
	}
}

func TestAuthService_Signup(t *testing.T) {
	tests := []struct {
		name          string
		existing      string
		email         string
		expectedError string
	}{
		{
			name:  "successful signup",
			email: "ada@example.com",
		},
		{
			name:          "email already registered",
			existing:      "ada@example.com",
			email:         "ada@example.com",
			expectedError: MsgEmailTaken,
		},
		{
			name:          "email comparison ignores case",
			existing:      "ada@example.com",
			email:         "ADA@Example.com",
			expectedError: MsgEmailTaken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			if tt.existing != "" {
				_, err := env.svc.Signup(ctx, validSignup(tt.existing), ClientInfo{})
				require.NoError(t, err)
			}

			res, err := env.svc.Signup(ctx, validSignup(tt.email), ClientInfo{UserAgent: "test-agent", IPAddress: "127.0.0.1"})

			if tt.expectedError != "" {
				assertKind(t, err, apperrors.KindAuth, tt.expectedError)
				assert.Nil(t, res)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, strings.ToLower(tt.email), res.User.Email)
			assert.Equal(t, model.RoleClient, res.User.Role)
			assert.True(t, res.User.IsVerified)
			assert.NotEmpty(t, res.User.ID)
			assert.NotEqual(t, "password123", res.User.PasswordHash)
			assert.True(t, auth.ComparePassword(res.User.PasswordHash, "password123"))
			assert.NotEmpty(t, res.Token)
			assert.NotEmpty(t, res.RefreshToken)

			sessions := env.store.SessionsFor(res.User.ID)
			require.Len(t, sessions, 1)
			assert.Equal(t, res.RefreshToken, sessions[0].Token)
			assert.Equal(t, model.SessionRefresh, sessions[0].Type)
			assert.Equal(t, "test-agent", sessions[0].UserAgent)
			assert.Equal(t, "127.0.0.1", sessions[0].IPAddress)
			assert.False(t, sessions[0].IsRevoked)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	tests := []struct {
		name          string
		email         string
		password      string
		expectedError string
	}{
		{
			name:     "successful login",
			email:    "ada@example.com",
			password: "password123",
		},
		{
			name:     "email is normalised",
			email:    "  Ada@Example.COM ",
			password: "password123",
		},
		{
			name:          "wrong password",
			email:         "ada@example.com",
			password:      "wrong-password",
			expectedError: MsgInvalidCredentials,
		},
		{
			name:          "unknown email",
			email:         "nobody@example.com",
			password:      "password123",
			expectedError: MsgInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			_, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
			require.NoError(t, err)

			res, err := env.svc.Login(ctx, tt.email, tt.password, ClientInfo{})

			if tt.expectedError != "" {
				assertKind(t, err, apperrors.KindAuth, tt.expectedError)
				assert.Nil(t, res)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "ada@example.com", res.User.Email)
			assert.NotEmpty(t, res.Token)
			assert.NotEmpty(t, res.RefreshToken)
		})
	}
}

func TestAuthService_LoginEndsEarlierSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	signup, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
	require.NoError(t, err)
	login, err := env.svc.Login(ctx, "ada@example.com", "password123", ClientInfo{})
	require.NoError(t, err)

	assert.NotEqual(t, signup.Token, login.Token)
	assert.NotEqual(t, signup.RefreshToken, login.RefreshToken)

	_, err = env.svc.RefreshToken(ctx, signup.RefreshToken, ClientInfo{})
	assertKind(t, err, apperrors.KindAuth, MsgInvalidRefreshToken)

	_, err = env.svc.RefreshToken(ctx, login.RefreshToken, ClientInfo{})
	assert.NoError(t, err)
}

func TestAuthService_RefreshTokenRotation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{UserAgent: "browser"})
	require.NoError(t, err)

	pair, err := env.svc.RefreshToken(ctx, res.RefreshToken, ClientInfo{})
	require.NoError(t, err)
	assert.NotEmpty(t, pair.Token)
	assert.NotEqual(t, res.RefreshToken, pair.RefreshToken)

	// The rotated token is spent.
	_, err = env.svc.RefreshToken(ctx, res.RefreshToken, ClientInfo{})
	assertKind(t, err, apperrors.KindAuth, MsgInvalidRefreshToken)

	// The new one works once.
	_, err = env.svc.RefreshToken(ctx, pair.RefreshToken, ClientInfo{})
	assert.NoError(t, err)

	var active int
	for _, s := range env.store.SessionsFor(res.User.ID) {
		if !s.IsRevoked {
			active++
			assert.Equal(t, "browser", s.UserAgent)
		}
	}
	assert.Equal(t, 1, active)
}

func TestAuthService_RefreshTokenConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
	require.NoError(t, err)

	const callers = 16
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.svc.RefreshToken(ctx, res.RefreshToken, ClientInfo{}); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successes.Load())
}

func TestAuthService_RefreshTokenRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
	require.NoError(t, err)

	forged, _, err := auth.NewJWTService("other-secret").GenerateRefreshToken(res.User.ID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "garbage", token: "not-a-token"},
		{name: "access token", token: res.Token},
		{name: "foreign signature", token: forged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.svc.RefreshToken(ctx, tt.token, ClientInfo{})
			assertKind(t, err, apperrors.KindAuth, MsgInvalidRefreshToken)
		})
	}

	t.Run("expired session", func(t *testing.T) {
		env.advance(31 * 24 * time.Hour)
		_, err := env.svc.RefreshToken(ctx, res.RefreshToken, ClientInfo{})
		assertKind(t, err, apperrors.KindAuth, MsgInvalidRefreshToken)
	})
}

func TestAuthService_Logout(t *testing.T) {
	t.Run("single session", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
		require.NoError(t, err)

		require.NoError(t, env.svc.Logout(ctx, res.User.ID, res.RefreshToken, nil))

		_, err = env.svc.RefreshToken(ctx, res.RefreshToken, ClientInfo{})
		assertKind(t, err, apperrors.KindAuth, MsgInvalidRefreshToken)
		for _, s := range env.store.SessionsFor(res.User.ID) {
			assert.True(t, s.IsRevoked)
		}
		env.tokens.AssertNotCalled(t, "BlacklistAccessToken", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("all sessions and access token denylisted", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		first, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
		require.NoError(t, err)
		second, err := env.svc.Login(ctx, "ada@example.com", "password123", ClientInfo{})
		require.NoError(t, err)

		claims, err := auth.NewJWTService("test-secret").ValidateAccessToken(first.Token)
		require.NoError(t, err)
		env.tokens.On("BlacklistAccessToken", mock.Anything, claims.ID, mock.AnythingOfType("time.Duration")).Return(nil)

		require.NoError(t, env.svc.Logout(ctx, first.User.ID, "", claims))

		for _, tok := range []string{first.RefreshToken, second.RefreshToken} {
			_, err = env.svc.RefreshToken(ctx, tok, ClientInfo{})
			assertKind(t, err, apperrors.KindAuth, MsgInvalidRefreshToken)
		}
		env.tokens.AssertExpectations(t)
	})
}

func TestAuthService_Me(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
	require.NoError(t, err)

	user, err := env.svc.Me(ctx, res.User.ID)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, user.ID)

	_, err = env.svc.Me(ctx, "missing")
	assertKind(t, err, apperrors.KindAuth, MsgUserNotFound)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
	require.NoError(t, err)

	first := " Augusta "
	user, err := env.svc.UpdateProfile(ctx, res.User.ID, model.ProfilePatch{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", user.FirstName)
	assert.Equal(t, "Lovelace", user.LastName)
	assert.Equal(t, "+15551234567", user.Phone)

	user, err = env.svc.UpdateProfile(ctx, res.User.ID, model.ProfilePatch{})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", user.FirstName)

	_, err = env.svc.UpdateProfile(ctx, "missing", model.ProfilePatch{FirstName: &first})
	assertKind(t, err, apperrors.KindAuth, MsgUserNotFound)
}

func TestAuthService_ChangePassword(t *testing.T) {
	tests := []struct {
		name          string
		current       string
		expectedError string
	}{
		{name: "successful change", current: "password123"},
		{name: "wrong current password", current: "nope-nope", expectedError: MsgWrongPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
			require.NoError(t, err)

			err = env.svc.ChangePassword(ctx, res.User.ID, tt.current, "new-password-1")

			if tt.expectedError != "" {
				assertKind(t, err, apperrors.KindAuth, tt.expectedError)
				_, err = env.svc.Login(ctx, "ada@example.com", "password123", ClientInfo{})
				assert.NoError(t, err)
				return
			}

			require.NoError(t, err)
			_, err = env.svc.RefreshToken(ctx, res.RefreshToken, ClientInfo{})
			assertKind(t, err, apperrors.KindAuth, MsgInvalidRefreshToken)

			_, err = env.svc.Login(ctx, "ada@example.com", "password123", ClientInfo{})
			assertKind(t, err, apperrors.KindAuth, MsgInvalidCredentials)
			_, err = env.svc.Login(ctx, "ada@example.com", "new-password-1", ClientInfo{})
			assert.NoError(t, err)
		})
	}
}

func activeResetToken(t *testing.T, store *memory.Store, userID string) string {
	t.Helper()
	var tokens []string
	for _, r := range store.ResetsFor(userID) {
		if !r.IsUsed {
			tokens = append(tokens, r.Token)
		}
	}
	require.Len(t, tokens, 1)
	return tokens[0]
}

func TestAuthService_ForgotPassword(t *testing.T) {
	t.Run("unknown email sends nothing", func(t *testing.T) {
		env := newTestEnv(t)
		require.NoError(t, env.svc.ForgotPassword(context.Background(), "nobody@example.com"))
		env.svc.Wait()
		env.mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	})

	t.Run("known email receives a reset link", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
		require.NoError(t, err)

		var sent mailer.Message
		env.mailer.On("Send", mock.Anything, mock.AnythingOfType("mailer.Message")).
			Run(func(args mock.Arguments) { sent = args.Get(1).(mailer.Message) }).
			Return(nil).Once()

		require.NoError(t, env.svc.ForgotPassword(ctx, "ADA@example.com"))
		env.svc.Wait()

		token := activeResetToken(t, env.store, res.User.ID)
		assert.Len(t, token, 64)
		assert.Equal(t, "ada@example.com", sent.To)
		assert.Contains(t, sent.HTML, "https://lexpertease.test/reset-password?token="+token)
		assert.Contains(t, sent.Text, token)
		env.mailer.AssertExpectations(t)
	})

	t.Run("mail failure is not reported", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		_, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
		require.NoError(t, err)
		env.mailer.On("Send", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

		assert.NoError(t, env.svc.ForgotPassword(ctx, "ada@example.com"))
		env.svc.Wait()
	})

	t.Run("new request invalidates earlier tokens", func(t *testing.T) {
		env := newTestEnv(t)
		ctx := context.Background()
		res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
		require.NoError(t, err)
		env.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

		require.NoError(t, env.svc.ForgotPassword(ctx, "ada@example.com"))
		env.svc.Wait()
		first := activeResetToken(t, env.store, res.User.ID)

		require.NoError(t, env.svc.ForgotPassword(ctx, "ada@example.com"))
		env.svc.Wait()
		second := activeResetToken(t, env.store, res.User.ID)
		assert.NotEqual(t, first, second)

		err = env.svc.ResetPassword(ctx, first, "new-password-1")
		assertKind(t, err, apperrors.KindAuth, MsgInvalidResetToken)
	})
}

func TestAuthService_ResetPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
	require.NoError(t, err)
	env.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, env.svc.ForgotPassword(ctx, "ada@example.com"))
	env.svc.Wait()
	token := activeResetToken(t, env.store, res.User.ID)

	require.NoError(t, env.svc.ResetPassword(ctx, token, "new-password-1"))

	// Single use.
	err = env.svc.ResetPassword(ctx, token, "another-password")
	assertKind(t, err, apperrors.KindAuth, MsgInvalidResetToken)

	// Every refresh session is revoked.
	_, err = env.svc.RefreshToken(ctx, res.RefreshToken, ClientInfo{})
	assertKind(t, err, apperrors.KindAuth, MsgInvalidRefreshToken)

	_, err = env.svc.Login(ctx, "ada@example.com", "password123", ClientInfo{})
	assertKind(t, err, apperrors.KindAuth, MsgInvalidCredentials)
	_, err = env.svc.Login(ctx, "ada@example.com", "new-password-1", ClientInfo{})
	assert.NoError(t, err)
}

func TestAuthService_ResetPasswordExpired(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	res, err := env.svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
	require.NoError(t, err)
	env.mailer.On("Send", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, env.svc.ForgotPassword(ctx, "ada@example.com"))
	env.svc.Wait()
	token := activeResetToken(t, env.store, res.User.ID)

	env.advance(DefaultResetTokenExpiry + time.Second)

	err = env.svc.ResetPassword(ctx, token, "new-password-1")
	assertKind(t, err, apperrors.KindAuth, MsgInvalidResetToken)

	err = env.svc.ResetPassword(ctx, "unknown-token", "new-password-1")
	assertKind(t, err, apperrors.KindAuth, MsgInvalidResetToken)
}

func TestAuthService_StorageFailuresAreDatabaseErrors(t *testing.T) {
	store := memory.NewStore()
	svc := NewAuthService(AuthDeps{
		Users:          failingUserRepository{},
		Sessions:       store.Sessions(),
		PasswordResets: store.PasswordResets(),
		JWT:            auth.NewJWTService("test-secret"),
		Logger:         logging.Discard(),
	})
	ctx := context.Background()

	tests := []struct {
		name string
		call func() error
	}{
		{name: "signup", call: func() error {
			_, err := svc.Signup(ctx, validSignup("ada@example.com"), ClientInfo{})
			return err
		}},
		{name: "login", call: func() error {
			_, err := svc.Login(ctx, "ada@example.com", "password123", ClientInfo{})
			return err
		}},
		{name: "me", call: func() error {
			_, err := svc.Me(ctx, "id")
			return err
		}},
		{name: "change password", call: func() error {
			return svc.ChangePassword(ctx, "id", "a", "b")
		}},
		{name: "forgot password", call: func() error {
			return svc.ForgotPassword(ctx, "ada@example.com")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assertKind(t, err, apperrors.KindDatabase, "")
			assert.ErrorIs(t, err, errStorageDown)
		})
	}
}

var _ repository.UserRepository = failingUserRepository{}
