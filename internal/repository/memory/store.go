// Package memory provides process-local repositories for development and
// tests. Records are copied in and out so callers never share state with
// the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lexpertease/internal/model"
	"lexpertease/internal/repository"
)

// Store keeps users, sessions and reset tokens in maps guarded by one mutex.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	users    map[string]model.User
	emails   map[string]string
	sessions map[string]model.Session
	resets   map[string]model.PasswordReset
}

var _ repository.Store = (*Store)(nil)

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		now:      time.Now,
		users:    map[string]model.User{},
		emails:   map[string]string{},
		sessions: map[string]model.Session{},
		resets:   map[string]model.PasswordReset{},
	}
}

// SetClock replaces the clock used for record timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) Users() repository.UserRepository                   { return userRepo{s} }
func (s *Store) Sessions() repository.SessionRepository             { return sessionRepo{s} }
func (s *Store) PasswordResets() repository.PasswordResetRepository { return resetRepo{s} }
func (s *Store) Ping(context.Context) error                         { return nil }
func (s *Store) Close(context.Context) error                        { return nil }

// SessionsFor returns copies of every session owned by userID.
func (s *Store) SessionsFor(userID string) []model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, sess)
		}
	}
	return out
}

// ResetsFor returns copies of every reset token owned by userID.
func (s *Store) ResetsFor(userID string) []model.PasswordReset {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PasswordReset
	for _, r := range s.resets {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(user.Email)
	if _, ok := r.s.emails[key]; ok {
		return repository.ErrDuplicate
	}
	user.Prepare(r.s.now())
	r.s.users[user.ID] = *user
	r.s.emails[key] = user.ID
	return nil
}

func (r userRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u := r.s.users[id]
	return &u, nil
}

func (r userRepo) UpdateProfile(_ context.Context, id string, patch model.ProfilePatch) (*model.User, error) {
	return r.update(id, func(u *model.User) {
		patch.Apply(u)
	}, !patch.Empty())
}

func (r userRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	_, err := r.update(id, func(u *model.User) {
		u.PasswordHash = passwordHash
	}, true)
	return err
}

func (r userRepo) UpdateRole(_ context.Context, id string, role model.Role) (*model.User, error) {
	return r.update(id, func(u *model.User) {
		u.Role = role
	}, true)
}

func (r userRepo) List(context.Context) ([]model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	return users, nil
}

func (r userRepo) update(id string, fn func(*model.User), touch bool) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	fn(&u)
	if touch {
		u.UpdatedAt = r.s.now()
	}
	r.s.users[id] = u
	return &u, nil
}

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.sessions {
		if existing.Token == session.Token {
			return repository.ErrDuplicate
		}
	}
	session.Prepare(r.s.now())
	r.s.sessions[session.ID] = *session
	return nil
}

func (r sessionRepo) Consume(_ context.Context, token string, typ model.SessionType, now time.Time) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.Token != token || sess.Type != typ {
			continue
		}
		if !sess.Active(now) {
			return nil, repository.ErrNotFound
		}
		sess.IsRevoked = true
		sess.UpdatedAt = now
		r.s.sessions[id] = sess
		return &sess, nil
	}
	return nil, repository.ErrNotFound
}

func (r sessionRepo) Revoke(_ context.Context, userID, token string, typ model.SessionType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID && sess.Token == token && sess.Type == typ {
			sess.IsRevoked = true
			sess.UpdatedAt = r.s.now()
			r.s.sessions[id] = sess
		}
	}
	return nil
}

func (r sessionRepo) RevokeAll(_ context.Context, userID string, typ model.SessionType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sess := range r.s.sessions {
		if sess.UserID == userID && sess.Type == typ && !sess.IsRevoked {
			sess.IsRevoked = true
			sess.UpdatedAt = r.s.now()
			r.s.sessions[id] = sess
		}
	}
	return nil
}

func (r sessionRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, sess := range r.s.sessions {
		if !now.Before(sess.ExpiresAt) {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

type resetRepo struct{ s *Store }

func (r resetRepo) Create(_ context.Context, reset *model.PasswordReset) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.resets {
		if existing.Token == reset.Token {
			return repository.ErrDuplicate
		}
	}
	reset.Prepare(r.s.now())
	r.s.resets[reset.ID] = *reset
	return nil
}

func (r resetRepo) InvalidateForUser(_ context.Context, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, reset := range r.s.resets {
		if reset.UserID == userID && !reset.IsUsed {
			reset.IsUsed = true
			reset.UpdatedAt = r.s.now()
			r.s.resets[id] = reset
		}
	}
	return nil
}

func (r resetRepo) Consume(_ context.Context, token string, now time.Time) (*model.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, reset := range r.s.resets {
		if reset.Token != token {
			continue
		}
		if !reset.Usable(now) {
			return nil, repository.ErrNotFound
		}
		reset.IsUsed = true
		reset.UpdatedAt = now
		r.s.resets[id] = reset
		return &reset, nil
	}
	return nil, repository.ErrNotFound
}

func (r resetRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, reset := range r.s.resets {
		if reset.IsUsed || !now.Before(reset.ExpiresAt) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}
