package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"lexpertease/internal/model"
)

type sessionRepository struct {
	db *gorm.DB
}

// NewSessionRepository builds a GORM-backed session repository.
func NewSessionRepository(db *gorm.DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *model.Session) error {
	return translateGormError(r.db.WithContext(ctx).Create(session).Error)
}

func (r *sessionRepository) Consume(ctx context.Context, token string, typ model.SessionType, now time.Time) (*model.Session, error) {
	res := r.db.WithContext(ctx).Model(&model.Session{}).
		Where("token = ? AND type = ? AND is_revoked = ? AND expires_at > ?", token, typ, false, now).
		Updates(map[string]interface{}{"is_revoked": true, "updated_at": now})
	if res.Error != nil {
		return nil, translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var session model.Session
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&session).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &session, nil
}

func (r *sessionRepository) Revoke(ctx context.Context, userID, token string, typ model.SessionType) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).
		Where("user_id = ? AND token = ? AND type = ?", userID, token, typ).
		Update("is_revoked", true).Error
}

func (r *sessionRepository) RevokeAll(ctx context.Context, userID string, typ model.SessionType) error {
	return r.db.WithContext(ctx).Model(&model.Session{}).
		Where("user_id = ? AND type = ? AND is_revoked = ?", userID, typ, false).
		Update("is_revoked", true).Error
}

func (r *sessionRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&model.Session{})
	return res.RowsAffected, res.Error
}
