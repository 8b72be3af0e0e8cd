package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"lexpertease/internal/model"
)

type passwordResetRepository struct {
	db *gorm.DB
}

// NewPasswordResetRepository builds a GORM-backed reset-token repository.
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &passwordResetRepository{db: db}
}

func (r *passwordResetRepository) Create(ctx context.Context, reset *model.PasswordReset) error {
	return translateGormError(r.db.WithContext(ctx).Create(reset).Error)
}

func (r *passwordResetRepository) InvalidateForUser(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Model(&model.PasswordReset{}).
		Where("user_id = ? AND is_used = ?", userID, false).
		Update("is_used", true).Error
}

func (r *passwordResetRepository) Consume(ctx context.Context, token string, now time.Time) (*model.PasswordReset, error) {
	res := r.db.WithContext(ctx).Model(&model.PasswordReset{}).
		Where("token = ? AND is_used = ? AND expires_at > ?", token, false, now).
		Updates(map[string]interface{}{"is_used": true, "updated_at": now})
	if res.Error != nil {
		return nil, translateGormError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	var reset model.PasswordReset
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&reset).Error; err != nil {
		return nil, translateGormError(err)
	}
	return &reset, nil
}

func (r *passwordResetRepository) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ? OR is_used = ?", now, true).Delete(&model.PasswordReset{})
	return res.RowsAffected, res.Error
}
