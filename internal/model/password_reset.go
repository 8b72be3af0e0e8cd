package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PasswordReset is a one-time capability to set a new password.
type PasswordReset struct {
	ID        string    `json:"id" gorm:"type:char(36);primaryKey" bson:"_id"`
	UserID    string    `json:"userId" gorm:"type:char(36);not null;index" bson:"userId"`
	Token     string    `json:"-" gorm:"size:128;not null;uniqueIndex" bson:"token"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index" bson:"expiresAt"`
	IsUsed    bool      `json:"isUsed" gorm:"not null;default:false" bson:"isUsed"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
}

// Usable reports whether the token can still be redeemed at now.
func (p *PasswordReset) Usable(now time.Time) bool {
	return !p.IsUsed && now.Before(p.ExpiresAt)
}

// BeforeCreate sets UUID before creating the record.
func (p *PasswordReset) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Prepare fills the fields a store is expected to assign on insert.
func (p *PasswordReset) Prepare(now time.Time) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
}
