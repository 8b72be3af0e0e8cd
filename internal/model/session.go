package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionType distinguishes the kinds of issued tokens a session can track.
type SessionType string

const (
	SessionAccess  SessionType = "access"
	SessionRefresh SessionType = "refresh"
)

// Session records one issued refresh token. The token is usable only while
// the session is neither revoked nor expired.
type Session struct {
	ID        string      `json:"id" gorm:"type:char(36);primaryKey" bson:"_id"`
	UserID    string      `json:"userId" gorm:"type:char(36);not null;index:idx_sessions_user_type" bson:"userId"`
	Token     string      `json:"-" gorm:"size:512;not null;uniqueIndex" bson:"token"`
	Type      SessionType `json:"type" gorm:"size:10;not null;index:idx_sessions_user_type" bson:"type"`
	ExpiresAt time.Time   `json:"expiresAt" gorm:"not null;index" bson:"expiresAt"`
	IsRevoked bool        `json:"isRevoked" gorm:"not null;default:false" bson:"isRevoked"`
	UserAgent string      `json:"userAgent,omitempty" gorm:"size:512" bson:"userAgent,omitempty"`
	IPAddress string      `json:"ipAddress,omitempty" gorm:"size:64" bson:"ipAddress,omitempty"`
	CreatedAt time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// Active reports whether the session can still be used at now.
func (s *Session) Active(now time.Time) bool {
	return !s.IsRevoked && now.Before(s.ExpiresAt)
}

// BeforeCreate sets UUID before creating the record.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// Prepare fills the fields a store is expected to assign on insert.
func (s *Session) Prepare(now time.Time) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}
