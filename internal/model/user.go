package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the access level of a user.
type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleAdmin
}

// User represents a registered account holder.
type User struct {
	ID           string    `json:"_id" gorm:"type:char(36);primaryKey" bson:"_id"`
	FirstName    string    `json:"firstName" gorm:"size:50;not null" bson:"firstName"`
	LastName     string    `json:"lastName" gorm:"size:50;not null" bson:"lastName"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null" bson:"email"`
	Phone        string    `json:"phone" gorm:"size:20;not null" bson:"phone"`
	PasswordHash string    `json:"-" gorm:"size:255;not null" bson:"passwordHash"` // Never expose in JSON
	Role         Role      `json:"role" gorm:"size:20;not null;default:'client'" bson:"role"`
	IsVerified   bool      `json:"isVerified" gorm:"default:false" bson:"isVerified"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// BeforeCreate sets UUID and default role before creating the record.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.ensureDefaults()
	return nil
}

// Prepare fills the fields a store is expected to assign on insert.
// Stores without hooks call it explicitly.
func (u *User) Prepare(now time.Time) {
	u.ensureDefaults()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
}

func (u *User) ensureDefaults() {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleClient
	}
}

// ProfilePatch carries the optional fields of a profile update.
type ProfilePatch struct {
	FirstName *string
	LastName  *string
	Phone     *string
}

// Empty reports whether the patch changes nothing.
func (p ProfilePatch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Phone == nil
}

// Apply copies the set fields of p onto u.
func (p ProfilePatch) Apply(u *User) {
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
}
