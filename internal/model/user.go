package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserStatus int

const (
	UserStatusActive   UserStatus = 1
	UserStatusDisabled UserStatus = 2
	UserStatusBanned   UserStatus = 3
)

type User struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Username         string         `gorm:"type:varchar(64);not null;default:''" json:"username"`
	Email            string         `gorm:"type:varchar(256);not null;default:''" json:"email"`
	TwoFactorEnabled bool           `gorm:"not null;default:false" json:"two_factor_enabled"`
	Status           UserStatus     `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Identities []UserIdentity `gorm:"foreignKey:UserID" json:"identities,omitempty"`
}

func (User) TableName() string { return "users" }
