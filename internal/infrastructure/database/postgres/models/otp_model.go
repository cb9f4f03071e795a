package models

import (
	"time"

	"github.com/google/uuid"
)

type OTPModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Email     string    `gorm:"type:varchar(255);not null;index:idx_otps_email_created_at,priority:1"`
	Code      string    `gorm:"type:char(6);not null"`
	Verified  bool      `gorm:"default:false;not null"`
	CreatedAt time.Time `gorm:"not null;index:idx_otps_email_created_at,priority:2"`
}

func (OTPModel) TableName() string {
	return "otps"
}
