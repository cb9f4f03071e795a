package models

import (
	"time"

	"github.com/google/uuid"
)

// UserModel represents the database model for User
type UserModel struct {
	ID                     uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Username               string     `gorm:"type:varchar(20);not null;uniqueIndex"`
	Email                  string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHashed         string     `gorm:"type:varchar(255);not null"`
	FirstName              string     `gorm:"type:varchar(50);not null"`
	LastName               string     `gorm:"type:varchar(50);not null"`
	PhoneNumber            string     `gorm:"type:varchar(20);not null"`
	NICNumber              *string    `gorm:"column:nic_number;type:varchar(12)"`
	Address                *string    `gorm:"type:varchar(200)"`
	HeightCM               *float64   `gorm:"column:height_cm;type:numeric(5,2)"`
	WeightKG               *float64   `gorm:"column:weight_kg;type:numeric(5,2)"`
	PackageType            string     `gorm:"type:varchar(20);not null;default:'basic'"`
	Role                   string     `gorm:"type:varchar(20);not null;default:'member'"`
	Status                 string     `gorm:"type:varchar(20);not null;default:'active'"`
	MembershipStartDate    time.Time  `gorm:"not null"`
	MembershipEndDate      *time.Time
	AssignedCoachID        *uuid.UUID `gorm:"type:uuid"`
	RefreshToken           *string    `gorm:"type:text"`
	PasswordResetTokenHash *string    `gorm:"type:varchar(64)"`
	PasswordResetExpiresAt *time.Time
	CreatedAt              time.Time `gorm:"not null"`
	UpdatedAt              time.Time `gorm:"not null"`
}

func (UserModel) TableName() string {
	return "users"
}
