package models

import "time"

type UserRole string

const (
	UserRoleStudent UserRole = "student"
	UserRoleAdmin   UserRole = "admin"
)

type UserStatus string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"
)

// Profile is the users row as stored. Numeric and boolean columns are
// nullable in storage; consumers normalize them at the read boundary.
type Profile struct {
	ID            string
	Email         *string
	PasswordHash  []byte
	Name          *string
	Role          UserRole
	Status        UserStatus
	RoomNumber    *string
	Address       *string
	MeritPoints   *int
	DemeritPoints *int
	InfoComplete  *bool
	AvatarURL     *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Session struct {
	ID               string
	UserID           string
	DeviceID         string
	DeviceName       string
	RefreshTokenHash []byte
	IPAddress        string
	UserAgent        string
	CreatedAt        time.Time
	LastSeenAt       time.Time
	ExpiresAt        time.Time
}
