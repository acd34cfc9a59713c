package models

import (
	"time"
)

const (
	RoleCitizen = "citizen"
	RoleStaff   = "staff"
	RoleAdmin   = "admin"
)

type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UID          string     `gorm:"index" json:"uid"` // 身份提供方的用户 ID
	Name         string     `json:"name"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	Image        string     `json:"image"`
	Role         string     `gorm:"size:20;not null" json:"role"` // citizen, staff, admin
	IsPremium    bool       `gorm:"not null" json:"isPremium"`
	SubscribedBy string     `json:"subscribedBy"`
	IsBlocked    bool       `gorm:"not null" json:"isBlocked"`
	BlockedBy    string     `json:"blockedBy"`
	LoggedInAt   *time.Time `json:"loggedInAt"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}
