package domain

import "time"

type Role string

const (
	RoleSubscriber Role = "SUBSCRIBER"
	RoleCreator    Role = "CREATOR"
	RoleAdmin      Role = "ADMIN"
)

type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "active"
	SubscriptionInactive SubscriptionStatus = "inactive"
	SubscriptionPastDue  SubscriptionStatus = "past_due"
)

type User struct {
	ID                 uint               `gorm:"primaryKey" json:"id"`
	Email              string             `gorm:"size:320;uniqueIndex;not null" json:"email"`
	Role               Role               `gorm:"size:32;not null;default:'SUBSCRIBER'" json:"role"`
	SubscriptionStatus SubscriptionStatus `gorm:"size:32;not null;default:'inactive'" json:"subscription_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// HasActiveSubscription reports whether the user may view documents on a
// subscription basis. Admins bypass subscription checks elsewhere.
func (u *User) HasActiveSubscription() bool {
	return u.SubscriptionStatus == SubscriptionActive
}
