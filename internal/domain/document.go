package domain

import "time"

type Document struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	OwnerID        uint      `gorm:"index;not null" json:"owner_id"`
	Title          string    `gorm:"size:512" json:"title"`
	PageCount      int       `gorm:"not null" json:"page_count"`
	HasPassphrase  bool      `gorm:"not null;default:false" json:"has_passphrase"`
	PassphraseHash *string   `gorm:"size:256" json:"-"`
	StorageKey     string    `gorm:"size:512;not null" json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
