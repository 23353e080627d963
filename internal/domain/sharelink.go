package domain

import "time"

// ShareLink grants no-account access to one document, bounded by expiry and
// an optional open cap. The code is the capability; it never encodes identity.
type ShareLink struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	DocumentID     uint       `gorm:"index;not null" json:"document_id"`
	CreatorID      uint       `gorm:"index;not null" json:"creator_id"`
	Code           string     `gorm:"size:64;uniqueIndex;not null" json:"code"`
	ExpiresAt      *time.Time `gorm:"index" json:"expires_at,omitempty"`
	MaxOpens       *int       `json:"max_opens,omitempty"`
	OpenCount      int        `gorm:"not null;default:0" json:"open_count"`
	RequirePass    bool       `gorm:"not null;default:false" json:"require_pass"`
	PassphraseHint *string    `gorm:"size:256" json:"passphrase_hint,omitempty"`
	RequireOTP     bool       `gorm:"not null;default:false" json:"require_otp"`
	IPLock         *string    `gorm:"size:64" json:"-"`
	UALock         *string    `gorm:"size:64" json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`

	Document Document `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (s *ShareLink) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && !s.ExpiresAt.After(now)
}

func (s *ShareLink) OpensExhausted() bool {
	return s.MaxOpens != nil && s.OpenCount >= *s.MaxOpens
}
