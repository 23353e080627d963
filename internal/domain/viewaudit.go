package domain

import "time"

const (
	AuditEventManifestAccess = "manifest_access"
	AuditEventTileAccess     = "tile_access"
)

// ViewAudit is an append-only record of one manifest or tile access. Exactly
// one of UserID/ShareLinkID is set. Client identifiers are stored hashed only.
type ViewAudit struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DocumentID  uint      `gorm:"index;not null" json:"document_id"`
	UserID      *uint     `gorm:"index" json:"user_id,omitempty"`
	ShareLinkID *uint     `gorm:"index" json:"share_link_id,omitempty"`
	IPHash      string    `gorm:"size:64;not null" json:"ip_hash"`
	UAHash      string    `gorm:"size:64;not null" json:"ua_hash"`
	SessionID   string    `gorm:"size:64;index;not null" json:"session_id"`
	Event       string    `gorm:"size:32;index;not null" json:"event"`
	Meta        string    `gorm:"size:1024" json:"meta,omitempty"`
	ViewedAt    time.Time `gorm:"index;not null" json:"viewed_at"`

	Document Document `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
