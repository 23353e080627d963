package repository

import (
	"context"
	"errors"
	"time"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrShareLinkNotFound = errors.New("share link not found")
	ErrShareExpired      = errors.New("share link expired")
	ErrShareLimitReached = errors.New("share link open limit reached")
)

type ShareLinkRepository interface {
	FindByID(id uint) (*domain.ShareLink, error)
	FindByCode(code string) (*domain.ShareLink, error)
	// RecordOpen atomically re-checks expiry and the open cap under a row
	// lock and increments OpenCount. With MaxOpens = N, exactly N concurrent
	// callers succeed.
	RecordOpen(code string) (*domain.ShareLink, error)
}

type GormShareLinkRepository struct{ db *gorm.DB }

func NewShareLinkRepository(db *gorm.DB) ShareLinkRepository {
	return &GormShareLinkRepository{db: db}
}

func (r *GormShareLinkRepository) FindByID(id uint) (*domain.ShareLink, error) {
	var s domain.ShareLink
	err := r.db.First(&s, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "share_link", "find_by_id", "not_found")
			return nil, ErrShareLinkNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "share_link", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "share_link", "find_by_id", "success")
	return &s, nil
}

func (r *GormShareLinkRepository) FindByCode(code string) (*domain.ShareLink, error) {
	var s domain.ShareLink
	err := r.db.Where("code = ?", code).First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "share_link", "find_by_code", "not_found")
			return nil, ErrShareLinkNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "share_link", "find_by_code", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "share_link", "find_by_code", "success")
	return &s, nil
}

func (r *GormShareLinkRepository) RecordOpen(code string) (*domain.ShareLink, error) {
	var opened *domain.ShareLink
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var s domain.ShareLink
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("code = ?", code).
			First(&s).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrShareLinkNotFound
			}
			return err
		}
		if s.Expired(time.Now()) {
			return ErrShareExpired
		}
		if s.OpensExhausted() {
			return ErrShareLimitReached
		}
		if err := tx.Model(&domain.ShareLink{}).
			Where("id = ?", s.ID).
			Update("open_count", gorm.Expr("open_count + 1")).Error; err != nil {
			return err
		}
		s.OpenCount++
		opened = &s
		return nil
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrShareLinkNotFound):
			observability.RecordRepositoryOperation(context.Background(), "share_link", "record_open", "not_found")
		case errors.Is(err, ErrShareExpired), errors.Is(err, ErrShareLimitReached):
			observability.RecordRepositoryOperation(context.Background(), "share_link", "record_open", "denied")
		default:
			observability.RecordRepositoryOperation(context.Background(), "share_link", "record_open", "error")
		}
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "share_link", "record_open", "success")
	return opened, nil
}
