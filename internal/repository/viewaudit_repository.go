package repository

import (
	"context"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/observability"

	"gorm.io/gorm"
)

// ViewAuditRepository is append-only: the core creates rows and never
// mutates or deletes them.
type ViewAuditRepository interface {
	Create(a *domain.ViewAudit) error
	ListByDocument(documentID uint, limit int) ([]domain.ViewAudit, error)
}

type GormViewAuditRepository struct{ db *gorm.DB }

func NewViewAuditRepository(db *gorm.DB) ViewAuditRepository {
	return &GormViewAuditRepository{db: db}
}

func (r *GormViewAuditRepository) Create(a *domain.ViewAudit) error {
	err := r.db.Create(a).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "view_audit", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "view_audit", "create", "success")
	return nil
}

func (r *GormViewAuditRepository) ListByDocument(documentID uint, limit int) ([]domain.ViewAudit, error) {
	if limit <= 0 {
		limit = 100
	}
	var audits []domain.ViewAudit
	err := r.db.Where("document_id = ?", documentID).
		Order("viewed_at DESC").
		Limit(limit).
		Find(&audits).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "view_audit", "list_by_document", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "view_audit", "list_by_document", "success")
	return audits, nil
}
