package repository

import (
	"context"
	"errors"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/observability"

	"gorm.io/gorm"
)

var ErrDocumentNotFound = errors.New("document not found")

type DocumentRepository interface {
	FindByID(id uint) (*domain.Document, error)
}

type GormDocumentRepository struct{ db *gorm.DB }

func NewDocumentRepository(db *gorm.DB) DocumentRepository { return &GormDocumentRepository{db: db} }

func (r *GormDocumentRepository) FindByID(id uint) (*domain.Document, error) {
	var d domain.Document
	err := r.db.First(&d, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "document", "find_by_id", "not_found")
			return nil, ErrDocumentNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "document", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "document", "find_by_id", "success")
	return &d, nil
}
