package service

import (
	"sync"
	"time"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/repository"
)

type fakeDocumentRepo struct {
	docs map[uint]*domain.Document
}

func (f *fakeDocumentRepo) FindByID(id uint) (*domain.Document, error) {
	doc, ok := f.docs[id]
	if !ok {
		return nil, repository.ErrDocumentNotFound
	}
	copied := *doc
	return &copied, nil
}

type fakeUserRepo struct {
	users map[uint]*domain.User
}

func (f *fakeUserRepo) FindByID(id uint) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

type fakeShareRepo struct {
	mu     sync.Mutex
	shares map[string]*domain.ShareLink
}

func (f *fakeShareRepo) FindByID(id uint) (*domain.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.shares {
		if s.ID == id {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrShareLinkNotFound
}

func (f *fakeShareRepo) FindByCode(code string) (*domain.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shares[code]
	if !ok {
		return nil, repository.ErrShareLinkNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *fakeShareRepo) RecordOpen(code string) (*domain.ShareLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shares[code]
	if !ok {
		return nil, repository.ErrShareLinkNotFound
	}
	if s.Expired(time.Now()) {
		return nil, repository.ErrShareExpired
	}
	if s.OpensExhausted() {
		return nil, repository.ErrShareLimitReached
	}
	s.OpenCount++
	copied := *s
	return &copied, nil
}

type fakeAuditRepo struct {
	mu        sync.Mutex
	rows      []domain.ViewAudit
	failNext  bool
	createErr error
}

func (f *fakeAuditRepo) Create(a *domain.ViewAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return f.createErr
	}
	f.rows = append(f.rows, *a)
	return nil
}

func (f *fakeAuditRepo) ListByDocument(documentID uint, limit int) ([]domain.ViewAudit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.ViewAudit
	for _, r := range f.rows {
		if r.DocumentID == documentID {
			out = append(out, r)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeAuditRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}
