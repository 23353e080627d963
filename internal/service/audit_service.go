package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/observability"
	"github.com/docshield/view-session-service/internal/repository"
)

// AuditService persists ViewAudit rows off the request path. Recording never
// blocks and never fails a request: a full buffer or a write error drops the
// event into the operational log and a counter. Audit completeness is a
// monitoring concern, not an access-control one.
type AuditService struct {
	repo   repository.ViewAuditRepository
	logger *slog.Logger

	mu     sync.Mutex
	events chan domain.ViewAudit
	closed bool
	done   chan struct{}
}

func NewAuditService(repo repository.ViewAuditRepository, buffer int, logger *slog.Logger) *AuditService {
	if buffer <= 0 {
		buffer = 1024
	}
	s := &AuditService{
		repo:   repo,
		logger: logger,
		events: make(chan domain.ViewAudit, buffer),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *AuditService) run() {
	defer close(s.done)
	for event := range s.events {
		event := event
		if err := s.repo.Create(&event); err != nil {
			observability.RecordAuditDrop(context.Background(), "write_error")
			s.logger.Error("audit write failed",
				"event", event.Event,
				"document_id", event.DocumentID,
				"session_id", event.SessionID,
				"error", err.Error(),
			)
		}
	}
}

// Record enqueues one audit event. It returns immediately in all cases.
func (s *AuditService) Record(event domain.ViewAudit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		observability.RecordAuditDrop(context.Background(), "closed")
		return
	}
	select {
	case s.events <- event:
	default:
		observability.RecordAuditDrop(context.Background(), "buffer_full")
		s.logger.Warn("audit buffer full, dropping event",
			"event", event.Event,
			"document_id", event.DocumentID,
		)
	}
}

// Close stops accepting events and drains the buffer, bounded by ctx.
func (s *AuditService) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
