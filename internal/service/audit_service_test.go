package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/docshield/view-session-service/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func waitForRows(t *testing.T, repo *fakeAuditRepo, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if repo.count() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %d audit rows, got %d", want, repo.count())
}

func TestAuditRecordPersists(t *testing.T) {
	repo := &fakeAuditRepo{}
	audit := NewAuditService(repo, 8, discardLogger())
	defer audit.Close(context.Background())

	audit.Record(domain.ViewAudit{DocumentID: 10, SessionID: "s1", Event: domain.AuditEventManifestAccess})
	audit.Record(domain.ViewAudit{DocumentID: 10, SessionID: "s1", Event: domain.AuditEventTileAccess})

	waitForRows(t, repo, 2)

	rows, err := repo.ListByDocument(10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if rows[0].Event != domain.AuditEventManifestAccess {
		t.Fatalf("unexpected first event: %q", rows[0].Event)
	}
}

func TestAuditWriteErrorDoesNotStopWorker(t *testing.T) {
	repo := &fakeAuditRepo{failNext: true, createErr: errors.New("db down")}
	audit := NewAuditService(repo, 8, discardLogger())
	defer audit.Close(context.Background())

	audit.Record(domain.ViewAudit{DocumentID: 1, Event: domain.AuditEventTileAccess})
	audit.Record(domain.ViewAudit{DocumentID: 1, Event: domain.AuditEventTileAccess})

	// The first write fails and is dropped; the second still lands.
	waitForRows(t, repo, 1)
}

func TestAuditCloseDrains(t *testing.T) {
	repo := &fakeAuditRepo{}
	audit := NewAuditService(repo, 64, discardLogger())

	for i := 0; i < 20; i++ {
		audit.Record(domain.ViewAudit{DocumentID: 2, Event: domain.AuditEventTileAccess})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := audit.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := repo.count(); got != 20 {
		t.Fatalf("close must drain the buffer, got %d rows", got)
	}
}

func TestAuditRecordAfterCloseIsDropped(t *testing.T) {
	repo := &fakeAuditRepo{}
	audit := NewAuditService(repo, 8, discardLogger())
	if err := audit.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	// Must not panic on the closed channel.
	audit.Record(domain.ViewAudit{DocumentID: 3, Event: domain.AuditEventTileAccess})
	if got := repo.count(); got != 0 {
		t.Fatalf("expected no rows after close, got %d", got)
	}
}
