package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/observability"
	"github.com/docshield/view-session-service/internal/repository"
	"github.com/docshield/view-session-service/internal/security"
)

type ManifestResult struct {
	PageCount int    `json:"page_count"`
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

// ManifestService authorizes a viewing session and mints its token. The
// token is the session's only record; reissuing before expiry is how clients
// keep a session alive.
type ManifestService struct {
	docRepo   repository.DocumentRepository
	shareRepo repository.ShareLinkRepository
	policy    *PolicyService
	tokens    *security.ViewTokenManager
	audit     *AuditService
}

func NewManifestService(
	docRepo repository.DocumentRepository,
	shareRepo repository.ShareLinkRepository,
	policy *PolicyService,
	tokens *security.ViewTokenManager,
	audit *AuditService,
) *ManifestService {
	return &ManifestService{
		docRepo:   docRepo,
		shareRepo: shareRepo,
		policy:    policy,
		tokens:    tokens,
		audit:     audit,
	}
}

type ManifestRequest struct {
	DocumentID uint
	User       *domain.User
	ShareCode  string
	Passphrase string
	Client     security.ClientInfo
}

func (s *ManifestService) Issue(ctx context.Context, req ManifestRequest) (*ManifestResult, error) {
	doc, err := s.docRepo.FindByID(req.DocumentID)
	if err != nil {
		observability.RecordManifestRequest(ctx, "none", "not_found")
		return nil, err
	}

	identity, _, err := s.policy.Evaluate(ctx, PolicyInput{
		Document:   doc,
		User:       req.User,
		ShareCode:  req.ShareCode,
		Passphrase: req.Passphrase,
		Client:     req.Client,
	})
	if err != nil {
		observability.RecordManifestRequest(ctx, "none", "denied")
		return nil, err
	}

	// The open counter moves under a row lock at the moment of grant, so a
	// capped share cannot over-grant across concurrent manifests.
	if identity.Type == domain.IdentityShare {
		if _, err := s.shareRepo.RecordOpen(req.ShareCode); err != nil {
			observability.RecordManifestRequest(ctx, string(identity.Type), "denied")
			return nil, err
		}
	}

	token, sessionID, err := s.tokens.Issue(doc.ID, identity.SubjectString(), string(identity.Type), req.Client)
	if err != nil {
		observability.RecordManifestRequest(ctx, string(identity.Type), "error")
		return nil, err
	}

	s.audit.Record(auditRow(doc.ID, identity, req.Client, sessionID, domain.AuditEventManifestAccess, map[string]any{
		"fingerprint": req.Client.Fingerprint,
	}))
	observability.RecordManifestRequest(ctx, string(identity.Type), "granted")

	return &ManifestResult{
		PageCount: doc.PageCount,
		Token:     token,
		SessionID: sessionID,
	}, nil
}

func auditRow(docID uint, identity domain.Identity, client security.ClientInfo, sessionID, event string, meta map[string]any) domain.ViewAudit {
	row := domain.ViewAudit{
		DocumentID: docID,
		IPHash:     client.IPHash,
		UAHash:     client.UAHash,
		SessionID:  sessionID,
		Event:      event,
		ViewedAt:   time.Now().UTC(),
	}
	switch identity.Type {
	case domain.IdentityUser:
		row.UserID = &identity.Subject
	case domain.IdentityShare:
		row.ShareLinkID = &identity.Subject
	}
	if len(meta) > 0 {
		if raw, err := json.Marshal(meta); err == nil {
			row.Meta = string(raw)
		}
	}
	return row
}
