package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/observability"
	"github.com/docshield/view-session-service/internal/repository"
	"github.com/docshield/view-session-service/internal/security"
	"github.com/docshield/view-session-service/internal/storage"
	"github.com/docshield/view-session-service/internal/watermark"
)

// TileCoords addresses one deep-zoom tile. When absent the request is for
// the flat page image.
type TileCoords struct {
	Z, X, Y int
}

type TileRequest struct {
	DocumentID uint
	Page       int
	Coords     *TileCoords
	Token      string
	Format     string
	Client     security.ClientInfo
}

type TileResult struct {
	Data        []byte
	ContentType string
}

// TileService gates every tile fetch: token, client binding, rate limit,
// page bounds, then storage fetch and watermarking. Watermark failure fails
// the request; a tile without its marks never leaves the service.
type TileService struct {
	docRepo    repository.DocumentRepository
	userRepo   repository.UserRepository
	shareRepo  repository.ShareLinkRepository
	tokens     *security.ViewTokenManager
	limiter    TileRateLimiter
	store      storage.ObjectStore
	compositor *watermark.Compositor
	audit      *AuditService
	opacity    float64
}

func NewTileService(
	docRepo repository.DocumentRepository,
	userRepo repository.UserRepository,
	shareRepo repository.ShareLinkRepository,
	tokens *security.ViewTokenManager,
	limiter TileRateLimiter,
	store storage.ObjectStore,
	compositor *watermark.Compositor,
	audit *AuditService,
	opacity float64,
) *TileService {
	return &TileService{
		docRepo:    docRepo,
		userRepo:   userRepo,
		shareRepo:  shareRepo,
		tokens:     tokens,
		limiter:    limiter,
		store:      store,
		compositor: compositor,
		audit:      audit,
		opacity:    opacity,
	}
}

func (s *TileService) Serve(ctx context.Context, req TileRequest) (*TileResult, error) {
	claims, err := s.tokens.Verify(req.Token)
	if err != nil {
		observability.RecordTileRequest(ctx, "invalid_token")
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.DocumentID != req.DocumentID {
		observability.RecordTileRequest(ctx, "token_mismatch")
		return nil, ErrTokenMismatch
	}

	// Hard binding to the issuing client context. A copied token is useless
	// from another network or device.
	if claims.IPHash != req.Client.IPHash || claims.UAHash != req.Client.UAHash {
		observability.RecordTileRequest(ctx, "client_mismatch")
		return nil, ErrClientMismatch
	}

	limitKey := fmt.Sprintf("%s:%s:%d", claims.Identity, claims.Subject, req.DocumentID)
	decision, err := s.limiter.Allow(ctx, limitKey)
	if err != nil {
		// Fail closed: an unreachable counter must not turn into an
		// unlimited tile firehose.
		observability.RecordRateLimitDecision(ctx, "tile", "backend_error")
		return nil, ErrRateLimitExceeded
	}
	if !decision.Allowed {
		observability.RecordRateLimitDecision(ctx, "tile", "deny")
		observability.RecordTileRequest(ctx, "rate_limited")
		return nil, ErrRateLimitExceeded
	}
	observability.RecordRateLimitDecision(ctx, "tile", "allow")

	doc, err := s.docRepo.FindByID(req.DocumentID)
	if err != nil {
		observability.RecordTileRequest(ctx, "not_found")
		return nil, err
	}
	if req.Page < 1 || req.Page > doc.PageCount {
		observability.RecordTileRequest(ctx, "page_out_of_range")
		return nil, ErrPageNotFound
	}

	identity, err := s.resolveIdentity(claims)
	if err != nil {
		observability.RecordTileRequest(ctx, "identity_error")
		return nil, err
	}

	key := storage.PageKey(doc.ID, req.Page)
	if req.Coords != nil {
		key = storage.TileKey(doc.ID, req.Page, req.Coords.Z, req.Coords.X, req.Coords.Y)
	}
	raw, err := s.store.GetBytes(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			observability.RecordTileRequest(ctx, "object_missing")
			return nil, ErrPageNotFound
		}
		observability.RecordTileRequest(ctx, "storage_error")
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	start := time.Now()
	data, contentType, err := s.compositor.Compose(raw, watermark.Options{
		IdentityLabel: identity.Label,
		SessionID:     claims.SessionID,
		Timestamp:     time.Now(),
		Opacity:       s.opacity,
		Format:        req.Format,
	})
	if err != nil {
		observability.RecordWatermarkDuration(ctx, time.Since(start), "error")
		observability.RecordTileRequest(ctx, "watermark_error")
		return nil, fmt.Errorf("%w: %v", ErrWatermarkFailed, err)
	}
	observability.RecordWatermarkDuration(ctx, time.Since(start), "success")

	meta := map[string]any{
		"page":        req.Page,
		"fingerprint": claims.Fingerprint,
	}
	if req.Coords != nil {
		meta["z"], meta["x"], meta["y"] = req.Coords.Z, req.Coords.X, req.Coords.Y
	}
	s.audit.Record(auditRow(doc.ID, identity, req.Client, claims.SessionID, domain.AuditEventTileAccess, meta))
	observability.RecordTileRequest(ctx, "served")

	return &TileResult{Data: data, ContentType: contentType}, nil
}

func (s *TileService) resolveIdentity(claims *security.ViewClaims) (domain.Identity, error) {
	subject, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	switch domain.IdentityType(claims.Identity) {
	case domain.IdentityUser:
		user, err := s.userRepo.FindByID(uint(subject))
		if err != nil {
			if errors.Is(err, repository.ErrUserNotFound) {
				return domain.Identity{}, ErrAccessDenied
			}
			return domain.Identity{}, err
		}
		return domain.Identity{Subject: user.ID, Type: domain.IdentityUser, Label: user.Email}, nil
	case domain.IdentityShare:
		share, err := s.shareRepo.FindByID(uint(subject))
		if err != nil {
			if errors.Is(err, repository.ErrShareLinkNotFound) {
				return domain.Identity{}, ErrAccessDenied
			}
			return domain.Identity{}, err
		}
		return domain.Identity{Subject: share.ID, Type: domain.IdentityShare, Label: share.Code}, nil
	default:
		return domain.Identity{}, fmt.Errorf("%w: unknown identity type", ErrInvalidToken)
	}
}
