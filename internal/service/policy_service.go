package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/repository"
	"github.com/docshield/view-session-service/internal/security"
)

var timeNow = time.Now

// PolicyService decides whether a manifest request may proceed and resolves
// the identity to bind into the session. Reads only; the share open counter
// moves later, in the manifest flow.
type PolicyService struct {
	shareRepo repository.ShareLinkRepository
}

func NewPolicyService(shareRepo repository.ShareLinkRepository) *PolicyService {
	return &PolicyService{shareRepo: shareRepo}
}

type PolicyInput struct {
	Document   *domain.Document
	User       *domain.User // nil when unauthenticated
	ShareCode  string
	Passphrase string
	Client     security.ClientInfo
}

// Evaluate applies the access policy. The passphrase gate is mandatory and
// orthogonal: when the document requires one, a missing or wrong passphrase
// fails the request no matter how the identity checks came out.
func (s *PolicyService) Evaluate(ctx context.Context, in PolicyInput) (domain.Identity, *domain.ShareLink, error) {
	if in.Document == nil {
		return domain.Identity{}, nil, repository.ErrDocumentNotFound
	}

	if in.Document.HasPassphrase {
		if err := s.checkPassphrase(in.Document, in.Passphrase); err != nil {
			return domain.Identity{}, nil, err
		}
	}

	if in.User != nil {
		granted := in.User.HasActiveSubscription() ||
			in.User.Role == domain.RoleAdmin ||
			in.User.ID == in.Document.OwnerID
		if granted {
			return domain.Identity{
				Subject: in.User.ID,
				Type:    domain.IdentityUser,
				Label:   in.User.Email,
			}, nil, nil
		}
	}

	if in.ShareCode != "" {
		share, err := s.evaluateShare(in)
		if err != nil {
			return domain.Identity{}, nil, err
		}
		return domain.Identity{
			Subject: share.ID,
			Type:    domain.IdentityShare,
			Label:   share.Code,
		}, share, nil
	}

	return domain.Identity{}, nil, ErrAccessDenied
}

func (s *PolicyService) evaluateShare(in PolicyInput) (*domain.ShareLink, error) {
	share, err := s.shareRepo.FindByCode(in.ShareCode)
	if err != nil {
		if errors.Is(err, repository.ErrShareLinkNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, err
	}
	// A code for some other document grants nothing here.
	if share.DocumentID != in.Document.ID {
		return nil, ErrAccessDenied
	}
	if share.Expired(timeNow()) {
		return nil, repository.ErrShareExpired
	}
	if share.OpensExhausted() {
		return nil, repository.ErrShareLimitReached
	}
	if share.IPLock != nil && *share.IPLock != in.Client.IPHash {
		return nil, ErrAccessDenied
	}
	if share.UALock != nil && *share.UALock != in.Client.UAHash {
		return nil, ErrAccessDenied
	}
	return share, nil
}

func (s *PolicyService) checkPassphrase(doc *domain.Document, passphrase string) error {
	if passphrase == "" {
		return ErrPassphraseRequired
	}
	if doc.PassphraseHash == nil || *doc.PassphraseHash == "" {
		return fmt.Errorf("%w: document %d requires a passphrase but has no hash", ErrInvalidPassphrase, doc.ID)
	}
	ok, err := security.VerifyPassphrase(*doc.PassphraseHash, passphrase)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPassphrase, err)
	}
	if !ok {
		return ErrInvalidPassphrase
	}
	return nil
}
