package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultViewTokenTTL is the absolute lifetime of a view session. Clients
// refresh the manifest before expiry (the viewer refreshes every 90s).
const DefaultViewTokenTTL = 2 * time.Minute

// ViewClaims is the entire state of a viewing session. No server-side
// session row exists; the signed token is the only record.
type ViewClaims struct {
	TokenType   string `json:"token_type"`
	DocumentID  uint   `json:"doc_id"`
	SessionID   string `json:"sid"`
	IPHash      string `json:"ip_hash"`
	UAHash      string `json:"ua_hash"`
	Fingerprint string `json:"fp"`
	Identity    string `json:"identity_type"`
	jwt.RegisteredClaims
}

type ViewTokenManager struct {
	issuer string
	secret []byte
	ttl    time.Duration
}

func NewViewTokenManager(issuer, secret string, ttl time.Duration) *ViewTokenManager {
	if ttl <= 0 {
		ttl = DefaultViewTokenTTL
	}
	return &ViewTokenManager{issuer: issuer, secret: []byte(secret), ttl: ttl}
}

func (m *ViewTokenManager) TTL() time.Duration { return m.ttl }

// Issue mints a signed view token bound to one document and one client
// context, with a fresh session id. A signing failure means the service is
// misconfigured and is fatal for the request.
func (m *ViewTokenManager) Issue(docID uint, subject string, identityType string, info ClientInfo) (token string, sessionID string, err error) {
	sessionID = uuid.NewString()
	claims := ViewClaims{
		TokenType:   "view",
		DocumentID:  docID,
		SessionID:   sessionID,
		IPHash:      info.IPHash,
		UAHash:      info.UAHash,
		Fingerprint: info.Fingerprint,
		Identity:    identityType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", err
	}
	return token, sessionID, nil
}

// Verify parses and validates a view token. Malformed, tampered and expired
// tokens all come back as an error; callers do not distinguish them.
func (m *ViewTokenManager) Verify(raw string) (*ViewClaims, error) {
	claims := &ViewClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return m.secret, nil
	}, jwt.WithIssuer(m.issuer))
	if err != nil {
		return nil, err
	}
	if !tok.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.TokenType != "view" {
		return nil, fmt.Errorf("unexpected token type: %s", claims.TokenType)
	}
	return claims, nil
}
