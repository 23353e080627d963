package security

import (
	"errors"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// AmbientTokenParser validates platform access tokens minted by the external
// auth service. This core only needs the subject out of them; roles and
// subscription state come from the user row.
type AmbientTokenParser struct {
	secret []byte
}

func NewAmbientTokenParser(secret string) *AmbientTokenParser {
	return &AmbientTokenParser{secret: []byte(secret)}
}

func (p *AmbientTokenParser) UserID(raw string) (uint, error) {
	claims := &jwt.RegisteredClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing algorithm")
		}
		return p.secret, nil
	})
	if err != nil {
		return 0, err
	}
	if !tok.Valid {
		return 0, errors.New("invalid token")
	}
	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, errors.New("invalid subject")
	}
	return uint(id), nil
}

// SignAmbientToken is used by tests and local tooling to mint a platform
// access token accepted by the parser above.
func SignAmbientToken(secret string, userID uint, expiresAt jwt.NumericDate) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: &expiresAt,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
