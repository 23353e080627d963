package security

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/http"
	"strings"
)

// ClientInfo carries the hashed network/device signals of one request. Raw
// IP and User-Agent strings are hashed here and never stored or logged.
type ClientInfo struct {
	IPHash      string
	UAHash      string
	Fingerprint string
}

// HashClientInfo derives the hashed client identifiers for a request. The
// fingerprint combines IP, User-Agent and the two accept headers so that two
// requests from the same browser/network context hash identically.
func HashClientInfo(r *http.Request) ClientInfo {
	ip := requestIP(r)
	ua := r.Header.Get("User-Agent")
	lang := r.Header.Get("Accept-Language")
	enc := r.Header.Get("Accept-Encoding")

	return ClientInfo{
		IPHash:      hashString(ip),
		UAHash:      hashString(ua),
		Fingerprint: hashString(strings.Join([]string{ip, ua, lang, enc}, "|")),
	}
}

// HashString exposes the one-way hash used for client identifiers so that
// share-link IP/UA locks can be stored pre-hashed.
func HashString(v string) string {
	return hashString(v)
}

func hashString(v string) string {
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}

func requestIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from forwarding headers
	// before this runs.
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
