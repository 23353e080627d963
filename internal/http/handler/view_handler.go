package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/docshield/view-session-service/internal/http/middleware"
	"github.com/docshield/view-session-service/internal/http/response"
	"github.com/docshield/view-session-service/internal/observability"
	"github.com/docshield/view-session-service/internal/repository"
	"github.com/docshield/view-session-service/internal/security"
	"github.com/docshield/view-session-service/internal/service"
)

const (
	headerShareCode  = "share-code"
	headerPassphrase = "doc-passphrase"
)

type ViewHandler struct {
	manifests service.ManifestIssuer
	tiles     service.TileServer
}

func NewViewHandler(manifests service.ManifestIssuer, tiles service.TileServer) *ViewHandler {
	return &ViewHandler{manifests: manifests, tiles: tiles}
}

// Manifest authorizes a viewing session and returns the page count plus a
// fresh view token. One audit row per call.
func (h *ViewHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	docID, ok := parseDocID(w, r)
	if !ok {
		return
	}
	user, _ := middleware.UserFromContext(r.Context())

	result, err := h.manifests.Issue(r.Context(), service.ManifestRequest{
		DocumentID: docID,
		User:       user,
		ShareCode:  r.Header.Get(headerShareCode),
		Passphrase: r.Header.Get(headerPassphrase),
		Client:     security.HashClientInfo(r),
	})
	if err != nil {
		writeViewError(w, r, err)
		return
	}
	observability.Audit(r, "manifest_issued", "document_id", docID, "session_id", result.SessionID)
	response.JSON(w, r, http.StatusOK, result)
}

// Tile serves one watermarked page image. The token is accepted from the
// query string because image tags cannot set headers; Authorization: Bearer
// works too.
func (h *ViewHandler) Tile(w http.ResponseWriter, r *http.Request) {
	docID, ok := parseDocID(w, r)
	if !ok {
		return
	}

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		response.Error(w, r, http.StatusNotFound, "PAGE_NOT_FOUND", "page out of range", nil)
		return
	}

	coords, err := parseTileCoords(r)
	if err != nil {
		response.Error(w, r, http.StatusBadRequest, "BAD_REQUEST", "tile coordinates must be supplied together", nil)
		return
	}

	token := viewToken(r)
	if token == "" {
		response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "missing view token", nil)
		return
	}

	result, err := h.tiles.Serve(r.Context(), service.TileRequest{
		DocumentID: docID,
		Page:       page,
		Coords:     coords,
		Token:      token,
		Format:     r.URL.Query().Get("format"),
		Client:     security.HashClientInfo(r),
	})
	if err != nil {
		writeViewError(w, r, err)
		return
	}

	observability.Audit(r, "tile_served", "document_id", docID, "page", page)
	hdr := w.Header()
	hdr.Set("Content-Type", result.ContentType)
	hdr.Set("Cache-Control", "private, no-store, no-cache, must-revalidate")
	hdr.Set("Pragma", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func parseDocID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	raw := chi.URLParam(r, "docID")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		response.Error(w, r, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document does not exist", nil)
		return 0, false
	}
	return uint(id), true
}

func parseTileCoords(r *http.Request) (*service.TileCoords, error) {
	q := r.URL.Query()
	zs, xs, ys := q.Get("z"), q.Get("x"), q.Get("y")
	if zs == "" && xs == "" && ys == "" {
		return nil, nil
	}
	if zs == "" || xs == "" || ys == "" {
		return nil, errors.New("partial tile coordinates")
	}
	z, err := strconv.Atoi(zs)
	if err != nil {
		return nil, err
	}
	x, err := strconv.Atoi(xs)
	if err != nil {
		return nil, err
	}
	y, err := strconv.Atoi(ys)
	if err != nil {
		return nil, err
	}
	return &service.TileCoords{Z: z, X: x, Y: y}, nil
}

func viewToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

// writeViewError converts the service/repository sentinels into the stable
// error taxonomy. Anything unexpected collapses to a generic 500 so internal
// details never leak.
func writeViewError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrDocumentNotFound):
		response.Error(w, r, http.StatusNotFound, "DOCUMENT_NOT_FOUND", "document does not exist", nil)
	case errors.Is(err, repository.ErrShareExpired):
		response.Error(w, r, http.StatusGone, "SHARE_EXPIRED", "share link has expired", nil)
	case errors.Is(err, repository.ErrShareLimitReached):
		response.Error(w, r, http.StatusGone, "SHARE_LIMIT_REACHED", "share link open limit reached", nil)
	case errors.Is(err, service.ErrPassphraseRequired):
		response.Error(w, r, http.StatusUnauthorized, "PASSPHRASE_REQUIRED", "document requires a passphrase", nil)
	case errors.Is(err, service.ErrInvalidPassphrase):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_PASSPHRASE", "passphrase is incorrect", nil)
	case errors.Is(err, service.ErrInvalidToken):
		response.Error(w, r, http.StatusUnauthorized, "INVALID_TOKEN", "view token is invalid or expired", nil)
	case errors.Is(err, service.ErrTokenMismatch):
		response.Error(w, r, http.StatusForbidden, "TOKEN_MISMATCH", "token is bound to a different document", nil)
	case errors.Is(err, service.ErrClientMismatch):
		response.Error(w, r, http.StatusForbidden, "CLIENT_MISMATCH", "token is bound to a different client", nil)
	case errors.Is(err, service.ErrRateLimitExceeded):
		response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many tile requests", nil)
	case errors.Is(err, service.ErrPageNotFound):
		response.Error(w, r, http.StatusNotFound, "PAGE_NOT_FOUND", "page out of range", nil)
	case errors.Is(err, service.ErrAccessDenied):
		response.Error(w, r, http.StatusForbidden, "ACCESS_DENIED", "no access to this document", nil)
	case errors.Is(err, service.ErrStorageUnavailable):
		response.Error(w, r, http.StatusBadGateway, "STORAGE_UNAVAILABLE", "page storage is unavailable", nil)
	case errors.Is(err, service.ErrWatermarkFailed):
		response.Error(w, r, http.StatusInternalServerError, "WATERMARK_FAILED", "could not watermark page image", nil)
	default:
		response.Error(w, r, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
