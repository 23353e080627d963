package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/docshield/view-session-service/internal/domain"
	"github.com/docshield/view-session-service/internal/health"
	"github.com/docshield/view-session-service/internal/http/handler"
	"github.com/docshield/view-session-service/internal/http/router"
	"github.com/docshield/view-session-service/internal/repository"
	"github.com/docshield/view-session-service/internal/security"
	"github.com/docshield/view-session-service/internal/service"
	"github.com/docshield/view-session-service/internal/storage"
	"github.com/docshield/view-session-service/internal/watermark"
)

const (
	viewTokenSecret   = "view-token-secret-for-tests-32b!"
	ambientAuthSecret = "ambient-auth-secret-for-tests-32"
	testUserAgent     = "viewer-test/1.0"
)

type viewTestEnvOptions struct {
	TileRateLimit int
	TokenTTL      time.Duration
	Readiness     *health.ProbeRunner
}

type viewTestEnv struct {
	t       *testing.T
	baseURL string
	client  *http.Client
	db      *gorm.DB
	store   *storage.MemoryObjectStore
	redis   *miniredis.Miniredis
}

func newViewTestEnv(t *testing.T) *viewTestEnv {
	return newViewTestEnvWithOptions(t, viewTestEnvOptions{})
}

func newViewTestEnvWithOptions(t *testing.T, opts viewTestEnvOptions) *viewTestEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Document{}, &domain.ShareLink{}, &domain.ViewAudit{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	server := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	docs := repository.NewDocumentRepository(db)
	users := repository.NewUserRepository(db)
	shares := repository.NewShareLinkRepository(db)
	auditRepo := repository.NewViewAuditRepository(db)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	audit := service.NewAuditService(auditRepo, 256, log)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = audit.Close(ctx)
	})

	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	tokens := security.NewViewTokenManager("docshield-view", viewTokenSecret, ttl)

	limit := opts.TileRateLimit
	if limit <= 0 {
		limit = 60
	}
	limiter := service.NewRedisTileRateLimiter(rdb, "tile_rl", limit, time.Minute)

	store := storage.NewMemoryObjectStore()
	compositor, err := watermark.NewCompositor("DocShield")
	if err != nil {
		t.Fatalf("new compositor: %v", err)
	}

	policy := service.NewPolicyService(shares)
	manifests := service.NewManifestService(docs, shares, policy, tokens, audit)
	tiles := service.NewTileService(docs, users, shares, tokens, limiter, store, compositor, audit, 0.14)

	h := router.NewRouter(router.Dependencies{
		ViewHandler:     handler.NewViewHandler(manifests, tiles),
		AmbientParser:   security.NewAmbientTokenParser(ambientAuthSecret),
		UserRepo:        users,
		APIRateLimitRPM: 100000,
		Readiness:       opts.Readiness,
	})
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	return &viewTestEnv{
		t:       t,
		baseURL: ts.URL,
		client:  ts.Client(),
		db:      db,
		store:   store,
		redis:   server,
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// get performs a GET with the stable test client identity. Client binding in
// the token is derived from IP and User-Agent, so every request in a flow
// must present the same agent string.
func (e *viewTestEnv) get(path string, headers map[string]string) (*http.Response, []byte) {
	e.t.Helper()
	req, err := http.NewRequest(http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		e.t.Fatalf("build request: %v", err)
	}
	req.Header.Set("User-Agent", testUserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		e.t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		e.t.Fatalf("read body: %v", err)
	}
	return resp, body
}

func (e *viewTestEnv) getJSON(path string, headers map[string]string) (*http.Response, apiEnvelope) {
	e.t.Helper()
	resp, body := e.get(path, headers)
	var env apiEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		e.t.Fatalf("decode %q: %v", string(body), err)
	}
	return resp, env
}

func (e *viewTestEnv) errorCode(env apiEnvelope) string {
	e.t.Helper()
	if env.Error == nil {
		e.t.Fatal("expected an error envelope")
	}
	return env.Error.Code
}

type manifestData struct {
	PageCount int    `json:"page_count"`
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
}

func (e *viewTestEnv) manifest(docID uint, headers map[string]string) manifestData {
	e.t.Helper()
	resp, env := e.getJSON(fmt.Sprintf("/view/%d/manifest", docID), headers)
	if resp.StatusCode != http.StatusOK {
		e.t.Fatalf("manifest failed: status=%d error=%+v", resp.StatusCode, env.Error)
	}
	var data manifestData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		e.t.Fatalf("decode manifest: %v", err)
	}
	if data.Token == "" || data.SessionID == "" {
		e.t.Fatalf("incomplete manifest: %+v", data)
	}
	return data
}

func (e *viewTestEnv) seedUser(user *domain.User) *domain.User {
	e.t.Helper()
	if err := e.db.Create(user).Error; err != nil {
		e.t.Fatalf("seed user: %v", err)
	}
	return user
}

func (e *viewTestEnv) seedDocument(doc *domain.Document) *domain.Document {
	e.t.Helper()
	if err := e.db.Create(doc).Error; err != nil {
		e.t.Fatalf("seed document: %v", err)
	}
	page := pageJPEG(e.t)
	for p := 1; p <= doc.PageCount; p++ {
		e.store.Put(storage.PageKey(doc.ID, p), page)
	}
	return doc
}

func (e *viewTestEnv) seedShare(share *domain.ShareLink) *domain.ShareLink {
	e.t.Helper()
	if err := e.db.Create(share).Error; err != nil {
		e.t.Fatalf("seed share: %v", err)
	}
	return share
}

func (e *viewTestEnv) ambientCookie(userID uint) map[string]string {
	e.t.Helper()
	token := signAmbientToken(e.t, userID)
	return map[string]string{"Cookie": "access_token=" + token}
}

func (e *viewTestEnv) waitForAuditRows(docID uint, want int) []domain.ViewAudit {
	e.t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var rows []domain.ViewAudit
		if err := e.db.Where("document_id = ?", docID).Order("id").Find(&rows).Error; err != nil {
			e.t.Fatalf("query audit rows: %v", err)
		}
		if len(rows) >= want {
			return rows
		}
		time.Sleep(10 * time.Millisecond)
	}
	e.t.Fatalf("timed out waiting for %d audit rows on document %d", want, docID)
	return nil
}

func signAmbientToken(t *testing.T, userID uint) string {
	t.Helper()
	token, err := security.SignAmbientToken(ambientAuthSecret, userID, *jwt.NewNumericDate(time.Now().Add(time.Hour)))
	if err != nil {
		t.Fatalf("sign ambient token: %v", err)
	}
	return token
}

func hashPassphrase(t *testing.T, plaintext string) string {
	t.Helper()
	hash, err := security.HashPassphrase(plaintext)
	if err != nil {
		t.Fatalf("hash passphrase: %v", err)
	}
	return hash
}

func pageJPEG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.Set(x, y, color.RGBA{R: 245, G: 245, B: 240, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("encode page: %v", err)
	}
	return buf.Bytes()
}

func intPtr(v int) *int { return &v }

func timePtr(v time.Time) *time.Time { return &v }
