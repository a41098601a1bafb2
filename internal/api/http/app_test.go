package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image/color"
	"io"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/chamados-app/chamados-api/internal/auth"
	"github.com/chamados-app/chamados-api/internal/config"
	"github.com/chamados-app/chamados-api/internal/domain"
	"github.com/chamados-app/chamados-api/internal/observability"
	"github.com/chamados-app/chamados-api/internal/ratelimit"
	"github.com/chamados-app/chamados-api/internal/repository/repotest"
	"github.com/chamados-app/chamados-api/internal/storage"
)

type testServer struct {
	app    *fiber.App
	cfg    *config.Config
	store  *repotest.Store
	images *storage.ImageStore
	tokens *auth.TokenManager
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		App: config.AppConfig{Name: "chamados-api", Env: "test", Version: "test"},
		Auth: config.AuthConfig{
			AccessSecret:    "test-access",
			RefreshSecret:   "test-refresh",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 24 * time.Hour,
			BcryptCost:      4,
			CookieName:      "refresh_token",
			CookiePath:      "/api/usuarios",
		},
		Upload: config.UploadConfig{Dir: t.TempDir(), MaxBytes: 1 << 20, MaxDimension: 512},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, limits *ratelimit.Policies) *testServer {
	t.Helper()
	store := repotest.NewStore()
	images, err := storage.NewImageStore(cfg.Upload, zap.NewNop())
	if err != nil {
		t.Fatalf("image store: %v", err)
	}
	app := NewApp(AppDependencies{
		Config:     cfg,
		Logger:     zap.NewNop(),
		Metrics:    observability.NewMetrics(),
		UserRepo:   store.Users(),
		TicketRepo: store.Tickets(),
		PostRepo:   store.Posts(),
		Images:     images,
		RateLimits: limits,
	})
	return &testServer{
		app:    app,
		cfg:    cfg,
		store:  store,
		images: images,
		tokens: auth.NewTokenManager(cfg.Auth.AccessSecret, cfg.Auth.RefreshSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL),
	}
}

// seedUser stores a user and returns a bearer header for it.
func (s *testServer) seedUser(t *testing.T, email string, role domain.Role) (*domain.User, string) {
	t.Helper()
	u := &domain.User{Name: email, Email: email, PasswordHash: "x", Role: role}
	if err := s.store.Users().Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, _, err := s.tokens.GenerateAccessToken(u)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	return u, "Bearer " + token
}

type testResponse struct {
	status  int
	header  nethttp.Header
	cookies []*nethttp.Cookie
	body    map[string]any
}

func (r testResponse) data() map[string]any {
	d, _ := r.body["data"].(map[string]any)
	return d
}

func (r testResponse) list() []any {
	l, _ := r.body["data"].([]any)
	return l
}

func (r testResponse) errorCode() string {
	e, _ := r.body["error"].(map[string]any)
	code, _ := e["code"].(string)
	return code
}

func (r testResponse) cookie(name string) *nethttp.Cookie {
	for _, c := range r.cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *testServer) do(t *testing.T, req *nethttp.Request) testResponse {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	out := testResponse{status: resp.StatusCode, header: resp.Header, cookies: resp.Cookies()}
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := json.Unmarshal(raw, &out.body); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return out
}

func jsonRequest(method, target, authHeader string, body any) *nethttp.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if authHeader != "" {
		req.Header.Set(fiber.HeaderAuthorization, authHeader)
	}
	return req
}

func multipartRequest(t *testing.T, method, target, authHeader string, fields map[string]string, file []byte) *nethttp.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("field: %v", err)
		}
	}
	if file != nil {
		part, err := w.CreateFormFile("imagem", "foto.png")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		if _, err := part.Write(file); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, authHeader)
	return req
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, imaging.New(16, 16, color.NRGBA{B: 255, A: 255}), imaging.PNG); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func TestHealthAndIndex(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	if res := s.do(t, jsonRequest(fiber.MethodGet, "/health/live", "", nil)); res.status != fiber.StatusOK || res.body["status"] != "alive" {
		t.Fatalf("live: %d %v", res.status, res.body)
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, "/health/ready", "", nil)); res.status != fiber.StatusOK {
		t.Fatalf("ready without dependencies: %d", res.status)
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, "/", "", nil)); res.status != fiber.StatusOK || res.body["endpoints"] == nil {
		t.Fatalf("index: %d %v", res.status, res.body)
	}
}

func TestUserSessionFlow(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)

	reg := s.do(t, jsonRequest(fiber.MethodPost, "/api/usuarios/register", "", map[string]string{
		"nome": "Ana", "email": "Ana@Example.com", "senha": "secret1",
	}))
	if reg.status != fiber.StatusCreated {
		t.Fatalf("register: %d %v", reg.status, reg.body)
	}
	if reg.data()["token_type"] != "Bearer" || reg.data()["access_token"] == "" {
		t.Fatalf("unexpected auth payload %v", reg.data())
	}
	if _, leaked := reg.data()["refresh_token"]; leaked {
		t.Fatalf("refresh token must only travel in the cookie")
	}
	cookie := reg.cookie("refresh_token")
	if cookie == nil || cookie.Value == "" || !cookie.HttpOnly || cookie.Path != "/api/usuarios" {
		t.Fatalf("unexpected refresh cookie %+v", cookie)
	}
	user, _ := reg.data()["user"].(map[string]any)
	if user["email"] != "ana@example.com" || user["papel"] != float64(0) {
		t.Fatalf("unexpected user %v", user)
	}

	dup := s.do(t, jsonRequest(fiber.MethodPost, "/api/usuarios/register", "", map[string]string{
		"nome": "Ana 2", "email": "ana@example.com", "senha": "secret2",
	}))
	if dup.status != fiber.StatusConflict || dup.errorCode() != "CONFLICT" {
		t.Fatalf("duplicate register: %d %v", dup.status, dup.body)
	}

	bad := s.do(t, jsonRequest(fiber.MethodPost, "/api/usuarios/login", "", map[string]string{
		"email": "ana@example.com", "senha": "wrong-password",
	}))
	if bad.status != fiber.StatusUnauthorized {
		t.Fatalf("bad login: %d", bad.status)
	}

	login := s.do(t, jsonRequest(fiber.MethodPost, "/api/usuarios/login", "", map[string]string{
		"email": "ana@example.com", "senha": "secret1",
	}))
	if login.status != fiber.StatusOK {
		t.Fatalf("login: %d %v", login.status, login.body)
	}
	access, _ := login.data()["access_token"].(string)

	me := s.do(t, jsonRequest(fiber.MethodGet, "/api/usuarios/me", "Bearer "+access, nil))
	if me.status != fiber.StatusOK || me.data()["nome"] != "Ana" {
		t.Fatalf("me: %d %v", me.status, me.body)
	}

	refreshReq := jsonRequest(fiber.MethodPost, "/api/usuarios/refresh", "", nil)
	refreshReq.AddCookie(&nethttp.Cookie{Name: "refresh_token", Value: login.cookie("refresh_token").Value})
	refreshed := s.do(t, refreshReq)
	if refreshed.status != fiber.StatusOK || refreshed.cookie("refresh_token") == nil {
		t.Fatalf("refresh: %d %v", refreshed.status, refreshed.body)
	}

	missing := s.do(t, jsonRequest(fiber.MethodPost, "/api/usuarios/refresh", "", nil))
	if missing.status != fiber.StatusUnauthorized {
		t.Fatalf("refresh without cookie: %d", missing.status)
	}
	if c := missing.cookie("refresh_token"); c == nil || c.Value != "" {
		t.Fatalf("expected refresh cookie to be cleared, got %+v", c)
	}

	logout := s.do(t, jsonRequest(fiber.MethodPost, "/api/usuarios/logout", "", nil))
	if logout.status != fiber.StatusNoContent {
		t.Fatalf("logout: %d", logout.status)
	}
	if c := logout.cookie("refresh_token"); c == nil || c.Value != "" {
		t.Fatalf("expected logout to clear cookie, got %+v", c)
	}
}

func TestTicketsRequireValidAccessToken(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	user, _ := s.seedUser(t, "ana@example.com", domain.RoleUser)

	past := auth.NewTokenManager(s.cfg.Auth.AccessSecret, s.cfg.Auth.RefreshSecret, time.Minute, time.Hour,
		auth.WithClock(func() time.Time { return time.Now().Add(-time.Hour) }))
	expired, _, err := past.GenerateAccessToken(user)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	foreign := auth.NewTokenManager("other-secret", "other-refresh", time.Minute, time.Hour)
	forged, _, _ := foreign.GenerateAccessToken(user)

	for name, header := range map[string]string{
		"missing": "",
		"expired": "Bearer " + expired,
		"forged":  "Bearer " + forged,
		"garbage": "Bearer not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			res := s.do(t, jsonRequest(fiber.MethodGet, "/api/chamados", header, nil))
			if res.status != fiber.StatusUnauthorized || res.errorCode() != "UNAUTHORIZED" {
				t.Fatalf("expected 401 UNAUTHORIZED, got %d %v", res.status, res.body)
			}
		})
	}
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	owner, ownerAuth := s.seedUser(t, "owner@example.com", domain.RoleUser)
	_, otherAuth := s.seedUser(t, "other@example.com", domain.RoleUser)
	_, adminAuth := s.seedUser(t, "admin@example.com", domain.RoleAdmin)

	created := s.do(t, multipartRequest(t, fiber.MethodPost, "/api/chamados", ownerAuth,
		map[string]string{"texto": "Impressora sem toner"}, pngBytes(t)))
	if created.status != fiber.StatusCreated {
		t.Fatalf("create: %d %v", created.status, created.body)
	}
	ticket := created.data()
	if ticket["estado"] != "a" || ticket["Usuarios_id"] != float64(owner.ID) {
		t.Fatalf("unexpected ticket %v", ticket)
	}
	imageURL, _ := ticket["url_imagem"].(string)
	if !strings.HasPrefix(imageURL, "http://example.com/uploads/") {
		t.Fatalf("unexpected image url %q", imageURL)
	}
	filename := path.Base(imageURL)
	if _, err := os.Stat(filepath.Join(s.images.Dir(), filename)); err != nil {
		t.Fatalf("expected stored image: %v", err)
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, "/uploads/"+filename, "", nil)); res.status != fiber.StatusOK {
		t.Fatalf("static image: %d", res.status)
	}

	id := int64(ticket["id"].(float64))
	target := "/api/chamados/" + strconv.FormatInt(id, 10)

	if res := s.do(t, jsonRequest(fiber.MethodGet, target, otherAuth, nil)); res.status != fiber.StatusNotFound {
		t.Fatalf("foreign ticket should be hidden, got %d", res.status)
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, target, adminAuth, nil)); res.status != fiber.StatusOK {
		t.Fatalf("admin get: %d", res.status)
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, "/api/chamados", otherAuth, nil)); len(res.list()) != 0 {
		t.Fatalf("other user should see no tickets, got %v", res.list())
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, "/api/chamados?estado=a", adminAuth, nil)); len(res.list()) != 1 {
		t.Fatalf("admin should see the open ticket, got %v", res.list())
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, "/api/chamados?estado=x", ownerAuth, nil)); res.status != fiber.StatusBadRequest {
		t.Fatalf("invalid estado filter: %d", res.status)
	}

	nullText := s.do(t, jsonRequest(fiber.MethodPatch, target, ownerAuth, map[string]any{"texto": nil, "estado": "f"}))
	if nullText.status != fiber.StatusBadRequest {
		t.Fatalf("null texto: %d %v", nullText.status, nullText.body)
	}
	if stored, _ := s.store.Ticket(id); stored.Status != domain.TicketStatusOpen {
		t.Fatalf("rejected patch must not change estado, got %q", stored.Status)
	}

	patched := s.do(t, jsonRequest(fiber.MethodPatch, target, ownerAuth, map[string]any{"url_imagem": nil, "estado": "f"}))
	if patched.status != fiber.StatusOK {
		t.Fatalf("patch: %d %v", patched.status, patched.body)
	}
	if patched.data()["url_imagem"] != nil || patched.data()["estado"] != "f" {
		t.Fatalf("unexpected patched ticket %v", patched.data())
	}
	if _, err := os.Stat(filepath.Join(s.images.Dir(), filename)); !os.IsNotExist(err) {
		t.Fatalf("expected cleared image to be removed, stat err %v", err)
	}

	if res := s.do(t, jsonRequest(fiber.MethodPut, target, ownerAuth, map[string]any{"texto": ""})); res.status != fiber.StatusBadRequest {
		t.Fatalf("replace with empty text: %d", res.status)
	}
	if res := s.do(t, jsonRequest(fiber.MethodDelete, target, otherAuth, nil)); res.status != fiber.StatusNotFound {
		t.Fatalf("foreign delete: %d", res.status)
	}
	if res := s.do(t, jsonRequest(fiber.MethodDelete, target, ownerAuth, nil)); res.status != fiber.StatusNoContent {
		t.Fatalf("delete: %d", res.status)
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, target, ownerAuth, nil)); res.status != fiber.StatusNotFound {
		t.Fatalf("deleted ticket: %d", res.status)
	}
	if res := s.do(t, jsonRequest(fiber.MethodGet, "/api/chamados/abc", ownerAuth, nil)); res.status != fiber.StatusBadRequest {
		t.Fatalf("non-numeric id: %d", res.status)
	}
}

func TestTicketUploadRejections(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	_, ownerAuth := s.seedUser(t, "owner@example.com", domain.RoleUser)

	notImage := s.do(t, multipartRequest(t, fiber.MethodPost, "/api/chamados", ownerAuth,
		map[string]string{"texto": "anexo"}, []byte("plain text, not an image")))
	if notImage.status != fiber.StatusBadRequest {
		t.Fatalf("non-image upload: %d %v", notImage.status, notImage.body)
	}

	large := bytes.Repeat([]byte{0xff}, int(s.cfg.Upload.MaxBytes)+512)
	tooLarge := s.do(t, multipartRequest(t, fiber.MethodPost, "/api/chamados", ownerAuth,
		map[string]string{"texto": "anexo"}, large))
	if tooLarge.status != fiber.StatusRequestEntityTooLarge || tooLarge.errorCode() != "PAYLOAD_TOO_LARGE" {
		t.Fatalf("oversized upload: %d %v", tooLarge.status, tooLarge.body)
	}

	entries, err := os.ReadDir(s.images.Dir())
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("rejected uploads must not be stored, found %d files", len(entries))
	}
}

func TestPostsOverHTTP(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	user, _ := s.seedUser(t, "ana@example.com", domain.RoleUser)

	created := s.do(t, jsonRequest(fiber.MethodPost, "/api/posts", "", map[string]any{
		"usuario_id": strconv.FormatInt(user.ID, 10), "texto": "primeiro post",
	}))
	if created.status != fiber.StatusCreated || created.data()["usuario_id"] != float64(user.ID) {
		t.Fatalf("create post: %d %v", created.status, created.body)
	}
	id := strconv.FormatInt(int64(created.data()["id"].(float64)), 10)

	cases := []struct {
		name   string
		method string
		target string
		body   any
		status int
	}{
		{"list", fiber.MethodGet, "/api/posts", nil, fiber.StatusOK},
		{"by user", fiber.MethodGet, "/api/posts/usuario/" + strconv.FormatInt(user.ID, 10), nil, fiber.StatusOK},
		{"get", fiber.MethodGet, "/api/posts/" + id, nil, fiber.StatusOK},
		{"missing", fiber.MethodGet, "/api/posts/999", nil, fiber.StatusNotFound},
		{"too long", fiber.MethodPost, "/api/posts", map[string]any{"usuario_id": user.ID, "texto": strings.Repeat("a", 281)}, fiber.StatusBadRequest},
		{"unknown user", fiber.MethodPost, "/api/posts", map[string]any{"usuario_id": 999, "texto": "oi"}, fiber.StatusBadRequest},
		{"patch", fiber.MethodPatch, "/api/posts/" + id, map[string]any{"texto": "editado"}, fiber.StatusOK},
		{"delete", fiber.MethodDelete, "/api/posts/" + id, nil, fiber.StatusNoContent},
		{"deleted", fiber.MethodGet, "/api/posts/" + id, nil, fiber.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := s.do(t, jsonRequest(tc.method, tc.target, "", tc.body))
			if res.status != tc.status {
				t.Fatalf("expected %d, got %d %v", tc.status, res.status, res.body)
			}
		})
	}
}

func TestMetricsRequiresAdmin(t *testing.T) {
	s := newTestServer(t, testConfig(t), nil)
	_, userAuth := s.seedUser(t, "ana@example.com", domain.RoleUser)
	_, adminAuth := s.seedUser(t, "admin@example.com", domain.RoleAdmin)

	if res := s.do(t, jsonRequest(fiber.MethodGet, "/metrics", userAuth, nil)); res.status != fiber.StatusForbidden {
		t.Fatalf("user metrics: %d", res.status)
	}
	res := s.do(t, jsonRequest(fiber.MethodGet, "/metrics", adminAuth, nil))
	if res.status != fiber.StatusOK || res.data() == nil {
		t.Fatalf("admin metrics: %d %v", res.status, res.body)
	}
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	cfg := testConfig(t)
	cfg.RateLimit = config.RateLimitConfig{
		Enabled:      true,
		Backend:      "memory",
		GlobalLimit:  100,
		GlobalWindow: time.Minute,
		AuthLimit:    2,
		AuthWindow:   time.Minute,
		UserLimit:    100,
		UserWindow:   time.Minute,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	limits, err := ratelimit.NewPolicies(ctx, cfg.RateLimit, nil)
	if err != nil {
		t.Fatalf("policies: %v", err)
	}
	s := newTestServer(t, cfg, limits)

	login := map[string]string{"email": "nobody@example.com", "senha": "whatever"}
	for i := 0; i < 2; i++ {
		res := s.do(t, jsonRequest(fiber.MethodPost, "/api/usuarios/login", "", login))
		if res.status != fiber.StatusUnauthorized {
			t.Fatalf("attempt %d: expected 401, got %d", i+1, res.status)
		}
		if res.header.Get("RateLimit-Policy") == "" {
			t.Fatalf("expected RateLimit-Policy header")
		}
	}
	res := s.do(t, jsonRequest(fiber.MethodPost, "/api/usuarios/login", "", login))
	if res.status != fiber.StatusTooManyRequests || res.errorCode() != "RATE_LIMITED" {
		t.Fatalf("expected 429, got %d %v", res.status, res.body)
	}
	if res.header.Get(fiber.HeaderRetryAfter) == "" {
		t.Fatalf("expected Retry-After header")
	}

	if res := s.do(t, jsonRequest(fiber.MethodGet, "/api/posts", "", nil)); res.status != fiber.StatusOK {
		t.Fatalf("auth budget must not affect other routes, got %d", res.status)
	}
}
