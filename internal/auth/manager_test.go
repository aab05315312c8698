package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-gate/internal/config"
	"github.com/yourusername/member-gate/internal/session"
	"github.com/yourusername/member-gate/internal/users"
)

type testEnv struct {
	router   *gin.Engine
	users    *users.MemoryStore
	sessions *session.MemoryStore
	hasher   *Hasher
	manager  *Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		GinMode:       "test",
		SessionSecret: "0123456789abcdef0123456789abcdef",
	}
	userStore := users.NewMemoryStore()
	sessionStore := session.NewMemoryStore()
	hasher := NewHasher()
	manager := NewManager(cfg, sessionStore, NewValidator(userStore, hasher), NewSerializer(userStore))

	router := gin.New()
	router.GET("/auth/csrftoken", manager.CSRFToken)
	router.POST("/auth/login", manager.VerifyCSRF(), manager.Login)
	router.POST("/auth/logout", manager.RequireLogin(), manager.VerifyCSRF(), manager.Logout)
	router.GET("/whoami", manager.RequireLogin(), func(c *gin.Context) {
		value, _ := c.Get(users.ContextIdentityKey)
		c.JSON(http.StatusOK, value)
	})

	return &testEnv{
		router:   router,
		users:    userStore,
		sessions: sessionStore,
		hasher:   hasher,
		manager:  manager,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string, cookie *http.Cookie, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	if token != "" {
		req.Header.Set("X-CSRF-Token", token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	response := http.Response{Header: rec.Header()}
	for _, cookie := range response.Cookies() {
		if cookie.Name == SessionCookieName {
			return cookie
		}
	}
	return nil
}

func csrfTokenFromBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse csrftoken response: %v", err)
	}
	return body["csrfToken"]
}

func TestCSRFTokenIssuesSessionAndToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/auth/csrftoken", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}

	token := csrfTokenFromBody(t, rec)
	if token == "" {
		t.Fatal("expected a csrf token")
	}
	cookie := sessionCookie(t, rec)
	if cookie == nil {
		t.Fatal("expected a session cookie")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	// 同じセッションで取り直しても同じトークンが返る（冪等）
	second := env.do(t, http.MethodGet, "/auth/csrftoken", "", cookie, "")
	if second.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", second.Code)
	}
	if got := csrfTokenFromBody(t, second); got != token {
		t.Fatalf("token changed between calls: %q != %q", got, token)
	}
}

func TestLoginWithoutCSRFToken(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.users, env.hasher, "alice01", "a@example.com", "P@ssw0rd1")

	rec := env.do(t, http.MethodPost, "/auth/login",
		`{"email":"a@example.com","password":"P@ssw0rd1"}`, nil, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLoginWithTokenFromAnotherSession(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.users, env.hasher, "alice01", "a@example.com", "P@ssw0rd1")

	// セッションAのトークンとセッションBのCookieを組み合わせる
	recA := env.do(t, http.MethodGet, "/auth/csrftoken", "", nil, "")
	tokenA := csrfTokenFromBody(t, recA)
	recB := env.do(t, http.MethodGet, "/auth/csrftoken", "", nil, "")
	cookieB := sessionCookie(t, recB)

	rec := env.do(t, http.MethodPost, "/auth/login",
		`{"email":"a@example.com","password":"P@ssw0rd1"}`, cookieB, tokenA)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.users, env.hasher, "alice01", "a@example.com", "P@ssw0rd1")

	rec := env.do(t, http.MethodGet, "/auth/csrftoken", "", nil, "")
	cookie := sessionCookie(t, rec)
	token := csrfTokenFromBody(t, rec)

	login := env.do(t, http.MethodPost, "/auth/login",
		`{"email":"a@example.com","password":"wrong-password"}`, cookie, token)
	if login.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d body=%s", login.Code, login.Body.String())
	}
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	seeded := seedUser(t, env.users, env.hasher, "alice01", "a@example.com", "P@ssw0rd1")

	rec := env.do(t, http.MethodGet, "/auth/csrftoken", "", nil, "")
	anonCookie := sessionCookie(t, rec)
	token := csrfTokenFromBody(t, rec)

	login := env.do(t, http.MethodPost, "/auth/login",
		`{"email":"a@example.com","password":"P@ssw0rd1"}`, anonCookie, token)
	if login.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", login.Code, login.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(login.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse login response: %v", err)
	}
	if int64(body["id"].(float64)) != seeded.ID || body["name"] != "alice01" {
		t.Fatalf("unexpected identity: %v", body)
	}
	if _, ok := body["email"]; ok {
		t.Fatal("login response must not contain the email address")
	}

	authCookie := sessionCookie(t, login)
	if authCookie == nil {
		t.Fatal("expected a fresh session cookie")
	}
	if !authCookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}
	if authCookie.Value == anonCookie.Value {
		t.Fatal("session id must be rotated on login")
	}

	// 旧セッションIDは無効化されている
	old := env.do(t, http.MethodGet, "/whoami", "", anonCookie, "")
	if old.Code != http.StatusUnauthorized {
		t.Fatalf("old session should be invalid, got: %d", old.Code)
	}

	// 新しいCookieでは本人のIDが引ける
	me := env.do(t, http.MethodGet, "/whoami", "", authCookie, "")
	if me.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d body=%s", me.Code, me.Body.String())
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env.users, env.hasher, "alice01", "a@example.com", "P@ssw0rd1")

	rec := env.do(t, http.MethodGet, "/auth/csrftoken", "", nil, "")
	token := csrfTokenFromBody(t, rec)
	login := env.do(t, http.MethodPost, "/auth/login",
		`{"email":"a@example.com","password":"P@ssw0rd1"}`, sessionCookie(t, rec), token)
	authCookie := sessionCookie(t, login)

	logout := env.do(t, http.MethodPost, "/auth/logout", "", authCookie, token)
	if logout.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d body=%s", logout.Code, logout.Body.String())
	}

	after := env.do(t, http.MethodGet, "/whoami", "", authCookie, "")
	if after.Code != http.StatusUnauthorized {
		t.Fatalf("session should be gone after logout, got: %d", after.Code)
	}
}

func TestRequireLoginExpiredSession(t *testing.T) {
	env := newTestEnv(t)
	seeded := seedUser(t, env.users, env.hasher, "alice01", "a@example.com", "P@ssw0rd1")

	// 期限切れレコードを直接仕込み、署名付きCookieを自前で組み立てる
	record := &session.Record{
		ID:        session.NewID(),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	env.manager.serializer.Serialize(seeded.Public(), record)
	record.ExpiresAt = time.Now().Add(-time.Minute)
	if err := env.sessions.Save(context.Background(), record); err != nil {
		t.Fatalf("failed to save record: %v", err)
	}

	encoded, err := env.manager.codec.Encode(SessionCookieName, record.ID)
	if err != nil {
		t.Fatalf("failed to encode cookie: %v", err)
	}
	cookie := &http.Cookie{Name: SessionCookieName, Value: encoded}

	rec := env.do(t, http.MethodGet, "/whoami", "", cookie, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired session must be unauthenticated, got: %d", rec.Code)
	}
}

func TestRequireLoginTamperedCookie(t *testing.T) {
	env := newTestEnv(t)

	cookie := &http.Cookie{Name: SessionCookieName, Value: "forged-value"}
	rec := env.do(t, http.MethodGet, "/whoami", "", cookie, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("tampered cookie must be unauthenticated, got: %d", rec.Code)
	}
}
