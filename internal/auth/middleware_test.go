package auth

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestRequireLoginWithoutCookie(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/whoami", "", nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRequireLoginAnonymousSession(t *testing.T) {
	env := newTestEnv(t)

	// csrftokenで発行される匿名セッションではログイン必須ルートに入れない
	rec := env.do(t, http.MethodGet, "/auth/csrftoken", "", nil, "")
	cookie := sessionCookie(t, rec)

	probe := env.do(t, http.MethodGet, "/whoami", "", cookie, "")
	if probe.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status: %d body=%s", probe.Code, probe.Body.String())
	}
}

func TestVerifyCSRFSkipsSafeMethods(t *testing.T) {
	env := newTestEnv(t)

	env.router.GET("/safe", env.manager.VerifyCSRF(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	rec := env.do(t, http.MethodGet, "/safe", "", nil, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("safe methods must bypass the csrf check, got: %d", rec.Code)
	}
}

func TestVerifyCSRFRejectsHeaderWithoutSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/login",
		`{"email":"a@example.com","password":"P@ssw0rd1"}`, nil, "some-token")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: %d body=%s", rec.Code, rec.Body.String())
	}
}
