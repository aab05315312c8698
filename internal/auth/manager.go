package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"

	"github.com/yourusername/member-gate/internal/config"
	"github.com/yourusername/member-gate/internal/session"
)

const (
	// SessionCookieName はセッションIDを運ぶCookieの名前です。
	SessionCookieName = "mg_session"

	csrfHeader = "X-CSRF-Token"

	sessionLifetime = 7 * 24 * time.Hour
)

// SessionMaxAgeSeconds はクッキーの MaxAge に利用する秒数を返します。
func SessionMaxAgeSeconds() int {
	return int(sessionLifetime.Seconds())
}

// CSRFHeaderName はCSRFトークンを受け渡すヘッダー名を返します。
// CORSの公開ヘッダー設定でも使います。
func CSRFHeaderName() string {
	return csrfHeader
}

// Manager はログイン・ログアウト・CSRFトークン発行と
// セッションCookieのライフサイクルをまとめた構造体です。
// 依存はすべてコンストラクタで注入し、パッケージグローバルな状態は持ちません。
type Manager struct {
	cfg        *config.Config
	sessions   session.Store
	validator  *Validator
	serializer *Serializer
	codec      *securecookie.SecureCookie
}

// NewManager は認証マネージャーを作成します。
// SESSION_SECRET が未設定の場合（ローカル開発）は起動ごとのランダム鍵で署名します。
func NewManager(cfg *config.Config, sessions session.Store, validator *Validator, serializer *Serializer) *Manager {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
	}
	return &Manager{
		cfg:        cfg,
		sessions:   sessions,
		validator:  validator,
		serializer: serializer,
		codec:      securecookie.New(secret, nil),
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// CSRFToken は GET /auth/csrftoken のハンドラーです。
// セッションが無ければ匿名セッションを作ってCookieを発行し、
// そのセッションに束縛されたCSRFトークンを返します。
// トークンはセッションの生存中は同じ値を返します（冪等）。
func (m *Manager) CSRFToken(c *gin.Context) {
	record, err := m.loadRecord(c)
	if err != nil {
		respondSessionFailure(c)
		return
	}

	now := time.Now().UTC()
	if record == nil {
		record = &session.Record{
			ID:        session.NewID(),
			CreatedAt: now,
			ExpiresAt: now.Add(sessionLifetime),
		}
	}

	if record.CSRFToken == "" {
		token, err := generateToken()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    "TOKEN_GENERATION_FAILED",
				"message": "CSRF トークンの生成に失敗しました",
			})
			return
		}
		record.CSRFToken = token
	}

	if err := m.sessions.Save(c.Request.Context(), record); err != nil {
		respondSessionFailure(c)
		return
	}
	if err := m.setSessionCookie(c, record.ID); err != nil {
		respondSessionFailure(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"csrfToken": record.CSRFToken,
	})
}

// Login は POST /auth/login のハンドラーです。
// CSRF検証ミドルウェアを通過していることが前提です。
// 成功時はセッションIDを新しく振り直し（固定化対策）、公開プロフィールを返します。
func (m *Manager) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "INVALID_INPUT",
			"message": "email と password を JSON で送ってください",
		})
		return
	}

	current, err := m.loadRecord(c)
	if err != nil {
		respondSessionFailure(c)
		return
	}
	if current == nil {
		// CSRF検証を通っていれば起こらないが、単体で使われた場合の保険
		respondCSRFRejected(c)
		return
	}

	identity, err := m.validator.Validate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondSessionFailure(c)
		return
	}
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"code":    "INVALID_CREDENTIALS",
			"message": "メールアドレスまたはパスワードが正しくありません",
		})
		return
	}

	// 新しいIDのレコードへ移し替える。CSRFトークンは引き継ぎ、
	// 旧レコードは削除するのでトークンが束縛されるセッションは常に一つ。
	now := time.Now().UTC()
	fresh := &session.Record{
		ID:        session.NewID(),
		CSRFToken: current.CSRFToken,
		CreatedAt: now,
		ExpiresAt: now.Add(sessionLifetime),
	}
	m.serializer.Serialize(*identity, fresh)

	if err := m.sessions.Save(c.Request.Context(), fresh); err != nil {
		respondSessionFailure(c)
		return
	}
	if err := m.sessions.Delete(c.Request.Context(), current.ID); err != nil {
		respondSessionFailure(c)
		return
	}
	if err := m.setSessionCookie(c, fresh.ID); err != nil {
		respondSessionFailure(c)
		return
	}

	c.JSON(http.StatusOK, identity)
}

// Logout は POST /auth/logout のハンドラーです。
func (m *Manager) Logout(c *gin.Context) {
	record, err := m.loadRecord(c)
	if err != nil {
		respondSessionFailure(c)
		return
	}
	if record != nil {
		if err := m.sessions.Delete(c.Request.Context(), record.ID); err != nil {
			respondSessionFailure(c)
			return
		}
	}
	m.ClearSessionCookie(c)
	c.Status(http.StatusNoContent)
}

// ClearSessionCookie はセッションCookieを破棄します。
// アカウント削除後の後始末としても使います。
func (m *Manager) ClearSessionCookie(c *gin.Context) {
	c.SetSameSite(m.cookieSameSite())
	c.SetCookie(SessionCookieName, "", -1, "/", "", m.cookieSecure(), true)
}

func (m *Manager) setSessionCookie(c *gin.Context, sessionID string) error {
	encoded, err := m.codec.Encode(SessionCookieName, sessionID)
	if err != nil {
		return err
	}
	c.SetSameSite(m.cookieSameSite())
	c.SetCookie(SessionCookieName, encoded, SessionMaxAgeSeconds(), "/", "", m.cookieSecure(), true)
	return nil
}

// readSessionID は署名付きCookieからセッションIDを取り出します。
// Cookieが無い・署名が壊れている場合は単に「セッション無し」扱いです。
func (m *Manager) readSessionID(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(SessionCookieName)
	if err != nil {
		return "", false
	}
	var id string
	if err := m.codec.Decode(SessionCookieName, raw, &id); err != nil {
		return "", false
	}
	return id, true
}

// loadRecord は現在のリクエストのセッションレコードを返します。
// 同一リクエスト内ではコンテキストにキャッシュし、ストア参照を1回に抑えます。
func (m *Manager) loadRecord(c *gin.Context) (*session.Record, error) {
	if value, ok := c.Get(contextRecordKey); ok {
		if record, ok := value.(*session.Record); ok {
			return record, nil
		}
	}

	id, ok := m.readSessionID(c)
	if !ok {
		return nil, nil
	}
	record, err := m.sessions.Get(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if record != nil {
		c.Set(contextRecordKey, record)
	}
	return record, nil
}

func (m *Manager) cookieSecure() bool {
	// ローカル・テスト環境以外では必ずSecureを付ける
	return m.cfg.GinMode == gin.ReleaseMode
}

func (m *Manager) cookieSameSite() http.SameSite {
	// クロスオリジンのSPAからcredentials付きで叩かれる前提。
	// SameSite=None はSecureが条件なのでreleaseモードに限る。
	if m.cookieSecure() {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func respondSessionFailure(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"code":    "SESSION_FAILURE",
		"message": "セッションの処理に失敗しました",
	})
}
