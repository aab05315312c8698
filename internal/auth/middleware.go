package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-gate/internal/users"
)

// contextRecordKey は同一リクエスト内でセッションレコードを使い回すためのキーです。
const contextRecordKey = "auth.session"

// RequireLogin は認可ガードのミドルウェアを返します。
// 有効なログイン済みセッションが無ければ401で打ち切り、
// あればストアから復元した公開プロフィールをコンテキストに載せます。
// IDの解決は毎リクエストのストア参照で行うため、サーバー側での
// セッション無効化・アカウント削除は即座に効きます。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		record, err := m.loadRecord(c)
		if err != nil {
			respondSessionFailure(c)
			return
		}
		if record == nil || !record.Authenticated() {
			respondUnauthenticated(c)
			return
		}

		identity, err := m.serializer.Deserialize(c.Request.Context(), record)
		if err != nil {
			if errors.Is(err, ErrInvalidSession) {
				// アカウントが消えているセッションはここで破棄する
				_ = m.sessions.Delete(c.Request.Context(), record.ID)
				m.ClearSessionCookie(c)
				respondUnauthenticated(c)
				return
			}
			respondSessionFailure(c)
			return
		}

		// スライディング有効期限: 利用があるたびに7日間の窓を延長する
		record.ExpiresAt = time.Now().UTC().Add(sessionLifetime)
		if err := m.sessions.Save(c.Request.Context(), record); err != nil {
			respondSessionFailure(c)
			return
		}

		c.Set(contextRecordKey, record)
		c.Set(users.ContextIdentityKey, identity)
		c.Next()
	}
}

// VerifyCSRF は X-CSRF-Token ヘッダーを検証するミドルウェアを返します。
// 検証は状態変更メソッドのみが対象で、読み取り系はそのまま通します。
// セッション無し・トークン未発行・不一致はすべて同じ403で、
// 失敗理由は外から区別できません。
func (m *Manager) VerifyCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		if isSafeMethod(c.Request.Method) {
			c.Next()
			return
		}

		record, err := m.loadRecord(c)
		if err != nil {
			respondSessionFailure(c)
			return
		}

		expected := ""
		if record != nil {
			expected = record.CSRFToken
		}
		received := c.GetHeader(csrfHeader)

		// 比較は常に実行し、トークン内容で時間差を作らない
		match := subtle.ConstantTimeCompare([]byte(expected), []byte(received)) == 1
		if expected == "" || !match {
			respondCSRFRejected(c)
			return
		}

		c.Next()
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	default:
		return false
	}
}

func respondUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "UNAUTHORIZED",
		"message": "ログインが必要です",
	})
}

func respondCSRFRejected(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"code":    "CSRF_INVALID",
		"message": "CSRF トークンを確認できませんでした",
	})
}
