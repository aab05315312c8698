package users

import (
	"context"
	"log"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ContextIdentityKey は、認可ガードが解決したログイン済みユーザーの
// 公開プロフィール（PublicUser）をハンドラー間で共有するためのキーです。
const ContextIdentityKey = "auth.identity"

// AccountService はハンドラーが必要とするユースケースです。
type AccountService interface {
	Create(ctx context.Context, name, email, password string) (*PublicUser, error)
	Paginate(ctx context.Context, page, limit int) ([]PublicUser, int, error)
	FindByID(ctx context.Context, id int64) (*PublicUser, error)
	FindPrivateByID(ctx context.Context, id int64) (*PrivateUser, error)
	Update(ctx context.Context, id int64, input UpdateInput) (*PrivateUser, error)
	Delete(ctx context.Context, id int64) error
}

// passwordRe はパスワードに使える文字種（空白を除く印字可能ASCII）を定めます。
var passwordRe = regexp.MustCompile(`^[!-~]+$`)

type createUserRequest struct {
	Name     string `json:"name" binding:"required,min=4,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=32"`
}

type updateUserRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=4,max=32"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Password *string `json:"password" binding:"omitempty,min=8,max=32"`
}

// RegisterHandler は POST /users のハンドラーを返します。
func RegisterHandler(svc AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalidInput(c)
			return
		}
		if !passwordRe.MatchString(req.Password) {
			respondInvalidInput(c)
			return
		}

		created, err := svc.Create(c.Request.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// ListHandler は GET /users のハンドラーを返します。
// page / limit はクエリで指定し、作成日時の降順で返します。
func ListHandler(svc AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := parseQueryInt(c, "page", DefaultPage)
		limit := parseQueryInt(c, "limit", DefaultLimit)

		data, total, err := svc.Paginate(c.Request.Context(), page, limit)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"count": total,
			"data":  data,
		})
	}
}

// GetHandler は GET /users/:id のハンドラーを返します。公開プロフィールのみ返します。
func GetHandler(svc AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			respondInvalidInput(c)
			return
		}

		user, err := svc.FindByID(c.Request.Context(), id)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// MeHandler は GET /users/me のハンドラーを返します。
// 本人向けプロフィール（メールアドレスを含む）を返します。
func MeHandler(svc AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromContext(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		user, err := svc.FindPrivateByID(c.Request.Context(), identity.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// UpdateMeHandler は PATCH /users/me のハンドラーを返します。
// 更新対象は常にセッション由来のIDで、リクエストからIDは受け取りません。
func UpdateMeHandler(svc AccountService) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromContext(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		var req updateUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondInvalidInput(c)
			return
		}
		if req.Password != nil && !passwordRe.MatchString(*req.Password) {
			respondInvalidInput(c)
			return
		}

		updated, err := svc.Update(c.Request.Context(), identity.ID, UpdateInput{
			Name:     req.Name,
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			respondWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// DeleteMeHandler は DELETE /users/me のハンドラーを返します。
// アカウントと全セッションを削除した後、onDeleted（セッションCookieの破棄など）を呼びます。
func DeleteMeHandler(svc AccountService, onDeleted func(c *gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromContext(c)
		if !ok {
			respondUnauthenticated(c)
			return
		}

		if err := svc.Delete(c.Request.Context(), identity.ID); err != nil {
			respondWithError(c, err)
			return
		}
		if onDeleted != nil {
			onDeleted(c)
		}
		c.Status(http.StatusNoContent)
	}
}

func identityFromContext(c *gin.Context) (PublicUser, bool) {
	value, ok := c.Get(ContextIdentityKey)
	if !ok {
		return PublicUser{}, false
	}
	identity, ok := value.(PublicUser)
	return identity, ok
}

func parseQueryInt(c *gin.Context, key string, defaultValue int) int {
	raw := c.Query(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func respondInvalidInput(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{
		"code":    "INVALID_INPUT",
		"message": "name / email / password を正しい形式で送ってください",
	})
}

func respondUnauthenticated(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "UNAUTHORIZED",
		"message": "ログインが必要です",
	})
}

func respondWithError(c *gin.Context, err error) {
	switch {
	case err == nil:
		return
	case isDuplicateEmail(err):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "DUPLICATE_EMAIL",
			"message": "このメールアドレスは既に登録されています",
		})
	case isNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "NOT_FOUND",
			"message": "ユーザーが見つかりません",
		})
	default:
		// ストア障害などの詳細はログにのみ残し、クライアントへは返さない
		log.Printf("users: request failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "サーバー内部でエラーが発生しました",
		})
	}
}
