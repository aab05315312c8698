// Package main はAPIサーバーのエントリーポイントです。
package main

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/member-gate/internal/auth"
	"github.com/yourusername/member-gate/internal/config"
	"github.com/yourusername/member-gate/internal/session"
	"github.com/yourusername/member-gate/internal/users"
)

func main() {
	// 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Ginのモードを設定
	gin.SetMode(cfg.GinMode)

	// ストアの初期化（本番はPostgres/Redis、未設定のローカルはインメモリ）
	stores, err := setupStores(cfg)
	if err != nil {
		log.Fatalf("Failed to set up stores: %v", err)
	}
	defer stores.Close()

	router := buildRouter(cfg, stores.users, stores.sessions)

	// 期限切れセッションの掃除をバックグラウンドで開始
	if stores.sweeper != nil {
		stores.sweeper.Start()
		defer stores.sweeper.Shutdown()
	}

	// サーバーの起動
	addr := ":" + cfg.Port
	log.Printf("Starting API server on %s (mode: %s)", addr, cfg.GinMode)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// buildRouter はルーターと認証・ユーザー管理の各コンポーネントを組み立てます。
// ミドルウェアやガードはここで明示的に配線し、グローバル状態には依存しません。
func buildRouter(cfg *config.Config, usersStore users.Store, sessionStore session.Store) *gin.Engine {
	// Ginルーターの初期化（デフォルトミドルウェア: Logger, Recovery）
	router := gin.Default()

	// CORSミドルウェアの設定
	corsConfig := cors.DefaultConfig()
	// CORS許可オリジンを設定（カンマ区切りの文字列を配列に変換）
	origins := strings.Split(cfg.CORSAllowedOrigins, ",")
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
		"Authorization",
		auth.CSRFHeaderName(), // CSRF保護用ヘッダー
	}
	// フロントエンドがレスポンスヘッダーからCSRFトークンを読めるように公開
	corsConfig.ExposeHeaders = []string{auth.CSRFHeaderName()}
	router.Use(cors.New(corsConfig))

	// 認証コンポーネントの組み立て
	hasher := auth.NewHasher()
	validator := auth.NewValidator(usersStore, hasher)
	serializer := auth.NewSerializer(usersStore)
	authManager := auth.NewManager(cfg, sessionStore, validator, serializer)

	// アカウント削除時は全セッションを巻き添えで無効化する
	usersService := users.NewService(usersStore, hasher, sessionStore)

	setupRoutes(router, authManager, usersService)
	return router
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "member-gate-api",
		"version": "0.1.0",
	})
}

// setupRoutes はルーティングと認証ガードの配線を行います。
func setupRoutes(router *gin.Engine, authManager *auth.Manager, usersService *users.Service) {
	// まずは誰でも叩けるヘルスチェックを登録
	router.GET("/health", handleHealth)

	authRoutes := router.Group("/auth")
	{
		// 匿名セッションを確立してCSRFトークンを発行する
		authRoutes.GET("/csrftoken", authManager.CSRFToken)
		// ログインには事前に発行されたCSRFトークンが必要
		authRoutes.POST("/login", authManager.VerifyCSRF(), authManager.Login)
		authRoutes.POST("/logout",
			authManager.RequireLogin(),
			authManager.VerifyCSRF(),
			authManager.Logout,
		)
	}

	userRoutes := router.Group("/users")
	{
		// 登録を含む状態変更系はすべてCSRF検証の対象
		userRoutes.POST("", authManager.VerifyCSRF(), users.RegisterHandler(usersService))
		userRoutes.GET("", users.ListHandler(usersService))
		userRoutes.GET("/me", authManager.RequireLogin(), users.MeHandler(usersService))
		userRoutes.GET("/:id", users.GetHandler(usersService))

		// 更新・削除は常にセッション由来の本人IDに対してのみ行う
		userRoutes.PATCH("/me",
			authManager.RequireLogin(),
			authManager.VerifyCSRF(),
			users.UpdateMeHandler(usersService),
		)
		userRoutes.DELETE("/me",
			authManager.RequireLogin(),
			authManager.VerifyCSRF(),
			users.DeleteMeHandler(usersService, authManager.ClearSessionCookie),
		)
	}
}
