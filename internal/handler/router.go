package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kbase/internal/middleware"
)

// SetupAuthRoutes は認証関連のルーティングを設定したchi.Routerを返す。
func SetupAuthRoutes(service AuthServiceInterface, config AuthHandlerConfig) http.Handler {
	r := chi.NewRouter()
	mountAuthRoutes(r, NewAuthHandler(service, config))
	return r
}

// mountAuthRoutes は/auth配下のルートを登録する。
func mountAuthRoutes(r chi.Router, h *AuthHandler) {
	r.Route("/auth", func(r chi.Router) {
		// OAuthフロー
		r.Get("/google/login", h.Login)
		r.Get("/google/callback", h.Callback)

		// セッション管理
		r.Post("/logout", h.Logout)
		r.Get("/me", h.Me)
	})
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// 運用系
	Logger         *slog.Logger
	StatusObserver middleware.StatusObserver
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	IdentityResolver  middleware.IdentityResolver
	CORSAllowedOrigin string
	CSRFEnabled       bool
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ナレッジベース
	KnowledgeBaseService KnowledgeBaseServiceInterface

	// ドキュメント
	DocumentService DocumentServiceInterface
	StagingDir      string
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → CORS
//	  → Session → Identity → RateLimit(General) → CSRF （/api配下の認証ルートのみ）
//
// 認証ルート（/auth/*）、/health、/metricsは認証チェーンの外に配置する。
// 未定義メソッドにはchi既定の405（Allowヘッダー付き）を返す。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusObserver))
	}
	// CORS ミドルウェアは全ルートに効かせる
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	kbHandler := NewKnowledgeBaseHandler(deps.KnowledgeBaseService)
	docHandler := NewDocumentHandler(deps.DocumentService, deps.StagingDir)

	// --- 認証不要のルート ---

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	if deps.CSRFEnabled {
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)
	}

	mountAuthRoutes(r, authHandler)

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewIdentityMiddleware(deps.IdentityResolver))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		if deps.CSRFEnabled {
			r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		}

		// ナレッジベース管理
		r.Route("/api/knowledge-bases", func(r chi.Router) {
			r.Get("/", kbHandler.List)
			r.Post("/", kbHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", kbHandler.Get)
				r.Put("/", kbHandler.Update)
				r.Delete("/", kbHandler.Delete)
			})
		})

		// ドキュメント管理
		r.Route("/api/documents", func(r chi.Router) {
			// POST /api/documents/upload - アップロード専用のレート制限を追加
			r.With(deps.RateLimiter.UploadMiddleware()).Post("/upload", docHandler.Upload)
			r.Delete("/delete", docHandler.Delete)
		})
	})

	return r
}
