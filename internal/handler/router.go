package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jobnavi/internal/metrics"
	"github.com/hitoshi/jobnavi/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	Engine AssistantEngineInterface
	DB     DBPinger

	// Gathererがnilの場合、/metricsは公開しない。
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS →（ターンのみ）RateLimit
//
// ヘルスチェックとメトリクスはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	assistantHandler := NewAssistantHandler(deps.Engine)
	healthHandler := NewHealthHandler(deps.DB)

	r.Get("/healthz", healthHandler.Health)
	if deps.Gatherer != nil {
		r.Get("/metrics", metrics.Handler(deps.Gatherer).ServeHTTP)
	}

	r.Route("/api/assistant", func(r chi.Router) {
		r.With(deps.RateLimiter.TurnMiddleware()).Post("/turn", assistantHandler.HandleTurn)
	})

	return r
}
