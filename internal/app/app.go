package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/jobnavi/internal/budget"
	"github.com/hitoshi/jobnavi/internal/chat"
	"github.com/hitoshi/jobnavi/internal/config"
	"github.com/hitoshi/jobnavi/internal/credit"
	"github.com/hitoshi/jobnavi/internal/database"
	"github.com/hitoshi/jobnavi/internal/entitlement"
	"github.com/hitoshi/jobnavi/internal/gateway"
	"github.com/hitoshi/jobnavi/internal/handler"
	"github.com/hitoshi/jobnavi/internal/logger"
	"github.com/hitoshi/jobnavi/internal/metrics"
	"github.com/hitoshi/jobnavi/internal/middleware"
	"github.com/hitoshi/jobnavi/internal/repository"
	"github.com/hitoshi/jobnavi/internal/security"
	"github.com/hitoshi/jobnavi/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("model", cfg.AIModel),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	accountRepo := repository.NewPostgresAccountRepo(db)
	jobRepo := repository.NewPostgresJobRepo(db)
	applicationRepo := repository.NewPostgresApplicationRepo(db)
	sessionRepo := repository.NewPostgresChatSessionRepo(db)

	// 3. 課金・割当レイヤーの初期化
	ledger := credit.NewLedger(accountRepo)
	limiter := budget.NewLimiter(
		cfg.BudgetUserDailyTokens, cfg.BudgetGlobalDailyTokens, cfg.BudgetDisabled,
	)
	reservoir := entitlement.NewReservoir(accountRepo, cfg.FreeJobSlotCeiling)
	estimator := credit.NewTiktokenEstimator()

	// 4. AIゲートウェイの初期化
	completer, err := gateway.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.AIModel, cfg.AITimeout)
	if err != nil {
		return fmt.Errorf("failed to initialize AI gateway: %w", err)
	}

	// 5. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 6. 会話エンジンの構築
	engine := chat.NewEngine(chat.EngineDeps{
		Accounts:     accountRepo,
		Jobs:         jobRepo,
		Applications: applicationRepo,
		Sessions:     sessionRepo,

		Ledger:    ledger,
		Limiter:   limiter,
		Reservoir: reservoir,
		Completer: completer,
		Estimator: estimator,
		Sanitizer: security.NewInputSanitizer(),
		Metrics:   collector,

		MaxOutputTokens: cfg.AIMaxOutputTokens,
	})

	// 7. ルーターの構築
	turnsPerMinute := cfg.RateLimitTurnsPerMinute
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		TurnRate:        rate.Limit(float64(turnsPerMinute) / 60.0),
		TurnBurst:       turnsPerMinute,
		CleanupInterval: 5 * time.Minute,
	})
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Engine:            engine,
		DB:                db,
		Gatherer:          registry,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 非アクティブな会話セッションのクリーンアップジョブを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	sessionRepo := repository.NewPostgresChatSessionRepo(db)

	cleanupJob := cleanup.NewCleanupJob(sessionRepo, slog.Default())
	cleanupJob.RetentionDays = cfg.SessionRetentionDays

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("session_retention_days", cleanupJob.RetentionDays),
	)

	// 起動直後に1回実行し、以降は日次で繰り返す
	if err := cleanupJob.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}
	cleanupJob.RunLoop(ctx, 24*time.Hour)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
