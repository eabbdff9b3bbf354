// Package cleanup は会話セッションの自動削除ジョブを提供する。
// 保持期間（デフォルト30日）を超えて更新がない非アクティブセッションを
// 日次バッチで削除する。アクティブなセッションは対象外。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jobnavi/internal/repository"
)

// CleanupJob は保持期間を超過した会話セッションの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions      repository.ChatSessionRepository
	logger        *slog.Logger
	RetentionDays int // セッションの保持日数（デフォルト: 30）

	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は30日。
func NewCleanupJob(sessions repository.ChatSessionRepository, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions:      sessions,
		logger:        logger,
		RetentionDays: 30,
		now:           time.Now,
	}
}

// Run は保持期間を超過した非アクティブセッションを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()
	cutoff := start.AddDate(0, 0, -j.RetentionDays)

	deletedCount, err := j.sessions.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// RunLoop は日次間隔でRunを繰り返す。コンテキストのキャンセルで停止する。
func (j *CleanupJob) RunLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup run failed", slog.String("error", err.Error()))
			}
		case <-ctx.Done():
			return
		}
	}
}
