// Package cleanup はバックグラウンドの保守ジョブを提供する。
// 期限切れセッションの削除と、異常終了したプロセスが残したアップロード一時ファイルの
// 削除を定期的に行う。リクエスト処理はこのジョブの実行に依存しない。
package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hitoshi/kbase/internal/document"
)

// DefaultStagingMaxAge は一時ファイルを孤立とみなすまでの経過時間のデフォルト値。
const DefaultStagingMaxAge = time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は期限切れセッションと孤立した一時ファイルの削除ジョブ。
// 冪等な削除処理のみを行うため、複数のワーカーから同時に実行しても安全。
type CleanupJob struct {
	db            Executor
	logger        *slog.Logger
	StagingDir    string        // アップロード一時ファイルの配置ディレクトリ。空の場合はスイープしない
	StagingMaxAge time.Duration // これより古い一時ファイルを削除する

	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// stagingMaxAgeが0以下の場合はDefaultStagingMaxAgeを使用する。
func NewCleanupJob(db Executor, stagingDir string, stagingMaxAge time.Duration, logger *slog.Logger) *CleanupJob {
	if stagingMaxAge <= 0 {
		stagingMaxAge = DefaultStagingMaxAge
	}
	return &CleanupJob{
		db:            db,
		logger:        logger,
		StagingDir:    stagingDir,
		StagingMaxAge: stagingMaxAge,
		now:           time.Now,
	}
}

// Run はセッション削除と一時ファイルのスイープを1回実行する。
// 片方が失敗してももう片方は実行し、両方のエラーをまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	sessionErr := j.deleteExpiredSessions(ctx)
	stagingErr := j.sweepStaging()
	return errors.Join(sessionErr, stagingErr)
}

// Start は起動直後に1回Runを実行し、以降intervalごとに実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	j.runAndLog(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runAndLog(ctx)
		}
	}
}

func (j *CleanupJob) runAndLog(ctx context.Context) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}

// deleteExpiredSessions は有効期限を過ぎたセッションを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) deleteExpiredSessions(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		j.logger.Error("期限切れセッションの削除に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("削除件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("削除件数の取得に失敗: %w", err)
	}

	j.logger.Info("期限切れセッションの削除が完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// sweepStaging はStagingMaxAgeより古いアップロード一時ファイルを削除する。
// 一時ファイル名のパターンに一致しないファイルやディレクトリには触れない。
func (j *CleanupJob) sweepStaging() error {
	if j.StagingDir == "" {
		return nil
	}

	entries, err := os.ReadDir(j.StagingDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		j.logger.Error("一時ディレクトリの読み取りに失敗しました",
			slog.String("dir", j.StagingDir),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("一時ディレクトリの読み取りに失敗: %w", err)
	}

	cutoff := j.now().Add(-j.StagingMaxAge)
	var removed int
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(document.StagingPattern, entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// スキャン中にリクエスト側で削除された
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(j.StagingDir, entry.Name())
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, fmt.Errorf("一時ファイルの削除に失敗: %w", err))
			continue
		}
		removed++
	}

	j.logger.Info("一時ファイルのスイープが完了しました",
		slog.String("dir", j.StagingDir),
		slog.Int("removed_count", removed),
		slog.Duration("max_age", j.StagingMaxAge),
	)
	return errors.Join(errs...)
}
