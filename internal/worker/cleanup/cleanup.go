// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// 期限切れセッションはルックアップ時にもWHERE句で除外されるため、
// このジョブは行の回収のみを担い、可視性には影響しない。
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/accountd/internal/repository"
)

// DefaultReapInterval は期限切れセッション削除のデフォルト実行間隔。
const DefaultReapInterval = 2 * time.Minute

// SessionsReapedRecorder は削除件数のメトリクス記録インターフェース。
// nilを渡した場合は記録を行わない。
type SessionsReapedRecorder interface {
	RecordSessionsReaped(count int64)
}

// SessionReaper は期限切れセッションを定期的に削除するジョブ。
// 削除は冪等で、対象が存在しない場合もエラーにならない。
type SessionReaper struct {
	sessions repository.SessionRepository
	logger   *slog.Logger
	metrics  SessionsReapedRecorder
	Interval time.Duration
}

// NewSessionReaper はSessionReaperを生成する。
// intervalが0以下の場合はDefaultReapIntervalを使用する。metricsはnil可。
func NewSessionReaper(sessions repository.SessionRepository, logger *slog.Logger, metrics SessionsReapedRecorder, interval time.Duration) *SessionReaper {
	if interval <= 0 {
		interval = DefaultReapInterval
	}
	return &SessionReaper{
		sessions: sessions,
		logger:   logger,
		metrics:  metrics,
		Interval: interval,
	}
}

// Run は期限切れセッションを1回削除する。
func (r *SessionReaper) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := r.sessions.DeleteExpired(ctx)
	if err != nil {
		r.logger.Error("session reap failed",
			slog.String("error", err.Error()),
		)
		return err
	}

	if r.metrics != nil {
		r.metrics.RecordSessionsReaped(deleted)
	}

	r.logger.Info("session reap completed",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start は削除ジョブを定期実行する。起動直後に1回実行し、
// 以降はInterval間隔で実行する。ctxのキャンセルで停止する（ブロッキング）。
func (r *SessionReaper) Start(ctx context.Context) {
	if err := r.Run(ctx); err != nil {
		r.logger.Error("session reap run failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Run(ctx); err != nil {
				r.logger.Error("session reap run failed", slog.String("error", err.Error()))
			}
		}
	}
}
