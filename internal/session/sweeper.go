package session

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"
)

const taskTypeSweep = "session:sweep"

// Sweeper は期限切れセッションの掃除を Asynq の定期タスクとして実行します。
// 掃除はリクエスト処理とは独立したワーカーで動き、リクエストをブロックしません。
type Sweeper struct {
	store     Store
	server    *asynq.Server
	scheduler *asynq.Scheduler
	mux       *asynq.ServeMux
	logger    *log.Logger
}

// NewSweeper は Sweeper を初期化します。period は実行間隔です。
func NewSweeper(redisURL string, store Store, period time.Duration, logger *log.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 1,
			Queues: map[string]int{
				"maintenance": 1,
			},
		},
	)
	scheduler := asynq.NewScheduler(opt, nil)

	sweeper := &Sweeper{
		store:     store,
		server:    server,
		scheduler: scheduler,
		mux:       asynq.NewServeMux(),
		logger:    logger,
	}
	sweeper.mux.HandleFunc(taskTypeSweep, sweeper.handleSweep)

	task := asynq.NewTask(taskTypeSweep, nil, asynq.Queue("maintenance"))
	if _, err := scheduler.Register(fmt.Sprintf("@every %s", period), task); err != nil {
		return nil, fmt.Errorf("failed to register sweep task: %w", err)
	}
	return sweeper, nil
}

// Start はワーカーとスケジューラーをバックグラウンドで起動します。
func (s *Sweeper) Start() {
	go func() {
		if err := s.server.Run(s.mux); err != nil && err != asynq.ErrServerClosed {
			s.logf("asynq server stopped with error: %v", err)
		}
	}()
	go func() {
		if err := s.scheduler.Run(); err != nil {
			s.logf("asynq scheduler stopped with error: %v", err)
		}
	}()
}

// Shutdown はワーカーとスケジューラーを停止します。
func (s *Sweeper) Shutdown() {
	s.scheduler.Shutdown()
	s.server.Shutdown()
}

func (s *Sweeper) handleSweep(ctx context.Context, task *asynq.Task) error {
	removed, err := s.store.PruneExpired(ctx)
	if err != nil {
		return err
	}
	if removed > 0 {
		s.logf("session sweep removed %d stale entries", removed)
	}
	return nil
}

func (s *Sweeper) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}
