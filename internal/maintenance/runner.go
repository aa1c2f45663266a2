package maintenance

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/logger"
)

// Runner 封装周期执行：部署上通常用 cron 调 daily-maint 一次性跑，
// 长驻模式下用 RunEvery；同一时刻最多一轮在跑，重入直接拒绝。
type Runner struct {
	job     *Job
	clock   clockz.Clock
	log     logger.Logger
	running atomic.Bool
}

func NewRunner(job *Job, clock clockz.Clock, log logger.Logger) *Runner {
	return &Runner{job: job, clock: clock, log: log}
}

// RunOnce 跑一轮；已有一轮在跑时返回 false，什么都不做。
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	if !r.running.CompareAndSwap(false, true) {
		return false, nil
	}
	defer r.running.Store(false)
	return true, r.job.Run(ctx, r.clock)
}

// RunEvery 按 interval 周期执行，直到 ctx 取消。启动时先立刻跑一轮。
func (r *Runner) RunEvery(ctx context.Context, interval time.Duration) {
	if _, err := r.RunOnce(ctx); err != nil && r.log != nil {
		r.log.Errorf("daily maintenance failed: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			started, err := r.RunOnce(ctx)
			if err != nil && r.log != nil {
				r.log.Errorf("daily maintenance failed: %v", err)
			}
			if !started && r.log != nil {
				r.log.Warn("previous maintenance run still in progress, skipping")
			}
		}
	}
}
