package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/errs"
	"github.com/ryanhess/service-reminder/internal/common/logger"
)

// VehicleStore 每日任务需要的车辆批量操作（整表条件更新，见 vehicle.Repo）。
type VehicleStore interface {
	UsersWithStaleVehicles(ctx context.Context, today time.Time, staleDays int) ([]string, error)
	ZeroNullBaselines(ctx context.Context) error
	ProjectEstimates(ctx context.Context, today time.Time) error
}

// ItemFlagger 到期标志的批量置位。
type ItemFlagger interface {
	FlagDueItems(ctx context.Context, thresholdMiles float64) error
}

// Prompter 向用户发送“请上报里程”的催读短信。
type Prompter interface {
	PromptForReading(ctx context.Context, clock clockz.Clock, userID string) error
}

// Config 任务参数（阈值默认 500 英里、过期窗口默认 7 天，与线上行为一致）。
type Config struct {
	DueThresholdMiles float64
	StalePromptDays   int
}

// Job 每日维护任务。四个步骤顺序敏感，见 Run。
type Job struct {
	vehicles VehicleStore
	items    ItemFlagger
	prompter Prompter
	cfg      Config
	log      logger.Logger
}

func NewJob(vehicles VehicleStore, items ItemFlagger, prompter Prompter, cfg Config, log logger.Logger) *Job {
	if cfg.DueThresholdMiles <= 0 {
		cfg.DueThresholdMiles = 500
	}
	if cfg.StalePromptDays <= 0 {
		cfg.StalePromptDays = 7
	}
	return &Job{vehicles: vehicles, items: items, prompter: prompter, cfg: cfg, log: log}
}

// Run 执行一轮每日维护，应至少每个日历日跑一次。同一天重复执行产生相同的落库状态。
//
// 步骤顺序不能调换：
//  1. 催读数——给每个名下有车需要上报的用户发一条提示；
//  2. 空基线归零——没有读数或没有日均里程的车辆 est_miles / miles_per_day 置 0，
//     保证第 3 步不会对着 NULL 做乘法；
//  3. 投影——est_miles = miles + miles_per_day * 距上次读数天数；
//  4. 置到期标志——到期里程与估算里程的差小于阈值的项目置位。
//
// 存储层步骤失败即整个任务失败，依赖幂等性整轮重跑；
// 短信发送失败只记日志，不影响数据步骤。
func (j *Job) Run(ctx context.Context, clock clockz.Clock) error {
	if j == nil || j.vehicles == nil || j.items == nil {
		return fmt.Errorf("job not initialized")
	}
	today := clock.Now()

	userIDs, err := j.vehicles.UsersWithStaleVehicles(ctx, today, j.cfg.StalePromptDays)
	if err != nil {
		return fmt.Errorf("select stale users: %w", err)
	}
	for _, uid := range userIDs {
		if j.prompter == nil {
			break
		}
		if err := j.prompter.PromptForReading(ctx, clock, uid); err != nil {
			// 单个用户催读失败不阻塞任务；车在选集和发送之间被更新属正常竞态。
			if j.log != nil && !errors.Is(err, errs.ErrNoEligibleVehicle) {
				j.log.WithField("user_id", uid).Warnf("prompt failed: %v", err)
			}
		}
	}

	if err := j.vehicles.ZeroNullBaselines(ctx); err != nil {
		return fmt.Errorf("zero null baselines: %w", err)
	}

	if err := j.vehicles.ProjectEstimates(ctx, today); err != nil {
		return fmt.Errorf("project estimates: %w", err)
	}

	if err := j.items.FlagDueItems(ctx, j.cfg.DueThresholdMiles); err != nil {
		return fmt.Errorf("flag due items: %w", err)
	}

	if j.log != nil {
		j.log.WithField("prompted_users", len(userIDs)).Info("daily maintenance finished")
	}
	return nil
}
