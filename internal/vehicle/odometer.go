package vehicle

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/dates"
	"github.com/ryanhess/service-reminder/internal/common/errs"
	"github.com/ryanhess/service-reminder/internal/common/logger"
)

// BaselineStore 里程基线的读改写入口，由 Repo 提供（行锁 + 事务见 repo.go）。
type BaselineStore interface {
	UpdateBaseline(ctx context.Context, vehicleID string, fn BaselineFunc) error
}

// Odometer 里程表更新引擎：校验新读数、推算日均里程、落一条新基线。
type Odometer struct {
	store BaselineStore
	log   logger.Logger
}

func NewOdometer(store BaselineStore, log logger.Logger) *Odometer {
	return &Odometer{store: store, log: log}
}

// ParseReading 解析用户提交的读数字符串（短信正文 / 表单字段）。
func ParseReading(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	odo, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(odo) || math.IsInf(odo, 0) {
		return 0, fmt.Errorf("%w: %q is not a number", errs.ErrInvalidInput, raw)
	}
	return odo, nil
}

// Update 更新一辆车的里程表读数。
//
// 规则：
//   - 没有任何基线（读数 / 日期 / 日均里程任一缺失）时按“首报”处理：
//     旧值视为 0 英里、今天、0 英里/天，不会算出离谱的日均里程；
//   - 新读数小于在库读数报 ErrDecreasingValue（里程只增不减）；
//   - 日均里程 = (新读数 - 旧读数) / 间隔天数；同日重复上报保持旧速率不变；
//   - 读数保留一位小数后，与日期、日均里程一起原子落库。
func (o *Odometer) Update(ctx context.Context, clock clockz.Clock, vehicleID string, newODO float64) error {
	if o == nil || o.store == nil {
		return fmt.Errorf("odometer engine not initialized")
	}
	if newODO < 0 {
		return fmt.Errorf("%w: reading %.1f is negative", errs.ErrOutOfRange, newODO)
	}
	if newODO > MaxMiles {
		return fmt.Errorf("%w: reading %.1f exceeds max %.1f", errs.ErrOutOfRange, newODO, MaxMiles)
	}

	today := dates.DateOf(clock.Now())

	err := o.store.UpdateBaseline(ctx, vehicleID, func(v *Vehicle) (Baseline, error) {
		priorMiles := 0.0
		priorDate := today
		priorRate := 0.0

		if v.HasBaseline() {
			priorMiles = *v.Miles
			priorDate = dates.DateOf(*v.LastOdoDate)
			priorRate = *v.MilesPerDay

			if newODO < priorMiles {
				return Baseline{}, fmt.Errorf(
					"%w: reading %.1f is below recorded %.1f", errs.ErrDecreasingValue, newODO, priorMiles)
			}
		}
		// 基线不完整时按首报处理：旧值全部归零、日期取今天。
		// 间隔为 0 天时保持旧速率，顺带覆盖了首报场景（速率保持 0）。

		rate := priorRate
		if days := dates.DaysBetween(priorDate, today); days != 0 {
			rate = (newODO - priorMiles) / float64(days)
		}

		return Baseline{
			Miles: math.Round(newODO*10) / 10,
			Date:  today,
			Rate:  rate,
		}, nil
	})
	if err != nil {
		return err
	}

	if o.log != nil {
		o.log.WithFields(map[string]interface{}{
			"vehicle_id": vehicleID,
			"odo":        newODO,
		}).Info("odometer updated")
	}
	return nil
}
