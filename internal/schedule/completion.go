package schedule

import (
	"context"
	"fmt"

	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/errs"
	"github.com/ryanhess/service-reminder/internal/common/logger"
	"github.com/ryanhess/service-reminder/internal/vehicle"
)

// ItemStore 完成保养需要的项目读写。
type ItemStore interface {
	FindByID(ctx context.Context, id string) (*Item, error)
	MarkDone(ctx context.Context, itemID string, doneMiles, dueAtMiles float64) error
}

// VehicleReader 读取项目所属车辆的当前里程。
type VehicleReader interface {
	FindByID(ctx context.Context, id string) (*vehicle.Vehicle, error)
}

// OdometerUpdater 里程表更新引擎（车辆记录落后于保养里程时顺带补上）。
type OdometerUpdater interface {
	Update(ctx context.Context, clock clockz.Clock, vehicleID string, newODO float64) error
}

// Completion 保养完成引擎：记录完成里程、推进到期里程、清除到期标志，
// 必要时把车辆的里程记录同步上来。
type Completion struct {
	items    ItemStore
	vehicles VehicleReader
	odometer OdometerUpdater
	log      logger.Logger
}

func NewCompletion(items ItemStore, vehicles VehicleReader, odometer OdometerUpdater, log logger.Logger) *Completion {
	return &Completion{items: items, vehicles: vehicles, odometer: odometer, log: log}
}

// Complete 记录一次保养在 doneMiles 英里处完成。
//
// 校验：
//   - doneMiles 非负，且不超过 MaxMiles 减去该项目的周期（否则新的到期里程溢出）；
//   - doneMiles 不得小于项目自己记录的上次完成里程（项目历史同样只进不退）。
//
// 跨实体一致性：车辆在库里程缺失或低于 doneMiles 时，说明车辆记录已经过期，
// 用 doneMiles 补报一次里程；车辆记录更新（≥ doneMiles）则跳过，这不是错误。
func (c *Completion) Complete(ctx context.Context, clock clockz.Clock, itemID string, doneMiles float64) error {
	if c == nil || c.items == nil {
		return fmt.Errorf("completion engine not initialized")
	}
	if doneMiles < 0 {
		return fmt.Errorf("%w: mileage %.1f is negative", errs.ErrOutOfRange, doneMiles)
	}

	it, err := c.items.FindByID(ctx, itemID)
	if err != nil {
		return err
	}

	if doneMiles > vehicle.MaxMiles-it.IntervalMiles {
		return fmt.Errorf("%w: mileage %.1f puts the next due mileage past %.1f",
			errs.ErrOutOfRange, doneMiles, vehicle.MaxMiles)
	}
	if doneMiles < it.LastDoneMiles {
		return fmt.Errorf("%w: mileage %.1f is below the last completion at %.1f",
			errs.ErrDecreasingValue, doneMiles, it.LastDoneMiles)
	}

	v, err := c.vehicles.FindByID(ctx, it.VehicleID)
	if err != nil {
		return err
	}
	if v.Miles == nil || *v.Miles < doneMiles {
		if err := c.odometer.Update(ctx, clock, v.ID, doneMiles); err != nil {
			return err
		}
	}

	if err := c.items.MarkDone(ctx, itemID, doneMiles, doneMiles+it.IntervalMiles); err != nil {
		return err
	}

	if c.log != nil {
		c.log.WithFields(map[string]interface{}{
			"item_id":      itemID,
			"done_miles":   doneMiles,
			"due_at_miles": doneMiles + it.IntervalMiles,
		}).Info("service completed")
	}
	return nil
}
