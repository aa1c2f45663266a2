package schedule

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/ryanhess/service-reminder/internal/common/errs"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, it *Item) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Create(it).Error
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Item, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var it Item
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&it).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: service item %s", errs.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

func (r *Repo) ListByVehicle(ctx context.Context, vehicleID string) ([]Item, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var items []Item
	if err := r.db.WithContext(ctx).Where("vehicle_id = ?", vehicleID).Order("created_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListDue 取出所有已置到期标志的项目。
func (r *Repo) ListDue(ctx context.Context) ([]Item, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var items []Item
	if err := r.db.WithContext(ctx).Where("due_flag = ?", true).Order("created_at asc").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// MarkDone 记录一次保养完成：上次完成里程、下次到期里程、清除到期标志，一条语句写完。
func (r *Repo) MarkDone(ctx context.Context, itemID string, doneMiles, dueAtMiles float64) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	res := r.db.WithContext(ctx).Model(&Item{}).Where("id = ?", itemID).Updates(map[string]interface{}{
		"last_done_miles": doneMiles,
		"due_at_miles":    dueAtMiles,
		"due_flag":        false,
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: service item %s", errs.ErrNotFound, itemID)
	}
	return nil
}

// FlagDueItems 每日任务第四步：车辆估算里程已逼近到期里程
// （差值小于阈值）的项目置到期标志。只置位，不清除——清除只发生在完成保养时。
func (r *Repo) FlagDueItems(ctx context.Context, thresholdMiles float64) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Exec(`
		UPDATE service_items si
		JOIN vehicles v ON v.id = si.vehicle_id
		SET si.due_flag = TRUE
		WHERE si.due_at_miles - v.est_miles < ?`, thresholdMiles).Error
}
