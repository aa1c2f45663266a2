package vehicle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ryanhess/service-reminder/internal/common/dates"
	"github.com/ryanhess/service-reminder/internal/common/errs"
)

// Baseline 一次里程上报落库的三元组，三个字段必须在同一事务里一起写。
type Baseline struct {
	Miles float64
	Date  time.Time
	Rate  float64
}

// BaselineFunc 在行锁内基于当前记录计算新基线；返回错误则整个事务回滚，不产生半写。
type BaselineFunc func(v *Vehicle) (Baseline, error)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Create(ctx context.Context, v *Vehicle) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Create(v).Error
}

func (r *Repo) FindByID(ctx context.Context, id string) (*Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var v Vehicle
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: vehicle %s", errs.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *Repo) ListByUser(ctx context.Context, userID string) ([]Vehicle, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	var vs []Vehicle
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at asc").Find(&vs).Error; err != nil {
		return nil, err
	}
	return vs, nil
}

// UpdateBaseline 对单辆车做“读-算-写”：行锁下取出当前记录，交给 fn 计算新基线，
// 同一事务里把三个字段一起写回。并发上报（入站短信撞上每日任务）靠这把行锁串行化，
// 否则两次读数可能都拿旧值通过“不回退”校验。
func (r *Repo) UpdateBaseline(ctx context.Context, vehicleID string, fn BaselineFunc) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var v Vehicle
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", vehicleID).First(&v).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: vehicle %s", errs.ErrNotFound, vehicleID)
		}
		if err != nil {
			return err
		}

		b, err := fn(&v)
		if err != nil {
			return err
		}

		return tx.Model(&Vehicle{}).Where("id = ?", vehicleID).Updates(map[string]interface{}{
			"miles":         b.Miles,
			"last_odo_date": dates.DateOf(b.Date),
			"miles_per_day": b.Rate,
		}).Error
	})
}

// ZeroNullBaselines 每日任务第二步：没有读数或没有日均里程的车辆，
// 估算里程与日均里程一律归零。必须先于投影执行，之后 miles_per_day 不再为 NULL。
func (r *Repo) ZeroNullBaselines(ctx context.Context) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	return r.db.WithContext(ctx).Model(&Vehicle{}).
		Where("miles IS NULL OR miles_per_day IS NULL").
		Updates(map[string]interface{}{
			"est_miles":     0,
			"miles_per_day": 0,
		}).Error
}

// ProjectEstimates 每日任务第三步：有读数的车辆按
// est_miles = miles + miles_per_day * 距上次读数的天数 整表投影。
// 同一天重复执行结果不变（幂等）。
func (r *Repo) ProjectEstimates(ctx context.Context, today time.Time) error {
	if r == nil || r.db == nil {
		return fmt.Errorf("repo db is nil")
	}
	day := dates.DateOf(today)
	return r.db.WithContext(ctx).Model(&Vehicle{}).
		Where("miles IS NOT NULL").
		UpdateColumn("est_miles",
			gorm.Expr("miles + miles_per_day * COALESCE(DATEDIFF(?, last_odo_date), 0)", day)).
		Error
}

// FindNeedingReading 选出该用户最需要上报读数的一辆车，选择规则见 PickNeedingReading。
// 没有符合条件的车辆时返回 ErrNoEligibleVehicle。
func (r *Repo) FindNeedingReading(ctx context.Context, userID string, today time.Time, staleDays int) (*Vehicle, error) {
	vs, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := PickNeedingReading(vs, today, staleDays)
	if v == nil {
		return nil, fmt.Errorf("%w: user %s", errs.ErrNoEligibleVehicle, userID)
	}
	return v, nil
}

// PickNeedingReading 在一组车辆里挑出最需要上报读数的一辆：
// 1) 完全没有基线（读数或日期缺失）的车优先，按创建顺序取第一辆；
// 2) 否则取读数超过 staleDays 天未更新、且日期最陈旧的车；
// 都没有则返回 nil。
func PickNeedingReading(vs []Vehicle, today time.Time, staleDays int) *Vehicle {
	for i := range vs {
		if vs[i].Miles == nil || vs[i].LastOdoDate == nil {
			return &vs[i]
		}
	}

	cutoff := dates.DateOf(today).AddDate(0, 0, -staleDays)
	var oldest *Vehicle
	for i := range vs {
		d := dates.DateOf(*vs[i].LastOdoDate)
		if !d.Before(cutoff) {
			continue
		}
		if oldest == nil || d.Before(dates.DateOf(*oldest.LastOdoDate)) {
			oldest = &vs[i]
		}
	}
	return oldest
}

// UsersWithStaleVehicles 每日任务第一步：找出所有名下有车需要催读数的用户。
// 没有基线的车也算（当天就该催，而不是等七天）。
func (r *Repo) UsersWithStaleVehicles(ctx context.Context, today time.Time, staleDays int) ([]string, error) {
	if r == nil || r.db == nil {
		return nil, fmt.Errorf("repo db is nil")
	}
	cutoff := dates.DateOf(today).AddDate(0, 0, -staleDays)
	var userIDs []string
	err := r.db.WithContext(ctx).Model(&Vehicle{}).
		Distinct().
		Where("last_odo_date IS NULL OR miles IS NULL OR last_odo_date < ?", cutoff).
		Order("user_id asc").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}
