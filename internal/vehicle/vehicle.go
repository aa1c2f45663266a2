package vehicle

import (
	"fmt"
	"time"
)

// MaxMiles 里程字段在库里是 DECIMAL(8,1)，可表示的理论最大值。
// 超过它的读数直接拒绝，避免写入被截断。
const MaxMiles = 9999999.9

// Vehicle 是 vehicles 表的 GORM 模型。
//
// Miles / LastOdoDate / MilesPerDay 用指针表达“从未记录”：
// 0 英里是合法读数，和“没有基线”是两回事，不能用零值混过去。
type Vehicle struct {
	ID       string  `gorm:"primaryKey;size:36"`
	UserID   string  `gorm:"index;size:36;not null"`
	Nickname *string `gorm:"size:64"` // 用户给车起的昵称，可空
	Make     string  `gorm:"size:64"`
	Model    string  `gorm:"size:64"`
	Year     int     `gorm:"not null;default:0"`

	Miles       *float64   `gorm:"type:decimal(8,1)"` // 最近一次里程表读数
	LastOdoDate *time.Time `gorm:"type:date"`         // 该读数的日期
	MilesPerDay *float64   // 日均里程（由相邻两次读数推算）
	EstMiles    float64    `gorm:"not null;default:0"` // 估算当前里程，每日任务刷新

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// HasBaseline 判断车辆是否具备完整基线（读数、日期、日均里程三者齐全）。
func (v *Vehicle) HasBaseline() bool {
	return v != nil && v.Miles != nil && v.LastOdoDate != nil && v.MilesPerDay != nil
}

// DisplayName 返回通知文案里的车辆称呼：有昵称用昵称，否则“your 年份 品牌 型号”。
func (v *Vehicle) DisplayName() string {
	if v == nil {
		return ""
	}
	if v.Nickname != nil && *v.Nickname != "" {
		return *v.Nickname
	}
	return fmt.Sprintf("your %d %s %s", v.Year, v.Make, v.Model)
}
