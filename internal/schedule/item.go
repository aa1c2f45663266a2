package schedule

import (
	"time"
)

// Item 是 service_items 表的 GORM 模型：一辆车上的一个周期性保养项目。
// UserID 从车辆冗余过来，发通知时省一次关联查询。
type Item struct {
	ID        string `gorm:"primaryKey;size:36"`
	VehicleID string `gorm:"index;size:36;not null"`
	UserID    string `gorm:"index;size:36;not null"`

	Description   string  `gorm:"type:text;not null"`          // 项目描述，非空
	IntervalMiles float64 `gorm:"not null"`                    // 保养周期（英里），必须为正
	LastDoneMiles float64 `gorm:"not null;default:0"`          // 上次完成时的里程，从未做过则为 0
	DueAtMiles    float64 `gorm:"type:decimal(8,1)"`           // 下次到期里程 = 上次完成里程 + 周期
	DueFlag       bool    `gorm:"not null;default:false;index"` // 到期标志，每日任务置位，完成保养时清除

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (Item) TableName() string { return "service_items" }
