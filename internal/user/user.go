package user

import (
	"time"
)

// User 是 users 表的 GORM 模型。
// 引擎只读用户：姓名用于拼通知文案，手机号用于收发短信。
type User struct {
	ID        string    `gorm:"primaryKey;size:36"`
	Username  string    `gorm:"uniqueIndex;size:64;not null"`
	Phone     string    `gorm:"uniqueIndex;size:32"` // E.164 格式，入站短信靠它定位用户
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
