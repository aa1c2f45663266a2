package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/dates"
	"github.com/ryanhess/service-reminder/internal/common/logger"
	"github.com/ryanhess/service-reminder/internal/schedule"
	"github.com/ryanhess/service-reminder/internal/user"
	"github.com/ryanhess/service-reminder/internal/vehicle"
)

// Sender 发一条短信。由 sms.TwilioSender 实现。
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// UserReader 通知需要收件人的用户名和手机号。
type UserReader interface {
	FindByID(ctx context.Context, id string) (*user.User, error)
}

// VehicleReader 通知文案里要带车辆名称。
type VehicleReader interface {
	FindByID(ctx context.Context, id string) (*vehicle.Vehicle, error)
	FindNeedingReading(ctx context.Context, userID string, today time.Time, staleDays int) (*vehicle.Vehicle, error)
}

// ItemReader 保养项目的读取口：按 ID 取单条，或列出所有到期标志已置位的项目。
type ItemReader interface {
	FindByID(ctx context.Context, id string) (*schedule.Item, error)
	ListDue(ctx context.Context) ([]schedule.Item, error)
}

// Config 通知参数。DedupTTL 为 0 时关闭去重窗口判断（仍受 Deduper 为 nil 的约束）。
type Config struct {
	StalePromptDays int
	DedupTTL        time.Duration
}

// Dispatcher 负责两类外发短信：催读数和到期提醒。
type Dispatcher struct {
	users    UserReader
	vehicles VehicleReader
	items    ItemReader
	sender   Sender
	dedup    Deduper
	cfg      Config
	log      logger.Logger
}

func NewDispatcher(users UserReader, vehicles VehicleReader, items ItemReader, sender Sender, dedup Deduper, cfg Config, log logger.Logger) *Dispatcher {
	if cfg.StalePromptDays <= 0 {
		cfg.StalePromptDays = 7
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 24 * time.Hour
	}
	return &Dispatcher{users: users, vehicles: vehicles, items: items, sender: sender, dedup: dedup, cfg: cfg, log: log}
}

// PromptForReading 给用户发一条催读数短信，车辆由 FindNeedingReading 挑选：
// 同一个用户每天最多催一辆车。没有符合条件的车辆时透传 ErrNoEligibleVehicle。
func (d *Dispatcher) PromptForReading(ctx context.Context, clock clockz.Clock, userID string) error {
	u, err := d.users.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	v, err := d.vehicles.FindNeedingReading(ctx, userID, clock.Now(), d.cfg.StalePromptDays)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Hey %s, Service Reminders here. Please reply with an odometer reading for %s.",
		u.Username, v.DisplayName())
	if err := d.sender.Send(ctx, u.Phone, body); err != nil {
		return fmt.Errorf("send prompt: %w", err)
	}
	if d.log != nil {
		d.log.WithFields(map[string]interface{}{"user_id": userID, "vehicle_id": v.ID}).
			Info("odometer prompt sent")
	}
	return nil
}

// NotifyServiceDue 对单个保养项目发提醒短信。项目不存在时返回 ErrNotFound 包装。
func (d *Dispatcher) NotifyServiceDue(ctx context.Context, itemID string) error {
	it, err := d.items.FindByID(ctx, itemID)
	if err != nil {
		return err
	}
	return d.notifyItem(ctx, it)
}

func (d *Dispatcher) notifyItem(ctx context.Context, it *schedule.Item) error {
	u, err := d.users.FindByID(ctx, it.UserID)
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	v, err := d.vehicles.FindByID(ctx, it.VehicleID)
	if err != nil {
		return fmt.Errorf("find vehicle: %w", err)
	}
	body := fmt.Sprintf("%s, %s is due for item: %q at %s miles.",
		u.Username, v.DisplayName(), it.Description,
		strconv.FormatFloat(it.DueAtMiles, 'f', -1, 64))
	if err := d.sender.Send(ctx, u.Phone, body); err != nil {
		return fmt.Errorf("send due notice: %w", err)
	}
	return nil
}

// NotifyAllDueServices 遍历所有到期项目逐条发提醒，返回成功发送的项目 ID。
// 去重窗口内已提醒过的项目跳过；单条发送失败只记日志，继续处理其余项目。
func (d *Dispatcher) NotifyAllDueServices(ctx context.Context, clock clockz.Clock) ([]string, error) {
	due, err := d.items.ListDue(ctx)
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}
	day := dates.DateOf(clock.Now()).Format("2006-01-02")

	var sent []string
	for i := range due {
		it := &due[i]
		key := fmt.Sprintf("due:%s:%s", it.ID, day)

		if d.dedup != nil {
			seen, err := d.dedup.Seen(ctx, key)
			if err != nil && d.log != nil {
				// 去重后端故障时宁可重发也不丢提醒。
				d.log.Warnf("dedup check failed for %s: %v", it.ID, err)
			}
			if seen {
				continue
			}
		}

		if err := d.notifyItem(ctx, it); err != nil {
			if d.log != nil {
				d.log.WithField("item_id", it.ID).Errorf("due notice failed: %v", err)
			}
			continue
		}
		if d.dedup != nil {
			if err := d.dedup.Mark(ctx, key, d.cfg.DedupTTL); err != nil && d.log != nil {
				d.log.Warnf("dedup mark failed for %s: %v", it.ID, err)
			}
		}
		sent = append(sent, it.ID)
	}

	if d.log != nil {
		d.log.WithFields(map[string]interface{}{"due": len(due), "sent": len(sent)}).
			Info("due notices dispatched")
	}
	return sent, nil
}
