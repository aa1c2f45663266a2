package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/config"
	"github.com/ryanhess/service-reminder/internal/common/db"
	"github.com/ryanhess/service-reminder/internal/common/logger"
	"github.com/ryanhess/service-reminder/internal/maintenance"
	"github.com/ryanhess/service-reminder/internal/notify"
	"github.com/ryanhess/service-reminder/internal/schedule"
	"github.com/ryanhess/service-reminder/internal/sms"
	"github.com/ryanhess/service-reminder/internal/user"
	"github.com/ryanhess/service-reminder/internal/vehicle"
)

var (
	configPath = flag.String("config", "configs/reminder-service.json", "配置文件路径")
	timeout    = flag.Duration("timeout", 10*time.Minute, "单轮任务超时")
)

// daily-maint 是每日维护任务的一次性入口，由 cron 每天调度：
// 催读数、投影估算里程、置到期标志，然后外发到期提醒。
func main() {
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	gdb, err := db.NewMySQL(
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.User, cfg.Database.Password, cfg.Database.Database,
		cfg.Database.MaxIdle, cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	var dedup notify.Deduper
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		dedup = notify.NewRedisDeduper(rdb)
	}

	sender := sms.NewTwilioSender(
		cfg.Twilio.AccountSID, cfg.Twilio.AuthToken,
		cfg.Twilio.FromNumber, cfg.Twilio.MaxPerSec, log,
	)

	userRepo := user.NewRepo(gdb)
	vehicleRepo := vehicle.NewRepo(gdb)
	itemRepo := schedule.NewRepo(gdb)

	dispatcher := notify.NewDispatcher(userRepo, vehicleRepo, itemRepo, sender, dedup,
		notify.Config{
			StalePromptDays: cfg.Reminder.StalePromptDays,
			DedupTTL:        time.Duration(cfg.Reminder.DedupTTLHours) * time.Hour,
		}, log)

	job := maintenance.NewJob(vehicleRepo, itemRepo, dispatcher,
		maintenance.Config{
			DueThresholdMiles: cfg.Reminder.DueThresholdMiles,
			StalePromptDays:   cfg.Reminder.StalePromptDays,
		}, log)
	runner := maintenance.NewRunner(job, clockz.RealClock, log)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if _, err := runner.RunOnce(ctx); err != nil {
		log.Errorf("daily maintenance failed: %v", err)
		os.Exit(1)
	}

	sent, err := dispatcher.NotifyAllDueServices(ctx, clockz.RealClock)
	if err != nil {
		log.Errorf("due notice dispatch failed: %v", err)
		os.Exit(1)
	}
	log.Infof("daily maintenance finished, %d due notices sent", len(sent))
}
