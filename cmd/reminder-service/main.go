package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/zoobzio/clockz"

	"github.com/ryanhess/service-reminder/internal/common/config"
	"github.com/ryanhess/service-reminder/internal/common/db"
	"github.com/ryanhess/service-reminder/internal/common/logger"
	"github.com/ryanhess/service-reminder/internal/common/server"
	"github.com/ryanhess/service-reminder/internal/common/tracing"
	"github.com/ryanhess/service-reminder/internal/maintenance"
	"github.com/ryanhess/service-reminder/internal/notify"
	"github.com/ryanhess/service-reminder/internal/schedule"
	"github.com/ryanhess/service-reminder/internal/sms"
	httptransport "github.com/ryanhess/service-reminder/internal/transport/http"
	"github.com/ryanhess/service-reminder/internal/user"
	"github.com/ryanhess/service-reminder/internal/vehicle"
)

var (
	configPath = flag.String("config", "configs/reminder-service.json", "配置文件路径")
	consulKey  = flag.String("config-consul-key", "", "从 Consul KV 读取配置的 key（优先于配置文件）")
	consulHost = flag.String("config-consul-host", "localhost", "Consul 地址（配合 -config-consul-key）")
	consulPort = flag.Int("config-consul-port", 8500, "Consul 端口（配合 -config-consul-key）")
)

func main() {
	flag.Parse()

	// 本地开发用 .env 注入 Twilio 凭据，文件不存在则忽略
	_ = godotenv.Load()

	// 加载配置：优先 Consul KV，否则本地 JSON 文件
	var (
		cfg *config.Config
		err error
	)
	if *consulKey != "" {
		cfg, err = config.LoadConfigFromConsulKV(*consulHost, *consulPort, *consulKey)
	} else {
		cfg, err = config.LoadConfig(*configPath)
	}
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output, cfg.Log.Path)
	if err != nil {
		panic(fmt.Sprintf("failed to init logger: %v", err))
	}

	// 初始化链路追踪
	tracer, closer, err := tracing.InitTracer(
		cfg.Server.Name,
		cfg.Jaeger.Endpoint,
		cfg.Jaeger.Sampler,
	)
	if err != nil {
		log.Warnf("failed to init tracer: %v", err)
	} else {
		defer closer.Close()
	}
	_ = tracer

	// 初始化数据库
	gdb, err := db.NewMySQL(
		cfg.Database.Host, cfg.Database.Port,
		cfg.Database.User, cfg.Database.Password, cfg.Database.Database,
		cfg.Database.MaxIdle, cfg.Database.MaxOpen,
	)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	if err := gdb.AutoMigrate(&user.User{}, &vehicle.Vehicle{}, &schedule.Item{}); err != nil {
		log.Fatalf("failed to migrate schema: %v", err)
	}

	// Redis 仅用于通知去重，未启用时降级为无去重
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

	odometer := vehicle.NewOdometer(vehicleRepo, log)
	completion := schedule.NewCompletion(itemRepo, vehicleRepo, odometer, log)
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

	handler := httptransport.NewHandler(
		userRepo, vehicleRepo, itemRepo,
		odometer, completion, runner, dispatcher,
		clockz.RealClock, cfg.Reminder.StalePromptDays, log,
	)

	// 启动统一的 HTTP 服务模板
	if err := server.RunHTTPServer(cfg, log, func(r *gin.Engine) error {
		handler.RegisterRoutes(r)
		return nil
	}, server.WithMiddleware(
		httptransport.AccessLog(log),
		httptransport.Tracing(cfg.Server.Name),
	)); err != nil {
		log.Fatalf("reminder-service exited with error: %v", err)
	}
}
