package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Config 应用配置
type Config struct {
	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"`
	Redis    RedisConfig    `json:"redis"`
	Consul   ConsulConfig   `json:"consul"`
	Jaeger   JaegerConfig   `json:"jaeger"`
	Twilio   TwilioConfig   `json:"twilio"`
	Reminder ReminderConfig `json:"reminder"`
	Log      LogConfig      `json:"log"`
}

// ServerConfig 服务配置
type ServerConfig struct {
	Name     string `json:"name"`      // 服务名称
	Host     string `json:"host"`      // 服务地址
	HTTPPort int    `json:"http_port"` // HTTP端口
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `json:"driver"`   // 数据库驱动
	Host     string `json:"host"`     // 数据库地址
	Port     int    `json:"port"`     // 数据库端口
	User     string `json:"user"`     // 用户名
	Password string `json:"password"` // 密码
	Database string `json:"database"` // 数据库名
	MaxIdle  int    `json:"max_idle"` // 最大空闲连接
	MaxOpen  int    `json:"max_open"` // 最大打开连接
}

// RedisConfig Redis配置（通知去重用，可关闭）
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// ConsulConfig Consul配置
type ConsulConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// JaegerConfig Jaeger配置
type JaegerConfig struct {
	Endpoint string  `json:"endpoint"`
	Sampler  float64 `json:"sampler"` // 采样率 0.0-1.0
}

// TwilioConfig 短信通道配置。
// AccountSID / AuthToken 不入配置文件，始终从环境变量读取。
type TwilioConfig struct {
	AccountSID string `json:"-"`
	AuthToken  string `json:"-"`
	FromNumber string `json:"from_number"` // 发送号码（E.164 格式）
	MaxPerSec  int64  `json:"max_per_sec"` // 出站短信限速（令牌桶速率）
}

// ReminderConfig 提醒引擎参数。默认值与线上行为一致。
type ReminderConfig struct {
	DueThresholdMiles float64 `json:"due_threshold_miles"` // 保养到期的临近阈值（英里）
	StalePromptDays   int     `json:"stale_prompt_days"`   // 超过多少天未上报里程则催读数
	DedupTTLHours     int     `json:"dedup_ttl_hours"`     // 到期通知去重窗口（小时）
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
	Output string `json:"output"` // stdout, file
	Path   string `json:"path"`   // 日志文件路径
}

var (
	globalConfig *Config
	configOnce   sync.Once
)

// LoadConfig 加载配置：JSON 文件 + 环境变量里的敏感项。
// 文件不存在时退回默认配置（开发环境）。
func LoadConfig(configPath string) (*Config, error) {
	var err error
	configOnce.Do(func() {
		globalConfig = &Config{}
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			logrus.Warnf("Config file not found: %s, using default config", configPath)
			globalConfig = defaultConfig()
			globalConfig.applyEnv()
			return
		}

		data, readErr := os.ReadFile(configPath)
		if readErr != nil {
			err = fmt.Errorf("failed to read config file: %w", readErr)
			return
		}

		if unmarshalErr := json.Unmarshal(data, globalConfig); unmarshalErr != nil {
			err = fmt.Errorf("failed to parse config file: %w", unmarshalErr)
			return
		}
		globalConfig.normalize()
		globalConfig.applyEnv()
	})

	if err != nil {
		return nil, err
	}

	return globalConfig, nil
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	if globalConfig == nil {
		return defaultConfig()
	}
	return globalConfig
}

// applyEnv 从环境变量读取 Twilio 凭证（与部署环境约定一致）。
func (c *Config) applyEnv() {
	if v := os.Getenv("TWILIO_ACCOUNT_SID"); v != "" {
		c.Twilio.AccountSID = v
	}
	if v := os.Getenv("TWILIO_AUTH_TOKEN"); v != "" {
		c.Twilio.AuthToken = v
	}
	if v := os.Getenv("TWILIO_FROM_NUMBER"); v != "" {
		c.Twilio.FromNumber = v
	}
}

// normalize 为缺省的提醒参数补上默认值。
// 阈值若留成 0 会把所有保养项目都标成到期，必须兜底。
func (c *Config) normalize() {
	if c.Reminder.DueThresholdMiles <= 0 {
		c.Reminder.DueThresholdMiles = 500
	}
	if c.Reminder.StalePromptDays <= 0 {
		c.Reminder.StalePromptDays = 7
	}
	if c.Reminder.DedupTTLHours <= 0 {
		c.Reminder.DedupTTLHours = 24
	}
	if c.Twilio.MaxPerSec <= 0 {
		c.Twilio.MaxPerSec = 5
	}
}

// defaultConfig 默认配置（开发环境）
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Name:     "reminder-service",
			Host:     "0.0.0.0",
			HTTPPort: 3000,
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			User:     "serv-rem-dev",
			Password: "password",
			Database: "service_reminders_app",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		Redis: RedisConfig{
			Enabled:  false,
			Host:     "localhost",
			Port:     6379,
			Password: "",
			DB:       0,
			PoolSize: 10,
		},
		Consul: ConsulConfig{
			Host: "localhost",
			Port: 8500,
		},
		Jaeger: JaegerConfig{
			Endpoint: "localhost:6831",
			Sampler:  1.0,
		},
		Twilio: TwilioConfig{
			FromNumber: "+18665934611",
			MaxPerSec:  5,
		},
		Reminder: ReminderConfig{
			DueThresholdMiles: 500,
			StalePromptDays:   7,
			DedupTTLHours:     24,
		},
		Log: LogConfig{
			Level:  "debug",
			Format: "text",
			Output: "stdout",
			Path:   "logs/app.log",
		},
	}
}
