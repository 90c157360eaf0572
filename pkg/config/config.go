package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config 主配置结构
type Config struct {
	// 数据提供商配置
	Provider ProviderConfig `mapstructure:"provider"`

	// 下载管线配置
	Download DownloadConfig `mapstructure:"download"`

	// 存储配置
	Storage StorageConfig `mapstructure:"storage"`

	// 进度上报配置（可选，Redis Stream）
	Progress ProgressConfig `mapstructure:"progress"`

	// InfluxDB 镜像配置（可选）
	Mirror MirrorConfig `mapstructure:"mirror"`

	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
}

// ProviderConfig 数据提供商配置
type ProviderConfig struct {
	BaseURL           string        `mapstructure:"base_url"`           // 数据源地址
	Timeout           time.Duration `mapstructure:"timeout"`            // 单次请求超时
	UserAgent         string        `mapstructure:"user_agent"`         // 用户代理
	RateLimit         time.Duration `mapstructure:"rate_limit"`         // 全局请求最小间隔
	MaxAttempts       int           `mapstructure:"max_attempts"`       // 最大尝试次数（含首次）
	BaseDelay         time.Duration `mapstructure:"base_delay"`         // 首次重试等待
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"` // 退避倍率
	BreakerEnabled    bool          `mapstructure:"breaker_enabled"`    // 是否启用熔断器
}

// DownloadConfig 下载管线配置
type DownloadConfig struct {
	Concurrency int `mapstructure:"concurrency"` // 工作协程数（1-300）
}

// StorageConfig 存储配置。DSN 为 SQLite 文件路径或 postgres:// 连接串。
type StorageConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ProgressConfig 进度上报配置
type ProgressConfig struct {
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	Stream        string `mapstructure:"stream"`
}

// MirrorConfig InfluxDB 镜像配置
type MirrorConfig struct {
	URL    string `mapstructure:"url"`
	Token  string `mapstructure:"token"`
	Org    string `mapstructure:"org"`
	Bucket string `mapstructure:"bucket"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text, json
}

// MaxConcurrency 工作协程数硬上限，保护共享限流预算与数据源
const MaxConcurrency = 300

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Provider: ProviderConfig{
			BaseURL:           "https://push2his.eastmoney.com",
			Timeout:           15 * time.Second,
			UserAgent:         "StockDL/1.0",
			RateLimit:         500 * time.Millisecond,
			MaxAttempts:       3,
			BaseDelay:         2 * time.Second,
			BackoffMultiplier: 2.0,
			BreakerEnabled:    true,
		},
		Download: DownloadConfig{
			Concurrency: 4,
		},
		Storage: StorageConfig{
			DSN: "stock_data.db",
		},
		Progress: ProgressConfig{
			Stream: "stockdl:progress",
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load 从配置文件加载配置，未出现的键保留默认值
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("配置文件不存在: %s", path)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Provider.BaseURL == "" {
		return errors.New("provider base_url cannot be empty")
	}

	if c.Provider.Timeout <= 0 {
		return errors.New("provider timeout must be positive")
	}

	if c.Provider.MaxAttempts <= 0 {
		return errors.New("provider max_attempts must be positive")
	}

	if c.Provider.RateLimit < 0 {
		return errors.New("provider rate_limit cannot be negative")
	}

	if c.Provider.BackoffMultiplier < 1 {
		return errors.New("provider backoff_multiplier must be >= 1")
	}

	if c.Download.Concurrency <= 0 || c.Download.Concurrency > MaxConcurrency {
		return fmt.Errorf("download concurrency must be in [1, %d]", MaxConcurrency)
	}

	if c.Storage.DSN == "" {
		return errors.New("storage dsn cannot be empty")
	}

	return nil
}
