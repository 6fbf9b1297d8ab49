package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ==================== 配置结构 ====================

// Config 进程级配置
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Sync     SyncConfig     `mapstructure:"sync"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	AMQP     AMQPConfig     `mapstructure:"amqp"`

	Platforms map[string]PlatformConfig `mapstructure:"platforms"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type SyncConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxConcurrent int  `mapstructure:"max_concurrent"`
	// 增量检测周期（分钟）
	IntervalMinutes int `mapstructure:"interval_minutes"`
}

type RefreshConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// 上架超过该天数即视为 stale
	StaleDays int `mapstructure:"stale_days"`
}

type AMQPConfig struct {
	URL        string `mapstructure:"url"`
	Exchange   string `mapstructure:"exchange"`
	Queue      string `mapstructure:"queue"`
	RoutingKey string `mapstructure:"routing_key"`
}

type PlatformConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
	// 单次 HTTP 调用超时（秒）；编排器没有全局 deadline
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// Timeout 平台单次调用超时
func (p PlatformConfig) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutSeconds) * time.Second
}

// ==================== 加载 ====================

// Load 读取配置：config.yaml（可选）+ 环境变量覆盖（GEARSYNC_ 前缀）
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "8080")
	v.SetDefault("database.dsn", "host=localhost user=postgres dbname=gearsync sslmode=disable")
	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.max_concurrent", 3)
	v.SetDefault("sync.interval_minutes", 30)
	v.SetDefault("refresh.enabled", true)
	v.SetDefault("refresh.stale_days", 45)

	for _, p := range []string{"ebay", "reverb", "shopify", "vintageandrare"} {
		v.SetDefault(fmt.Sprintf("platforms.%s.enabled", p), true)
		v.SetDefault(fmt.Sprintf("platforms.%s.timeout_seconds", p), 30)
	}

	v.SetEnvPrefix("GEARSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	return &cfg, nil
}
