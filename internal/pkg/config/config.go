package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Storage StorageConfig `mapstructure:"storage"`
	SRS     SRSConfig     `mapstructure:"srs"`
	XP      XPConfig      `mapstructure:"xp"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Version  string `mapstructure:"version"`
	LogLevel string `mapstructure:"log_level"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

// SRSConfig 调度配置
type SRSConfig struct {
	// Timezone 日历日边界时区（IANA 名），streak 的"同一天"以它为准。
	// 具体取哪个时区是产品决策，这里只提供参数。
	Timezone string `mapstructure:"timezone"`
	// DueLimit 到期查询默认条数
	DueLimit int `mapstructure:"due_limit"`
}

// XPConfig 经验值奖励配置
type XPConfig struct {
	DailyBonus int `mapstructure:"daily_bonus"` // 每日首次活跃
	WeekBonus  int `mapstructure:"week_bonus"`  // 连续天数为 7 的倍数
	MonthBonus int `mapstructure:"month_bonus"` // 连续天数为 30 的倍数
	CreateCard int `mapstructure:"create_card"` // 加入复习队列
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// 默认查找路径
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// 支持环境变量
	v.SetEnvPrefix("TORII")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("配置文件未找到，使用默认配置")
		} else {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	} else {
		slog.Info("加载配置文件", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "torii")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.log_level", "info")

	// Storage
	v.SetDefault("storage.db_path", "./data/torii.db")

	// SRS：默认时区沿用原产品的越南时间
	v.SetDefault("srs.timezone", "Asia/Ho_Chi_Minh")
	v.SetDefault("srs.due_limit", 20)

	// XP
	v.SetDefault("xp.daily_bonus", 10)
	v.SetDefault("xp.week_bonus", 50)
	v.SetDefault("xp.month_bonus", 200)
	v.SetDefault("xp.create_card", 3)
}

// Location 解析日历日时区
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.SRS.Timezone)
	if err != nil {
		return nil, fmt.Errorf("解析时区 %q 失败: %w", c.SRS.Timezone, err)
	}
	return loc, nil
}

// SetupLogger 根据配置设置日志级别
func SetupLogger(level string) {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
