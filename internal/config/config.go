package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Business BusinessConfig `mapstructure:"business"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin 模式：debug / release / test
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql 或 postgres
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogLevel     string `mapstructure:"log_level"` // silent / error / warn / info
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	WalletEvents string `mapstructure:"wallet_events"`
}

type AuthConfig struct {
	JWTSecret           string `mapstructure:"jwt_secret"`
	TokenTTLMinutes     int    `mapstructure:"token_ttl_minutes"`
	SigninMaxAttempts   int    `mapstructure:"signin_max_attempts"`
	SigninWindowSeconds int    `mapstructure:"signin_window_seconds"`
}

func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLMinutes) * time.Minute
}

func (c AuthConfig) SigninWindow() time.Duration {
	return time.Duration(c.SigninWindowSeconds) * time.Second
}

type BusinessConfig struct {
	InitialBalanceMin int64 `mapstructure:"initial_balance_min"` // 注册赠送余额下限（分）
	InitialBalanceMax int64 `mapstructure:"initial_balance_max"` // 注册赠送余额上限（分）
	MaxRetryCount     int   `mapstructure:"max_retry_count"`     // 事件发送最大重试次数
	EventQueueSize    int   `mapstructure:"event_queue_size"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("kafka.topic.wallet_events", "wallet_events")

	v.SetDefault("auth.token_ttl_minutes", 24*60)
	v.SetDefault("auth.signin_max_attempts", 5)
	v.SetDefault("auth.signin_window_seconds", 300)

	v.SetDefault("business.initial_balance_min", 100)
	v.SetDefault("business.initial_balance_max", 1000000)
	v.SetDefault("business.max_retry_count", 3)
	v.SetDefault("business.event_queue_size", 1024)

	v.SetDefault("log.level", "info")
}

// LoadConfig 加载配置文件
//
// 环境变量优先于配置文件，命名规则：WALLET_ + 大写路径，点换成下划线，
// 例如 WALLET_AUTH_JWT_SECRET 覆盖 auth.jwt_secret
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("WALLET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret 不能为空")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return errors.New("auth.token_ttl_minutes 必须大于0")
	}
	if c.Business.InitialBalanceMin < 0 || c.Business.InitialBalanceMax < c.Business.InitialBalanceMin {
		return fmt.Errorf("注册赠送余额区间不合法: [%d, %d]",
			c.Business.InitialBalanceMin, c.Business.InitialBalanceMax)
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver)
	}
	return nil
}
