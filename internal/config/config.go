package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 主配置结构 - 简化命名
type Config struct {
	App        App        `yaml:"app"`
	Server     Server     `yaml:"server"`
	Database   DB         `yaml:"database"`
	Cache      Cache      `yaml:"cache"`
	Auth       Auth       `yaml:"auth"`
	RateLimit  Limit      `yaml:"rate_limit"`
	LoginLimit LoginLimit `yaml:"login_limit"`
	Link       Link       `yaml:"link"`
	Log        Log        `yaml:"log"`
}

// 应用配置
type App struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`
	Version string `yaml:"version"`
}

// 服务器配置
type Server struct {
	Port            int `yaml:"port"`
	ReadTimeout     int `yaml:"read_timeout"`
	WriteTimeout    int `yaml:"write_timeout"`
	ShutdownTimeout int `yaml:"shutdown_timeout"`

	// 信任的反向代理 IP 或 CIDR，只有来自这些地址的 X-Forwarded-For 才会被采纳，为空时不信任任何代理
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// 数据库配置，driver 为 mysql、postgres 或 sqlite
type DB struct {
	Driver       string `yaml:"driver"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Name         string `yaml:"name"`
	Charset      string `yaml:"charset"`
	SSLMode      string `yaml:"sslmode"`
	Path         string `yaml:"path"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// 缓存配置（Redis），host 为空时不启用
type Cache struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Password   string `yaml:"password"`
	DB         int    `yaml:"db"`
	Prefix     string `yaml:"prefix"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// 认证配置
type Auth struct {
	Secret          string `yaml:"secret"`
	Issuer          string `yaml:"issuer"`
	ExpirationHours int    `yaml:"expiration_hours"`
}

// 限流配置
type Limit struct {
	Enabled   bool     `yaml:"enabled"`
	Requests  int64    `yaml:"requests_per_minute"`
	Burst     int64    `yaml:"burst"`
	SkipPaths []string `yaml:"skip_paths"`
}

// 登录尝试限制
type LoginLimit struct {
	PerTarget     int `yaml:"per_target"`
	PerSource     int `yaml:"per_source"`
	WindowSeconds int `yaml:"window_seconds"`
	// RejectStatus 超过阈值时返回的状态码，400 或 429
	RejectStatus         int `yaml:"reject_status"`
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// 短链接配置
type Link struct {
	BaseURL           string   `yaml:"base_url"`
	ReservedWords     []string `yaml:"reserved_words"`
	MaxInsertAttempts int      `yaml:"max_insert_attempts"`
	MaxSlugAttempts   int      `yaml:"max_slug_attempts"`
}

// 日志配置
type Log struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultReservedWords 服务自身占用的路径段
var DefaultReservedWords = []string{"auth", "api", "docs", "swagger", "shorten", "my-urls", "health", "static"}

// Window 返回登录尝试的窗口长度
func (l LoginLimit) Window() time.Duration {
	return time.Duration(l.WindowSeconds) * time.Second
}

// 加载配置：先读取 .env（不存在时忽略），再解析 YAML，最后用环境变量覆盖并填充默认值
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("读取 .env 失败: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("SHORTURL_AUTH_SECRET", &c.Auth.Secret)
	setString("SHORTURL_DB_DRIVER", &c.Database.Driver)
	setString("SHORTURL_DB_HOST", &c.Database.Host)
	setString("SHORTURL_DB_PASSWORD", &c.Database.Password)
	setString("SHORTURL_DB_PATH", &c.Database.Path)
	setString("SHORTURL_REDIS_HOST", &c.Cache.Host)
	setString("SHORTURL_BASE_URL", &c.Link.BaseURL)

	if v, ok := os.LookupEnv("SHORTURL_TRUSTED_PROXIES"); ok && v != "" {
		c.Server.TrustedProxies = nil
		for _, proxy := range strings.Split(v, ",") {
			if proxy = strings.TrimSpace(proxy); proxy != "" {
				c.Server.TrustedProxies = append(c.Server.TrustedProxies, proxy)
			}
		}
	}

	if v, ok := os.LookupEnv("SHORTURL_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SHORTURL_PORT 不是有效端口: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "shorturl-service"
	}
	if c.App.Mode == "" {
		c.App.Mode = "debug"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 10
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 5
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Cache.Port == 0 {
		c.Cache.Port = 6379
	}
	if c.Cache.Prefix == "" {
		c.Cache.Prefix = "shortlink:"
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = 24 * 60
	}
	if c.Auth.Issuer == "" {
		c.Auth.Issuer = c.App.Name
	}
	if c.Auth.ExpirationHours == 0 {
		c.Auth.ExpirationHours = 24
	}
	if c.LoginLimit.PerTarget == 0 {
		c.LoginLimit.PerTarget = 3
	}
	if c.LoginLimit.PerSource == 0 {
		c.LoginLimit.PerSource = 10
	}
	if c.LoginLimit.WindowSeconds == 0 {
		c.LoginLimit.WindowSeconds = 60
	}
	if c.LoginLimit.RejectStatus == 0 {
		c.LoginLimit.RejectStatus = 429
	}
	if c.LoginLimit.SweepIntervalSeconds == 0 {
		c.LoginLimit.SweepIntervalSeconds = 60
	}
	if c.Link.BaseURL == "" {
		c.Link.BaseURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	c.Link.BaseURL = strings.TrimRight(c.Link.BaseURL, "/")
	if len(c.Link.ReservedWords) == 0 {
		c.Link.ReservedWords = append([]string(nil), DefaultReservedWords...)
	}
	if c.Link.MaxInsertAttempts == 0 {
		c.Link.MaxInsertAttempts = 5
	}
	if c.Link.MaxSlugAttempts == 0 {
		c.Link.MaxSlugAttempts = 20
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.Secret == "" {
		errs = append(errs, errors.New("auth.secret 不能为空"))
	}
	switch c.Database.Driver {
	case "mysql", "postgres":
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, errors.New("sqlite 需要配置 database.path"))
		}
	default:
		errs = append(errs, fmt.Errorf("不支持的数据库驱动: %s", c.Database.Driver))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("无效的端口: %d", c.Server.Port))
	}
	if c.LoginLimit.PerTarget < 0 || c.LoginLimit.PerSource < 0 || c.LoginLimit.WindowSeconds < 0 {
		errs = append(errs, errors.New("login_limit 的阈值和窗口必须为正数"))
	}
	if c.LoginLimit.RejectStatus != 400 && c.LoginLimit.RejectStatus != 429 {
		errs = append(errs, fmt.Errorf("login_limit.reject_status 只能为 400 或 429，当前为 %d", c.LoginLimit.RejectStatus))
	}
	if c.RateLimit.Enabled && c.RateLimit.Requests <= 0 {
		errs = append(errs, errors.New("rate_limit.requests_per_minute 必须为正数"))
	}
	return errors.Join(errs...)
}
