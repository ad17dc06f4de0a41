package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// Config is the top-level fieldops configuration.
type Config struct {
	Service ServiceConfig `json:"service"`
	Bots    BotsConfig    `json:"bots"`
	Orders  OrdersConfig  `json:"orders"`
	Images  *ImagesConfig `json:"images,omitempty"`
	Slack   *SlackConfig  `json:"slack,omitempty"`
	DA      DAConfig      `json:"da"`
	API     APIConfig     `json:"api"`
}

// ServiceConfig holds process-level settings.
type ServiceConfig struct {
	ID       string `json:"id"`
	DataDir  string `json:"data_dir"`
	Timezone string `json:"timezone,omitempty"` // IANA name, default UTC
}

// BotsConfig holds one Telegram bot per role.
type BotsConfig struct {
	DA         TelegramConfig `json:"da"`
	Supervisor TelegramConfig `json:"supervisor"`
	Client     TelegramConfig `json:"client"`
}

// ForRole returns the bot settings of a role.
func (b BotsConfig) ForRole(r protocol.Role) TelegramConfig {
	switch r {
	case protocol.RoleSupervisor:
		return b.Supervisor
	case protocol.RoleClient:
		return b.Client
	default:
		return b.DA
	}
}

// TelegramConfig holds Telegram bot settings.
type TelegramConfig struct {
	Token       string  `json:"token"`
	AllowFrom   []int64 `json:"allow_from,omitempty"`
	APIEndpoint string  `json:"api_endpoint,omitempty"`
}

// OrdersConfig points at the dispatch API.
type OrdersConfig struct {
	BaseURL        string `json:"base_url"`
	ReferenceDate  string `json:"reference_date,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"` // default 15
}

// Timeout returns the order fetch bound.
func (o OrdersConfig) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// ImagesConfig holds the S3-compatible bucket for ticket photos.
// Without it photo attachments are disabled.
type ImagesConfig struct {
	Endpoint      string `json:"endpoint"`
	AccessKey     string `json:"access_key"`
	SecretKey     string `json:"secret_key"`
	Bucket        string `json:"bucket"`
	Region        string `json:"region,omitempty"`
	UseSSL        bool   `json:"use_ssl"`
	PublicBaseURL string `json:"public_base_url,omitempty"`
	Folder        string `json:"folder,omitempty"`
}

// SlackConfig mirrors supervisor alerts into a channel.
type SlackConfig struct {
	BotToken string `json:"bot_token"`
	Channel  string `json:"channel"`
}

// DAConfig holds DA front end behavior.
type DAConfig struct {
	QueryTodayOnly *bool `json:"query_today_only,omitempty"` // default true
}

// TodayOnly reports whether DA queries are limited to the current day.
func (d DAConfig) TodayOnly() bool {
	return d.QueryTodayOnly == nil || *d.QueryTodayOnly
}

// APIConfig holds admin API server settings.
type APIConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	Key  string `json:"api_key"`
}

// LoadDotEnv loads .env files into the environment. Missing files are
// skipped and variables already set win.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// Load reads configuration from a JSON file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromEnv builds a config from environment variables with FIELDOPS_ prefix.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Service: ServiceConfig{
			ID:       getenv("FIELDOPS_SERVICE_ID", "fieldops"),
			DataDir:  getenv("FIELDOPS_DATA_DIR", "/data"),
			Timezone: os.Getenv("FIELDOPS_TIMEZONE"),
		},
		Orders: OrdersConfig{
			BaseURL:        os.Getenv("FIELDOPS_ORDERS_BASE_URL"),
			ReferenceDate:  os.Getenv("FIELDOPS_ORDERS_REFERENCE_DATE"),
			TimeoutSeconds: getenvInt("FIELDOPS_ORDERS_TIMEOUT_SECONDS", 0),
		},
		API: APIConfig{
			Host: getenv("FIELDOPS_API_HOST", "0.0.0.0"),
			Port: getenvInt("FIELDOPS_API_PORT", 8080),
			Key:  os.Getenv("FIELDOPS_API_KEY"),
		},
	}

	for _, b := range []struct {
		prefix string
		dst    *TelegramConfig
	}{
		{"FIELDOPS_DA_BOT", &cfg.Bots.DA},
		{"FIELDOPS_SUPERVISOR_BOT", &cfg.Bots.Supervisor},
		{"FIELDOPS_CLIENT_BOT", &cfg.Bots.Client},
	} {
		b.dst.Token = os.Getenv(b.prefix + "_TOKEN")
		b.dst.APIEndpoint = os.Getenv(b.prefix + "_API_ENDPOINT")
		if ids := os.Getenv(b.prefix + "_ALLOW_FROM"); ids != "" {
			parsed, err := parseInt64List(ids)
			if err != nil {
				return nil, fmt.Errorf("config: %s_ALLOW_FROM: %w", b.prefix, err)
			}
			b.dst.AllowFrom = parsed
		}
	}

	if endpoint := os.Getenv("FIELDOPS_IMAGES_ENDPOINT"); endpoint != "" {
		cfg.Images = &ImagesConfig{
			Endpoint:      endpoint,
			AccessKey:     os.Getenv("FIELDOPS_IMAGES_ACCESS_KEY"),
			SecretKey:     os.Getenv("FIELDOPS_IMAGES_SECRET_KEY"),
			Bucket:        os.Getenv("FIELDOPS_IMAGES_BUCKET"),
			Region:        os.Getenv("FIELDOPS_IMAGES_REGION"),
			UseSSL:        getenv("FIELDOPS_IMAGES_USE_SSL", "true") == "true",
			PublicBaseURL: os.Getenv("FIELDOPS_IMAGES_PUBLIC_BASE_URL"),
			Folder:        os.Getenv("FIELDOPS_IMAGES_FOLDER"),
		}
	}

	if token := os.Getenv("FIELDOPS_SLACK_BOT_TOKEN"); token != "" {
		cfg.Slack = &SlackConfig{
			BotToken: token,
			Channel:  os.Getenv("FIELDOPS_SLACK_CHANNEL"),
		}
	}

	if v := os.Getenv("FIELDOPS_DA_QUERY_TODAY_ONLY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: FIELDOPS_DA_QUERY_TODAY_ONLY: %w", err)
		}
		cfg.DA.QueryTodayOnly = &b
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Orders.TimeoutSeconds <= 0 {
		c.Orders.TimeoutSeconds = 15
	}
	if c.Images != nil && c.Images.Folder == "" {
		c.Images.Folder = "issues"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
}

// Location resolves the service timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Service.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Service.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Service.Timezone, err)
	}
	return loc, nil
}

// Validate checks for required fields and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Service.ID == "" {
		errs = append(errs, "service.id is required")
	}
	if c.Service.DataDir == "" {
		errs = append(errs, "service.data_dir is required")
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("service.timezone %q is not a known zone", c.Service.Timezone))
	}

	for _, r := range protocol.Roles {
		if c.Bots.ForRole(r).Token == "" {
			errs = append(errs, fmt.Sprintf("bots.%s.token is required", strings.ToLower(string(r))))
		}
	}

	if c.Orders.BaseURL == "" {
		errs = append(errs, "orders.base_url is required")
	}

	if im := c.Images; im != nil {
		if im.Endpoint == "" {
			errs = append(errs, "images.endpoint is required")
		}
		if im.Bucket == "" {
			errs = append(errs, "images.bucket is required")
		}
		if im.AccessKey == "" || im.SecretKey == "" {
			errs = append(errs, "images.access_key and images.secret_key are required")
		}
	}

	if s := c.Slack; s != nil {
		if s.BotToken == "" {
			errs = append(errs, "slack.bot_token is required")
		}
		if s.Channel == "" {
			errs = append(errs, "slack.channel is required")
		}
	}

	if c.API.Port < 0 || c.API.Port > 65535 {
		errs = append(errs, fmt.Sprintf("api.port %d is out of range", c.API.Port))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func parseInt64List(s string) ([]int64, error) {
	parts := strings.Split(s, ",")
	result := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", p)
		}
		result = append(result, n)
	}
	return result, nil
}
