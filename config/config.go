package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"hotelwatch/models"
)

// FallbackPolicy controls when the remote scraping service is used
// after the browser path fails. The source behavior was inconsistent
// here, so it is an explicit setting.
type FallbackPolicy string

const (
	FallbackOnFailure FallbackPolicy = "on_failure"
	FallbackAlways    FallbackPolicy = "always"
	FallbackNever     FallbackPolicy = "never"
)

type Config struct {
	Browser   BrowserConfig
	Apify     ApifyConfig
	Scan      ScanConfig
	Proxy     ProxyConfig
	Postgres  PostgresConfig
	Snapshots SnapshotConfig
	Email     EmailConfig
	Scheduler SchedulerConfig
	DBPath    string
	LogPath   string
	Hotels    []models.Hotel
}

type BrowserConfig struct {
	Enabled     bool
	Headless    bool
	NavTimeout  time.Duration // page.Goto upper bound
	SettleDelay time.Duration // bounded wait for dynamic prices
}

type ApifyConfig struct {
	Token       string
	ActorID     string
	Enabled     bool
	PollTimeout time.Duration
	PollDelay   time.Duration
}

type ScanConfig struct {
	RequestDelay time.Duration // pacing between per-day requests
	RoomTypes    []models.RoomType
	DaysForward  int
	Fallback     FallbackPolicy
}

type ProxyConfig struct {
	URL string
}

type PostgresConfig struct {
	DBURL string
}

type SnapshotConfig struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
}

type EmailConfig struct {
	SMTPHost string
	SMTPPort int
	Address  string
	Password string
	To       string
}

type SchedulerConfig struct {
	Cron     string
	Interval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Browser: BrowserConfig{
			Enabled:     os.Getenv("BROWSER_DISABLED") != "true",
			Headless:    getEnv("BROWSER_HEADLESS", "true") == "true",
			NavTimeout:  getEnvDuration("BROWSER_NAV_TIMEOUT", 30*time.Second),
			SettleDelay: getEnvDuration("BROWSER_SETTLE_DELAY", 3*time.Second),
		},
		Apify: ApifyConfig{
			Token:       os.Getenv("APIFY_TOKEN"),
			ActorID:     getEnv("APIFY_BOOKING_ACTOR_ID", "dtrungtin~booking-scraper"),
			Enabled:     os.Getenv("ENABLE_APIFY_FALLBACK") != "false",
			PollTimeout: getEnvDuration("APIFY_POLL_TIMEOUT", 5*time.Minute),
			PollDelay:   getEnvDuration("APIFY_POLL_DELAY", 10*time.Second),
		},
		Scan: ScanConfig{
			RequestDelay: time.Duration(getEnvInt("SCAN_DELAY_MS", 2000)) * time.Millisecond,
			RoomTypes:    parseRoomTypes(getEnv("SCAN_ROOM_TYPES", "room_only,with_breakfast")),
			DaysForward:  getEnvInt("SCAN_DAYS_FORWARD", 60),
			Fallback:     FallbackPolicy(getEnv("SCAN_FALLBACK_POLICY", string(FallbackOnFailure))),
		},
		Proxy: ProxyConfig{
			URL: os.Getenv("PROXY_URL"),
		},
		Postgres: PostgresConfig{
			DBURL: os.Getenv("DATABASE_URL"),
		},
		Snapshots: SnapshotConfig{
			Bucket:          os.Getenv("SNAPSHOT_BUCKET"),
			Region:          getEnv("SNAPSHOT_REGION", "us-east-1"),
			Endpoint:        os.Getenv("SNAPSHOT_ENDPOINT"),
			AccessKeyID:     os.Getenv("SNAPSHOT_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("SNAPSHOT_SECRET_ACCESS_KEY"),
		},
		Email: EmailConfig{
			SMTPHost: getEnv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort: getEnvInt("SMTP_PORT", 587),
			Address:  os.Getenv("GMAIL_USER"),
			Password: os.Getenv("GMAIL_APP_PASSWORD"),
			To:       os.Getenv("REPORT_EMAIL_TO"),
		},
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("SCAN_CRON"),
		},
		DBPath:  getEnv("DB_PATH", "hotelwatch.db"),
		LogPath: getEnv("LOG_PATH", "daemon.log"),
	}

	if interval := os.Getenv("SCAN_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	switch cfg.Scan.Fallback {
	case FallbackOnFailure, FallbackAlways, FallbackNever:
	default:
		return nil, fmt.Errorf("invalid SCAN_FALLBACK_POLICY: %s", cfg.Scan.Fallback)
	}

	if err := cfg.loadHotels(getEnv("HOTELS_PATH", "config/hotels.yaml")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// TargetHotel returns the configured target hotel, or nil if none.
func (c *Config) TargetHotel() *models.Hotel {
	for i := range c.Hotels {
		if c.Hotels[i].Category == models.CategoryTarget {
			return &c.Hotels[i]
		}
	}
	return nil
}

// ActiveHotels returns the hotels in scan scope: target plus active
// competitors.
func (c *Config) ActiveHotels() []models.Hotel {
	var out []models.Hotel
	for _, h := range c.Hotels {
		if h.IsActive {
			out = append(out, h)
		}
	}
	return out
}

func (c *Config) loadHotels(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var roster struct {
		Hotels []models.Hotel `yaml:"hotels"`
	}
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	c.Hotels = roster.Hotels
	return nil
}

func parseRoomTypes(s string) []models.RoomType {
	var out []models.RoomType
	for _, part := range strings.Split(s, ",") {
		rt := models.RoomType(strings.TrimSpace(part))
		if models.ValidRoomType(rt) {
			out = append(out, rt)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
