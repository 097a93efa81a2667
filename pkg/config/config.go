package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Ranker   RankerConfig   `mapstructure:"ranker"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Channels ChannelsConfig `mapstructure:"channels"`
	Server   ServerConfig   `mapstructure:"server"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token            string        `mapstructure:"token"`
	APIEndpoint      string        `mapstructure:"api_endpoint"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MaxRetries       int           `mapstructure:"max_retries"`
	DryRun           bool          `mapstructure:"dry_run"`
	PremiumEmojiMode string        `mapstructure:"premium_emoji_mode"`
	WebhookURL       string        `mapstructure:"webhook_url"`
	WebhookSecret    string        `mapstructure:"webhook_secret"`
}

type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	DBName      string `mapstructure:"dbname"`
	SSLMode     string `mapstructure:"sslmode"`
	Path        string `mapstructure:"path"`
	UseInMemory bool   `mapstructure:"use_in_memory"`
}

type RedisConfig struct {
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type OpenAIConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

type GeminiConfig struct {
	APIKey string `mapstructure:"api_key"`
	Model  string `mapstructure:"model"`
}

type RankerConfig struct {
	// Provider is "openai", "gemini" or "none".
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	TopN     int           `mapstructure:"top_n"`
}

type AuthConfig struct {
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LockoutMinutes   int           `mapstructure:"lockout_minutes"`
	OTPTTL           time.Duration `mapstructure:"otp_ttl"`
	OTPMaxAttempts   int           `mapstructure:"otp_max_attempts"`
	OTPResend        time.Duration `mapstructure:"otp_resend_interval"`
}

type ChannelsConfig struct {
	// Targets maps a region slug to the public channel handle.
	Targets     map[string]string `mapstructure:"targets"`
	PromoText   string            `mapstructure:"promo_text"`
	PostsPerMin int               `mapstructure:"posts_per_minute"`
	SyncTimeout time.Duration     `mapstructure:"sync_timeout"`
	SiteURL     string            `mapstructure:"site_url"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	InternalSecret string        `mapstructure:"internal_secret"`
	HandlerTimeout time.Duration `mapstructure:"handler_timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
	GroupID string   `mapstructure:"group_id"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// Premium emoji modes.
const (
	EmojiModeAuto = "auto"
	EmojiModeOn   = "on"
	EmojiModeOff  = "off"
)

// DefaultChannels are the public region channels of the marketplace.
var DefaultChannels = map[string]string{
	"toshkent-shahri": "@ishbor_toshkent",
	"toshkent":        "@ishbor_toshkent_viloyati",
	"andijon":         "@ishbor_andijon",
	"buxoro":          "@ishbor_buxoro",
	"fargona":         "@ishbor_fargona",
	"jizzax":          "@ishbor_jizzax",
	"xorazm":          "@ishbor_xorazm",
	"namangan":        "@ishbor_namangan",
	"navoiy":          "@ishbor_navoiy",
	"qashqadaryo":     "@ishbor_qashqadaryo",
	"qoraqalpogiston": "@ishbor_qoraqalpogiston",
	"samarqand":       "@ishbor_samarqand",
	"sirdaryo":        "@ishbor_sirdaryo",
	"surxondaryo":     "@ishbor_surxondaryo",
}

// envBindings are the variables read once at start. Each one overrides
// the matching key of the config file.
var envBindings = map[string]string{
	"telegram.token":              "TELEGRAM_TOKEN",
	"telegram.dry_run":            "BOT_DRY_RUN",
	"telegram.premium_emoji_mode": "PREMIUM_EMOJI_MODE",
	"telegram.webhook_url":        "WEBHOOK_URL",
	"telegram.webhook_secret":     "WEBHOOK_SECRET",
	"openai.api_key":              "OPENAI_API_KEY",
	"openai.base_url":             "OPENAI_BASE_URL",
	"gemini.api_key":              "GEMINI_API_KEY",
	"redis.url":                   "REDIS_URL",
	"server.addr":                 "BOT_ADDR",
	"server.internal_secret":      "INTERNAL_SECRET",
	"kafka.brokers":               "KAFKA_BROKERS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.api_endpoint", "https://api.telegram.org/bot%s/%s")
	v.SetDefault("telegram.timeout", 10*time.Second)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.dry_run", false)
	v.SetDefault("telegram.premium_emoji_mode", EmojiModeAuto)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "ishbor-bot.db")
	v.SetDefault("database.use_in_memory", false)
	v.SetDefault("redis.lock_ttl", 30*time.Second)
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.max_tokens", 1200)
	v.SetDefault("openai.temperature", 0.2)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("ranker.provider", "openai")
	v.SetDefault("ranker.timeout", 8*time.Second)
	v.SetDefault("ranker.top_n", 40)
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.lockout_minutes", 15)
	v.SetDefault("auth.otp_ttl", 5*time.Minute)
	v.SetDefault("auth.otp_max_attempts", 3)
	v.SetDefault("auth.otp_resend_interval", time.Minute)
	v.SetDefault("channels.targets", DefaultChannels)
	v.SetDefault("channels.promo_text", "Ish topish va xodim izlash uchun obuna bo'ling!")
	v.SetDefault("channels.posts_per_minute", 20)
	v.SetDefault("channels.sync_timeout", 30*time.Second)
	v.SetDefault("channels.site_url", "https://ishbor.uz")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.handler_timeout", 25*time.Second)
	v.SetDefault("kafka.topic", "marketplace.entity.published")
	v.SetDefault("kafka.group_id", "ishbor-bot-channel-sync")
	v.SetDefault("log.json", false)
	v.SetDefault("log.debug", false)
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	if u.Scheme == "sqlite" || u.Scheme == "file" {
		path := u.Opaque
		if path == "" {
			path = u.Host + u.Path
		}
		return DatabaseConfig{Driver: "sqlite", Path: path}, nil
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadConfig reads .env, the optional config file at path and the
// environment, in increasing priority. Flags bound through flags win over
// everything; their keys are the viper keys they override.
func LoadConfig(path string, flags map[string]*pflag.Flag) (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}
	for key, flag := range flags {
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag.Name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	// KAFKA_BROKERS arrives as one comma separated string.
	if len(config.Kafka.Brokers) == 1 && strings.Contains(config.Kafka.Brokers[0], ",") {
		config.Kafka.Brokers = splitList(config.Kafka.Brokers[0])
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the bot cannot start with.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" && !c.Telegram.DryRun {
		return fmt.Errorf("telegram token is required (TELEGRAM_TOKEN) unless dry run is enabled")
	}
	switch c.Telegram.PremiumEmojiMode {
	case EmojiModeAuto, EmojiModeOn, EmojiModeOff:
	default:
		return fmt.Errorf("invalid premium emoji mode %q: want auto, on or off", c.Telegram.PremiumEmojiMode)
	}
	switch c.Ranker.Provider {
	case "openai", "gemini", "none", "":
	default:
		return fmt.Errorf("unknown ranker provider %q", c.Ranker.Provider)
	}
	if c.Auth.MaxLoginAttempts <= 0 {
		return fmt.Errorf("auth.max_login_attempts must be positive")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
