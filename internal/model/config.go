package model

import (
	"errors"
	"fmt"
	"time"
)

// Config is the complete factbot configuration
type Config struct {
	Discord    DiscordConfig    `yaml:"discord" mapstructure:"discord"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Payment    PaymentConfig    `yaml:"payment" mapstructure:"payment"`
	Usage      UsageConfig      `yaml:"usage" mapstructure:"usage"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	HTTP       HTTPConfig       `yaml:"http" mapstructure:"http"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Bot        BotConfig        `yaml:"bot" mapstructure:"bot"`
}

// DiscordConfig holds chat transport settings
type DiscordConfig struct {
	Token        string `yaml:"token" mapstructure:"token"`
	MessageLimit int    `yaml:"message_limit" mapstructure:"message_limit"` // Max characters per outgoing message
}

// PerplexityConfig holds LLM search API settings
type PerplexityConfig struct {
	APIKey              string        `yaml:"api_key" mapstructure:"api_key"`
	BaseURL             string        `yaml:"base_url" mapstructure:"base_url"`
	Model               string        `yaml:"model" mapstructure:"model"`
	DeepResearchModel   string        `yaml:"deep_research_model" mapstructure:"deep_research_model"`
	MaxTokens           int           `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature         float32       `yaml:"temperature" mapstructure:"temperature"`
	DeepTemperature     float32       `yaml:"deep_temperature" mapstructure:"deep_temperature"`
	Timeout             time.Duration `yaml:"timeout" mapstructure:"timeout"`
	DeepResearchTimeout time.Duration `yaml:"deep_research_timeout" mapstructure:"deep_research_timeout"`
	RequestsPerSecond   float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables the limiter
	Burst               int           `yaml:"burst" mapstructure:"burst"`
	DeepResearchRate    float64       `yaml:"deep_research_rate" mapstructure:"deep_research_rate"` // requests per second for the deep research model
	HTTPProxy           string        `yaml:"http_proxy" mapstructure:"http_proxy"`
	HTTPSProxy          string        `yaml:"https_proxy" mapstructure:"https_proxy"`
	NoProxy             string        `yaml:"no_proxy" mapstructure:"no_proxy"` // comma-separated hosts that bypass the proxy
}

// PaymentConfig holds payment gateway settings
type PaymentConfig struct {
	Provider  string    `yaml:"provider" mapstructure:"provider"` // "stub" or "yookassa"
	ShopID    string    `yaml:"shop_id" mapstructure:"shop_id"`
	SecretKey string    `yaml:"secret_key" mapstructure:"secret_key"`
	BaseURL   string    `yaml:"base_url" mapstructure:"base_url"`
	ReturnURL string    `yaml:"return_url" mapstructure:"return_url"`
	StubURL   string    `yaml:"stub_url" mapstructure:"stub_url"`
	Currency  string    `yaml:"currency" mapstructure:"currency"`
	Packages  []Package `yaml:"packages" mapstructure:"packages"`
}

// UsageConfig holds quota and pricing rules
type UsageConfig struct {
	DailyLimit       int            `yaml:"daily_limit" mapstructure:"daily_limit"`
	DeepResearchCost int            `yaml:"deep_research_cost" mapstructure:"deep_research_cost"`
	PromoCodes       map[string]int `yaml:"promo_codes" mapstructure:"promo_codes"`
	// Promo codes that also restore the free deep research attempt
	DeepResearchResetCodes []string `yaml:"deep_research_reset_codes" mapstructure:"deep_research_reset_codes"`
	ResetSchedule          string   `yaml:"reset_schedule" mapstructure:"reset_schedule"` // cron spec for the daily reset
}

// SourcesConfig extends the built-in domain reputation table.
// Domains listed here are added after the built-in lists, so built-in entries keep priority.
type SourcesConfig struct {
	High   []string `yaml:"high" mapstructure:"high"`
	Medium []string `yaml:"medium" mapstructure:"medium"`
	Biased []string `yaml:"biased" mapstructure:"biased"`
	Low    []string `yaml:"low" mapstructure:"low"`
}

// HTTPConfig holds the health/metrics/webhook server settings
type HTTPConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr    string `yaml:"addr" mapstructure:"addr"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file" mapstructure:"file"` // Optional rotating log file
}

// BotConfig holds conversation behaviour settings
type BotConfig struct {
	SessionTTL       time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	ProgressInterval time.Duration `yaml:"progress_interval" mapstructure:"progress_interval"` // Deep research status updates
}

// DefaultPackages returns the purchasable request bundles
func DefaultPackages() []Package {
	return []Package{
		{ID: "buy_10", Requests: 10, Price: 100},
		{ID: "buy_50", Requests: 50, Price: 400},
		{ID: "buy_100", Requests: 100, Price: 700},
		{ID: "buy_500", Requests: 500, Price: 3000},
	}
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			MessageLimit: 2000,
		},
		Perplexity: PerplexityConfig{
			BaseURL:             "https://api.perplexity.ai",
			Model:               "sonar",
			DeepResearchModel:   "sonar-deep-research",
			MaxTokens:           4000,
			Temperature:         0.2,
			DeepTemperature:     0.3,
			Timeout:             60 * time.Second,
			DeepResearchTimeout: 10 * time.Minute,
			RequestsPerSecond:   2,
			Burst:               4,
			DeepResearchRate:    0.2,
		},
		Payment: PaymentConfig{
			Provider: "stub",
			BaseURL:  "https://api.yookassa.ru/v3",
			StubURL:  "https://example.com/pay/stub",
			Currency: "RUB",
			Packages: DefaultPackages(),
		},
		Usage: UsageConfig{
			DailyLimit:       3,
			DeepResearchCost: 449,
			PromoCodes: map[string]int{
				"42":      5,
				"WELCOME": 3,
			},
			DeepResearchResetCodes: []string{"42"},
			ResetSchedule:          "0 0 * * *",
		},
		HTTP: HTTPConfig{
			Enabled: true,
			Addr:    ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
		Bot: BotConfig{
			SessionTTL:       24 * time.Hour,
			ProgressInterval: 30 * time.Second,
		},
	}
}

// Validate checks the settings required to run the bot
func (c *Config) Validate() error {
	var errs []error

	if c.Discord.Token == "" {
		errs = append(errs, errors.New("discord token is not set (DISCORD_TOKEN)"))
	}
	if c.Perplexity.APIKey == "" {
		errs = append(errs, errors.New("perplexity API key is not set (PERPLEXITY_API_KEY)"))
	}
	if c.Discord.MessageLimit <= 0 {
		errs = append(errs, fmt.Errorf("invalid message limit: %d", c.Discord.MessageLimit))
	}

	switch c.Payment.Provider {
	case "stub", "":
	case "yookassa":
		if c.Payment.ShopID == "" || c.Payment.SecretKey == "" {
			errs = append(errs, errors.New("yookassa provider requires shop_id and secret_key"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown payment provider: %s (supported: stub, yookassa)", c.Payment.Provider))
	}

	return errors.Join(errs...)
}
