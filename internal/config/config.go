package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"randomcoffee/internal/utils"
)

const DefaultPath = "config/config.yaml"

type BotConfig struct {
	Token         string `yaml:"token" env:"BOT_TOKEN"`
	Mode          string `yaml:"mode" env:"BOT_MODE"` // polling | webhook
	WebhookURL    string `yaml:"webhook_url" env:"BOT_WEBHOOK_URL"`
	WebhookSecret string `yaml:"webhook_secret" env:"BOT_WEBHOOK_SECRET"`
	ListenAddr    string `yaml:"listen_addr" env:"BOT_LISTEN_ADDR"`
	Workers       int    `yaml:"workers" env:"BOT_WORKERS"`
}

type AdminConfig struct {
	IDs    []int64 `yaml:"ids" env:"ADMIN_IDS" envSeparator:","`
	ChatID int64   `yaml:"chat_id" env:"ADMIN_CHAT_ID"`
}

type EmailConfig struct {
	Regex          string   `yaml:"regex" env:"EMAIL_REGEX"`
	AllowedDomains []string `yaml:"allowed_domains" env:"ALLOWED_DOMAINS" envSeparator:","`
}

type MailConfig struct {
	Provider     string `yaml:"provider" env:"MAIL_PROVIDER"` // smtp | resend | noop
	SMTPHost     string `yaml:"smtp_host" env:"SMTP_HOST"`
	SMTPPort     int    `yaml:"smtp_port" env:"SMTP_PORT"`
	SMTPUser     string `yaml:"smtp_user" env:"SMTP_USER"`
	SMTPPassword string `yaml:"smtp_password" env:"SMTP_PASSWORD"`
	From         string `yaml:"from_email" env:"SMTP_FROM"`
	ResendAPIKey string `yaml:"resend_api_key" env:"RESEND_API_KEY"`
}

type DatabaseConfig struct {
	// DSN "memory" keeps everything in process, for dry runs.
	DSN string `yaml:"url" env:"DATABASE_URL"`
}

type OTPConfig struct {
	Length          int `yaml:"length" env:"OTP_LENGTH"`
	TTLSeconds      int `yaml:"ttl_seconds" env:"OTP_TTL_SECONDS"`
	CooldownSeconds int `yaml:"cooldown_seconds" env:"OTP_COOLDOWN_SECONDS"`
	MaxResend       int `yaml:"max_resend" env:"RESEND_MAX_PER_SESSION"`
}

type LimitsConfig struct {
	MaxEmailAttempts int `yaml:"max_email_attempts" env:"EMAIL_MAX_ATTEMPTS"`
	MaxOTPAttempts   int `yaml:"max_otp_attempts" env:"OTP_MAX_ATTEMPTS"`
}

type ProfileConfig struct {
	BannedWords []string `yaml:"banned_words" env:"BANNED_WORDS" envSeparator:","`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Admin    AdminConfig    `yaml:"admin"`
	Email    EmailConfig    `yaml:"email"`
	Mail     MailConfig     `yaml:"mail"`
	Database DatabaseConfig `yaml:"database"`
	OTP      OTPConfig      `yaml:"otp"`
	Limits   LimitsConfig   `yaml:"limits"`
	Profile  ProfileConfig  `yaml:"profile"`
	LogLevel string         `yaml:"log_level" env:"LOG_LEVEL"`
}

// LoadConfig reads the configuration and validates it for running the bot.
func LoadConfig(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read loads the YAML file (optional if missing), overlays the environment and applies defaults.
// Tools that never talk to Telegram use it directly.
func Read(path string) (*Config, error) {
	cfg := Defaults()
	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// Defaults holds the values used for keys absent from both the file and the environment.
// An explicit zero, e.g. cooldown_seconds: 0, is kept as configured.
func Defaults() Config {
	var c Config
	c.Bot.Mode = "polling"
	c.Bot.ListenAddr = ":8080"
	c.Bot.Workers = 8
	c.Email.Regex = utils.DefaultEmailPattern
	c.Mail.Provider = "smtp"
	c.Mail.SMTPPort = 587
	c.OTP.Length = utils.DefaultCodeLength
	c.OTP.TTLSeconds = 120
	c.OTP.CooldownSeconds = 120
	c.OTP.MaxResend = 3
	c.Limits.MaxEmailAttempts = 3
	c.Limits.MaxOTPAttempts = 3
	c.LogLevel = "info"
	return c
}

// applyDefaults fills values derived from other keys and empty strings that have no meaning.
func (c *Config) applyDefaults() {
	if c.Bot.Mode == "" {
		c.Bot.Mode = "polling"
	}
	if c.Bot.Workers <= 0 {
		c.Bot.Workers = 8
	}
	if c.Email.Regex == "" {
		c.Email.Regex = utils.DefaultEmailPattern
	}
	if c.Mail.From == "" {
		c.Mail.From = c.Mail.SMTPUser
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return fmt.Errorf("bot token is not set (bot.token or BOT_TOKEN)")
	}
	if c.Bot.Mode != "polling" && c.Bot.Mode != "webhook" {
		return fmt.Errorf("unknown bot mode %q", c.Bot.Mode)
	}
	if c.Bot.Mode == "webhook" && c.Bot.WebhookURL == "" {
		return fmt.Errorf("webhook mode requires bot.webhook_url")
	}
	if _, err := regexp.Compile(c.Email.Regex); err != nil {
		return fmt.Errorf("email regex: %w", err)
	}
	switch c.Mail.Provider {
	case "smtp", "resend", "noop":
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}
	if c.OTP.Length < 4 || c.OTP.Length > 8 {
		return fmt.Errorf("otp length must be within 4..8, got %d", c.OTP.Length)
	}
	if c.OTP.TTLSeconds < 1 {
		return fmt.Errorf("otp ttl must be positive, got %d", c.OTP.TTLSeconds)
	}
	if c.OTP.CooldownSeconds < 0 || c.OTP.MaxResend < 0 {
		return fmt.Errorf("otp cooldown and resend cap must not be negative")
	}
	if c.Limits.MaxEmailAttempts < 1 || c.Limits.MaxOTPAttempts < 1 {
		return fmt.Errorf("attempt limits must be positive")
	}
	return nil
}

func (c OTPConfig) TTL() time.Duration      { return time.Duration(c.TTLSeconds) * time.Second }
func (c OTPConfig) Cooldown() time.Duration { return time.Duration(c.CooldownSeconds) * time.Second }
