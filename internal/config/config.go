// Package config provides YAML-based configuration loading for Switchboard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Switchboard configuration, loaded from config.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Bitrix   BitrixConfig   `yaml:"bitrix"`
	Chatling ChatlingConfig `yaml:"chatling"`
	Takeover TakeoverConfig `yaml:"takeover"`
	Notify   NotifyConfig   `yaml:"notify"`
	Digest   DigestConfig   `yaml:"digest"`
}

// ServerConfig holds webhook HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// DBConfig holds connection settings for the MySQL server.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// BitrixConfig holds Bitrix24 REST credentials. WebhookURL is the permanent
// inbound webhook base (https://<portal>.bitrix24.xx/rest/<user>/<token>/).
type BitrixConfig struct {
	WebhookURL    string `yaml:"webhook_url"`
	BotID         int    `yaml:"bot_id"`
	ClientID      string `yaml:"client_id"`
	LeadFlagField string `yaml:"lead_flag_field"` // UF_CRM_* field set when the bot hands off
}

// ChatlingConfig holds Chatling AI responder credentials.
type ChatlingConfig struct {
	APIURL string `yaml:"api_url"`
	APIKey string `yaml:"api_key"`
	BotID  string `yaml:"bot_id"`
}

// TakeoverConfig controls the human-takeover buffer and its escalation.
type TakeoverConfig struct {
	TimeoutMin      int    `yaml:"timeout_min"`       // minutes of staff silence before escalation
	PollIntervalSec int    `yaml:"poll_interval_sec"` // monitor scan period
	Preface         string `yaml:"preface"`           // prepended to escalated messages
}

// Timeout returns the escalation timeout as a duration.
func (t TakeoverConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutMin) * time.Minute
}

// PollInterval returns the monitor scan period as a duration.
func (t TakeoverConfig) PollInterval() time.Duration {
	return time.Duration(t.PollIntervalSec) * time.Second
}

// NotifyConfig holds optional staff-alert channel settings. An adapter is
// enabled when its bot token is non-empty.
type NotifyConfig struct {
	Slack   SlackConfig   `yaml:"slack"`
	Discord DiscordConfig `yaml:"discord"`
}

// SlackConfig holds Slack staff-alert settings.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord staff-alert settings.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DigestConfig controls the daily takeover digest.
type DigestConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"` // 5-field cron expression
}

// DefaultPreface is prepended to a consolidated buffer when it is escalated
// to the AI responder after staff silence.
const DefaultPreface = "The customer sent the following messages while waiting for a human reply:"

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.DB.Host == "" {
		c.DB.Host = "127.0.0.1"
	}
	if c.DB.Port == 0 {
		c.DB.Port = 3306
	}
	if c.DB.Database == "" {
		c.DB.Database = "switchboard"
	}
	if c.Chatling.APIURL == "" {
		c.Chatling.APIURL = "https://api.chatling.ai/v2"
	}
	if c.Takeover.TimeoutMin == 0 {
		c.Takeover.TimeoutMin = 60
	}
	if c.Takeover.PollIntervalSec == 0 {
		c.Takeover.PollIntervalSec = 60
	}
	if c.Takeover.Preface == "" {
		c.Takeover.Preface = DefaultPreface
	}
	if c.Digest.Cron == "" {
		c.Digest.Cron = "0 9 * * *"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Bitrix.WebhookURL == "" {
		errs = append(errs, "bitrix.webhook_url is required")
	}
	if c.Bitrix.BotID == 0 {
		errs = append(errs, "bitrix.bot_id is required")
	}
	if c.Chatling.APIKey == "" {
		errs = append(errs, "chatling.api_key is required")
	}
	if c.Chatling.BotID == "" {
		errs = append(errs, "chatling.bot_id is required")
	}
	if c.Takeover.TimeoutMin < 0 {
		errs = append(errs, "takeover.timeout_min must not be negative")
	}
	if c.Takeover.PollIntervalSec < 0 {
		errs = append(errs, "takeover.poll_interval_sec must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
