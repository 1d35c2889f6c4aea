package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/model"
	"main/internal/model/enum"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Risk      RiskFileConfig      `json:"risk"`
	Execution ExecutionFileConfig `json:"execution"`
	Stops     StopFileConfig      `json:"stops"`
	Notify    NotifyFileConfig    `json:"notify"`
	Feed      FeedFileConfig      `json:"feed"`
	Postgres  PostgresFileConfig  `json:"postgres"`
	API       APIFileConfig       `json:"api"`
	Pyroscope PyroscopeFileConfig `json:"pyroscope"`
}

// RiskFileConfig defines default limits plus per-strategy overrides.
type RiskFileConfig struct {
	Defaults   model.RiskConfig            `json:"defaults"`
	Strategies map[string]model.RiskConfig `json:"strategies"`
}

// ExecutionFileConfig tunes the dispatch pool and retry policy.
type ExecutionFileConfig struct {
	Workers          int `json:"workers"`
	QueueCap         int `json:"queueCap"`
	MaxRetries       int `json:"maxRetries"`
	BackoffBaseMs    int `json:"backoffBaseMs"`
	BackoffMaxMs     int `json:"backoffMaxMs"`
	SubmitTimeoutSec int `json:"submitTimeoutSec"`
}

// StopFileConfig bounds emergency-stop lifetime.
type StopFileConfig struct {
	MaxDurationMinutes int `json:"maxDurationMinutes"`
	SweepIntervalSec   int `json:"sweepIntervalSec"`
}

// NotifyFileConfig wires channel credentials and escalation overrides.
type NotifyFileConfig struct {
	Workers          int            `json:"workers"`
	QueueCap         int            `json:"queueCap"`
	SendTimeoutSec   int            `json:"sendTimeoutSec"`
	SendRetries      int            `json:"sendRetries"`
	EscalateAfterMin map[string]int `json:"escalateAfterMinutes"`

	Telegram struct {
		BotToken string `json:"botToken"`
		ChatID   string `json:"chatId"`
	} `json:"telegram"`
	Email struct {
		Host     string   `json:"host"`
		Port     int      `json:"port"`
		Username string   `json:"username"`
		Password string   `json:"password"`
		From     string   `json:"from"`
		To       []string `json:"to"`
	} `json:"email"`
	WebhookURL string `json:"webhookUrl"`
	SlackURL   string `json:"slackUrl"`
	DiscordURL string `json:"discordUrl"`
}

// FeedFileConfig selects the market data source.
type FeedFileConfig struct {
	Source        string   `json:"source"` // binance | sim
	BaseURL       string   `json:"baseUrl"`
	Symbols       []string `json:"symbols"`
	SimIntervalMs int      `json:"simIntervalMs"`
}

// PostgresFileConfig holds the storage connection. Empty host keeps the
// in-memory store.
type PostgresFileConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	Database     string `json:"database"`
	SSLMode      string `json:"sslMode"`
	MaxOpenConns int    `json:"maxOpenConns"`
	MaxIdleConns int    `json:"maxIdleConns"`
	AutoMigrate  bool   `json:"autoMigrate"`
}

// APIFileConfig configures the admin HTTP server.
type APIFileConfig struct {
	Addr string `json:"addr"`
}

// PyroscopeFileConfig enables continuous profiling when the address is set.
type PyroscopeFileConfig struct {
	ServerAddress   string `json:"serverAddress"`
	ApplicationName string `json:"applicationName"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	RiskDefaults   model.RiskConfig
	RiskStrategies map[string]model.RiskConfig

	ExecutionWorkers int
	ExecutionQueue   int
	MaxRetries       int
	BackoffBase      time.Duration
	BackoffMax       time.Duration
	SubmitTimeout    time.Duration

	StopMaxDuration time.Duration
	StopSweepEvery  time.Duration

	NotifyWorkers     int
	NotifyQueue       int
	NotifySendTimeout time.Duration
	NotifySendRetries int
	EscalateAfter     map[enum.Severity]time.Duration
	Notify            NotifyFileConfig

	Feed      FeedFileConfig
	Postgres  PostgresFileConfig
	APIAddr   string
	Pyroscope PyroscopeFileConfig
}

// Load reads a JSON config file and resolves durations and defaults.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	escalate, err := resolveEscalation(cfg.Notify.EscalateAfterMin)
	if err != nil {
		return Loaded{}, err
	}

	out := Loaded{
		RiskDefaults:   cfg.Risk.Defaults,
		RiskStrategies: cfg.Risk.Strategies,

		ExecutionWorkers: cfg.Execution.Workers,
		ExecutionQueue:   cfg.Execution.QueueCap,
		MaxRetries:       cfg.Execution.MaxRetries,
		BackoffBase:      time.Duration(cfg.Execution.BackoffBaseMs) * time.Millisecond,
		BackoffMax:       time.Duration(cfg.Execution.BackoffMaxMs) * time.Millisecond,
		SubmitTimeout:    time.Duration(cfg.Execution.SubmitTimeoutSec) * time.Second,

		StopMaxDuration: time.Duration(cfg.Stops.MaxDurationMinutes) * time.Minute,
		StopSweepEvery:  time.Duration(cfg.Stops.SweepIntervalSec) * time.Second,

		NotifyWorkers:     cfg.Notify.Workers,
		NotifyQueue:       cfg.Notify.QueueCap,
		NotifySendTimeout: time.Duration(cfg.Notify.SendTimeoutSec) * time.Second,
		NotifySendRetries: cfg.Notify.SendRetries,
		EscalateAfter:     escalate,
		Notify:            cfg.Notify,

		Feed:      cfg.Feed,
		Postgres:  cfg.Postgres,
		APIAddr:   cfg.API.Addr,
		Pyroscope: cfg.Pyroscope,
	}

	if out.Feed.Source == "" {
		out.Feed.Source = "sim"
	}
	if out.APIAddr == "" {
		out.APIAddr = ":8080"
	}
	return out, nil
}

func resolveEscalation(minutes map[string]int) (map[enum.Severity]time.Duration, error) {
	if len(minutes) == 0 {
		return nil, nil
	}
	bySeverity := map[string]enum.Severity{
		"LOW":       enum.SeverityLow,
		"MEDIUM":    enum.SeverityMedium,
		"HIGH":      enum.SeverityHigh,
		"CRITICAL":  enum.SeverityCritical,
		"EMERGENCY": enum.SeverityEmergency,
	}
	out := make(map[enum.Severity]time.Duration, len(minutes))
	for name, mins := range minutes {
		severity, ok := bySeverity[name]
		if !ok {
			return nil, fmt.Errorf("unknown severity %q in escalation config", name)
		}
		if mins <= 0 {
			return nil, fmt.Errorf("escalation minutes for %s must be positive", name)
		}
		out[severity] = time.Duration(mins) * time.Minute
	}
	return out, nil
}
