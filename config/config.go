// SPDX-License-Identifier: GPL-3.0-or-later
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/CrawX/go-imap-sentinel/domain"
)

const (
	// LeaseBackendDatabase shares leases through the database so separate processes never overlap.
	LeaseBackendDatabase = "database"
	LeaseBackendMemory   = "memory"
)

type Account struct {
	UserId               string
	Username             string
	Password             string
	CheckIntervalSeconds int
}

type Config struct {
	Database       string `env:"SENTINEL_DATABASE"`
	DatabaseDriver string `env:"SENTINEL_DATABASE_DRIVER"`

	ImapHost           string `env:"SENTINEL_IMAP_HOST"`
	ImapTimeoutSeconds int    `env:"SENTINEL_IMAP_TIMEOUT_SECONDS"`

	Classifier       string `env:"SENTINEL_CLASSIFIER"`
	ModelPath        string `env:"SENTINEL_MODEL_PATH"`
	SpamassassinHost string `env:"SENTINEL_SPAMASSASSIN_HOST"`
	RspamdController string `env:"SENTINEL_RSPAMD_CONTROLLER"`
	RspamdPassword   string `env:"SENTINEL_RSPAMD_PASSWORD"`

	DryRun     bool     `env:"SENTINEL_DRY_RUN"`
	Folders    []string `env:"SENTINEL_FOLDERS" envSeparator:","`
	SpamFolder string   `env:"SENTINEL_SPAM_FOLDER"`

	CheckIntervalSeconds    int     `env:"SENTINEL_CHECK_INTERVAL_SECONDS"`
	SpamConfidenceThreshold float64 `env:"SENTINEL_SPAM_CONFIDENCE_THRESHOLD"`
	LeaseTTLSeconds         int     `env:"SENTINEL_LEASE_TTL_SECONDS"`
	RunTimeoutSeconds       int     `env:"SENTINEL_RUN_TIMEOUT_SECONDS"`
	MaxConsecutiveFailures  int     `env:"SENTINEL_MAX_CONSECUTIVE_FAILURES"`
	MaxBackoffSeconds       int     `env:"SENTINEL_MAX_BACKOFF_SECONDS"`
	TickSeconds             int     `env:"SENTINEL_TICK_SECONDS"`
	Workers                 int     `env:"SENTINEL_WORKERS"`
	ClassifyConcurrency     int     `env:"SENTINEL_CLASSIFY_CONCURRENCY"`
	LeaseBackend            string  `env:"SENTINEL_LEASE_BACKEND"`

	EventBacklog     int    `env:"SENTINEL_EVENT_BACKLOG"`
	SubscriberBuffer int    `env:"SENTINEL_SUBSCRIBER_BUFFER"`
	Listen           string `env:"SENTINEL_LISTEN"`
	AMQPURL          string `env:"SENTINEL_AMQP_URL"`
	AMQPExchange     string `env:"SENTINEL_AMQP_EXCHANGE"`

	KeyringService string `env:"SENTINEL_KEYRING_SERVICE"`

	Accounts []Account

	Loglevel *string `env:"SENTINEL_LOGLEVEL"`
}

func defaultConfig() *Config {
	return &Config{
		Database:                "sentinel.db",
		DatabaseDriver:          "sqlite3",
		ImapTimeoutSeconds:      30,
		Classifier:              string(domain.NaiveBayes),
		ModelPath:               "models/model_nb.json",
		Folders:                 []string{domain.Inbox},
		SpamFolder:              "Spam",
		CheckIntervalSeconds:    120,
		SpamConfidenceThreshold: 0.7,
		LeaseTTLSeconds:         300,
		RunTimeoutSeconds:       240,
		MaxConsecutiveFailures:  5,
		MaxBackoffSeconds:       3600,
		TickSeconds:             5,
		Workers:                 8,
		ClassifyConcurrency:     4,
		LeaseBackend:            LeaseBackendDatabase,
		EventBacklog:            64,
		SubscriberBuffer:        32,
		Listen:                  ":8080",
		AMQPExchange:            "email_events",
	}
}

// ReadConfig reads the toml file, then applies an optional .env file and SENTINEL_* variables.
func ReadConfig(filename string) (*Config, error) {
	config := defaultConfig()

	_, err := toml.DecodeFile(filename, config)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}

	err = godotenv.Load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("could not read .env file: %w", err)
	}

	err = env.Parse(config)
	if err != nil {
		return nil, fmt.Errorf("could not apply environment: %w", err)
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if err := validateNonEmptyStringField(c.Database, "Database must not be empty, set to a filename for the sqlite database or a postgres dsn"); err != nil {
		return err
	}

	if c.DatabaseDriver != "sqlite3" && c.DatabaseDriver != "postgres" {
		return fmt.Errorf("DatabaseDriver must be sqlite3 or postgres, got %q", c.DatabaseDriver)
	}

	if err := validateNonEmptyStringField(c.ImapHost, "ImapHost must not be empty, set to host:port of the imap server"); err != nil {
		return err
	}

	if err := validateNonEmptyStringField(c.SpamFolder, "SpamFolder must not be empty"); err != nil {
		return err
	}

	if len(c.Folders) == 0 {
		return errors.New("Folders must contain at least one folder to monitor")
	}
	for _, f := range c.Folders {
		if f == c.SpamFolder {
			return fmt.Errorf("SpamFolder %q cannot be monitored itself", f)
		}
	}

	switch domain.ClassifierVariant(c.Classifier) {
	case domain.NaiveBayes, domain.LogisticRegression:
		if err := validateNonEmptyStringField(c.ModelPath, "ModelPath must be set for the nb and lr classifiers"); err != nil {
			return err
		}
	case domain.SpamassassinScorer:
		if err := validateNonEmptyStringField(c.SpamassassinHost, "SpamassassinHost must be set for the spamassassin classifier"); err != nil {
			return err
		}
	case domain.RspamdScorer:
		if err := validateNonEmptyStringField(c.RspamdController, "RspamdController must be set for the rspamd classifier"); err != nil {
			return err
		}
		if err := validateNonEmptyStringField(c.RspamdPassword, "RspamdPassword must be set if RspamdController is set"); err != nil {
			return err
		}
	default:
		return fmt.Errorf("Classifier must be one of nb, lr, spamassassin, rspamd, got %q", c.Classifier)
	}

	if c.LeaseBackend != LeaseBackendDatabase && c.LeaseBackend != LeaseBackendMemory {
		return fmt.Errorf("LeaseBackend must be database or memory, got %q", c.LeaseBackend)
	}

	if c.SpamConfidenceThreshold < 0 || c.SpamConfidenceThreshold > 1 {
		return fmt.Errorf("SpamConfidenceThreshold must be within [0,1], got %v", c.SpamConfidenceThreshold)
	}

	for name, value := range map[string]int{
		"CheckIntervalSeconds":   c.CheckIntervalSeconds,
		"LeaseTTLSeconds":        c.LeaseTTLSeconds,
		"RunTimeoutSeconds":      c.RunTimeoutSeconds,
		"MaxConsecutiveFailures": c.MaxConsecutiveFailures,
		"MaxBackoffSeconds":      c.MaxBackoffSeconds,
		"TickSeconds":            c.TickSeconds,
		"Workers":                c.Workers,
		"ClassifyConcurrency":    c.ClassifyConcurrency,
		"EventBacklog":           c.EventBacklog,
		"SubscriberBuffer":       c.SubscriberBuffer,
		"ImapTimeoutSeconds":     c.ImapTimeoutSeconds,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	if c.LeaseTTLSeconds <= c.RunTimeoutSeconds {
		return fmt.Errorf("LeaseTTLSeconds (%d) must exceed RunTimeoutSeconds (%d)", c.LeaseTTLSeconds, c.RunTimeoutSeconds)
	}

	seen := map[string]bool{}
	for _, a := range c.Accounts {
		if err := validateNonEmptyStringField(a.UserId, "every account needs a UserId"); err != nil {
			return err
		}
		if seen[a.UserId] {
			return fmt.Errorf("account %q is configured twice", a.UserId)
		}
		seen[a.UserId] = true
		if err := validateNonEmptyStringField(a.Username, fmt.Sprintf("account %q needs a Username on the imap server", a.UserId)); err != nil {
			return err
		}
		if a.CheckIntervalSeconds < 0 {
			return fmt.Errorf("account %q has a negative CheckIntervalSeconds", a.UserId)
		}
	}

	return nil
}

func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.LeaseTTLSeconds) * time.Second
}

func (c *Config) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSeconds) * time.Second
}

func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSeconds) * time.Second
}

func (c *Config) Tick() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

func (c *Config) ImapTimeout() time.Duration {
	return time.Duration(c.ImapTimeoutSeconds) * time.Second
}

// DomainAccounts converts the configured accounts, falling back to the global interval.
func (c *Config) DomainAccounts() []domain.Account {
	accounts := make([]domain.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		interval := c.CheckInterval()
		if a.CheckIntervalSeconds > 0 {
			interval = time.Duration(a.CheckIntervalSeconds) * time.Second
		}
		accounts = append(accounts, domain.Account{
			UserId:        a.UserId,
			Username:      a.Username,
			CheckInterval: interval,
		})
	}
	return accounts
}

// Passwords returns the passwords given inline in the config file, keyed by user id.
func (c *Config) Passwords() map[string]string {
	passwords := map[string]string{}
	for _, a := range c.Accounts {
		if len(a.Password) > 0 {
			passwords[a.UserId] = a.Password
		}
	}
	return passwords
}

func validateNonEmptyStringField(field string, err string) error {
	if len(strings.TrimSpace(field)) == 0 {
		return errors.New(err)
	}

	return nil
}
