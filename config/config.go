/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_LOCK_TIMEOUT_MS   = 5000
	DEFAULT_TRANSFER_RETRIES  = 3
	NO_TRANSFER_RETRIES       = -1
	DEFAULT_PIN_ATTEMPTS      = 3
	DEFAULT_SESSION_TTL_SEC   = 60
	DEFAULT_REFERENCE_TTL_SEC = 86400
	DEFAULT_WEBHOOK_QUEUE     = "tally_webhooks"
	DEFAULT_QUEUE_CONCURRENCY = 10
)

var ConfigStore atomic.Value

type LedgerConfig struct {
	// DefaultOverdraftLimit applies to current accounts opened without an explicit limit.
	DefaultOverdraftLimit string `json:"default_overdraft_limit" envconfig:"TALLY_LEDGER_DEFAULT_OVERDRAFT_LIMIT"`
	LockTimeoutMs         int    `json:"lock_timeout_ms" envconfig:"TALLY_LEDGER_LOCK_TIMEOUT_MS"`
}

type TransferConfig struct {
	// MaxRetries bounds retries of lock timeouts. 0 means DEFAULT_TRANSFER_RETRIES,
	// NO_TRANSFER_RETRIES turns retrying off.
	MaxRetries      int `json:"max_retries" envconfig:"TALLY_TRANSFER_MAX_RETRIES"`
	ReferenceTTLSec int `json:"reference_ttl_sec" envconfig:"TALLY_TRANSFER_REFERENCE_TTL_SEC"`
}

type ATMConfig struct {
	MaxPinAttempts int `json:"max_pin_attempts" envconfig:"TALLY_ATM_MAX_PIN_ATTEMPTS"`
	SessionTTLSec  int `json:"session_ttl_sec" envconfig:"TALLY_ATM_SESSION_TTL_SEC"`
	PinCost        int `json:"pin_cost" envconfig:"TALLY_ATM_PIN_COST"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"TALLY_REDIS_DNS"`
}

type QueueConfig struct {
	WebhookQueue string `json:"webhook_queue" envconfig:"TALLY_QUEUE_WEBHOOK_QUEUE"`
	Concurrency  int    `json:"concurrency" envconfig:"TALLY_QUEUE_CONCURRENCY"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url" envconfig:"TALLY_SLACK_WEBHOOK_URL"`
}

type WebhookConfig struct {
	Url     string            `json:"url" envconfig:"TALLY_WEBHOOK_URL"`
	Headers map[string]string `json:"headers"`
}

type Notification struct {
	Slack   SlackWebhook  `json:"slack"`
	Webhook WebhookConfig `json:"webhook"`
}

type TracingConfig struct {
	Enabled     bool   `json:"enabled" envconfig:"TALLY_TRACING_ENABLED"`
	Endpoint    string `json:"endpoint" envconfig:"TALLY_TRACING_ENDPOINT"`
	ServiceName string `json:"service_name" envconfig:"TALLY_TRACING_SERVICE_NAME"`
}

type Configuration struct {
	ProjectName  string         `json:"project_name" envconfig:"TALLY_PROJECT_NAME"`
	Ledger       LedgerConfig   `json:"ledger"`
	Transfer     TransferConfig `json:"transfer"`
	ATM          ATMConfig      `json:"atm"`
	Redis        RedisConfig    `json:"redis"`
	Queue        QueueConfig    `json:"queue"`
	Notification Notification   `json:"notification"`
	Tracing      TracingConfig  `json:"tracing"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		defer f.Close()
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("tally", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return nil
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded. Create a json file called tally.json or set TALLY_* env variables")
	}
	return c, nil
}

// FetchOrDefault returns the loaded configuration, falling back to a
// defaulted empty one so the in-memory ledger works without any config.
func FetchOrDefault() *Configuration {
	if c, err := Fetch(); err == nil {
		return c
	}
	var cnf Configuration
	_ = cnf.validateAndAddDefaults()
	return &cnf
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		cnf.ProjectName = "Tally"
	}

	// Trim white spaces from fields
	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)
	cnf.Ledger.DefaultOverdraftLimit = strings.TrimSpace(cnf.Ledger.DefaultOverdraftLimit)

	if cnf.Ledger.DefaultOverdraftLimit == "" {
		cnf.Ledger.DefaultOverdraftLimit = "0"
	}
	limit, err := decimal.NewFromString(cnf.Ledger.DefaultOverdraftLimit)
	if err != nil {
		return errors.New("ledger default overdraft limit must be a decimal")
	}
	if limit.IsNegative() {
		return errors.New("ledger default overdraft limit must not be negative")
	}

	if cnf.Ledger.LockTimeoutMs <= 0 {
		cnf.Ledger.LockTimeoutMs = DEFAULT_LOCK_TIMEOUT_MS
	}
	if cnf.Transfer.MaxRetries < NO_TRANSFER_RETRIES {
		return errors.New("transfer max retries must be -1 or more")
	}
	if cnf.Transfer.MaxRetries == 0 {
		cnf.Transfer.MaxRetries = DEFAULT_TRANSFER_RETRIES
	}
	if cnf.Transfer.ReferenceTTLSec <= 0 {
		cnf.Transfer.ReferenceTTLSec = DEFAULT_REFERENCE_TTL_SEC
	}

	if cnf.ATM.MaxPinAttempts <= 0 {
		cnf.ATM.MaxPinAttempts = DEFAULT_PIN_ATTEMPTS
	}
	if cnf.ATM.SessionTTLSec <= 0 {
		cnf.ATM.SessionTTLSec = DEFAULT_SESSION_TTL_SEC
	}
	if cnf.ATM.PinCost == 0 {
		// bcrypt.DefaultCost
		cnf.ATM.PinCost = 10
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if cnf.Queue.Concurrency <= 0 {
		cnf.Queue.Concurrency = DEFAULT_QUEUE_CONCURRENCY
	}

	if cnf.Tracing.Enabled && cnf.Tracing.ServiceName == "" {
		cnf.Tracing.ServiceName = cnf.ProjectName
	}

	return nil
}

// OverdraftLimit returns the parsed default overdraft limit.
func (l LedgerConfig) OverdraftLimit() decimal.Decimal {
	limit, err := decimal.NewFromString(l.DefaultOverdraftLimit)
	if err != nil {
		return decimal.Zero
	}
	return limit
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
