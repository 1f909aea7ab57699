/*
Copyright 2025 LedgerLink Authors.

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

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	// DEFAULT_SWEEP_INTERVAL_SEC is how often each ledger scans for expired
	// pending escrows when no per-escrow timer is available.
	DEFAULT_SWEEP_INTERVAL_SEC = 5
)

var ConfigStore atomic.Value

type ServerConfig struct {
	Secure    bool   `json:"secure" envconfig:"LEDGERLINK_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"LEDGERLINK_SERVER_SECRET_KEY"`
	Port      string `json:"port" envconfig:"LEDGERLINK_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"LEDGERLINK_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"LEDGERLINK_REDIS_DNS"`
}

type QueueConfig struct {
	EscrowExpiryQueue string `json:"escrow_expiry_queue" envconfig:"LEDGERLINK_QUEUE_ESCROW_EXPIRY"`
	WebhookQueue      string `json:"webhook_queue" envconfig:"LEDGERLINK_QUEUE_WEBHOOK"`
	NumberOfQueues    int    `json:"number_of_queues" envconfig:"LEDGERLINK_QUEUE_NUMBER_OF_QUEUES"`
	MonitoringPort    string `json:"monitoring_port" envconfig:"LEDGERLINK_QUEUE_MONITORING_PORT"`
}

// LedgerConfig is the connected-ledger metadata the router consults: where
// escrowed funds sit, which account the connector owns there, and the default
// hold expiry for transfers that do not carry their own.
type LedgerConfig struct {
	ID                   string `json:"id"`
	Currency             string `json:"currency"`
	EscrowAccount        string `json:"escrow_account"`
	ConnectorAccount     string `json:"connector_account"`
	DefaultExpirySeconds int    `json:"default_expiry_seconds"`
	SweepIntervalSeconds int    `json:"sweep_interval_seconds"`
}

// RouteConfig is one static routing table entry: payments for
// DestinationLedger leave through the connector's account on HopLedger.
type RouteConfig struct {
	DestinationLedger string `json:"destination_ledger"`
	HopLedger         string `json:"hop_ledger"`
	HopAccount        string `json:"hop_account"`
}

// RateConfig is a fixed exchange rate between two currencies, expressed as a
// decimal string to avoid float drift.
type RateConfig struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rate string `json:"rate"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"LEDGERLINK_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"LEDGERLINK_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"LEDGERLINK_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"LEDGERLINK_PROJECT_NAME"`
	ConnectorID  string           `json:"connector_id" envconfig:"LEDGERLINK_CONNECTOR_ID"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Ledgers      []LedgerConfig   `json:"ledgers"`
	Routes       []RouteConfig    `json:"routes"`
	Rates        []RateConfig     `json:"rates"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("ledgerlink", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called ledgerlink.json with your config")
	}
	return c, nil
}

// Ledger returns the connected-ledger metadata for id, or nil.
func (cnf *Configuration) Ledger(id string) *LedgerConfig {
	for i := range cnf.Ledgers {
		if cnf.Ledgers[i].ID == id {
			return &cnf.Ledgers[i]
		}
	}
	return nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "LedgerLink Connector"
	}
	if cnf.ConnectorID == "" {
		cnf.ConnectorID = "connector"
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Warning: Data source DNS is empty. Falling back to in-memory stores; escrows will not survive a restart.")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.EscrowExpiryQueue == "" {
		cnf.Queue.EscrowExpiryQueue = "new:escrow-expiry"
	}
	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = "new:webhook"
	}
	if cnf.Queue.NumberOfQueues == 0 {
		cnf.Queue.NumberOfQueues = 4
	}
	if cnf.Queue.MonitoringPort == "" {
		cnf.Queue.MonitoringPort = "5004"
	}

	for i := range cnf.Ledgers {
		if cnf.Ledgers[i].ID == "" {
			return errors.New("every configured ledger needs an id")
		}
		if cnf.Ledgers[i].Currency == "" {
			return errors.New("every configured ledger needs a currency")
		}
		if cnf.Ledgers[i].EscrowAccount == "" {
			cnf.Ledgers[i].EscrowAccount = "escrow"
		}
		if cnf.Ledgers[i].DefaultExpirySeconds == 0 {
			cnf.Ledgers[i].DefaultExpirySeconds = 60
		}
		if cnf.Ledgers[i].SweepIntervalSeconds == 0 {
			cnf.Ledgers[i].SweepIntervalSeconds = DEFAULT_SWEEP_INTERVAL_SEC
		}
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
