// Copyright 2026 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	ouroboros "github.com/blinklabs-io/gouroboros"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

type ctxKey string

const configContextKey ctxKey = "minstrel.config"

const DefaultShutdownTimeout = "30s"

func WithContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configContextKey, cfg)
}

func FromContext(ctx context.Context) *Config {
	cfg, ok := ctx.Value(configContextKey).(*Config)
	if !ok {
		return nil
	}
	return cfg
}

type Config struct {
	DatabasePath    string `yaml:"databasePath"    split_words:"true"`
	Network         string `yaml:"network"`
	MetricsPort     uint   `yaml:"metricsPort"     split_words:"true"`
	ShutdownTimeout string `yaml:"shutdownTimeout" split_words:"true"`

	// Chain-interface service
	ChainServiceUrl   string `yaml:"chainServiceUrl"   split_words:"true"`
	ChainServiceToken string `yaml:"chainServiceToken" split_words:"true"`

	// MasterKey is the hex-encoded 32-byte key protecting stored signing
	// keys. Supplied via environment in production.
	MasterKey string `yaml:"masterKey" envconfig:"MINSTREL_MASTER_KEY"`

	// Minting
	PolicyId                    string `yaml:"policyId"                    split_words:"true"`
	ScriptAddress               string `yaml:"scriptAddress"               split_words:"true"`
	StarterTokenUtxo            string `yaml:"starterTokenUtxo"            split_words:"true"`
	MintingScriptUtxo           string `yaml:"mintingScriptUtxo"           split_words:"true"`
	TransactionNote             string `yaml:"transactionNote"             split_words:"true"`
	TreasuryCollectionThreshold int64  `yaml:"treasuryCollectionThreshold" split_words:"true"`
	TreasuryReserveLovelace     int64  `yaml:"treasuryReserveLovelace"     split_words:"true"`

	// Pricing (USD values scaled by 1e6)
	MintPriceBaseLovelace int64 `yaml:"mintPriceBaseLovelace" split_words:"true"`
	DistributionPriceUsd  int64 `yaml:"distributionPriceUsd"  split_words:"true"`

	// Distribution
	Distributor              string `yaml:"distributor"`
	PaymentTimeout           string `yaml:"paymentTimeout"           split_words:"true"`
	DistributionPollInterval string `yaml:"distributionPollInterval" split_words:"true"`

	// Archive object store (disabled when the endpoint is empty)
	ArchiveEndpoint  string `yaml:"archiveEndpoint"  split_words:"true"`
	ArchiveAccessKey string `yaml:"archiveAccessKey" split_words:"true"`
	ArchiveSecretKey string `yaml:"archiveSecretKey" split_words:"true"`
	ArchiveBucket    string `yaml:"archiveBucket"    split_words:"true"`
	ArchiveUseSSL    bool   `yaml:"archiveUseSsl"    split_words:"true"`
}

var globalConfig = &Config{
	DatabasePath:                ".minstrel",
	Network:                     "preview",
	MetricsPort:                 12798,
	ShutdownTimeout:             DefaultShutdownTimeout,
	TransactionNote:             "minstrel mint",
	TreasuryCollectionThreshold: 500_000_000,
	TreasuryReserveLovelace:     100_000_000,
	MintPriceBaseLovelace:       10_000_000,
	DistributionPriceUsd:        14_990_000,
	Distributor:                 "minstrel.io",
	PaymentTimeout:              "10m",
	DistributionPollInterval:    "1h",
}

func LoadConfig(configFile string) (*Config, error) {
	// Load config file as YAML if provided
	if configFile == "" {
		// Check for config file in this path: ~/.minstrel/minstrel.yaml
		if homeDir, err := os.UserHomeDir(); err == nil {
			userPath := filepath.Join(homeDir, ".minstrel", "minstrel.yaml")
			if _, err := os.Stat(userPath); err == nil {
				configFile = userPath
			}
		}

		// Try to check for /etc/minstrel/minstrel.yaml if still not found
		if configFile == "" {
			systemPath := "/etc/minstrel/minstrel.yaml"
			if _, err := os.Stat(systemPath); err == nil {
				configFile = systemPath
			}
		}
	}

	if configFile != "" {
		buf, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		err = yaml.Unmarshal(buf, globalConfig)
		if err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	}

	// Process environment variables
	err := envconfig.Process("minstrel", globalConfig)
	if err != nil {
		return nil, fmt.Errorf("error processing environment: %+w", err)
	}

	if err := globalConfig.validate(); err != nil {
		return nil, err
	}
	return globalConfig, nil
}

func (c *Config) validate() error {
	if _, ok := ouroboros.NetworkByName(c.Network); !ok {
		return fmt.Errorf("unknown network: %s", c.Network)
	}
	if c.MasterKey != "" {
		key, err := hex.DecodeString(c.MasterKey)
		if err != nil {
			return fmt.Errorf("invalid master key: %w", err)
		}
		if len(key) != 32 {
			return fmt.Errorf(
				"invalid master key: expected 32 bytes, got %d",
				len(key),
			)
		}
	}
	for _, duration := range []struct {
		name  string
		value string
	}{
		{name: "shutdownTimeout", value: c.ShutdownTimeout},
		{name: "paymentTimeout", value: c.PaymentTimeout},
		{name: "distributionPollInterval", value: c.DistributionPollInterval},
	} {
		if _, err := time.ParseDuration(duration.value); err != nil {
			return fmt.Errorf("invalid %s: %w", duration.name, err)
		}
	}
	return nil
}

// MasterKeyBytes returns the decoded signing-key master key.
func (c *Config) MasterKeyBytes() ([]byte, error) {
	key, err := hex.DecodeString(c.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("invalid master key: %w", err)
	}
	return key, nil
}

// NetworkId returns the Cardano network id for address encoding.
func (c *Config) NetworkId() uint8 {
	if c.Network == "mainnet" {
		return 1
	}
	return 0
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout. Validation
// at load time guarantees it parses.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.ShutdownTimeout)
	if err != nil {
		d, _ = time.ParseDuration(DefaultShutdownTimeout)
	}
	return d
}

// PaymentTimeoutDuration returns the parsed payment monitor timeout.
func (c *Config) PaymentTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.PaymentTimeout)
	return d
}

// DistributionPollIntervalDuration returns the parsed poll interval.
func (c *Config) DistributionPollIntervalDuration() time.Duration {
	d, _ := time.ParseDuration(c.DistributionPollInterval)
	return d
}

func GetConfig() *Config {
	return globalConfig
}
