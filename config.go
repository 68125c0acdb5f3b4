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

package minstrel

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	ouroboros "github.com/blinklabs-io/gouroboros"
	"github.com/blinklabs-io/minstrel/ledger"
	"github.com/prometheus/client_golang/prometheus"
)

const policyIdHexLen = 56

type Config struct {
	logger                      *slog.Logger
	promRegistry                prometheus.Registerer
	dataDir                     string
	network                     string
	chainServiceUrl             string
	chainServiceToken           string
	masterKey                   []byte
	policyId                    string
	scriptAddress               string
	starterTokenUtxo            ledger.Utxo
	mintingScriptUtxo           ledger.Utxo
	transactionNote             string
	distributor                 string
	treasuryCollectionThreshold int64
	treasuryReserveLovelace     int64
	mintPriceBaseLovelace       int64
	distributionPriceUsd        int64
	paymentTimeout              time.Duration
	distributionPollInterval    time.Duration
	shutdownTimeout             time.Duration
	archiveEndpoint             string
	archiveAccessKeyId          string
	archiveSecretAccessKey      string
	archiveBucket               string
	archiveUseSSL               bool
}

// ConfigOptionFunc is a type that represents functions that modify the
// service config
type ConfigOptionFunc func(*Config)

// NewConfig creates a new minstrel config with the specified options
func NewConfig(opts ...ConfigOptionFunc) Config {
	c := Config{
		// Default logger will throw away logs
		// We do this so we don't have to add guards around every log operation
		logger:                      slog.New(slog.NewJSONHandler(io.Discard, nil)),
		network:                     "preview",
		transactionNote:             "minstrel mint",
		distributor:                 "minstrel.io",
		treasuryCollectionThreshold: 500_000_000,
		treasuryReserveLovelace:     100_000_000,
		mintPriceBaseLovelace:       10_000_000,
		distributionPriceUsd:        14_990_000,
		paymentTimeout:              10 * time.Minute,
		distributionPollInterval:    time.Hour,
		shutdownTimeout:             30 * time.Second,
	}
	// Apply options
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// WithLogger specifies the logger to use. This defaults to discarding log
// output
func WithLogger(logger *slog.Logger) ConfigOptionFunc {
	return func(c *Config) {
		c.logger = logger
	}
}

// WithPrometheusRegistry specifies a prometheus.Registerer instance to add
// metrics to. In most cases, prometheus.DefaultRegistry would be a good
// choice to get metrics working
func WithPrometheusRegistry(registry prometheus.Registerer) ConfigOptionFunc {
	return func(c *Config) {
		c.promRegistry = registry
	}
}

// WithDatabasePath specifies the persistent data directory to use. The
// default is to store everything in memory
func WithDatabasePath(dataDir string) ConfigOptionFunc {
	return func(c *Config) {
		c.dataDir = dataDir
	}
}

// WithNetwork specifies the named Cardano network to operate on. This
// selects the address encoding for generated keys. The default is "preview"
func WithNetwork(network string) ConfigOptionFunc {
	return func(c *Config) {
		c.network = network
	}
}

// WithChainService specifies the base URL and bearer token for the
// chain-interface service
func WithChainService(url string, token string) ConfigOptionFunc {
	return func(c *Config) {
		c.chainServiceUrl = url
		c.chainServiceToken = token
	}
}

// WithMasterKey specifies the 32-byte AES-256 key protecting stored
// signing keys
func WithMasterKey(masterKey []byte) ConfigOptionFunc {
	return func(c *Config) {
		c.masterKey = masterKey
	}
}

// WithPolicyId specifies the minting policy id (hex script hash)
func WithPolicyId(policyId string) ConfigOptionFunc {
	return func(c *Config) {
		c.policyId = policyId
	}
}

// WithScriptAddress specifies the script address receiving reference NFTs
func WithScriptAddress(scriptAddress string) ConfigOptionFunc {
	return func(c *Config) {
		c.scriptAddress = scriptAddress
	}
}

// WithStarterTokenUtxo specifies the UTXO holding the starter token,
// included as a reference input on every mint
func WithStarterTokenUtxo(utxo ledger.Utxo) ConfigOptionFunc {
	return func(c *Config) {
		c.starterTokenUtxo = utxo
	}
}

// WithMintingScriptUtxo specifies the UTXO holding the minting script,
// included as a reference input on every mint
func WithMintingScriptUtxo(utxo ledger.Utxo) ConfigOptionFunc {
	return func(c *Config) {
		c.mintingScriptUtxo = utxo
	}
}

// WithTransactionNote specifies the note attached to every minting
// transaction
func WithTransactionNote(note string) ConfigOptionFunc {
	return func(c *Config) {
		c.transactionNote = note
	}
}

// WithDistributor specifies the distributor name recorded in minted
// metadata
func WithDistributor(distributor string) ConfigOptionFunc {
	return func(c *Config) {
		c.distributor = distributor
	}
}

// WithTreasuryThresholds specifies the money-box sweep threshold and the
// treasury reserve, both in lovelace
func WithTreasuryThresholds(
	collectionThreshold int64,
	reserveLovelace int64,
) ConfigOptionFunc {
	return func(c *Config) {
		c.treasuryCollectionThreshold = collectionThreshold
		c.treasuryReserveLovelace = reserveLovelace
	}
}

// WithMintPriceBaseLovelace specifies the base mint price fed into payment
// quotes
func WithMintPriceBaseLovelace(lovelace int64) ConfigOptionFunc {
	return func(c *Config) {
		c.mintPriceBaseLovelace = lovelace
	}
}

// WithDistributionPriceUsd specifies the distribution partner's price in
// USD scaled by 1e6
func WithDistributionPriceUsd(usd int64) ConfigOptionFunc {
	return func(c *Config) {
		c.distributionPriceUsd = usd
	}
}

// WithPaymentTimeout specifies the server-side wait for mint payments. The
// default is 10 minutes
func WithPaymentTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.paymentTimeout = timeout
	}
}

// WithDistributionPollInterval specifies the period of the distribution
// status poll on mainnet. The default is one hour
func WithDistributionPollInterval(interval time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.distributionPollInterval = interval
	}
}

// WithShutdownTimeout specifies the timeout for graceful shutdown. The
// default is 30 seconds
func WithShutdownTimeout(timeout time.Duration) ConfigOptionFunc {
	return func(c *Config) {
		c.shutdownTimeout = timeout
	}
}

// WithArchiveStore specifies the S3-compatible object store receiving
// durable copies of song assets. An empty endpoint disables archival
func WithArchiveStore(
	endpoint string,
	accessKeyId string,
	secretAccessKey string,
	bucket string,
	useSSL bool,
) ConfigOptionFunc {
	return func(c *Config) {
		c.archiveEndpoint = endpoint
		c.archiveAccessKeyId = accessKeyId
		c.archiveSecretAccessKey = secretAccessKey
		c.archiveBucket = bucket
		c.archiveUseSSL = useSSL
	}
}

// configNetworkId resolves the named network to the network id used for
// address encoding
func (s *Service) configNetworkId() (uint8, error) {
	network, ok := ouroboros.NetworkByName(s.config.network)
	if !ok {
		return 0, fmt.Errorf("unknown network name: %s", s.config.network)
	}
	if network.Name == "mainnet" {
		return 1, nil
	}
	return 0, nil
}

func (s *Service) configValidate() error {
	if _, ok := ouroboros.NetworkByName(s.config.network); !ok {
		return fmt.Errorf("unknown network name: %s", s.config.network)
	}
	if len(s.config.masterKey) != 32 {
		return fmt.Errorf(
			"master key must be 32 bytes, got %d",
			len(s.config.masterKey),
		)
	}
	if s.config.chainServiceUrl == "" {
		return errors.New("no chain service URL defined")
	}
	if len(s.config.policyId) != policyIdHexLen {
		return fmt.Errorf(
			"policy id must be %d hex characters, got %d",
			policyIdHexLen,
			len(s.config.policyId),
		)
	}
	if _, err := hex.DecodeString(s.config.policyId); err != nil {
		return fmt.Errorf("invalid policy id: %w", err)
	}
	if s.config.scriptAddress == "" {
		return errors.New("no script address defined")
	}
	if s.config.starterTokenUtxo.Hash == "" ||
		s.config.mintingScriptUtxo.Hash == "" {
		return errors.New("reference input UTXOs must be defined")
	}
	if s.config.treasuryReserveLovelace < 0 ||
		s.config.treasuryCollectionThreshold < 0 {
		return errors.New("treasury thresholds must not be negative")
	}
	return nil
}
