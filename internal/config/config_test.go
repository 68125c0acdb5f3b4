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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "minstrel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfigFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "preview", cfg.Network)
	assert.Equal(t, ".minstrel", cfg.DatabasePath)
	assert.Equal(t, uint(12798), cfg.MetricsPort)
	assert.Equal(t, int64(10_000_000), cfg.MintPriceBaseLovelace)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeoutDuration())
	assert.Equal(t, 10*time.Minute, cfg.PaymentTimeoutDuration())
	assert.Equal(t, uint8(0), cfg.NetworkId())
}

func TestLoadConfigFileOverlay(t *testing.T) {
	path := writeConfigFile(t, strings.Join([]string{
		"network: mainnet",
		"chainServiceUrl: https://chain.example.com",
		"paymentTimeout: 5m",
		"treasuryReserveLovelace: 42000000",
	}, "\n"))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "mainnet", cfg.Network)
	assert.Equal(t, uint8(1), cfg.NetworkId())
	assert.Equal(t, "https://chain.example.com", cfg.ChainServiceUrl)
	assert.Equal(t, 5*time.Minute, cfg.PaymentTimeoutDuration())
	assert.Equal(t, int64(42_000_000), cfg.TreasuryReserveLovelace)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("MINSTREL_NETWORK", "preprod")
	t.Setenv("MINSTREL_MASTER_KEY", strings.Repeat("ab", 32))
	cfg, err := LoadConfig(writeConfigFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, "preprod", cfg.Network)
	key, err := cfg.MasterKeyBytes()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestLoadConfigValidation(t *testing.T) {
	t.Run("unknown network", func(t *testing.T) {
		_, err := LoadConfig(writeConfigFile(t, "network: imaginonet"))
		assert.ErrorContains(t, err, "unknown network")
	})

	t.Run("short master key", func(t *testing.T) {
		t.Setenv("MINSTREL_MASTER_KEY", "abcd")
		_, err := LoadConfig(writeConfigFile(t, ""))
		assert.ErrorContains(t, err, "expected 32 bytes")
	})

	t.Run("bad duration", func(t *testing.T) {
		_, err := LoadConfig(writeConfigFile(t, "paymentTimeout: never"))
		assert.ErrorContains(t, err, "invalid paymentTimeout")
	})
}
