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

package minstrel_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/blinklabs-io/minstrel"
	"github.com/blinklabs-io/minstrel/ledger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfigOptions() []minstrel.ConfigOptionFunc {
	return []minstrel.ConfigOptionFunc{
		minstrel.WithChainService("http://localhost:8090", ""),
		minstrel.WithMasterKey(bytes.Repeat([]byte{0x01}, 32)),
		minstrel.WithPolicyId(strings.Repeat("ee", 28)),
		minstrel.WithScriptAddress("addr_test1script"),
		minstrel.WithStarterTokenUtxo(
			ledger.Utxo{Hash: strings.Repeat("11", 32), Index: 0},
		),
		minstrel.WithMintingScriptUtxo(
			ledger.Utxo{Hash: strings.Repeat("22", 32), Index: 0},
		),
	}
}

func TestNewServiceValidConfig(t *testing.T) {
	svc, err := minstrel.New(minstrel.NewConfig(validConfigOptions()...))
	require.NoError(t, err)
	require.NotNil(t, svc)
}

func TestNewServiceConfigValidation(t *testing.T) {
	testDefs := []struct {
		name        string
		extraOpts   []minstrel.ConfigOptionFunc
		expectedErr string
	}{
		{
			name: "unknown network",
			extraOpts: []minstrel.ConfigOptionFunc{
				minstrel.WithNetwork("moonnet"),
			},
			expectedErr: "unknown network name",
		},
		{
			name: "short master key",
			extraOpts: []minstrel.ConfigOptionFunc{
				minstrel.WithMasterKey([]byte{0x01, 0x02}),
			},
			expectedErr: "master key must be 32 bytes",
		},
		{
			name: "missing chain service",
			extraOpts: []minstrel.ConfigOptionFunc{
				minstrel.WithChainService("", ""),
			},
			expectedErr: "no chain service URL",
		},
		{
			name: "bad policy id length",
			extraOpts: []minstrel.ConfigOptionFunc{
				minstrel.WithPolicyId("abcd"),
			},
			expectedErr: "policy id must be 56 hex characters",
		},
		{
			name: "non-hex policy id",
			extraOpts: []minstrel.ConfigOptionFunc{
				minstrel.WithPolicyId(strings.Repeat("zz", 28)),
			},
			expectedErr: "invalid policy id",
		},
		{
			name: "missing script address",
			extraOpts: []minstrel.ConfigOptionFunc{
				minstrel.WithScriptAddress(""),
			},
			expectedErr: "no script address",
		},
		{
			name: "missing reference inputs",
			extraOpts: []minstrel.ConfigOptionFunc{
				minstrel.WithStarterTokenUtxo(ledger.Utxo{}),
			},
			expectedErr: "reference input UTXOs",
		},
		{
			name: "negative treasury reserve",
			extraOpts: []minstrel.ConfigOptionFunc{
				minstrel.WithTreasuryThresholds(500_000_000, -1),
			},
			expectedErr: "treasury thresholds",
		},
	}
	for _, testDef := range testDefs {
		t.Run(testDef.name, func(t *testing.T) {
			opts := append(validConfigOptions(), testDef.extraOpts...)
			_, err := minstrel.New(minstrel.NewConfig(opts...))
			require.Error(t, err)
			assert.Contains(t, err.Error(), testDef.expectedErr)
		})
	}
}
