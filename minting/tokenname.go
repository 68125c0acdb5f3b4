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

package minting

import (
	"encoding/hex"
	"fmt"

	"github.com/blinklabs-io/minstrel/ledger"
	"golang.org/x/crypto/sha3"
)

const (
	// RefTokenPrefix is the CIP-67 label prefix for reference NFTs (label 100)
	RefTokenPrefix = "000643b0"
	// FracTokenPrefix is the CIP-67 label prefix for fractional fungible
	// tokens (label 444)
	FracTokenPrefix = "001bc280"

	// tokenNameSuffixBytes is the length of the hashed portion of a
	// derived token name
	tokenNameSuffixBytes = 28
)

// DeriveTokenNames derives the reference and fractional token names for a
// mint from its name-source UTXO. Both names share a common suffix: the
// output index is prepended as a single byte to the SHA3-256 digest of the
// transaction hash and the first 28 bytes of the result taken. The
// returned names are lowercase hex with their CIP-67 prefixes applied.
func DeriveTokenNames(utxo ledger.Utxo) (string, string, error) {
	if utxo.Index > 0xff {
		return "", "", fmt.Errorf(
			"utxo output index %d exceeds single byte range",
			utxo.Index,
		)
	}
	txHash, err := hex.DecodeString(utxo.Hash)
	if err != nil {
		return "", "", fmt.Errorf("decode utxo hash: %w", err)
	}
	hashedTx := sha3.Sum256(txHash)
	combined := make([]byte, 0, 1+len(hashedTx))
	combined = append(combined, byte(utxo.Index))
	combined = append(combined, hashedTx[:]...)
	suffix := hex.EncodeToString(combined[:tokenNameSuffixBytes])
	return RefTokenPrefix + suffix, FracTokenPrefix + suffix, nil
}
