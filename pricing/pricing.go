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

// Package pricing computes the payable amounts for a mint. All arithmetic
// is integer fixed-point (lovelace, and USD scaled by 1e6); floating point
// is never used so results are exactly reproducible.
package pricing

import (
	"encoding/hex"
	"errors"
	"math/big"

	"github.com/blinklabs-io/gouroboros/cbor"
)

// ChangeBufferLovelace is returned to the payer's wallet as change and is
// always included in the total payable amount.
const ChangeBufferLovelace = 1_000_000

const usdScale = 1_000_000

var (
	ErrInvalidExchangeRate = errors.New("exchange rate must be positive")
	ErrNegativeInput       = errors.New("pricing inputs must not be negative")
)

// Params are the inputs to a price calculation.
type Params struct {
	// MinUtxoLovelace is the current minimum UTXO value per native asset,
	// as reported by the chain service.
	MinUtxoLovelace int64
	// Collaborators is the number of royalty-bearing collaborators on the
	// song.
	Collaborators int64
	// MintPriceBaseLovelace is the protocol-configured base mint price.
	MintPriceBaseLovelace int64
	// DistributionPriceUsd is the distribution partner's price in USD
	// scaled by 1e6.
	DistributionPriceUsd int64
	// UsdPerAda is the live exchange rate in USD per ADA, scaled by 1e6.
	UsdPerAda int64
}

// Quote is the result of a price calculation.
type Quote struct {
	CollabFeeLovelace         int64
	MintCostLovelace          int64
	DistributionPriceLovelace int64
	TotalLovelace             int64
	MintCostUsd               int64
	TotalUsd                  int64
	// CborHex is the total payable amount encoded as a canonical CBOR
	// positive integer, suitable for wallet display protocols.
	CborHex string
}

// ceilDiv returns ceil(a / b) for positive b.
func ceilDiv(a, b *big.Int) *big.Int {
	quo, rem := new(big.Int).QuoRem(a, b, new(big.Int))
	if rem.Sign() > 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// Calculate computes the full quote for a mint. It is a pure function:
// identical inputs always produce an identical quote.
func Calculate(params Params) (Quote, error) {
	if params.UsdPerAda <= 0 {
		return Quote{}, ErrInvalidExchangeRate
	}
	if params.MinUtxoLovelace < 0 || params.Collaborators < 0 ||
		params.MintPriceBaseLovelace < 0 || params.DistributionPriceUsd < 0 {
		return Quote{}, ErrNegativeInput
	}
	collabFee := params.Collaborators * params.MinUtxoLovelace
	mintCost := params.MintPriceBaseLovelace + collabFee
	// lovelace = ceil(usd * 1e6 / rate), both sides scaled by 1e6
	rate := big.NewInt(params.UsdPerAda)
	distributionLovelace := ceilDiv(
		new(big.Int).Mul(
			big.NewInt(params.DistributionPriceUsd),
			big.NewInt(usdScale),
		),
		rate,
	).Int64()
	total := mintCost + distributionLovelace + ChangeBufferLovelace
	// USD amounts are derived by multiplying back through the rate so that
	// the displayed USD figures always correspond to the lovelace amounts
	// actually charged.
	mintCostUsd := lovelaceToUsd(mintCost, rate)
	totalUsd := lovelaceToUsd(total, rate)
	totalCbor, err := cbor.Encode(uint64(total)) // #nosec G115
	if err != nil {
		return Quote{}, err
	}
	return Quote{
		CollabFeeLovelace:         collabFee,
		MintCostLovelace:          mintCost,
		DistributionPriceLovelace: distributionLovelace,
		TotalLovelace:             total,
		MintCostUsd:               mintCostUsd,
		TotalUsd:                  totalUsd,
		CborHex:                   hex.EncodeToString(totalCbor),
	}, nil
}

// lovelaceToUsd converts lovelace to USD scaled by 1e6, truncating toward
// zero.
func lovelaceToUsd(lovelace int64, usdPerAda *big.Int) int64 {
	ret := new(big.Int).Mul(big.NewInt(lovelace), usdPerAda)
	ret.Quo(ret, big.NewInt(usdScale))
	return ret.Int64()
}
