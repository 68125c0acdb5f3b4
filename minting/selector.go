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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/blinklabs-io/minstrel/keystore"
	"github.com/blinklabs-io/minstrel/ledger"
)

// maxTreasuryInputs caps the cash register and money box inputs per
// transaction to keep the transaction size bounded
const maxTreasuryInputs = 5

var (
	// ErrPaymentUtxoNotFound indicates that no UTXO at the payment
	// address matched the expected amount exactly
	ErrPaymentUtxoNotFound = errors.New("payment utxo not found")
	// ErrTreasuryEmpty indicates that the cash register holds no
	// spendable asset-free UTXOs
	ErrTreasuryEmpty = errors.New("treasury is empty")
	// ErrNoCollateral indicates that the collateral key holds no
	// asset-free UTXO to use as collateral
	ErrNoCollateral = errors.New("no collateral utxo available")
)

// SelectorConfig configures a UtxoSelector.
type SelectorConfig struct {
	ChainService ledger.ChainService
	KeyStore     *keystore.KeyStore
	Logger       *slog.Logger
	// TreasuryCollectionThreshold is the cash register balance above
	// which excess funds are swept into the money box
	TreasuryCollectionThreshold int64
	// TreasuryReserveLovelace stays behind in the cash register when a
	// sweep happens
	TreasuryReserveLovelace int64
	// StarterTokenUtxo is the fixed reference input holding the starter
	// token NFT
	StarterTokenUtxo ledger.Utxo
	// MintingScriptUtxo is the fixed reference input holding the minting
	// script
	MintingScriptUtxo ledger.Utxo
}

// Selection is the complete set of inputs chosen for one minting
// transaction, along with the keys that control them.
type Selection struct {
	Payment    ledger.Utxo
	Treasury   []ledger.Utxo
	MoneyBox   []ledger.Utxo
	Collateral ledger.Utxo
	// ReferenceInputs holds the starter token and minting script UTXOs
	ReferenceInputs []ledger.Utxo
	// NameSource is the smallest (hash, index) UTXO among payment,
	// treasury and money box inputs. Token names derive from it.
	NameSource ledger.Utxo

	CashRegisterKey *keystore.Key
	MoneyBoxKey     *keystore.Key
	CollateralKey   *keystore.Key

	// SweepMoneyBox marks that the cash register balance exceeded the
	// collection threshold and excess should be swept to the money box
	SweepMoneyBox bool
	// TreasuryBalance is the total asset-free lovelace at the cash
	// register address at selection time
	TreasuryBalance int64
}

// SourceUtxos returns every spendable input of the selection in query
// order (payment, treasury, money box).
func (s *Selection) SourceUtxos() []ledger.Utxo {
	utxos := make(
		[]ledger.Utxo,
		0,
		1+len(s.Treasury)+len(s.MoneyBox),
	)
	utxos = append(utxos, s.Payment)
	utxos = append(utxos, s.Treasury...)
	utxos = append(utxos, s.MoneyBox...)
	return utxos
}

// UtxoSelector chooses transaction inputs from fresh chain queries. It is
// deterministic for a fixed query result, which the two-pass transaction
// build relies on.
type UtxoSelector struct {
	config SelectorConfig
	logger *slog.Logger
}

// NewUtxoSelector returns a UtxoSelector for the given config.
func NewUtxoSelector(config SelectorConfig) *UtxoSelector {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &UtxoSelector{
		config: config,
		logger: logger.With("component", "utxo-selector"),
	}
}

// Select queries the chain service and assembles the inputs for one
// minting transaction. The payment UTXO must match paymentAmount exactly
// and carry no native assets. Missing named keys, an empty treasury, a
// missing collateral UTXO and a missing payment UTXO each fail with a
// distinct error; none are retried here.
func (s *UtxoSelector) Select(
	ctx context.Context,
	paymentAddress string,
	paymentAmount int64,
) (*Selection, error) {
	selection := &Selection{
		ReferenceInputs: []ledger.Utxo{
			s.config.StarterTokenUtxo,
			s.config.MintingScriptUtxo,
		},
	}

	cashRegisterKey, err := s.config.KeyStore.GetKeyByName(
		keystore.KeyNameCashRegister,
	)
	if err != nil {
		return nil, err
	}
	selection.CashRegisterKey = cashRegisterKey
	treasuryUtxos, treasuryBalance, err := s.queryAssetFree(
		ctx,
		cashRegisterKey.Address,
	)
	if err != nil {
		return nil, err
	}
	if len(treasuryUtxos) == 0 {
		return nil, ErrTreasuryEmpty
	}
	selection.Treasury = topByAmount(treasuryUtxos, maxTreasuryInputs)
	selection.TreasuryBalance = treasuryBalance

	if treasuryBalance > s.config.TreasuryCollectionThreshold+
		s.config.TreasuryReserveLovelace {
		moneyBoxKey, err := s.config.KeyStore.GetKeyByName(
			keystore.KeyNameMoneyBox,
		)
		if err != nil {
			return nil, err
		}
		selection.MoneyBoxKey = moneyBoxKey
		moneyBoxUtxos, _, err := s.queryAssetFree(
			ctx,
			moneyBoxKey.Address,
		)
		if err != nil {
			return nil, err
		}
		selection.MoneyBox = topByAmount(moneyBoxUtxos, maxTreasuryInputs)
		selection.SweepMoneyBox = true
		s.logger.Debug(
			"treasury balance exceeds collection threshold, sweeping to money box",
			"treasury_balance", treasuryBalance,
			"threshold", s.config.TreasuryCollectionThreshold,
		)
	}

	collateralKey, err := s.config.KeyStore.GetKeyByName(
		keystore.KeyNameCollateral,
	)
	if err != nil {
		return nil, err
	}
	selection.CollateralKey = collateralKey
	collateralUtxos, _, err := s.queryAssetFree(
		ctx,
		collateralKey.Address,
	)
	if err != nil {
		return nil, err
	}
	if len(collateralUtxos) == 0 {
		return nil, ErrNoCollateral
	}
	selection.Collateral = topByAmount(collateralUtxos, 1)[0]

	paymentUtxos, err := s.config.ChainService.QueryLiveUtxos(
		ctx,
		paymentAddress,
	)
	if err != nil {
		return nil, fmt.Errorf("query payment utxos: %w", err)
	}
	found := false
	for _, utxo := range paymentUtxos {
		if utxo.Amount == paymentAmount && len(utxo.Assets) == 0 {
			selection.Payment = utxo
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf(
			"%w: no utxo of exactly %d lovelace at %s",
			ErrPaymentUtxoNotFound,
			paymentAmount,
			paymentAddress,
		)
	}

	selection.NameSource = smallestUtxo(selection.SourceUtxos())
	return selection, nil
}

func (s *UtxoSelector) queryAssetFree(
	ctx context.Context,
	address string,
) ([]ledger.Utxo, int64, error) {
	utxos, err := s.config.ChainService.QueryLiveUtxos(ctx, address)
	if err != nil {
		return nil, 0, fmt.Errorf("query utxos for %s: %w", address, err)
	}
	filtered := []ledger.Utxo{}
	var balance int64
	for _, utxo := range utxos {
		if len(utxo.Assets) > 0 {
			continue
		}
		filtered = append(filtered, utxo)
		balance += utxo.Amount
	}
	return filtered, balance, nil
}

// topByAmount returns up to limit UTXOs ordered by descending amount,
// ties broken by (hash, index) so the result is deterministic.
func topByAmount(utxos []ledger.Utxo, limit int) []ledger.Utxo {
	sorted := make([]ledger.Utxo, len(utxos))
	copy(sorted, utxos)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Amount != sorted[j].Amount {
			return sorted[i].Amount > sorted[j].Amount
		}
		return sorted[i].Compare(sorted[j]) < 0
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

func smallestUtxo(utxos []ledger.Utxo) ledger.Utxo {
	smallest := utxos[0]
	for _, utxo := range utxos[1:] {
		if utxo.Compare(smallest) < 0 {
			smallest = utxo
		}
	}
	return smallest
}
