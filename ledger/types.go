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

// Package ledger defines the contract with the external chain-interface
// service and provides an HTTP client implementation. The service owns the
// actual node connection; this module only consumes its query, build,
// submit, and payment-monitor operations.
package ledger

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blinklabs-io/minstrel/assets"
)

// Utxo is an immutable snapshot of an unspent transaction output as
// reported by the chain service. It becomes stale once consumed; callers
// always select from a fresh query result.
type Utxo struct {
	Hash   string               `json:"hash"`
	Index  uint32               `json:"ix"`
	Amount int64                `json:"lovelace"`
	Assets []assets.NativeAsset `json:"nativeAssets,omitempty"`
}

// Ref renders the UTXO as the conventional hash#index reference.
func (u Utxo) Ref() string {
	return fmt.Sprintf("%s#%d", u.Hash, u.Index)
}

// ParseUtxoRef parses a hash#index reference into a Utxo. Only the
// identity fields are populated.
func ParseUtxoRef(ref string) (Utxo, error) {
	hash, indexStr, found := strings.Cut(ref, "#")
	if !found || hash == "" {
		return Utxo{}, fmt.Errorf("invalid utxo reference %q", ref)
	}
	index, err := strconv.ParseUint(indexStr, 10, 32)
	if err != nil {
		return Utxo{}, fmt.Errorf("invalid utxo reference %q: %w", ref, err)
	}
	return Utxo{Hash: hash, Index: uint32(index)}, nil
}

// Compare orders UTXOs by (hash, index). The ordering is total for
// well-formed inputs, which makes selections that depend on it
// deterministic regardless of query result order.
func (u Utxo) Compare(other Utxo) int {
	if c := strings.Compare(u.Hash, other.Hash); c != 0 {
		return c
	}
	switch {
	case u.Index < other.Index:
		return -1
	case u.Index > other.Index:
		return 1
	default:
		return 0
	}
}

// OutputUtxo is a transaction output in a build request.
type OutputUtxo struct {
	Address   string               `json:"address"`
	Lovelace  int64                `json:"lovelace"`
	Assets    []assets.NativeAsset `json:"nativeAssets,omitempty"`
	DatumHash string               `json:"datumHash,omitempty"`
	Datum     string               `json:"datum,omitempty"`
}

// RedeemerTag identifies the script action a redeemer authorizes.
type RedeemerTag string

const (
	RedeemerTagSpend RedeemerTag = "spend"
	RedeemerTagMint  RedeemerTag = "mint"
)

// Redeemer authorizes a script action in a build request. Data is the
// hex-encoded CBOR of the redeemer's PlutusData payload.
type Redeemer struct {
	Tag   RedeemerTag `json:"tag"`
	Index uint64      `json:"index"`
	Data  string      `json:"data"`
}

// Signature is a verification key witness. Both fields are hex encoded.
// For the first build pass the signature is zero-filled at the correct
// length so the computed fee (and hence the transaction id) matches the
// signed transaction exactly.
type Signature struct {
	VKey      string `json:"vkey"`
	Signature string `json:"signature"`
}

// BuildTxRequest is the full specification of a transaction handed to the
// chain service for assembly.
type BuildTxRequest struct {
	SourceUtxos             []Utxo               `json:"sourceUtxos"`
	OutputUtxos             []OutputUtxo         `json:"outputUtxos"`
	MintTokens              []assets.NativeAsset `json:"mintTokens,omitempty"`
	CollateralUtxos         []Utxo               `json:"collateralUtxos,omitempty"`
	CollateralReturnAddress string               `json:"collateralReturnAddress,omitempty"`
	ChangeAddress           string               `json:"changeAddress"`
	RequiredSigners         []string             `json:"requiredSigners,omitempty"`
	ReferenceInputs         []Utxo               `json:"referenceInputs,omitempty"`
	Datums                  []string             `json:"datums,omitempty"`
	Redeemers               []Redeemer           `json:"redeemers,omitempty"`
	Signatures              []Signature          `json:"signatures,omitempty"`
	TransactionNote         string               `json:"transactionNote,omitempty"`
}

// BuildTxResponse is the chain service's answer to a build request. A
// non-empty ErrorMessage marks the build as failed regardless of the other
// fields.
type BuildTxResponse struct {
	TransactionID   string `json:"transactionId"`
	TransactionCbor string `json:"transactionCbor"`
	ErrorMessage    string `json:"errorMessage,omitempty"`
}

// SubmitResultAccepted is the Result value of a successful submission.
const SubmitResultAccepted = "ACCEPTED"

// SubmitTxResponse is the chain service's answer to a submit request.
type SubmitTxResponse struct {
	Result string `json:"result"`
	TxID   string `json:"txId"`
}

// ChainService is the consumed contract of the external chain-interface
// service.
type ChainService interface {
	// QueryLiveUtxos returns the current unspent outputs at an address.
	QueryLiveUtxos(ctx context.Context, address string) ([]Utxo, error)
	// BuildTransaction assembles a transaction from the request and
	// returns its id and CBOR.
	BuildTransaction(
		ctx context.Context,
		req BuildTxRequest,
	) (BuildTxResponse, error)
	// SubmitTransaction submits a fully signed transaction.
	SubmitTransaction(
		ctx context.Context,
		txCbor string,
	) (SubmitTxResponse, error)
	// MonitorPaymentAddress waits (server-side) for the exact amount to
	// arrive at the address, up to the given timeout.
	MonitorPaymentAddress(
		ctx context.Context,
		address string,
		lovelace int64,
		timeout time.Duration,
	) (bool, error)
	// IsMainnet reports whether the service is connected to mainnet.
	IsMainnet(ctx context.Context) (bool, error)
	// QueryStreamTokenMinUtxo returns the current minimum UTXO value per
	// native asset.
	QueryStreamTokenMinUtxo(ctx context.Context) (int64, error)
	// QueryAdaUSDPrice returns the USD price of one ADA, scaled by 1e6.
	QueryAdaUSDPrice(ctx context.Context) (int64, error)
}
