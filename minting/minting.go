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

// Package minting builds and submits the mint transaction for a song. The
// mint consists of a reference NFT carrying the metadata document and a
// fixed supply of fractional tokens split among the royalty-bearing
// collaborators.
package minting

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/minstrel/assets"
	"github.com/blinklabs-io/minstrel/database/models"
	"github.com/blinklabs-io/minstrel/keystore"
	"github.com/blinklabs-io/minstrel/ledger"
	"github.com/blinklabs-io/minstrel/metadata"
	"github.com/blinklabs-io/plutigo/data"
	"github.com/prometheus/client_golang/prometheus"
)

// zeroSignatureHex is a placeholder Ed25519 signature at the correct
// length, used on the first build pass so the computed fee matches the
// signed transaction
const zeroSignatureHex = "0000000000000000000000000000000000000000000000000000000000000000" +
	"0000000000000000000000000000000000000000000000000000000000000000"

// BuildError is a fatal error-bearing response from a transaction build
// pass. It is never retried within the builder.
type BuildError struct {
	Pass    int
	Message string
}

func (e BuildError) Error() string {
	return fmt.Sprintf(
		"transaction build pass %d failed: %s",
		e.Pass,
		e.Message,
	)
}

// SubmitError is a non-accepted submission result.
type SubmitError struct {
	Result string
}

func (e SubmitError) Error() string {
	return "transaction submission rejected: " + e.Result
}

// Store is the persistence surface the minter needs.
type Store interface {
	CollaborationsBySongID(songId string) ([]models.Collaboration, error)
	AddMintInfo(info *models.MintInfo) error
}

// MinterConfig configures a Minter.
type MinterConfig struct {
	ChainService ledger.ChainService
	KeyStore     *keystore.KeyStore
	Store        Store
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// PolicyID is the hex-encoded minting policy id.
	PolicyID string
	// ScriptAddress receives the reference NFT output.
	ScriptAddress string
	// TransactionNote is a small fixed note attached to every mint
	// transaction.
	TransactionNote string
	// Distributor names the distribution partner in the metadata
	// document.
	Distributor string
	Selector    SelectorConfig
}

// Minter performs the full mint sequence for a song: input selection,
// two-pass transaction build and submission. The whole sequence runs under
// a single lock because selection reads a point-in-time UTXO snapshot that
// a concurrent mint would invalidate.
type Minter struct {
	// mintMutex serializes all mints against the chain service, not just
	// mints of the same song
	mintMutex sync.Mutex
	config    MinterConfig
	selector  *UtxoSelector
	logger    *slog.Logger
	metrics   *minterMetrics
}

// NewMinter returns a Minter for the given config.
func NewMinter(config MinterConfig) *Minter {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	selectorConfig := config.Selector
	selectorConfig.ChainService = config.ChainService
	selectorConfig.KeyStore = config.KeyStore
	selectorConfig.Logger = logger
	return &Minter{
		config:   config,
		selector: NewUtxoSelector(selectorConfig),
		logger:   logger.With("component", "minter"),
		metrics:  newMinterMetrics(config.PromRegistry),
	}
}

// MintSong builds, signs and submits the mint transaction for a song and
// records the durable mint receipt. Any error aborts the whole attempt;
// nothing is retried here.
func (m *Minter) MintSong(
	ctx context.Context,
	song *models.Song,
) (*models.MintInfo, error) {
	m.mintMutex.Lock()
	defer m.mintMutex.Unlock()

	start := time.Now()
	info, err := m.mintSong(ctx, song)
	if err != nil {
		m.metrics.mintFailures.Inc()
		return nil, err
	}
	m.metrics.mints.Inc()
	m.logger.Info(
		"minted song",
		"song_id", song.ID,
		"tx_id", info.TxID,
		"fingerprint", info.Fingerprint,
		"duration", time.Since(start).String(),
	)
	return info, nil
}

func (m *Minter) mintSong(
	ctx context.Context,
	song *models.Song,
) (*models.MintInfo, error) {
	collaborations, err := m.config.Store.CollaborationsBySongID(song.ID)
	if err != nil {
		return nil, fmt.Errorf("load collaborations: %w", err)
	}
	allocations, err := SplitFractionalSupply(song.ID, collaborations)
	if err != nil {
		return nil, err
	}

	paymentKey, err := m.config.KeyStore.GetKey(song.PaymentKeyID)
	if err != nil {
		return nil, fmt.Errorf("load payment key: %w", err)
	}
	selection, err := m.selector.Select(
		ctx,
		paymentKey.Address,
		song.MintCostLovelace,
	)
	if err != nil {
		return nil, err
	}
	refTokenName, fracTokenName, err := DeriveTokenNames(
		selection.NameSource,
	)
	if err != nil {
		return nil, err
	}

	doc, err := metadata.BuildDocument(
		metadataSong(song, m.config.Distributor),
		song.ArtistName,
		metadataCredits(collaborations),
	)
	if err != nil {
		return nil, fmt.Errorf("build metadata document: %w", err)
	}
	docCbor, err := metadata.Encode(doc)
	if err != nil {
		return nil, fmt.Errorf("encode metadata document: %w", err)
	}
	datumHash, err := metadata.DatumHash(doc)
	if err != nil {
		return nil, fmt.Errorf("hash metadata document: %w", err)
	}

	minUtxoLovelace, err := m.config.ChainService.QueryStreamTokenMinUtxo(
		ctx,
	)
	if err != nil {
		return nil, fmt.Errorf("query min utxo: %w", err)
	}

	request, err := m.buildRequest(buildRequestParams{
		selection:       selection,
		allocations:     allocations,
		paymentKey:      paymentKey,
		refTokenName:    refTokenName,
		fracTokenName:   fracTokenName,
		datumHex:        hex.EncodeToString(docCbor),
		datumHashHex:    hex.EncodeToString(datumHash.Bytes()),
		minUtxoLovelace: minUtxoLovelace,
	})
	if err != nil {
		return nil, err
	}

	// Pass 1: placeholder signatures, to learn the transaction id
	request.Signatures = placeholderSignatures(signingKeys(
		selection,
		paymentKey,
	))
	unsigned, err := m.config.ChainService.BuildTransaction(ctx, *request)
	if err != nil {
		return nil, fmt.Errorf("build transaction (pass 1): %w", err)
	}
	if unsigned.ErrorMessage != "" {
		return nil, BuildError{Pass: 1, Message: unsigned.ErrorMessage}
	}

	// Pass 2: identical request with real signatures over the learned id
	signatures, err := m.signAll(
		unsigned.TransactionID,
		signingKeys(selection, paymentKey),
	)
	if err != nil {
		return nil, err
	}
	request.Signatures = signatures
	signed, err := m.config.ChainService.BuildTransaction(ctx, *request)
	if err != nil {
		return nil, fmt.Errorf("build transaction (pass 2): %w", err)
	}
	if signed.ErrorMessage != "" {
		return nil, BuildError{Pass: 2, Message: signed.ErrorMessage}
	}

	submitted, err := m.config.ChainService.SubmitTransaction(
		ctx,
		signed.TransactionCbor,
	)
	if err != nil {
		return nil, fmt.Errorf("submit transaction: %w", err)
	}
	if submitted.Result != ledger.SubmitResultAccepted {
		return nil, SubmitError{Result: submitted.Result}
	}

	fingerprint, err := assetFingerprint(m.config.PolicyID, fracTokenName)
	if err != nil {
		return nil, err
	}
	info := &models.MintInfo{
		SongID:      song.ID,
		TxID:        submitted.TxID,
		PolicyID:    m.config.PolicyID,
		AssetName:   fracTokenName,
		Fingerprint: fingerprint,
	}
	if err := m.config.Store.AddMintInfo(info); err != nil {
		return nil, fmt.Errorf("save mint info: %w", err)
	}
	return info, nil
}

type buildRequestParams struct {
	selection       *Selection
	allocations     []Allocation
	paymentKey      *keystore.Key
	refTokenName    string
	fracTokenName   string
	datumHex        string
	datumHashHex    string
	minUtxoLovelace int64
}

func (m *Minter) buildRequest(
	params buildRequestParams,
) (*ledger.BuildTxRequest, error) {
	outputs := []ledger.OutputUtxo{
		{
			Address:  m.config.ScriptAddress,
			Lovelace: params.minUtxoLovelace,
			Assets: []assets.NativeAsset{
				{
					PolicyID: m.config.PolicyID,
					Name:     params.refTokenName,
					Amount:   1,
				},
			},
			DatumHash: params.datumHashHex,
		},
	}
	for _, allocation := range params.allocations {
		address := allocation.Collaboration.WalletAddress
		if address == "" {
			// Owner takes custody until the collaborator links a wallet
			address = params.paymentKey.Address
		}
		outputs = append(outputs, ledger.OutputUtxo{
			Address:  address,
			Lovelace: params.minUtxoLovelace,
			Assets: []assets.NativeAsset{
				{
					PolicyID: m.config.PolicyID,
					Name:     params.fracTokenName,
					Amount:   allocation.Amount,
				},
			},
		})
	}
	if params.selection.SweepMoneyBox {
		var sweepLovelace int64
		for _, utxo := range params.selection.Treasury {
			sweepLovelace += utxo.Amount
		}
		for _, utxo := range params.selection.MoneyBox {
			sweepLovelace += utxo.Amount
		}
		// The reserve stays behind in the cash register via change
		sweepLovelace -= m.config.Selector.TreasuryReserveLovelace
		if sweepLovelace > params.minUtxoLovelace {
			outputs = append(outputs, ledger.OutputUtxo{
				Address:  params.selection.MoneyBoxKey.Address,
				Lovelace: sweepLovelace,
			})
		}
	}

	redeemerData, err := data.Encode(data.NewConstr(0))
	if err != nil {
		return nil, fmt.Errorf("encode mint redeemer: %w", err)
	}

	signerHashes := []string{}
	for _, key := range signingKeys(params.selection, params.paymentKey) {
		signerHashes = append(signerHashes, key.VKeyHash())
	}

	return &ledger.BuildTxRequest{
		SourceUtxos: params.selection.SourceUtxos(),
		OutputUtxos: outputs,
		MintTokens: []assets.NativeAsset{
			{
				PolicyID: m.config.PolicyID,
				Name:     params.refTokenName,
				Amount:   1,
			},
			{
				PolicyID: m.config.PolicyID,
				Name:     params.fracTokenName,
				Amount:   FractionalTotalSupply,
			},
		},
		CollateralUtxos:         []ledger.Utxo{params.selection.Collateral},
		CollateralReturnAddress: params.selection.CollateralKey.Address,
		ChangeAddress:           params.selection.CashRegisterKey.Address,
		RequiredSigners:         signerHashes,
		ReferenceInputs:         params.selection.ReferenceInputs,
		Datums:                  []string{params.datumHex},
		Redeemers: []ledger.Redeemer{
			{
				Tag:   ledger.RedeemerTagMint,
				Index: 0,
				Data:  hex.EncodeToString(redeemerData),
			},
		},
		TransactionNote: m.config.TransactionNote,
	}, nil
}

// signingKeys returns the keys whose UTXOs the transaction spends, in a
// fixed order so both build passes carry witnesses in the same positions.
func signingKeys(
	selection *Selection,
	paymentKey *keystore.Key,
) []*keystore.Key {
	keys := []*keystore.Key{
		paymentKey,
		selection.CashRegisterKey,
		selection.CollateralKey,
	}
	if selection.MoneyBoxKey != nil {
		keys = append(keys, selection.MoneyBoxKey)
	}
	return keys
}

func placeholderSignatures(keys []*keystore.Key) []ledger.Signature {
	signatures := make([]ledger.Signature, 0, len(keys))
	for _, key := range keys {
		signatures = append(signatures, ledger.Signature{
			VKey:      hex.EncodeToString(key.VKey),
			Signature: zeroSignatureHex,
		})
	}
	return signatures
}

func (m *Minter) signAll(
	txId string,
	keys []*keystore.Key,
) ([]ledger.Signature, error) {
	signatures := make([]ledger.Signature, 0, len(keys))
	for _, key := range keys {
		sig, err := m.config.KeyStore.Sign(txId, key)
		if err != nil {
			return nil, fmt.Errorf("sign with key %s: %w", key.Name, err)
		}
		signatures = append(signatures, ledger.Signature{
			VKey:      hex.EncodeToString(key.VKey),
			Signature: hex.EncodeToString(sig),
		})
	}
	return signatures, nil
}

func assetFingerprint(policyIdHex, nameHex string) (string, error) {
	policyId, err := hex.DecodeString(policyIdHex)
	if err != nil {
		return "", fmt.Errorf("decode policy id: %w", err)
	}
	name, err := hex.DecodeString(nameHex)
	if err != nil {
		return "", fmt.Errorf("decode asset name: %w", err)
	}
	return lcommon.NewAssetFingerprint(policyId, name).String(), nil
}

func metadataSong(song *models.Song, distributor string) metadata.Song {
	return metadata.Song{
		Title:                      song.Title,
		Genres:                     song.Genres,
		Moods:                      song.Moods,
		Duration:                   time.Duration(song.DurationMs) * time.Millisecond,
		TrackNumber:                song.TrackNumber,
		CopyrightYear:              song.CopyrightYear,
		CompositionCopyrightOwner:  song.CompositionCopyrightOwner,
		PhonographicCopyrightOwner: song.PhonographicCopyrightOwner,
		LyricsURL:                  song.LyricsURL,
		ParentalAdvisory:           song.ParentalAdvisory,
		Isrc:                       song.Isrc,
		Iswc:                       song.Iswc,
		Ipis:                       song.Ipis,
		ReleaseTitle:               song.ReleaseTitle,
		ReleaseType:                song.ReleaseType,
		Distributor:                distributor,
		CoverArtURL:                song.CoverArtURL,
		AudioURL:                   song.AudioURL,
		AgreementURL:               song.AgreementURL,
	}
}

func metadataCredits(
	collaborations []models.Collaboration,
) []metadata.Credit {
	credits := make([]metadata.Credit, 0, len(collaborations))
	for _, collab := range collaborations {
		credits = append(credits, metadata.Credit{
			Name:     collab.Name,
			Role:     collab.Role,
			Credited: collab.Credited,
		})
	}
	return credits
}
