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

// Package keystore manages wallet keys for the minting service. Signing
// keys are stored encrypted with a process-level master key and only
// decrypted transiently for signing. Well-known treasury keys are looked
// up by name ("cashRegister", "moneyBox", "collateral").
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"

	"github.com/blinklabs-io/minstrel/database/models"
)

// Well-known treasury key names.
const (
	KeyNameCashRegister = "cashRegister"
	KeyNameMoneyBox     = "moneyBox"
	KeyNameCollateral   = "collateral"
)

// Common errors returned by KeyStore operations.
var (
	ErrInvalidMasterKey = errors.New("master key must be 32 bytes")
	ErrDecryptFailed    = errors.New("signing key decryption failed")
	ErrKeyNotFound      = errors.New("key not found")
)

// Repository is the persistence surface the keystore needs. It is
// implemented by database.Database.
type Repository interface {
	KeyByID(id uint) (*models.Key, error)
	KeyByName(name string) (*models.Key, error)
	SaveKey(key *models.Key) (uint, error)
}

// Key is a decrypted wallet key, borrowed transiently for signing.
type Key struct {
	ID            uint
	Address       string
	ScriptAddress string
	Name          string
	VKey          ed25519.PublicKey
	SKey          ed25519.PrivateKey
}

// VKeyHash returns the Blake2b-224 hash of the verification key, used as a
// required-signer hash in transaction build requests.
func (k *Key) VKeyHash() string {
	hash := lcommon.Blake2b224Hash(k.VKey)
	return hex.EncodeToString(hash.Bytes())
}

// KeyStoreConfig holds configuration for the KeyStore.
type KeyStoreConfig struct {
	Repository Repository
	Logger     *slog.Logger
	// MasterKey is the 32-byte AES-256 key protecting stored signing keys.
	MasterKey []byte
	// NetworkID selects mainnet or testnet address encoding for generated
	// keys.
	NetworkID uint8
}

// KeyStore provides access to wallet keys.
type KeyStore struct {
	config KeyStoreConfig
	logger *slog.Logger
}

// NewKeyStore creates a new KeyStore with the given configuration.
func NewKeyStore(config KeyStoreConfig) (*KeyStore, error) {
	if len(config.MasterKey) != 32 {
		return nil, ErrInvalidMasterKey
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &KeyStore{
		config: config,
		logger: config.Logger.With("component", "keystore"),
	}, nil
}

// CreateKey generates a new ed25519 key pair, derives its enterprise
// address, encrypts the signing key, and persists the record. The name may
// be empty for per-song payment keys.
func (ks *KeyStore) CreateKey(name string) (*Key, error) {
	vkey, skey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	keyHash := lcommon.Blake2b224Hash(vkey)
	addr, err := lcommon.NewAddressFromParts(
		lcommon.AddressTypeKeyNone,
		ks.config.NetworkID,
		keyHash[:],
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("build address: %w", err)
	}
	encrypted, err := ks.encrypt(skey)
	if err != nil {
		return nil, err
	}
	record := &models.Key{
		Address:       addr.String(),
		VKey:          []byte(vkey),
		SKeyEncrypted: encrypted,
		Name:          name,
	}
	id, err := ks.config.Repository.SaveKey(record)
	if err != nil {
		return nil, fmt.Errorf("save key: %w", err)
	}
	return &Key{
		ID:      id,
		Address: addr.String(),
		Name:    name,
		VKey:    vkey,
		SKey:    skey,
	}, nil
}

// GetKey returns the decrypted key with the given id.
func (ks *KeyStore) GetKey(id uint) (*Key, error) {
	record, err := ks.config.Repository.KeyByID(id)
	if err != nil {
		return nil, err
	}
	return ks.decode(record)
}

// GetKeyByName returns the decrypted key with the given well-known name,
// or ErrKeyNotFound (wrapped with the name) when it does not exist.
func (ks *KeyStore) GetKeyByName(name string) (*Key, error) {
	record, err := ks.config.Repository.KeyByName(name)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, name)
	}
	return ks.decode(record)
}

// Sign signs a transaction id (hex-encoded hash) with the given key and
// returns the ed25519 signature.
func (ks *KeyStore) Sign(txId string, key *Key) ([]byte, error) {
	txIdBytes, err := hex.DecodeString(txId)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction id %q: %w", txId, err)
	}
	return ed25519.Sign(key.SKey, txIdBytes), nil
}

func (ks *KeyStore) decode(record *models.Key) (*Key, error) {
	skey, err := ks.decrypt(record.SKeyEncrypted)
	if err != nil {
		return nil, err
	}
	return &Key{
		ID:            record.ID,
		Address:       record.Address,
		ScriptAddress: record.ScriptAddress,
		Name:          record.Name,
		VKey:          ed25519.PublicKey(record.VKey),
		SKey:          ed25519.PrivateKey(skey),
	}, nil
}

// encrypt seals plaintext with AES-256-GCM, prepending the random nonce.
func (ks *KeyStore) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(ks.config.MasterKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (ks *KeyStore) decrypt(sealed []byte) ([]byte, error) {
	block, err := aes.NewCipher(ks.config.MasterKey)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize() {
		return nil, ErrDecryptFailed
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptFailed
	}
	return plaintext, nil
}
