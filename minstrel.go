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

// Package minstrel wires the minting orchestrator together: database,
// keystore, chain-service client, event bus, minter and the status
// pipeline.
package minstrel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/blinklabs-io/minstrel/database"
	"github.com/blinklabs-io/minstrel/event"
	"github.com/blinklabs-io/minstrel/keystore"
	"github.com/blinklabs-io/minstrel/ledger"
	"github.com/blinklabs-io/minstrel/minting"
	"github.com/blinklabs-io/minstrel/pipeline"
)

type Service struct {
	config       Config
	db           *database.Database
	keyStore     *keystore.KeyStore
	chainClient  *ledger.Client
	eventBus     *event.EventBus
	minter       *minting.Minter
	scheduler    *pipeline.TickerScheduler
	pipeline     *pipeline.Pipeline
	done         chan struct{}
	shutdownOnce sync.Once
}

func New(cfg Config) (*Service, error) {
	s := &Service{
		config: cfg,
		done:   make(chan struct{}),
	}
	if err := s.configValidate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

// Pipeline returns the running status pipeline. It is nil before Run.
func (s *Service) Pipeline() *pipeline.Pipeline {
	return s.pipeline
}

// Database returns the song repository. It is nil before Run.
func (s *Service) Database() *database.Database {
	return s.db
}

// KeyStore returns the wallet keystore. It is nil before Run.
func (s *Service) KeyStore() *keystore.KeyStore {
	return s.keyStore
}

func (s *Service) Run() error {
	// Load database
	db, err := database.New(&database.Config{
		DataDir: s.config.dataDir,
		Logger:  s.config.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	s.db = db
	// Load keystore
	networkId, err := s.configNetworkId()
	if err != nil {
		return err
	}
	ks, err := keystore.NewKeyStore(keystore.KeyStoreConfig{
		Repository: s.db,
		Logger:     s.config.logger,
		MasterKey:  s.config.masterKey,
		NetworkID:  networkId,
	})
	if err != nil {
		return fmt.Errorf("failed to load keystore: %w", err)
	}
	s.keyStore = ks
	if err := s.ensureWellKnownKeys(); err != nil {
		return err
	}
	// Chain service client
	clientOpts := []ledger.ClientOption{}
	if s.config.chainServiceToken != "" {
		clientOpts = append(
			clientOpts,
			ledger.WithAuthToken(s.config.chainServiceToken),
		)
	}
	s.chainClient = ledger.NewClient(s.config.chainServiceUrl, clientOpts...)
	// Event bus
	s.eventBus = event.NewEventBus(s.config.promRegistry, s.config.logger)
	// Minter
	s.minter = minting.NewMinter(minting.MinterConfig{
		ChainService:    s.chainClient,
		KeyStore:        s.keyStore,
		Store:           s.db,
		Logger:          s.config.logger,
		PromRegistry:    s.config.promRegistry,
		PolicyID:        s.config.policyId,
		ScriptAddress:   s.config.scriptAddress,
		TransactionNote: s.config.transactionNote,
		Distributor:     s.config.distributor,
		Selector: minting.SelectorConfig{
			TreasuryCollectionThreshold: s.config.treasuryCollectionThreshold,
			TreasuryReserveLovelace:     s.config.treasuryReserveLovelace,
			StarterTokenUtxo:            s.config.starterTokenUtxo,
			MintingScriptUtxo:           s.config.mintingScriptUtxo,
		},
	})
	// Pipeline collaborators
	var archiveStore pipeline.ArchiveStore
	if s.config.archiveEndpoint != "" {
		archiveStore, err = pipeline.NewMinioArchiveStore(
			pipeline.ArchiveConfig{
				Endpoint:        s.config.archiveEndpoint,
				AccessKeyID:     s.config.archiveAccessKeyId,
				SecretAccessKey: s.config.archiveSecretAccessKey,
				UseSSL:          s.config.archiveUseSSL,
				Bucket:          s.config.archiveBucket,
				Logger:          s.config.logger,
			},
		)
		if err != nil {
			return fmt.Errorf("failed to load archive store: %w", err)
		}
	} else {
		archiveStore = pipeline.NewLogArchiveStore(s.config.logger)
	}
	s.scheduler = pipeline.NewTickerScheduler(s.config.logger)
	// Pipeline
	s.pipeline = pipeline.NewPipeline(pipeline.PipelineConfig{
		Store:                    s.db,
		ChainService:             s.chainClient,
		KeyStore:                 s.keyStore,
		EventBus:                 s.eventBus,
		Minter:                   s.minter,
		Mailer:                   pipeline.NewLogMailer(s.config.logger),
		Distributor:              pipeline.NewLogDistributor(s.config.logger),
		Scheduler:                s.scheduler,
		ArchiveStore:             archiveStore,
		Logger:                   s.config.logger,
		PromRegistry:             s.config.promRegistry,
		MintPriceBaseLovelace:    s.config.mintPriceBaseLovelace,
		DistributionPriceUsd:     s.config.distributionPriceUsd,
		PaymentTimeout:           s.config.paymentTimeout,
		DistributionPollInterval: s.config.distributionPollInterval,
	})
	s.pipeline.Start()
	if err := s.resumeSongs(); err != nil {
		return err
	}

	// Wait for shutdown signal
	<-s.done
	return nil
}

// ensureWellKnownKeys creates the treasury keys on first run and logs
// their addresses so an operator can fund them.
func (s *Service) ensureWellKnownKeys() error {
	for _, name := range []string{
		keystore.KeyNameCashRegister,
		keystore.KeyNameMoneyBox,
		keystore.KeyNameCollateral,
	} {
		key, err := s.keyStore.GetKeyByName(name)
		if err != nil {
			if !errors.Is(err, keystore.ErrKeyNotFound) {
				return fmt.Errorf("failed to load key %q: %w", name, err)
			}
			key, err = s.keyStore.CreateKey(name)
			if err != nil {
				return fmt.Errorf("failed to create key %q: %w", name, err)
			}
			s.config.logger.Info(
				"created wallet key",
				"name", name,
				"address", key.Address,
			)
			continue
		}
		s.config.logger.Debug(
			"loaded wallet key",
			"name", name,
			"address", key.Address,
		)
	}
	return nil
}

// resumeSongs re-enqueues songs that were mid-pipeline when the previous
// process stopped.
func (s *Service) resumeSongs() error {
	songs, err := s.db.SongsInProgress()
	if err != nil {
		return fmt.Errorf("failed to load in-progress songs: %w", err)
	}
	for _, song := range songs {
		s.config.logger.Info(
			"resuming song",
			"song_id", song.ID,
			"status", song.MintingStatus,
		)
		if !s.pipeline.Enqueue(song.ID, song.MintingStatus) {
			return fmt.Errorf("failed to enqueue song %s", song.ID)
		}
	}
	return nil
}

func (s *Service) Stop() error {
	var err error
	s.shutdownOnce.Do(func() {
		err = s.shutdown()
	})
	return err
}

func (s *Service) shutdown() error {
	shutdownTimeout := 30 * time.Second
	if s.config.shutdownTimeout > 0 {
		shutdownTimeout = s.config.shutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	defer close(s.done)

	s.config.logger.Debug("starting graceful shutdown")

	// Run the phases in a goroutine so a wedged drain cannot outlive the
	// configured timeout
	errCh := make(chan error, 1)
	go func() {
		var err error

		// Phase 1: stop accepting new work
		s.config.logger.Debug("shutdown phase 1: stopping new work")

		if s.pipeline != nil {
			s.pipeline.Stop()
		}
		if s.scheduler != nil {
			s.scheduler.Stop()
		}

		// Phase 2: drain in-flight events
		s.config.logger.Debug("shutdown phase 2: draining events")

		if s.eventBus != nil {
			s.eventBus.Stop()
		}

		// Phase 3: flush state and close database
		s.config.logger.Debug("shutdown phase 3: flushing state")

		if s.db != nil {
			if closeErr := s.db.Close(); closeErr != nil {
				err = errors.Join(
					err,
					fmt.Errorf("database shutdown: %w", closeErr),
				)
			}
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		s.config.logger.Debug("graceful shutdown complete")
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown timed out after %s", shutdownTimeout)
	}
}
