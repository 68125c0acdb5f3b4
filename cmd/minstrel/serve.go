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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blinklabs-io/minstrel"
	"github.com/blinklabs-io/minstrel/internal/config"
	"github.com/blinklabs-io/minstrel/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func serveRun(_ *cobra.Command, _ []string, cfg *config.Config) {
	logger := commonRun()

	svc, err := buildService(cfg, logger)
	if err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}

	// Metrics listener
	http.Handle("/metrics", promhttp.Handler())
	logger.Info(
		fmt.Sprintf(
			"serving prometheus metrics on :%d",
			cfg.MetricsPort,
		),
		"component", programName,
	)
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		ReadHeaderTimeout: 60 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error(
				fmt.Sprintf("failed to start metrics listener: %s", err),
				"component", programName,
			)
			os.Exit(1)
		}
	}()

	// Wait for interrupt/termination signal
	signalCtx, signalCtxStop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer signalCtxStop()

	// Run service in goroutine
	errChan := make(chan error, 1)
	go func() {
		err := svc.Run()
		select {
		case errChan <- err:
		case <-signalCtx.Done():
		}
	}()

	// Wait for signal or error
	select {
	case <-signalCtx.Done():
		logger.Info("signal received, initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			cfg.ShutdownTimeoutDuration(),
		)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", "error", err)
		}

		if err := svc.Stop(); err != nil {
			logger.Error("shutdown error", "error", err)
			os.Exit(1)
		}
	case err := <-errChan:
		if err != nil {
			slog.Error(err.Error())
			os.Exit(1)
		}
	}
}

func buildService(
	cfg *config.Config,
	logger *slog.Logger,
) (*minstrel.Service, error) {
	masterKey, err := cfg.MasterKeyBytes()
	if err != nil {
		return nil, fmt.Errorf("invalid master key: %w", err)
	}
	starterTokenUtxo, err := ledger.ParseUtxoRef(cfg.StarterTokenUtxo)
	if err != nil {
		return nil, fmt.Errorf("invalid starter token UTXO: %w", err)
	}
	mintingScriptUtxo, err := ledger.ParseUtxoRef(cfg.MintingScriptUtxo)
	if err != nil {
		return nil, fmt.Errorf("invalid minting script UTXO: %w", err)
	}
	return minstrel.New(
		minstrel.NewConfig(
			minstrel.WithLogger(logger),
			minstrel.WithPrometheusRegistry(prometheus.DefaultRegisterer),
			minstrel.WithDatabasePath(cfg.DatabasePath),
			minstrel.WithNetwork(cfg.Network),
			minstrel.WithChainService(
				cfg.ChainServiceUrl,
				cfg.ChainServiceToken,
			),
			minstrel.WithMasterKey(masterKey),
			minstrel.WithPolicyId(cfg.PolicyId),
			minstrel.WithScriptAddress(cfg.ScriptAddress),
			minstrel.WithStarterTokenUtxo(starterTokenUtxo),
			minstrel.WithMintingScriptUtxo(mintingScriptUtxo),
			minstrel.WithTransactionNote(cfg.TransactionNote),
			minstrel.WithDistributor(cfg.Distributor),
			minstrel.WithTreasuryThresholds(
				cfg.TreasuryCollectionThreshold,
				cfg.TreasuryReserveLovelace,
			),
			minstrel.WithMintPriceBaseLovelace(cfg.MintPriceBaseLovelace),
			minstrel.WithDistributionPriceUsd(cfg.DistributionPriceUsd),
			minstrel.WithPaymentTimeout(cfg.PaymentTimeoutDuration()),
			minstrel.WithDistributionPollInterval(
				cfg.DistributionPollIntervalDuration(),
			),
			minstrel.WithShutdownTimeout(cfg.ShutdownTimeoutDuration()),
			minstrel.WithArchiveStore(
				cfg.ArchiveEndpoint,
				cfg.ArchiveAccessKey,
				cfg.ArchiveSecretKey,
				cfg.ArchiveBucket,
				cfg.ArchiveUseSSL,
			),
		),
	)
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the minting orchestrator",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				slog.Error("no config found in context")
				os.Exit(1)
			}
			serveRun(cmd, args, cfg)
		},
	}
	return cmd
}
