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

// Package pipeline drives a song through the mint-and-distribute state
// machine. Transitions arrive as events on the bus; every transition
// persists the new status before the next event is published, so a crash
// between the two leaves the song resumable rather than duplicated.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/minstrel/database/models"
	"github.com/blinklabs-io/minstrel/event"
	"github.com/blinklabs-io/minstrel/keystore"
	"github.com/blinklabs-io/minstrel/ledger"
	"github.com/blinklabs-io/minstrel/minting"
	"github.com/blinklabs-io/minstrel/pricing"
	"github.com/prometheus/client_golang/prometheus"
)

// StatusEventType is the bus event type carrying song status transitions.
const StatusEventType event.EventType = "song.status"

// maxMintAttempts bounds the redrive of failed mint attempts before the
// song is parked in Pending with its error message for operator review
const maxMintAttempts = 3

// StatusEvent is the payload of a StatusEventType event. Attempt counts
// redrives of the same transition.
type StatusEvent struct {
	SongID  string
	Status  models.MintingStatus
	Attempt int
}

// Store is the persistence surface the pipeline needs. It is implemented
// by database.Database.
type Store interface {
	SongByID(id string) (*models.Song, error)
	SetSongStatus(
		id string,
		status models.MintingStatus,
		errorMessage string,
	) error
	SetSongMintCost(id string, lovelace int64) error
	CollaborationsBySongID(songId string) ([]models.Collaboration, error)
}

// Minter performs the end-to-end mint for a song. It is implemented by
// minting.Minter.
type Minter interface {
	MintSong(
		ctx context.Context,
		song *models.Song,
	) (*models.MintInfo, error)
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	Store        Store
	ChainService ledger.ChainService
	KeyStore     *keystore.KeyStore
	EventBus     *event.EventBus
	Minter       Minter
	Mailer       Mailer
	Distributor  Distributor
	Scheduler    Scheduler
	ArchiveStore ArchiveStore
	Logger       *slog.Logger
	PromRegistry prometheus.Registerer
	// MintPriceBaseLovelace is the base mint price fed into the payment
	// quote.
	MintPriceBaseLovelace int64
	// DistributionPriceUsd is the distribution partner's price in USD
	// scaled by 1e6.
	DistributionPriceUsd int64
	// PaymentTimeout bounds the server-side wait for the mint payment.
	PaymentTimeout time.Duration
	// DistributionPollInterval is the period of the scheduled
	// distribution status poll.
	DistributionPollInterval time.Duration
}

// Pipeline consumes status events and runs the transition handlers.
type Pipeline struct {
	config  PipelineConfig
	logger  *slog.Logger
	metrics *pipelineMetrics

	ctx       context.Context
	cancel    context.CancelFunc
	subId     event.EventSubscriberId
	startOnce sync.Once
	stopOnce  sync.Once
}

// NewPipeline returns a Pipeline for the given config.
func NewPipeline(config PipelineConfig) *Pipeline {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		config:  config,
		logger:  logger.With("component", "pipeline"),
		metrics: newPipelineMetrics(config.PromRegistry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes the pipeline to status events.
func (p *Pipeline) Start() {
	p.startOnce.Do(func() {
		p.subId = p.config.EventBus.SubscribeFunc(
			StatusEventType,
			p.handleEvent,
		)
	})
}

// Stop unsubscribes from status events and cancels in-flight waits. The
// event bus drains its queue before shutting down, so handlers already
// running complete first.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		p.config.EventBus.Unsubscribe(StatusEventType, p.subId)
		p.cancel()
	})
}

// Enqueue publishes a status event for a song, driving its next
// transition. It reports false when the pipeline is shutting down or the
// queue is full.
func (p *Pipeline) Enqueue(songId string, status models.MintingStatus) bool {
	return p.enqueue(StatusEvent{SongID: songId, Status: status})
}

func (p *Pipeline) enqueue(statusEvent StatusEvent) bool {
	return p.config.EventBus.PublishAsync(
		StatusEventType,
		event.NewEvent(StatusEventType, statusEvent),
	)
}

func (p *Pipeline) handleEvent(evt event.Event) {
	statusEvent, ok := evt.Data.(StatusEvent)
	if !ok {
		p.logger.Warn(
			"dropping event with unexpected payload",
			"type", evt.Type,
		)
		return
	}
	song, err := p.config.Store.SongByID(statusEvent.SongID)
	if err != nil {
		p.logger.Error(
			"failed to load song for status event",
			"song_id", statusEvent.SongID,
			"error", err,
		)
		p.metrics.failures.Inc()
		return
	}
	if song.MintingStatus != statusEvent.Status {
		// Stale event from before a concurrent transition
		p.logger.Debug(
			"dropping stale status event",
			"song_id", song.ID,
			"event_status", statusEvent.Status,
			"song_status", song.MintingStatus,
		)
		return
	}
	p.logger.Info(
		"handling status event",
		"song_id", song.ID,
		"status", statusEvent.Status,
	)

	switch statusEvent.Status {
	case models.MintingStatusMintingPaymentRequested:
		p.handlePaymentRequested(song)
	case models.MintingStatusMintingPaymentReceived:
		p.advance(song, models.MintingStatusAwaitingCollaboratorApproval)
	case models.MintingStatusAwaitingCollaboratorApproval:
		p.handleCollaboratorApproval(song)
	case models.MintingStatusReadyToDistribute:
		p.handleReadyToDistribute(song)
	case models.MintingStatusSubmittedForDistribution:
		p.handleSubmittedForDistribution(song)
	case models.MintingStatusDistributed:
		p.handleDistributed(song)
	case models.MintingStatusPending:
		p.handlePending(song, statusEvent.Attempt)
	case models.MintingStatusMinted:
		p.handleMinted(song)
	case models.MintingStatusDeclined:
		p.logger.Info(
			"song declined by distribution partner",
			"song_id", song.ID,
			"error_message", song.ErrorMessage,
		)
	default:
		p.logger.Debug(
			"no handler for status",
			"song_id", song.ID,
			"status", statusEvent.Status,
		)
	}
}

// advance persists the new status and then publishes the matching event.
// Persistence always comes first.
func (p *Pipeline) advance(
	song *models.Song,
	status models.MintingStatus,
) {
	if err := p.config.Store.SetSongStatus(song.ID, status, ""); err != nil {
		p.logger.Error(
			"failed to persist status",
			"song_id", song.ID,
			"status", status,
			"error", err,
		)
		p.metrics.failures.Inc()
		return
	}
	song.MintingStatus = status
	p.metrics.transitions.WithLabelValues(string(status)).Inc()
	if !p.enqueue(StatusEvent{SongID: song.ID, Status: status}) {
		// Status is already durable; a restart resumes from it
		p.logger.Warn(
			"could not enqueue follow-up event",
			"song_id", song.ID,
			"status", status,
		)
	}
}

// fail records the error against the song without changing its status.
func (p *Pipeline) fail(song *models.Song, err error) {
	p.metrics.failures.Inc()
	p.logger.Error(
		"transition failed",
		"song_id", song.ID,
		"status", song.MintingStatus,
		"error", err,
	)
	if dbErr := p.config.Store.SetSongStatus(
		song.ID,
		song.MintingStatus,
		err.Error(),
	); dbErr != nil {
		p.logger.Error(
			"failed to persist error message",
			"song_id", song.ID,
			"error", dbErr,
		)
	}
}

func (p *Pipeline) handlePaymentRequested(song *models.Song) {
	key, err := p.config.KeyStore.GetKey(song.PaymentKeyID)
	if err != nil {
		p.fail(song, fmt.Errorf("load payment key: %w", err))
		return
	}
	if song.MintCostLovelace == 0 {
		if err := p.quoteMintCost(song); err != nil {
			p.fail(song, fmt.Errorf("quote mint cost: %w", err))
			return
		}
	}
	received, err := p.config.ChainService.MonitorPaymentAddress(
		p.ctx,
		key.Address,
		song.MintCostLovelace,
		p.config.PaymentTimeout,
	)
	if err != nil {
		p.fail(song, fmt.Errorf("monitor payment address: %w", err))
		return
	}
	if !received {
		p.fail(song, fmt.Errorf(
			"payment of %d lovelace not received within %s",
			song.MintCostLovelace,
			p.config.PaymentTimeout,
		))
		return
	}
	p.advance(song, models.MintingStatusMintingPaymentReceived)
}

// quoteMintCost prices the mint from live chain data and persists the
// quote on the song so the payment monitor and the eventual mint agree on
// the amount.
func (p *Pipeline) quoteMintCost(song *models.Song) error {
	collaborations, err := p.config.Store.CollaborationsBySongID(song.ID)
	if err != nil {
		return fmt.Errorf("load collaborations: %w", err)
	}
	var royaltyBearing int64
	for _, collab := range collaborations {
		if collab.RoyaltyBearing() {
			royaltyBearing++
		}
	}
	minUtxo, err := p.config.ChainService.QueryStreamTokenMinUtxo(p.ctx)
	if err != nil {
		return fmt.Errorf("query min utxo: %w", err)
	}
	usdPerAda, err := p.config.ChainService.QueryAdaUSDPrice(p.ctx)
	if err != nil {
		return fmt.Errorf("query ada price: %w", err)
	}
	quote, err := pricing.Calculate(pricing.Params{
		MinUtxoLovelace:       minUtxo,
		Collaborators:         royaltyBearing,
		MintPriceBaseLovelace: p.config.MintPriceBaseLovelace,
		DistributionPriceUsd:  p.config.DistributionPriceUsd,
		UsdPerAda:             usdPerAda,
	})
	if err != nil {
		return err
	}
	if err := p.config.Store.SetSongMintCost(
		song.ID,
		quote.TotalLovelace,
	); err != nil {
		return fmt.Errorf("persist mint cost: %w", err)
	}
	song.MintCostLovelace = quote.TotalLovelace
	p.logger.Info(
		"quoted mint cost",
		"song_id", song.ID,
		"total_lovelace", quote.TotalLovelace,
		"total_usd", quote.TotalUsd,
	)
	return nil
}

func (p *Pipeline) handleCollaboratorApproval(song *models.Song) {
	collaborations, err := p.config.Store.CollaborationsBySongID(song.ID)
	if err != nil {
		p.fail(song, fmt.Errorf("load collaborations: %w", err))
		return
	}
	var rateSum int64
	for _, collab := range collaborations {
		if !collab.RoyaltyBearing() {
			continue
		}
		rateSum += collab.RoyaltyRate
		if collab.Status != models.CollaborationStatusAccepted {
			// Dropped, not re-enqueued. An acceptance action triggers
			// re-evaluation.
			p.logger.Info(
				"waiting on collaborator acceptance",
				"song_id", song.ID,
				"email", collab.Email,
			)
			return
		}
	}
	if rateSum != 100 {
		p.fail(song, minting.RoyaltyRateError{
			SongID: song.ID,
			Sum:    rateSum,
		})
		return
	}
	p.advance(song, models.MintingStatusReadyToDistribute)
}

func (p *Pipeline) handleReadyToDistribute(song *models.Song) {
	if err := p.config.Distributor.SubmitRelease(p.ctx, song); err != nil {
		p.fail(song, fmt.Errorf("submit release: %w", err))
		return
	}
	p.advance(song, models.MintingStatusSubmittedForDistribution)
}

func (p *Pipeline) handleSubmittedForDistribution(song *models.Song) {
	mainnet, err := p.config.ChainService.IsMainnet(p.ctx)
	if err != nil {
		p.fail(song, fmt.Errorf("query network: %w", err))
		return
	}
	if !mainnet {
		// Distribution partners have no testnet flow
		p.logger.Info(
			"testnet network, marking distribution complete",
			"song_id", song.ID,
		)
		p.advance(song, models.MintingStatusDistributed)
		return
	}
	songId := song.ID
	p.config.Scheduler.Schedule(
		"distribution-poll-"+songId,
		p.config.DistributionPollInterval,
		func(ctx context.Context) bool {
			return p.pollDistribution(ctx, songId)
		},
	)
}

// pollDistribution is the scheduled distribution status check. It reports
// true once the poll job should stop.
func (p *Pipeline) pollDistribution(ctx context.Context, songId string) bool {
	song, err := p.config.Store.SongByID(songId)
	if err != nil {
		p.logger.Error(
			"distribution poll failed to load song",
			"song_id", songId,
			"error", err,
		)
		return true
	}
	if song.MintingStatus != models.MintingStatusSubmittedForDistribution {
		return true
	}
	released, err := p.config.Distributor.ReleaseStatus(ctx, song)
	if err != nil {
		p.logger.Warn(
			"distribution status poll failed",
			"song_id", songId,
			"error", err,
		)
		return false
	}
	if !released {
		return false
	}
	p.advance(song, models.MintingStatusDistributed)
	return true
}

func (p *Pipeline) handleDistributed(song *models.Song) {
	if err := p.config.ArchiveStore.Archive(p.ctx, song); err != nil {
		p.fail(song, fmt.Errorf("archive song assets: %w", err))
		return
	}
	p.advance(song, models.MintingStatusPending)
}

func (p *Pipeline) handlePending(song *models.Song, attempt int) {
	_, err := p.config.Minter.MintSong(p.ctx, song)
	if err != nil {
		p.fail(song, err)
		if attempt+1 < maxMintAttempts {
			p.enqueue(StatusEvent{
				SongID:  song.ID,
				Status:  models.MintingStatusPending,
				Attempt: attempt + 1,
			})
		} else {
			p.logger.Error(
				"mint attempts exhausted, operator intervention required",
				"song_id", song.ID,
				"attempts", attempt+1,
			)
		}
		return
	}
	p.advance(song, models.MintingStatusMinted)
}

func (p *Pipeline) handleMinted(song *models.Song) {
	if p.config.Mailer == nil {
		return
	}
	if err := p.config.Mailer.SendStatusNotification(
		p.ctx,
		song,
		models.MintingStatusMinted,
	); err != nil {
		p.logger.Warn(
			"minted notification failed",
			"song_id", song.ID,
			"error", err,
		)
	}
}
