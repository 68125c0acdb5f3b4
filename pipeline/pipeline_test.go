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

package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blinklabs-io/minstrel/database/models"
	"github.com/blinklabs-io/minstrel/event"
	"github.com/blinklabs-io/minstrel/keystore"
	"github.com/blinklabs-io/minstrel/ledger"
	"github.com/blinklabs-io/minstrel/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu             sync.Mutex
	songs          map[string]*models.Song
	collaborations []models.Collaboration
}

func (s *fakeStore) SongByID(id string) (*models.Song, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	song, ok := s.songs[id]
	if !ok {
		return nil, errors.New("song not found")
	}
	copied := *song
	return &copied, nil
}

func (s *fakeStore) SetSongStatus(
	id string,
	status models.MintingStatus,
	errorMessage string,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	song, ok := s.songs[id]
	if !ok {
		return errors.New("song not found")
	}
	song.MintingStatus = status
	song.ErrorMessage = errorMessage
	return nil
}

func (s *fakeStore) SetSongMintCost(id string, lovelace int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	song, ok := s.songs[id]
	if !ok {
		return errors.New("song not found")
	}
	song.MintCostLovelace = lovelace
	return nil
}

func (s *fakeStore) CollaborationsBySongID(
	songId string,
) ([]models.Collaboration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := []models.Collaboration{}
	for _, collab := range s.collaborations {
		if collab.SongID == songId {
			ret = append(ret, collab)
		}
	}
	return ret, nil
}

func (s *fakeStore) songStatus(id string) models.MintingStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.songs[id].MintingStatus
}

func (s *fakeStore) songError(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.songs[id].ErrorMessage
}

func (s *fakeStore) songMintCost(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.songs[id].MintCostLovelace
}

func (s *fakeStore) setCollaborationStatus(
	email string,
	status models.CollaborationStatus,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.collaborations {
		if s.collaborations[i].Email == email {
			s.collaborations[i].Status = status
		}
	}
}

type fakeChain struct {
	mu            sync.Mutex
	paymentResult bool
	paymentErr    error
	mainnet       bool
}

func (f *fakeChain) QueryLiveUtxos(
	_ context.Context,
	_ string,
) ([]ledger.Utxo, error) {
	return nil, nil
}

func (f *fakeChain) BuildTransaction(
	_ context.Context,
	_ ledger.BuildTxRequest,
) (ledger.BuildTxResponse, error) {
	return ledger.BuildTxResponse{}, nil
}

func (f *fakeChain) SubmitTransaction(
	_ context.Context,
	_ string,
) (ledger.SubmitTxResponse, error) {
	return ledger.SubmitTxResponse{}, nil
}

func (f *fakeChain) MonitorPaymentAddress(
	_ context.Context,
	_ string,
	_ int64,
	_ time.Duration,
) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.paymentResult, f.paymentErr
}

func (f *fakeChain) IsMainnet(_ context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mainnet, nil
}

func (f *fakeChain) QueryStreamTokenMinUtxo(
	_ context.Context,
) (int64, error) {
	return 1_200_000, nil
}

func (f *fakeChain) QueryAdaUSDPrice(_ context.Context) (int64, error) {
	return 500_000, nil
}

type fakeMinter struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (m *fakeMinter) MintSong(
	_ context.Context,
	song *models.Song,
) (*models.MintInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &models.MintInfo{SongID: song.ID, TxID: "tx"}, nil
}

func (m *fakeMinter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type fakeDistributor struct {
	mu        sync.Mutex
	submitted int
	released  bool
}

func (d *fakeDistributor) SubmitRelease(
	_ context.Context,
	_ *models.Song,
) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted++
	return nil
}

func (d *fakeDistributor) ReleaseStatus(
	_ context.Context,
	_ *models.Song,
) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.released, nil
}

func (d *fakeDistributor) setReleased(released bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = released
}

func (d *fakeDistributor) submitCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submitted
}

type scheduledJob struct {
	name     string
	interval time.Duration
	job      func(ctx context.Context) bool
}

type fakeScheduler struct {
	mu   sync.Mutex
	jobs []scheduledJob
}

func (s *fakeScheduler) Schedule(
	name string,
	interval time.Duration,
	job func(ctx context.Context) bool,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, scheduledJob{
		name:     name,
		interval: interval,
		job:      job,
	})
}

func (s *fakeScheduler) Stop() {}

func (s *fakeScheduler) jobCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *fakeScheduler) runJob(t *testing.T, index int) bool {
	t.Helper()
	s.mu.Lock()
	job := s.jobs[index].job
	s.mu.Unlock()
	return job(context.Background())
}

type fakeArchive struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (a *fakeArchive) Archive(
	_ context.Context,
	_ *models.Song,
) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	return a.err
}

func (a *fakeArchive) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

type memKeyRepository struct {
	keys   map[uint]*models.Key
	nextId uint
}

func (r *memKeyRepository) KeyByID(id uint) (*models.Key, error) {
	key, ok := r.keys[id]
	if !ok {
		return nil, keystore.ErrKeyNotFound
	}
	return key, nil
}

func (r *memKeyRepository) KeyByName(name string) (*models.Key, error) {
	for _, key := range r.keys {
		if key.Name == name {
			return key, nil
		}
	}
	return nil, nil
}

func (r *memKeyRepository) SaveKey(key *models.Key) (uint, error) {
	if key.ID == 0 {
		r.nextId++
		key.ID = r.nextId
	}
	r.keys[key.ID] = key
	return key.ID, nil
}

type pipelineFixture struct {
	store       *fakeStore
	chain       *fakeChain
	minter      *fakeMinter
	distributor *fakeDistributor
	scheduler   *fakeScheduler
	archive     *fakeArchive
	bus         *event.EventBus
	pipeline    *pipeline.Pipeline
	song        *models.Song
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	ks, err := keystore.NewKeyStore(keystore.KeyStoreConfig{
		Repository: &memKeyRepository{keys: map[uint]*models.Key{}},
		MasterKey:  bytes.Repeat([]byte{0x01}, 32),
		NetworkID:  0,
	})
	require.NoError(t, err)
	paymentKey, err := ks.CreateKey("")
	require.NoError(t, err)

	song := &models.Song{
		ID:               "song-1",
		Title:            "Autumn Wind",
		ArtistName:       "The Minstrels",
		PaymentKeyID:     paymentKey.ID,
		MintCostLovelace: 45_000_000,
		MintingStatus:    models.MintingStatusMintingPaymentReceived,
	}
	store := &fakeStore{
		songs: map[string]*models.Song{song.ID: song},
		collaborations: []models.Collaboration{
			{
				SongID:      "song-1",
				Email:       "singer@example.com",
				RoyaltyRate: 60,
				Status:      models.CollaborationStatusAccepted,
			},
			{
				SongID:      "song-1",
				Email:       "writer@example.com",
				RoyaltyRate: 40,
				Status:      models.CollaborationStatusWaiting,
			},
		},
	}
	chain := &fakeChain{paymentResult: true}
	minter := &fakeMinter{}
	distributor := &fakeDistributor{}
	scheduler := &fakeScheduler{}
	archive := &fakeArchive{}
	bus := event.NewEventBus(nil, nil)
	t.Cleanup(bus.Stop)

	p := pipeline.NewPipeline(pipeline.PipelineConfig{
		Store:                    store,
		ChainService:             chain,
		KeyStore:                 ks,
		EventBus:                 bus,
		Minter:                   minter,
		Mailer:                   pipeline.NewLogMailer(nil),
		Distributor:              distributor,
		Scheduler:                scheduler,
		ArchiveStore:             archive,
		MintPriceBaseLovelace:    10_000_000,
		DistributionPriceUsd:     14_990_000,
		PaymentTimeout:           time.Minute,
		DistributionPollInterval: time.Minute,
	})
	p.Start()
	t.Cleanup(p.Stop)

	return &pipelineFixture{
		store:       store,
		chain:       chain,
		minter:      minter,
		distributor: distributor,
		scheduler:   scheduler,
		archive:     archive,
		bus:         bus,
		pipeline:    p,
		song:        song,
	}
}

func waitForStatus(
	t *testing.T,
	store *fakeStore,
	songId string,
	status models.MintingStatus,
) {
	t.Helper()
	require.Eventually(t, func() bool {
		return store.songStatus(songId) == status
	}, 5*time.Second, 10*time.Millisecond)
}

func TestPipelineStallsOnUnacceptedCollaborator(t *testing.T) {
	fixture := newPipelineFixture(t)

	// PaymentReceived advances unconditionally, then the collaborator
	// gate stalls on the waiting writer
	require.True(t, fixture.pipeline.Enqueue(
		fixture.song.ID,
		models.MintingStatusMintingPaymentReceived,
	))
	waitForStatus(
		t,
		fixture.store,
		fixture.song.ID,
		models.MintingStatusAwaitingCollaboratorApproval,
	)
	// The gate drops the event without re-enqueueing
	time.Sleep(50 * time.Millisecond)
	assert.Equal(
		t,
		models.MintingStatusAwaitingCollaboratorApproval,
		fixture.store.songStatus(fixture.song.ID),
	)
	assert.Equal(t, 0, fixture.distributor.submitCount())
}

func TestPipelineRunsToMinted(t *testing.T) {
	fixture := newPipelineFixture(t)
	fixture.store.setCollaborationStatus(
		"writer@example.com",
		models.CollaborationStatusAccepted,
	)

	// On testnet the distribution step force-completes, so acceptance
	// carries the song all the way to Minted
	require.NoError(t, fixture.store.SetSongStatus(
		fixture.song.ID,
		models.MintingStatusAwaitingCollaboratorApproval,
		"",
	))
	require.True(t, fixture.pipeline.Enqueue(
		fixture.song.ID,
		models.MintingStatusAwaitingCollaboratorApproval,
	))

	waitForStatus(
		t,
		fixture.store,
		fixture.song.ID,
		models.MintingStatusMinted,
	)
	assert.Equal(t, 1, fixture.distributor.submitCount())
	assert.Equal(t, 1, fixture.archive.callCount())
	assert.Equal(t, 1, fixture.minter.callCount())
	assert.Empty(t, fixture.store.songError(fixture.song.ID))
}

func TestPipelineRoyaltyRateGate(t *testing.T) {
	fixture := newPipelineFixture(t)
	fixture.store.setCollaborationStatus(
		"writer@example.com",
		models.CollaborationStatusAccepted,
	)
	fixture.store.mu.Lock()
	fixture.store.collaborations[0].RoyaltyRate = 70
	fixture.store.mu.Unlock()

	require.NoError(t, fixture.store.SetSongStatus(
		fixture.song.ID,
		models.MintingStatusAwaitingCollaboratorApproval,
		"",
	))
	require.True(t, fixture.pipeline.Enqueue(
		fixture.song.ID,
		models.MintingStatusAwaitingCollaboratorApproval,
	))

	require.Eventually(t, func() bool {
		return fixture.store.songError(fixture.song.ID) != ""
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(
		t,
		models.MintingStatusAwaitingCollaboratorApproval,
		fixture.store.songStatus(fixture.song.ID),
	)
	assert.Contains(
		t,
		fixture.store.songError(fixture.song.ID),
		"sum to 110",
	)
}

func TestPipelinePaymentMonitor(t *testing.T) {
	t.Run("received", func(t *testing.T) {
		fixture := newPipelineFixture(t)
		require.NoError(t, fixture.store.SetSongStatus(
			fixture.song.ID,
			models.MintingStatusMintingPaymentRequested,
			"",
		))
		require.True(t, fixture.pipeline.Enqueue(
			fixture.song.ID,
			models.MintingStatusMintingPaymentRequested,
		))
		// Advances through MintingPaymentReceived, then stalls at the
		// collaborator gate
		waitForStatus(
			t,
			fixture.store,
			fixture.song.ID,
			models.MintingStatusAwaitingCollaboratorApproval,
		)
	})

	t.Run("timed out", func(t *testing.T) {
		fixture := newPipelineFixture(t)
		fixture.chain.paymentResult = false
		require.NoError(t, fixture.store.SetSongStatus(
			fixture.song.ID,
			models.MintingStatusMintingPaymentRequested,
			"",
		))
		require.True(t, fixture.pipeline.Enqueue(
			fixture.song.ID,
			models.MintingStatusMintingPaymentRequested,
		))
		require.Eventually(t, func() bool {
			return fixture.store.songError(fixture.song.ID) != ""
		}, 5*time.Second, 10*time.Millisecond)
		assert.Equal(
			t,
			models.MintingStatusMintingPaymentRequested,
			fixture.store.songStatus(fixture.song.ID),
		)
		assert.Contains(
			t,
			fixture.store.songError(fixture.song.ID),
			"not received",
		)
	})

	t.Run("quotes unpriced song", func(t *testing.T) {
		fixture := newPipelineFixture(t)
		require.NoError(t, fixture.store.SetSongMintCost(
			fixture.song.ID,
			0,
		))
		require.NoError(t, fixture.store.SetSongStatus(
			fixture.song.ID,
			models.MintingStatusMintingPaymentRequested,
			"",
		))
		require.True(t, fixture.pipeline.Enqueue(
			fixture.song.ID,
			models.MintingStatusMintingPaymentRequested,
		))
		waitForStatus(
			t,
			fixture.store,
			fixture.song.ID,
			models.MintingStatusAwaitingCollaboratorApproval,
		)
		// base 10 ADA + 2 collaborator min-UTXOs of 1.2 ADA, plus the
		// $14.99 distribution fee at $0.50/ADA and the 1 ADA change
		// buffer
		assert.Equal(
			t,
			int64(43_380_000),
			fixture.store.songMintCost(fixture.song.ID),
		)
	})
}

func TestPipelineMainnetDistributionPoll(t *testing.T) {
	fixture := newPipelineFixture(t)
	fixture.chain.mainnet = true
	require.NoError(t, fixture.store.SetSongStatus(
		fixture.song.ID,
		models.MintingStatusSubmittedForDistribution,
		"",
	))
	require.True(t, fixture.pipeline.Enqueue(
		fixture.song.ID,
		models.MintingStatusSubmittedForDistribution,
	))

	require.Eventually(t, func() bool {
		return fixture.scheduler.jobCount() == 1
	}, 5*time.Second, 10*time.Millisecond)
	// Still submitted until the partner reports completion
	assert.False(t, fixture.scheduler.runJob(t, 0))
	assert.Equal(
		t,
		models.MintingStatusSubmittedForDistribution,
		fixture.store.songStatus(fixture.song.ID),
	)

	fixture.distributor.setReleased(true)
	assert.True(t, fixture.scheduler.runJob(t, 0))
	waitForStatus(
		t,
		fixture.store,
		fixture.song.ID,
		models.MintingStatusPending,
	)
}

func TestPipelineMintRedrive(t *testing.T) {
	fixture := newPipelineFixture(t)
	fixture.minter.err = errors.New("treasury is empty")
	require.NoError(t, fixture.store.SetSongStatus(
		fixture.song.ID,
		models.MintingStatusPending,
		"",
	))
	require.True(t, fixture.pipeline.Enqueue(
		fixture.song.ID,
		models.MintingStatusPending,
	))

	require.Eventually(t, func() bool {
		return fixture.minter.callCount() == 3
	}, 5*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	// Attempts are bounded
	assert.Equal(t, 3, fixture.minter.callCount())
	assert.Equal(
		t,
		models.MintingStatusPending,
		fixture.store.songStatus(fixture.song.ID),
	)
	assert.Contains(
		t,
		fixture.store.songError(fixture.song.ID),
		"treasury is empty",
	)
}

func TestPipelineDropsStaleEvent(t *testing.T) {
	fixture := newPipelineFixture(t)
	// Song is in MintingPaymentReceived; a stale Pending event must not
	// trigger a mint
	require.True(t, fixture.pipeline.Enqueue(
		fixture.song.ID,
		models.MintingStatusPending,
	))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, fixture.minter.callCount())
	assert.Equal(
		t,
		models.MintingStatusMintingPaymentReceived,
		fixture.store.songStatus(fixture.song.ID),
	)
}

func TestTickerScheduler(t *testing.T) {
	scheduler := pipeline.NewTickerScheduler(nil)
	defer scheduler.Stop()

	var mu sync.Mutex
	runs := 0
	scheduler.Schedule("test", 5*time.Millisecond, func(_ context.Context) bool {
		mu.Lock()
		defer mu.Unlock()
		runs++
		return runs >= 2
	})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return runs == 2
	}, 5*time.Second, time.Millisecond)
	// Job finished after reporting done
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Equal(t, 2, runs)
	mu.Unlock()
}

func TestTickerSchedulerStop(t *testing.T) {
	scheduler := pipeline.NewTickerScheduler(nil)
	scheduler.Schedule("test", time.Hour, func(_ context.Context) bool {
		return false
	})
	done := make(chan struct{})
	go func() {
		scheduler.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	// Scheduling after stop is a no-op
	scheduler.Schedule("late", time.Millisecond, func(_ context.Context) bool {
		return false
	})
}
