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

package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blinklabs-io/minstrel/database/models"
)

// Mailer notifies interested parties of song status changes. Delivery
// mechanics live outside this module.
type Mailer interface {
	SendStatusNotification(
		ctx context.Context,
		song *models.Song,
		status models.MintingStatus,
	) error
}

// Distributor is the distribution-partner contract.
type Distributor interface {
	// SubmitRelease hands the song to the distribution partner.
	SubmitRelease(ctx context.Context, song *models.Song) error
	// ReleaseStatus reports whether the partner has completed
	// distribution.
	ReleaseStatus(ctx context.Context, song *models.Song) (bool, error)
}

// Scheduler runs a named recurring job. The job reports true when it
// should not run again.
type Scheduler interface {
	Schedule(
		name string,
		interval time.Duration,
		job func(ctx context.Context) bool,
	)
	Stop()
}

// ArchiveStore keeps durable copies of song assets.
type ArchiveStore interface {
	Archive(ctx context.Context, song *models.Song) error
}

// LogMailer is a Mailer that only logs the notification points.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer returns a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &LogMailer{logger: logger.With("component", "mailer")}
}

func (m *LogMailer) SendStatusNotification(
	_ context.Context,
	song *models.Song,
	status models.MintingStatus,
) error {
	m.logger.Info(
		"status notification",
		"song_id", song.ID,
		"title", song.Title,
		"status", status,
	)
	return nil
}

// LogDistributor is a Distributor that only logs. Useful on networks
// where no distribution partner is wired in.
type LogDistributor struct {
	logger *slog.Logger
}

// NewLogDistributor returns a LogDistributor.
func NewLogDistributor(logger *slog.Logger) *LogDistributor {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &LogDistributor{logger: logger.With("component", "distributor")}
}

func (d *LogDistributor) SubmitRelease(
	_ context.Context,
	song *models.Song,
) error {
	d.logger.Info(
		"release submitted",
		"song_id", song.ID,
		"title", song.Title,
	)
	return nil
}

func (d *LogDistributor) ReleaseStatus(
	_ context.Context,
	song *models.Song,
) (bool, error) {
	d.logger.Debug("release status poll", "song_id", song.ID)
	return false, nil
}

// LogArchiveStore is an ArchiveStore that only logs. Used when no object
// store is configured.
type LogArchiveStore struct {
	logger *slog.Logger
}

// NewLogArchiveStore returns a LogArchiveStore.
func NewLogArchiveStore(logger *slog.Logger) *LogArchiveStore {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	return &LogArchiveStore{logger: logger.With("component", "archive")}
}

func (s *LogArchiveStore) Archive(
	_ context.Context,
	song *models.Song,
) error {
	s.logger.Info(
		"skipping asset archival, no object store configured",
		"song_id", song.ID,
	)
	return nil
}

// TickerScheduler is an in-process Scheduler backed by one goroutine and
// ticker per job.
type TickerScheduler struct {
	logger  *slog.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewTickerScheduler returns a running TickerScheduler.
func NewTickerScheduler(logger *slog.Logger) *TickerScheduler {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TickerScheduler{
		logger: logger.With("component", "scheduler"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Schedule starts a recurring job. The first run happens after one
// interval, not immediately.
func (s *TickerScheduler) Schedule(
	name string,
	interval time.Duration,
	job func(ctx context.Context) bool,
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		s.logger.Warn(
			"scheduler stopped, dropping job",
			"job", name,
		)
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		s.logger.Debug("scheduled job", "job", name, "interval", interval)
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if job(s.ctx) {
					s.logger.Debug("job finished", "job", name)
					return
				}
			}
		}
	}()
}

// Stop cancels all jobs and waits for their goroutines to exit.
func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
