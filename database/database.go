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

// Package database provides persistent storage for songs, collaborations,
// wallet keys, and mint receipts.
package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/blinklabs-io/minstrel/database/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Config holds configuration for the database.
type Config struct {
	// DataDir is the directory holding the sqlite file. An empty value
	// selects an in-memory database, useful for testing.
	DataDir string
	Logger  *slog.Logger
}

// Database wraps the underlying gorm DB with typed accessors.
type Database struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New opens (and migrates) the database.
func New(cfg *Config) (*Database, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var gormDb *gorm.DB
	var err error
	if cfg.DataDir == "" {
		// cache=shared allows multiple connections to share the same
		// in-memory database
		gormDb, err = gorm.Open(
			sqlite.Open("file::memory:?cache=shared"),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
	} else {
		if _, statErr := os.Stat(cfg.DataDir); statErr != nil {
			if !errors.Is(statErr, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read data dir: %w", statErr)
			}
			if mkdirErr := os.MkdirAll(cfg.DataDir, fs.ModePerm); mkdirErr != nil {
				return nil, fmt.Errorf(
					"failed to create data dir: %w",
					mkdirErr,
				)
			}
		}
		dbPath := filepath.Join(cfg.DataDir, "minstrel.sqlite")
		connOpts := "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
		gormDb, err = gorm.Open(
			sqlite.Open(fmt.Sprintf("file:%s?%s", dbPath, connOpts)),
			&gorm.Config{
				Logger:                 gormlogger.Discard,
				SkipDefaultTransaction: true,
			},
		)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db := &Database{
		db:     gormDb,
		logger: logger,
	}
	for _, model := range models.MigrateModels {
		db.logger.Debug(fmt.Sprintf("creating table: %#v", model))
		if err := gormDb.AutoMigrate(model); err != nil {
			return nil, fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return db, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	sqlDb, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDb.Close()
}

func wrapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// SongByID returns the song with the given id.
func (d *Database) SongByID(id string) (*models.Song, error) {
	var song models.Song
	if err := d.db.First(&song, "id = ?", id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &song, nil
}

// SaveSong inserts or updates a song record.
func (d *Database) SaveSong(song *models.Song) error {
	return d.db.Save(song).Error
}

// SetSongStatus persists a song's new minting status and optional error
// message. Callers must persist a transition before publishing the next
// event so a crash between the two leaves the song resumable.
func (d *Database) SetSongStatus(
	id string,
	status models.MintingStatus,
	errorMessage string,
) error {
	ret := d.db.Model(&models.Song{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"minting_status": status,
			"error_message":  errorMessage,
		})
	if ret.Error != nil {
		return ret.Error
	}
	if ret.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSongMintCost records the computed mint cost for a song.
func (d *Database) SetSongMintCost(id string, lovelace int64) error {
	ret := d.db.Model(&models.Song{}).
		Where("id = ?", id).
		Update("mint_cost_lovelace", lovelace)
	if ret.Error != nil {
		return ret.Error
	}
	if ret.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CollaborationsBySongID returns all collaborations for a song.
func (d *Database) CollaborationsBySongID(
	songId string,
) ([]models.Collaboration, error) {
	var ret []models.Collaboration
	if err := d.db.Where("song_id = ?", songId).
		Order("id").
		Find(&ret).Error; err != nil {
		return nil, err
	}
	return ret, nil
}

// SongsInProgress returns songs parked mid-pipeline, for re-enqueueing
// after a restart. Songs still in the user-facing agreement steps and songs
// in a terminal status are excluded.
func (d *Database) SongsInProgress() ([]models.Song, error) {
	var ret []models.Song
	if err := d.db.Where(
		"minting_status NOT IN ?",
		[]models.MintingStatus{
			models.MintingStatusUndistributed,
			models.MintingStatusStreamTokenAgreementApproved,
			models.MintingStatusMinted,
			models.MintingStatusDeclined,
		},
	).Order("id").Find(&ret).Error; err != nil {
		return nil, err
	}
	return ret, nil
}

// SaveCollaboration inserts or updates a collaboration record.
func (d *Database) SaveCollaboration(collab *models.Collaboration) error {
	return d.db.Save(collab).Error
}

// KeyByID returns the key with the given id.
func (d *Database) KeyByID(id uint) (*models.Key, error) {
	var key models.Key
	if err := d.db.First(&key, id).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &key, nil
}

// KeyByName returns the key with the given well-known name, or nil when no
// such key exists.
func (d *Database) KeyByName(name string) (*models.Key, error) {
	var key models.Key
	err := d.db.First(&key, "name = ?", name).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &key, nil
}

// SaveKey inserts or updates a key record and returns its id.
func (d *Database) SaveKey(key *models.Key) (uint, error) {
	if err := d.db.Save(key).Error; err != nil {
		return 0, err
	}
	return key.ID, nil
}

// AddMintInfo records the durable receipt of a successful mint.
func (d *Database) AddMintInfo(info *models.MintInfo) error {
	return d.db.Create(info).Error
}

// MintInfoBySongID returns the mint receipt for a song.
func (d *Database) MintInfoBySongID(songId string) (*models.MintInfo, error) {
	var info models.MintInfo
	if err := d.db.First(&info, "song_id = ?", songId).Error; err != nil {
		return nil, wrapNotFound(err)
	}
	return &info, nil
}
