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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/blinklabs-io/minstrel/database/models"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ArchiveConfig configures a MinioArchiveStore.
type ArchiveConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Bucket          string
	Logger          *slog.Logger
	// HTTPClient fetches the source assets; a default client with a
	// download timeout is used when nil.
	HTTPClient *http.Client
}

// MinioArchiveStore keeps durable copies of song assets in an S3
// compatible object store.
type MinioArchiveStore struct {
	client     *minio.Client
	bucket     string
	logger     *slog.Logger
	httpClient *http.Client
}

// NewMinioArchiveStore returns a MinioArchiveStore for the given config.
func NewMinioArchiveStore(
	config ArchiveConfig,
) (*MinioArchiveStore, error) {
	client, err := minio.New(config.Endpoint, &minio.Options{
		Creds: credentials.NewStaticV4(
			config.AccessKeyID,
			config.SecretAccessKey,
			"",
		),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &MinioArchiveStore{
		client:     client,
		bucket:     config.Bucket,
		logger:     logger.With("component", "archive"),
		httpClient: httpClient,
	}, nil
}

// Archive copies the song's audio, cover art and agreement document into
// the object store under the song id. Assets without a source URL are
// skipped.
func (s *MinioArchiveStore) Archive(
	ctx context.Context,
	song *models.Song,
) error {
	assets := []struct {
		name string
		url  string
	}{
		{name: "audio", url: song.AudioURL},
		{name: "artwork", url: song.CoverArtURL},
		{name: "agreement", url: song.AgreementURL},
	}
	for _, asset := range assets {
		if asset.url == "" {
			continue
		}
		objectName := song.ID + "/" + asset.name
		if err := s.archiveObject(
			ctx,
			asset.url,
			objectName,
		); err != nil {
			return fmt.Errorf("archive %s: %w", asset.name, err)
		}
		s.logger.Info(
			"archived song asset",
			"song_id", song.ID,
			"object", objectName,
		)
	}
	return nil
}

func (s *MinioArchiveStore) archiveObject(
	ctx context.Context,
	sourceUrl string,
	objectName string,
) error {
	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		sourceUrl,
		nil,
	)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download asset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf(
			"download asset: unexpected status %d from %s",
			resp.StatusCode,
			sourceUrl,
		)
	}
	_, err = s.client.PutObject(
		ctx,
		s.bucket,
		objectName,
		resp.Body,
		resp.ContentLength,
		minio.PutObjectOptions{
			ContentType: resp.Header.Get("Content-Type"),
		},
	)
	if err != nil {
		return fmt.Errorf("upload to object store: %w", err)
	}
	return nil
}
