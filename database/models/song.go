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

package models

import (
	"time"
)

// Song is the business record for a single track. The MintingStatus field
// is the durable state-machine cursor; it is mutated at every transition
// and a song is never hard-deleted once minted.
type Song struct {
	ID                         string `gorm:"primaryKey"`
	Title                      string
	ArtistName                 string
	Genres                     []string `gorm:"serializer:json"`
	Moods                      []string `gorm:"serializer:json"`
	DurationMs                 int64
	TrackNumber                int
	CopyrightYear              int
	CompositionCopyrightOwner  string
	PhonographicCopyrightOwner string
	LyricsURL                  string
	ParentalAdvisory           string
	Isrc                       string
	Iswc                       string
	Ipis                       []string `gorm:"serializer:json"`
	ReleaseTitle               string
	ReleaseType                string
	CoverArtURL                string
	AudioURL                   string
	AgreementURL               string
	PaymentKeyID               uint          `gorm:"index"`
	MintingStatus              MintingStatus `gorm:"index"`
	DistributionTrackID        string
	DistributionReleaseID      string
	MintCostLovelace           int64
	ErrorMessage               string
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (Song) TableName() string {
	return "song"
}
