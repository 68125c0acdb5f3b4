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

// Package metadata assembles the on-chain music metadata document for a
// minted song. The document is a PlutusData constructor (tag 0) wrapping an
// ordered map and a version integer. Key insertion order is part of the
// document identity: the serialized bytes are hashed into the reference
// token's datum hash, so the field order used here is an invariant, not a
// presentation choice.
package metadata

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	lcommon "github.com/blinklabs-io/gouroboros/ledger/common"
	"github.com/blinklabs-io/plutigo/data"
)

// MusicMetadataVersion is the music metadata schema version embedded in the
// document.
const MusicMetadataVersion = 1

// datumVersion is the outer token-standard datum version.
const datumVersion = 1

// maxChunkLen is the on-chain limit for a single metadata string. Longer
// strings are split into a list of chunks.
const maxChunkLen = 64

var (
	ErrMissingTitle  = errors.New("song title is required")
	ErrMissingArtist = errors.New("at least one artist is required")
	ErrMissingIsrc   = errors.New("ISRC is required")
	ErrMissingAudio  = errors.New("audio file URL is required")
)

// Song carries the song facts that flow into the metadata document.
type Song struct {
	Title                      string
	Genres                     []string
	Moods                      []string
	Duration                   time.Duration
	TrackNumber                int
	CopyrightYear              int
	CompositionCopyrightOwner  string
	PhonographicCopyrightOwner string
	LyricsURL                  string
	ParentalAdvisory           string
	Isrc                       string
	Iswc                       string
	Ipis                       []string
	ReleaseTitle               string
	ReleaseType                string
	Distributor                string
	CoverArtURL                string
	AudioURL                   string
	AgreementURL               string
}

// Credit is a collaborator credit considered for the role-grouped fields.
// Only credited entries appear in the document.
type Credit struct {
	Name     string
	Role     string
	Credited bool
}

// contributingArtistRoles is the fixed allowlist of roles grouped under the
// contributing_artists field.
var contributingArtistRoles = map[string]bool{
	"Vocal":        true,
	"Backup Vocal": true,
	"Guitar":       true,
	"Bass":         true,
	"Drums":        true,
	"Keyboards":    true,
	"Piano":        true,
	"Synthesizer":  true,
	"Strings":      true,
	"Horns":        true,
	"Percussion":   true,
	"Orchestra":    true,
	"DJ":           true,
}

// producerRoles is the fixed allowlist of roles grouped under the producer
// field.
var producerRoles = map[string]bool{
	"Producer":           true,
	"Executive Producer": true,
	"Co-Producer":        true,
	"Assistant Producer": true,
}

// mapBuilder accumulates key/value pairs in insertion order.
type mapBuilder struct {
	pairs [][2]data.PlutusData
}

func (m *mapBuilder) add(key string, value data.PlutusData) {
	m.pairs = append(
		m.pairs,
		[2]data.PlutusData{data.NewByteString([]byte(key)), value},
	)
}

// addOpt skips the field entirely when value is nil.
func (m *mapBuilder) addOpt(key string, value data.PlutusData) {
	if value == nil {
		return
	}
	m.add(key, value)
}

func (m *mapBuilder) build() data.PlutusData {
	return data.NewMap(m.pairs)
}

// chunkString renders a string as a single byte string, or as a list of
// 64-byte chunks when it exceeds the on-chain string limit.
func chunkString(s string) data.PlutusData {
	raw := []byte(s)
	if len(raw) <= maxChunkLen {
		return data.NewByteString(raw)
	}
	var items []data.PlutusData
	for len(raw) > 0 {
		chunk := min(len(raw), maxChunkLen)
		items = append(items, data.NewByteString(raw[:chunk]))
		raw = raw[chunk:]
	}
	return data.NewList(items...)
}

// scalarOrList renders a group as a scalar when it has exactly one entry and
// as a list when it has more. Returns nil for an empty group so the caller
// can omit the field.
func scalarOrList(items []string) data.PlutusData {
	switch len(items) {
	case 0:
		return nil
	case 1:
		return chunkString(items[0])
	default:
		ret := make([]data.PlutusData, 0, len(items))
		for _, item := range items {
			ret = append(ret, chunkString(item))
		}
		return data.NewList(ret...)
	}
}

// formatDuration renders a duration as an ISO-8601 duration string, e.g.
// PT3M45S.
func formatDuration(d time.Duration) string {
	total := int64(d.Round(time.Second).Seconds())
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	ret := "PT"
	if hours > 0 {
		ret += fmt.Sprintf("%dH", hours)
	}
	if minutes > 0 {
		ret += fmt.Sprintf("%dM", minutes)
	}
	if seconds > 0 || ret == "PT" {
		ret += fmt.Sprintf("%dS", seconds)
	}
	return ret
}

// rolesMatching collects the names of credited collaborators whose role is
// in the given set, preserving input order.
func rolesMatching(credits []Credit, roles map[string]bool) []string {
	var ret []string
	for _, credit := range credits {
		if credit.Credited && roles[credit.Role] {
			ret = append(ret, credit.Name)
		}
	}
	return ret
}

// roleMatching collects credited collaborators with exactly the given role.
func roleMatching(credits []Credit, role string) []string {
	return rolesMatching(credits, map[string]bool{role: true})
}

// BuildDocument assembles the full metadata document for a song. The
// primaryArtist is always the first artist; credited collaborators with the
// Artist role follow. The same inputs always produce an identical document.
func BuildDocument(
	song Song,
	primaryArtist string,
	credits []Credit,
) (data.PlutusData, error) {
	if song.Title == "" {
		return nil, ErrMissingTitle
	}
	if primaryArtist == "" {
		return nil, ErrMissingArtist
	}
	if song.Isrc == "" {
		return nil, ErrMissingIsrc
	}
	if song.AudioURL == "" {
		return nil, ErrMissingAudio
	}

	var topLevel mapBuilder
	topLevel.add("name", chunkString(song.Title))
	topLevel.add("image", chunkString(song.CoverArtURL))
	topLevel.add("mediaType", chunkString("image/webp"))
	topLevel.add(
		"music_metadata_version",
		data.NewInteger(big.NewInt(MusicMetadataVersion)),
	)
	topLevel.add("release", buildRelease(song))
	files, err := buildFiles(song, primaryArtist, credits)
	if err != nil {
		return nil, err
	}
	topLevel.add("files", files)

	return data.NewConstr(
		0,
		topLevel.build(),
		data.NewInteger(big.NewInt(datumVersion)),
	), nil
}

func buildRelease(song Song) data.PlutusData {
	var release mapBuilder
	release.add("release_type", chunkString(song.ReleaseType))
	release.add("release_title", chunkString(song.ReleaseTitle))
	release.addOpt("distributor", optString(song.Distributor))
	return release.build()
}

func buildFiles(
	song Song,
	primaryArtist string,
	credits []Credit,
) (data.PlutusData, error) {
	var agreement mapBuilder
	agreement.add("name", chunkString("Streaming Royalty Share Agreement"))
	agreement.add("mediaType", chunkString("application/pdf"))
	agreement.add("src", chunkString(song.AgreementURL))

	songMap, err := buildSong(song, primaryArtist, credits)
	if err != nil {
		return nil, err
	}
	var audio mapBuilder
	audio.add("name", chunkString(song.Title))
	audio.add("mediaType", chunkString("audio/mpeg"))
	audio.add("src", chunkString(song.AudioURL))
	audio.add("song", songMap)

	return data.NewList(agreement.build(), audio.build()), nil
}

func buildSong(
	song Song,
	primaryArtist string,
	credits []Credit,
) (data.PlutusData, error) {
	artists := append(
		[]string{primaryArtist},
		roleMatching(credits, "Artist")...,
	)

	var songMap mapBuilder
	songMap.add("song_title", chunkString(song.Title))
	songMap.add("song_duration", chunkString(formatDuration(song.Duration)))
	songMap.add(
		"track_number",
		data.NewInteger(big.NewInt(int64(song.TrackNumber))),
	)
	songMap.addOpt("mood", scalarOrList(song.Moods))
	// artists is always a list, even with a single entry
	artistItems := make([]data.PlutusData, 0, len(artists))
	for _, artist := range artists {
		artistItems = append(artistItems, chunkString(artist))
	}
	songMap.add("artists", data.NewList(artistItems...))
	songMap.addOpt("genres", stringList(song.Genres))
	songMap.add("copyright", buildCopyright(song))
	songMap.addOpt("lyrics", optString(song.LyricsURL))
	if song.ParentalAdvisory != "" {
		songMap.add("explicit", chunkString(explicitValue(song)))
		songMap.add("parental_advisory", chunkString(song.ParentalAdvisory))
	}
	songMap.add("isrc", chunkString(song.Isrc))
	songMap.addOpt("iswc", optString(song.Iswc))
	songMap.addOpt("ipi", stringList(song.Ipis))
	songMap.addOpt("lyricists", scalarOrList(roleMatching(credits, "Lyricist")))
	songMap.addOpt(
		"contributing_artists",
		scalarOrList(rolesMatching(credits, contributingArtistRoles)),
	)
	songMap.addOpt(
		"mix_engineer",
		scalarOrList(roleMatching(credits, "Mixing Engineer")),
	)
	songMap.addOpt(
		"mastering_engineer",
		scalarOrList(roleMatching(credits, "Mastering Engineer")),
	)
	songMap.addOpt(
		"recording_engineer",
		scalarOrList(roleMatching(credits, "Recording Engineer")),
	)
	songMap.addOpt(
		"producer",
		scalarOrList(rolesMatching(credits, producerRoles)),
	)
	songMap.addOpt(
		"artwork_artist",
		scalarOrList(roleMatching(credits, "Artwork")),
	)
	return songMap.build(), nil
}

// buildCopyright composes the composition and phonographic copyright lines.
func buildCopyright(song Song) data.PlutusData {
	var cr mapBuilder
	cr.add(
		"composition",
		chunkString(
			fmt.Sprintf(
				"© %d %s",
				song.CopyrightYear,
				song.CompositionCopyrightOwner,
			),
		),
	)
	cr.add(
		"master",
		chunkString(
			fmt.Sprintf(
				"℗ %d %s",
				song.CopyrightYear,
				song.PhonographicCopyrightOwner,
			),
		),
	)
	return cr.build()
}

func explicitValue(song Song) string {
	if song.ParentalAdvisory == "Explicit" {
		return "true"
	}
	return "false"
}

func optString(s string) data.PlutusData {
	if s == "" {
		return nil
	}
	return chunkString(s)
}

func stringList(items []string) data.PlutusData {
	if len(items) == 0 {
		return nil
	}
	ret := make([]data.PlutusData, 0, len(items))
	for _, item := range items {
		ret = append(ret, chunkString(item))
	}
	return data.NewList(ret...)
}

// Encode serializes the document to its deterministic CBOR form.
func Encode(doc data.PlutusData) ([]byte, error) {
	return data.Encode(doc)
}

// DatumHash computes the Blake2b-256 hash of the serialized document, used
// as the reference token output's datum hash.
func DatumHash(doc data.PlutusData) (lcommon.Blake2b256, error) {
	docCbor, err := data.Encode(doc)
	if err != nil {
		return lcommon.Blake2b256{}, err
	}
	return lcommon.Blake2b256Hash(docCbor), nil
}
