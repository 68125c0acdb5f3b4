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

package minting

import (
	"fmt"
	"sort"

	"github.com/blinklabs-io/minstrel/database/models"
)

// FractionalTotalSupply is the fixed total supply of fractional tokens
// minted per song
const FractionalTotalSupply = 100_000_000

// RoyaltyRateError indicates that the royalty-bearing collaborators of a
// song carry rates that do not sum to exactly 100 percent
type RoyaltyRateError struct {
	SongID string
	Sum    int64
}

func (e RoyaltyRateError) Error() string {
	return fmt.Sprintf(
		"royalty rates for song %s sum to %d, expected 100",
		e.SongID,
		e.Sum,
	)
}

// Allocation assigns a fractional token amount to a royalty-bearing
// collaborator
type Allocation struct {
	Collaboration models.Collaboration
	Amount        int64
}

// SplitFractionalSupply divides the fixed fractional token supply among
// the royalty-bearing collaborators of a song. Collaborators are ordered
// by descending royalty rate, ties broken by ascending email. Every
// collaborator but the last receives floor(supply * rate / 100); the last
// absorbs the remainder so the amounts always sum to the full supply.
func SplitFractionalSupply(
	songID string,
	collaborations []models.Collaboration,
) ([]Allocation, error) {
	bearing := []models.Collaboration{}
	var rateSum int64
	for _, collab := range collaborations {
		if collab.RoyaltyBearing() {
			bearing = append(bearing, collab)
			rateSum += collab.RoyaltyRate
		}
	}
	if rateSum != 100 {
		return nil, RoyaltyRateError{SongID: songID, Sum: rateSum}
	}
	sort.SliceStable(bearing, func(i, j int) bool {
		if bearing[i].RoyaltyRate != bearing[j].RoyaltyRate {
			return bearing[i].RoyaltyRate > bearing[j].RoyaltyRate
		}
		return bearing[i].Email < bearing[j].Email
	})
	allocations := make([]Allocation, 0, len(bearing))
	var assigned int64
	for idx, collab := range bearing {
		amount := FractionalTotalSupply * collab.RoyaltyRate / 100
		if idx == len(bearing)-1 {
			amount = FractionalTotalSupply - assigned
		}
		assigned += amount
		allocations = append(allocations, Allocation{
			Collaboration: collab,
			Amount:        amount,
		})
	}
	return allocations, nil
}
