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

import "time"

// CollaborationStatus tracks a collaborator's acceptance of their royalty
// share.
type CollaborationStatus string

const (
	CollaborationStatusWaiting  CollaborationStatus = "Waiting"
	CollaborationStatusAccepted CollaborationStatus = "Accepted"
	CollaborationStatusRejected CollaborationStatus = "Rejected"
)

// Collaboration links a collaborator to a song with their role and royalty
// share. The royalty rates of all entries with a rate above zero must sum
// to exactly 100 before minting may proceed.
type Collaboration struct {
	ID     uint   `gorm:"primaryKey"`
	SongID string `gorm:"index"`
	Email  string
	Name   string
	Role   string
	// WalletAddress receives the collaborator's fractional tokens; when
	// empty the song owner's payment address takes custody
	WalletAddress string
	// RoyaltyRate is a whole percentage of the fractional token supply
	RoyaltyRate int64
	Credited    bool
	Status      CollaborationStatus
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Collaboration) TableName() string {
	return "collaboration"
}

// RoyaltyBearing returns true when the collaborator receives a share of
// the fractional token supply.
func (c *Collaboration) RoyaltyBearing() bool {
	return c.RoyaltyRate > 0
}
