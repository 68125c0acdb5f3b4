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

// MintingStatus is the durable state-machine cursor for a song's journey
// through the mint and distribution pipeline. Statuses are forward-only;
// Minted and Declined are terminal.
type MintingStatus string

const (
	MintingStatusUndistributed                MintingStatus = "Undistributed"
	MintingStatusStreamTokenAgreementApproved MintingStatus = "StreamTokenAgreementApproved"
	MintingStatusMintingPaymentRequested      MintingStatus = "MintingPaymentRequested"
	MintingStatusMintingPaymentReceived       MintingStatus = "MintingPaymentReceived"
	MintingStatusAwaitingCollaboratorApproval MintingStatus = "AwaitingCollaboratorApproval"
	MintingStatusReadyToDistribute            MintingStatus = "ReadyToDistribute"
	MintingStatusSubmittedForDistribution     MintingStatus = "SubmittedForDistribution"
	MintingStatusDistributed                  MintingStatus = "Distributed"
	MintingStatusDeclined                     MintingStatus = "Declined"
	MintingStatusPending                      MintingStatus = "Pending"
	MintingStatusMinted                       MintingStatus = "Minted"
)

// Valid returns true for a known status value.
func (s MintingStatus) Valid() bool {
	switch s {
	case MintingStatusUndistributed,
		MintingStatusStreamTokenAgreementApproved,
		MintingStatusMintingPaymentRequested,
		MintingStatusMintingPaymentReceived,
		MintingStatusAwaitingCollaboratorApproval,
		MintingStatusReadyToDistribute,
		MintingStatusSubmittedForDistribution,
		MintingStatusDistributed,
		MintingStatusDeclined,
		MintingStatusPending,
		MintingStatusMinted:
		return true
	default:
		return false
	}
}

// Terminal returns true when no further automatic transition exists.
func (s MintingStatus) Terminal() bool {
	return s == MintingStatusMinted || s == MintingStatusDeclined
}
