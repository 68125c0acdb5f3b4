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

// Package assets provides the canonical grouping and ordering of native
// assets required for deterministic CBOR transaction encoding. The ledger's
// canonical map encoding sorts keys by ascending byte length, with ties
// broken by bytewise lexicographic comparison, so any multiasset collection
// must be merged and ordered the same way before serialization.
package assets

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
)

// NativeAsset is a single (policy, name, amount) entry. PolicyID and Name
// are hex-encoded byte strings.
type NativeAsset struct {
	PolicyID string
	Name     string
	Amount   int64
}

// PolicyGroup holds the merged assets under a single policy in canonical
// order.
type PolicyGroup struct {
	PolicyID string
	Assets   []NativeAsset
}

// HexError is returned when a policy id or asset name is not valid hex.
type HexError struct {
	Field string
	Value string
}

func (e *HexError) Error() string {
	return fmt.Sprintf("invalid hex in asset %s: %q", e.Field, e.Value)
}

// canonicalLess implements the CBOR canonical key ordering: shorter byte
// strings sort first, equal-length strings sort bytewise.
func canonicalLess(a, b []byte) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return bytes.Compare(a, b) < 0
}

// GroupByPolicy merges duplicate (policy, name) entries by summing their
// amounts and returns the assets grouped per policy in canonical order.
// The result is built fresh on every call and is identical for any
// permutation of the input.
func GroupByPolicy(in []NativeAsset) ([]PolicyGroup, error) {
	type assetKey struct {
		policy string
		name   string
	}
	merged := make(map[assetKey]int64)
	for _, asset := range in {
		if _, err := hex.DecodeString(asset.PolicyID); err != nil {
			return nil, &HexError{Field: "policy id", Value: asset.PolicyID}
		}
		if _, err := hex.DecodeString(asset.Name); err != nil {
			return nil, &HexError{Field: "name", Value: asset.Name}
		}
		key := assetKey{policy: asset.PolicyID, name: asset.Name}
		merged[key] += asset.Amount
	}
	byPolicy := make(map[string][]NativeAsset)
	for key, amount := range merged {
		byPolicy[key.policy] = append(
			byPolicy[key.policy],
			NativeAsset{
				PolicyID: key.policy,
				Name:     key.name,
				Amount:   amount,
			},
		)
	}
	ret := make([]PolicyGroup, 0, len(byPolicy))
	for policyId, policyAssets := range byPolicy {
		slices.SortFunc(policyAssets, func(a, b NativeAsset) int {
			// Hex decode errors were ruled out above
			aName, _ := hex.DecodeString(a.Name)
			bName, _ := hex.DecodeString(b.Name)
			if canonicalLess(aName, bName) {
				return -1
			}
			return 1
		})
		ret = append(ret, PolicyGroup{
			PolicyID: policyId,
			Assets:   policyAssets,
		})
	}
	slices.SortFunc(ret, func(a, b PolicyGroup) int {
		aPolicy, _ := hex.DecodeString(a.PolicyID)
		bPolicy, _ := hex.DecodeString(b.PolicyID)
		if canonicalLess(aPolicy, bPolicy) {
			return -1
		}
		return 1
	})
	return ret, nil
}
