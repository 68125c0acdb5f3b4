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

package assets_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blinklabs-io/minstrel/assets"
)

const (
	testPolicyA = "0dfe0e8cbf9e4e05c466ebbd9d5dc9b1c4a7e4aebdfe0e8cbf9e4e05"
	testPolicyB = "ff000e8cbf9e4e05c466ebbd9d5dc9b1c4a7e4aebdfe0e8cbf9e4e05"
)

func TestGroupByPolicyMergesAndOrders(t *testing.T) {
	in := []assets.NativeAsset{
		{PolicyID: testPolicyA, Name: "0011", Amount: 5},
		{PolicyID: testPolicyA, Name: "00", Amount: 3},
		{PolicyID: testPolicyA, Name: "0011", Amount: 2},
	}
	groups, err := assets.GroupByPolicy(in)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, testPolicyA, groups[0].PolicyID)
	require.Len(t, groups[0].Assets, 2)
	// "00" decodes to 1 byte, "0011" to 2, so "00" sorts first
	assert.Equal(t, "00", groups[0].Assets[0].Name)
	assert.Equal(t, int64(3), groups[0].Assets[0].Amount)
	assert.Equal(t, "0011", groups[0].Assets[1].Name)
	assert.Equal(t, int64(7), groups[0].Assets[1].Amount)
}

func TestGroupByPolicyLengthBeforeLexicographic(t *testing.T) {
	in := []assets.NativeAsset{
		{PolicyID: testPolicyA, Name: "ffff", Amount: 1},
		{PolicyID: testPolicyA, Name: "0000ff", Amount: 1},
		{PolicyID: testPolicyA, Name: "00ff", Amount: 1},
		{PolicyID: testPolicyA, Name: "", Amount: 1},
	}
	groups, err := assets.GroupByPolicy(in)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	names := make([]string, 0, len(groups[0].Assets))
	for _, asset := range groups[0].Assets {
		names = append(names, asset.Name)
	}
	assert.Equal(t, []string{"", "00ff", "ffff", "0000ff"}, names)
}

func TestGroupByPolicyOrderIndependence(t *testing.T) {
	base := []assets.NativeAsset{
		{PolicyID: testPolicyB, Name: "aa", Amount: 9},
		{PolicyID: testPolicyA, Name: "0011", Amount: 5},
		{PolicyID: testPolicyA, Name: "00", Amount: 3},
		{PolicyID: testPolicyA, Name: "0011", Amount: 2},
		{PolicyID: testPolicyB, Name: "aa", Amount: 1},
	}
	expected, err := assets.GroupByPolicy(base)
	require.NoError(t, err)
	// Exercise every rotation of the input
	for i := range base {
		rotated := make([]assets.NativeAsset, 0, len(base))
		rotated = append(rotated, base[i:]...)
		rotated = append(rotated, base[:i]...)
		got, err := assets.GroupByPolicy(rotated)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}
}

func TestGroupByPolicyPolicyOrdering(t *testing.T) {
	in := []assets.NativeAsset{
		{PolicyID: testPolicyB, Name: "00", Amount: 1},
		{PolicyID: testPolicyA, Name: "00", Amount: 1},
	}
	groups, err := assets.GroupByPolicy(in)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, testPolicyA, groups[0].PolicyID)
	assert.Equal(t, testPolicyB, groups[1].PolicyID)
}

func TestGroupByPolicyInvalidHex(t *testing.T) {
	_, err := assets.GroupByPolicy(
		[]assets.NativeAsset{
			{PolicyID: "zz", Name: "00", Amount: 1},
		},
	)
	require.Error(t, err)
	var hexErr *assets.HexError
	require.ErrorAs(t, err, &hexErr)
	assert.Equal(t, "policy id", hexErr.Field)
}

func TestEncodeMultiAssetPermutationStable(t *testing.T) {
	a := []assets.NativeAsset{
		{PolicyID: testPolicyA, Name: "0011", Amount: 5},
		{PolicyID: testPolicyB, Name: "aa", Amount: 2},
		{PolicyID: testPolicyA, Name: "00", Amount: 3},
	}
	b := []assets.NativeAsset{
		{PolicyID: testPolicyA, Name: "00", Amount: 3},
		{PolicyID: testPolicyA, Name: "0011", Amount: 5},
		{PolicyID: testPolicyB, Name: "aa", Amount: 2},
	}
	aCbor, err := assets.EncodeMultiAsset(a)
	require.NoError(t, err)
	bCbor, err := assets.EncodeMultiAsset(b)
	require.NoError(t, err)
	assert.Equal(t, aCbor, bCbor)
	assert.NotEmpty(t, aCbor)
}

func TestEncodeMultiAssetEmpty(t *testing.T) {
	ret, err := assets.EncodeMultiAsset(nil)
	require.NoError(t, err)
	// Empty definite-length map
	assert.Equal(t, []byte{0xa0}, ret)
}
