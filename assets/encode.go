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

package assets

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
)

const cborMajorTypeMap = 5

// encodeMapHeader writes a definite-length CBOR map header using the
// shortest possible encoding, as required for canonical output.
func encodeMapHeader(buf *bytes.Buffer, length int) error {
	switch {
	case length < 24:
		buf.WriteByte(byte(cborMajorTypeMap<<5) | byte(length))
	case length < 0x100:
		buf.WriteByte(byte(cborMajorTypeMap<<5) | 24)
		buf.WriteByte(byte(length))
	case length < 0x10000:
		buf.WriteByte(byte(cborMajorTypeMap<<5) | 25)
		var tmp [2]byte
		binary.BigEndian.PutUint16(tmp[:], uint16(length)) // #nosec G115
		buf.Write(tmp[:])
	default:
		return fmt.Errorf("map too large for canonical encoding: %d", length)
	}
	return nil
}

// EncodeMultiAsset encodes a native asset collection as the canonical CBOR
// map of policy id to (asset name to amount). The input is grouped and
// ordered via GroupByPolicy first, so the returned bytes are identical for
// any permutation of the input list.
func EncodeMultiAsset(in []NativeAsset) ([]byte, error) {
	groups, err := GroupByPolicy(in)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := encodeMapHeader(&buf, len(groups)); err != nil {
		return nil, err
	}
	for _, group := range groups {
		policyBytes, _ := hex.DecodeString(group.PolicyID)
		keyCbor, err := cbor.Encode(policyBytes)
		if err != nil {
			return nil, err
		}
		buf.Write(keyCbor)
		if err := encodeMapHeader(&buf, len(group.Assets)); err != nil {
			return nil, err
		}
		for _, asset := range group.Assets {
			nameBytes, _ := hex.DecodeString(asset.Name)
			nameCbor, err := cbor.Encode(nameBytes)
			if err != nil {
				return nil, err
			}
			buf.Write(nameCbor)
			amountCbor, err := cbor.Encode(asset.Amount)
			if err != nil {
				return nil, err
			}
			buf.Write(amountCbor)
		}
	}
	return buf.Bytes(), nil
}
