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

package ttlcache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetSet(t *testing.T) {
	cache := New[string, int](time.Minute)
	_, ok := cache.Get("a")
	assert.False(t, ok)
	cache.Set("a", 42)
	got, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 42, got)
}

func TestExpiry(t *testing.T) {
	cache := New[string, int](time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }
	cache.Set("a", 42)
	now = now.Add(2 * time.Minute)
	_, ok := cache.Get("a")
	assert.False(t, ok)
}

func TestGetOrFill(t *testing.T) {
	cache := New[string, int](time.Minute)
	fills := 0
	fill := func() (int, error) {
		fills++
		return 7, nil
	}
	got, err := cache.GetOrFill("a", fill)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	got, err = cache.GetOrFill("a", fill)
	require.NoError(t, err)
	assert.Equal(t, 7, got)
	assert.Equal(t, 1, fills)
}

func TestGetOrFillErrorNotCached(t *testing.T) {
	cache := New[string, int](time.Minute)
	fillErr := errors.New("remote failure")
	_, err := cache.GetOrFill("a", func() (int, error) {
		return 0, fillErr
	})
	require.ErrorIs(t, err, fillErr)
	_, ok := cache.Get("a")
	assert.False(t, ok)
}
