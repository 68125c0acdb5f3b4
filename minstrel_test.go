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

package minstrel_test

import (
	"testing"
	"time"

	"github.com/blinklabs-io/minstrel"
	"github.com/stretchr/testify/require"
)

func TestServiceLifecycle(t *testing.T) {
	svc, err := minstrel.New(minstrel.NewConfig(validConfigOptions()...))
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.Run()
	}()

	// Wait for startup to finish wiring the pipeline
	require.Eventually(
		t,
		func() bool { return svc.Pipeline() != nil },
		10*time.Second,
		10*time.Millisecond,
	)
	require.NotNil(t, svc.Database())
	require.NotNil(t, svc.KeyStore())

	require.NoError(t, svc.Stop())
	select {
	case err := <-runErr:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not shut down in time")
	}

	// Stop is idempotent
	require.NoError(t, svc.Stop())
}

func TestServiceShutdownBounded(t *testing.T) {
	opts := append(
		validConfigOptions(),
		minstrel.WithShutdownTimeout(2*time.Second),
	)
	svc, err := minstrel.New(minstrel.NewConfig(opts...))
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() {
		runErr <- svc.Run()
	}()
	require.Eventually(
		t,
		func() bool { return svc.Pipeline() != nil },
		10*time.Second,
		10*time.Millisecond,
	)

	start := time.Now()
	require.NoError(t, svc.Stop())
	require.Less(t, time.Since(start), 5*time.Second)
	select {
	case <-runErr:
	case <-time.After(5 * time.Second):
		t.Fatal("service did not shut down in time")
	}
}
