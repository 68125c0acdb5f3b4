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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type minterMetrics struct {
	mints        prometheus.Counter
	mintFailures prometheus.Counter
}

func newMinterMetrics(registry prometheus.Registerer) *minterMetrics {
	factory := promauto.With(registry)
	return &minterMetrics{
		mints: factory.NewCounter(prometheus.CounterOpts{
			Name: "minstrel_mints_total",
			Help: "total number of successful song mints",
		}),
		mintFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "minstrel_mint_failures_total",
			Help: "total number of failed mint attempts",
		}),
	}
}
