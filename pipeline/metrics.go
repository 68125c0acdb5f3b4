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

package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type pipelineMetrics struct {
	transitions *prometheus.CounterVec
	failures    prometheus.Counter
}

func newPipelineMetrics(registry prometheus.Registerer) *pipelineMetrics {
	factory := promauto.With(registry)
	return &pipelineMetrics{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "minstrel_pipeline_transitions_total",
				Help: "total number of song status transitions by new status",
			},
			[]string{"status"},
		),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Name: "minstrel_pipeline_failures_total",
			Help: "total number of failed transition handlers",
		}),
	}
}
