// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelOutcome = "outcome"

	OutcomeSuccess         = "success"
	OutcomeUnknownUser     = "unknown_user"
	OutcomeEmptyNeighbors  = "empty_neighbors"
	OutcomeDegenerateScore = "degenerate_weights"
)

var (
	RecommendTotalVec = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "knn",
		Subsystem: "recommender",
		Name:      "recommend_total",
	}, []string{LabelOutcome})
	FindNeighborsSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "knn",
		Subsystem: "recommender",
		Name:      "find_neighbors_seconds",
		Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 10),
	})
	CandidateUsers = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "knn",
		Subsystem: "recommender",
		Name:      "candidate_users",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
	})
	RecommendedItems = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "knn",
		Subsystem: "recommender",
		Name:      "recommended_items",
		Buckets:   prometheus.LinearBuckets(0, 5, 10),
	})
)
