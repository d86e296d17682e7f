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
	"context"

	"github.com/gorse-io/knn/common/heap"
	"github.com/gorse-io/knn/common/log"
	"github.com/gorse-io/knn/common/parallel"
	"github.com/gorse-io/knn/common/util"
	"github.com/gorse-io/knn/config"
	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// Recommendation is an item with its aggregated score.
type Recommendation struct {
	ItemId string
	Score  float64
}

type Option func(*Recommender)

// WithItemFilter keeps only the candidate items accepted by filter.
func WithItemFilter(filter func(itemId string) bool) Option {
	return func(r *Recommender) {
		r.filter = filter
	}
}

// Recommender aggregates the ratings of the nearest neighbors of a user. It holds no
// per-query state, so one recommender serves concurrent calls.
type Recommender struct {
	data     *dataset.Dataset
	selector *NeighborSelector
	count    int
	filter   func(itemId string) bool
}

func NewRecommender(data *dataset.Dataset, cfg config.RecommendConfig, opts ...Option) (*Recommender, error) {
	similarity, err := ParseSimilarity(cfg.Metric)
	if err != nil {
		return nil, errors.Trace(err)
	}
	candidates, err := ParseCandidateStrategy(cfg.Candidates)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if cfg.K < 1 {
		return nil, errors.NotValidf("k = %d", cfg.K)
	}
	if cfg.Count < 1 {
		return nil, errors.NotValidf("count = %d", cfg.Count)
	}
	r := &Recommender{
		data:     data,
		selector: NewNeighborSelector(data, similarity, candidates, cfg.K),
		count:    cfg.Count,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Neighbors returns the ranked neighbors of a user.
func (r *Recommender) Neighbors(userId string) ([]Neighbor, error) {
	return r.selector.Rank(userId)
}

// Recommend returns at most count items the user has not rated, ordered by score
// descending with ties broken by item ID ascending.
func (r *Recommender) Recommend(userId string) ([]Recommendation, error) {
	recommendations, err := r.recommend(userId)
	switch {
	case err == nil:
		RecommendTotalVec.WithLabelValues(OutcomeSuccess).Inc()
		RecommendedItems.Observe(float64(len(recommendations)))
	case errors.Is(err, ErrUnknownUser):
		RecommendTotalVec.WithLabelValues(OutcomeUnknownUser).Inc()
	case errors.Is(err, ErrEmptyNeighborSet):
		RecommendTotalVec.WithLabelValues(OutcomeEmptyNeighbors).Inc()
	case errors.Is(err, ErrDegenerateWeights):
		RecommendTotalVec.WithLabelValues(OutcomeDegenerateScore).Inc()
	}
	return recommendations, err
}

func (r *Recommender) recommend(userId string) ([]Recommendation, error) {
	neighbors, err := r.selector.Rank(userId)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return nil, errors.Annotatef(ErrEmptyNeighborSet, "user %q", userId)
	}
	weightSum := lo.SumBy(neighbors, func(n Neighbor) float64 { return n.Score })
	if weightSum == 0 {
		return nil, errors.Annotatef(ErrDegenerateWeights, "user %q has %d neighbors", userId, len(neighbors))
	}

	target, _ := r.data.UserIndex(userId)
	targetVec := r.data.UserVector(target)
	accepted := make(map[int32]bool)
	scores := make(map[int32]float64)
	for _, neighbor := range neighbors {
		weight := neighbor.Score / weightSum
		neighborIndex, _ := r.data.UserIndex(neighbor.UserId)
		r.data.UserVector(neighborIndex).ForEach(func(item int32, rating float64) {
			if targetVec.Contains(item) || !r.accept(item, accepted) {
				return
			}
			scores[item] += rating * weight
		})
	}

	filter := heap.NewTopKFilter[string, float64](r.count)
	for item, score := range scores {
		filter.Push(r.data.ItemId(item), score)
	}
	return lo.Map(filter.PopAll(), func(e heap.Elem[string, float64], _ int) Recommendation {
		return Recommendation{ItemId: e.Value, Score: e.Weight}
	}), nil
}

func (r *Recommender) accept(item int32, cache map[int32]bool) bool {
	if r.filter == nil {
		return true
	}
	ok, exist := cache[item]
	if !exist {
		ok = r.filter(r.data.ItemId(item))
		cache[item] = ok
	}
	return ok
}

// recommendRecover turns a panic during recommendation into the error of the user.
func (r *Recommender) recommendRecover(userId string) (recommendations []Recommendation, err error) {
	defer util.RecoverError(&err)
	return r.Recommend(userId)
}

// Result is the outcome of a recommendation for one user in a batch.
type Result struct {
	UserId          string
	Recommendations []Recommendation
	Err             error
}

// RecommendAll recommends for every user on jobs workers. Failures for a single user
// are kept in its Result; only cancellation aborts the batch.
func (r *Recommender) RecommendAll(ctx context.Context, userIds []string, jobs int) ([]Result, error) {
	results := make([]Result, len(userIds))
	failed := atomic.NewInt64(0)
	err := parallel.Parallel(ctx, len(userIds), jobs, func(_, jobId int) error {
		recommendations, err := r.recommendRecover(userIds[jobId])
		if err != nil {
			failed.Inc()
			log.Logger().Debug("failed to recommend", zap.String("user_id", userIds[jobId]), zap.Error(err))
		}
		results[jobId] = Result{
			UserId:          userIds[jobId],
			Recommendations: recommendations,
			Err:             err,
		}
		return nil
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	log.Logger().Info("complete batch recommendation",
		zap.Int("n_users", len(userIds)),
		zap.Int64("n_failed", failed.Load()),
		zap.Int("n_jobs", jobs))
	return results, nil
}
