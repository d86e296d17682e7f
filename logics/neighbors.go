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
	"strings"
	"time"

	"github.com/bits-and-blooms/bitset"
	"github.com/gorse-io/knn/common/heap"
	"github.com/gorse-io/knn/config"
	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
)

// CandidateStrategy decides which users are compared with the query user.
type CandidateStrategy int

const (
	// AllUsers compares the query user with every other user.
	AllUsers CandidateStrategy = iota
	// CoRaters compares the query user only with users sharing at least one rated item.
	CoRaters
)

func ParseCandidateStrategy(name string) (CandidateStrategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case config.CandidatesAll:
		return AllUsers, nil
	case config.CandidatesCoRaters:
		return CoRaters, nil
	}
	return 0, errors.NotValidf("candidate strategy %q", name)
}

func (c CandidateStrategy) String() string {
	switch c {
	case AllUsers:
		return config.CandidatesAll
	case CoRaters:
		return config.CandidatesCoRaters
	}
	return "unknown"
}

// Neighbor is a user similar to the query user.
type Neighbor struct {
	UserId string
	Score  float64
}

// NeighborSelector ranks users by similarity to a query user.
type NeighborSelector struct {
	data       *dataset.Dataset
	similarity Similarity
	candidates CandidateStrategy
	k          int
}

func NewNeighborSelector(data *dataset.Dataset, similarity Similarity, candidates CandidateStrategy, k int) *NeighborSelector {
	return &NeighborSelector{
		data:       data,
		similarity: similarity,
		candidates: candidates,
		k:          k,
	}
}

// Rank returns min(k, |candidates|) neighbors ordered by score descending. Ties are
// broken by user ID ascending.
func (s *NeighborSelector) Rank(userId string) ([]Neighbor, error) {
	start := time.Now()
	target, ok := s.data.UserIndex(userId)
	if !ok {
		return nil, errors.Annotatef(ErrUnknownUser, "user %q", userId)
	}
	targetVec := s.data.UserVector(target)
	candidates := s.candidateSet(target)
	CandidateUsers.Observe(float64(len(candidates)))
	filter := heap.NewTopKFilter[string, float64](s.k)
	for _, candidate := range candidates {
		score := s.similarity.between(targetVec, s.data.UserVector(candidate))
		filter.Push(s.data.UserId(candidate), score)
	}
	elems := filter.PopAll()
	neighbors := make([]Neighbor, len(elems))
	for i, elem := range elems {
		neighbors[i] = Neighbor{UserId: elem.Value, Score: elem.Weight}
	}
	FindNeighborsSeconds.Observe(time.Since(start).Seconds())
	return neighbors, nil
}

// candidateSet returns candidate user indices in ascending order, excluding the target.
func (s *NeighborSelector) candidateSet(target int32) []int32 {
	switch s.candidates {
	case AllUsers:
		candidates := make([]int32, 0, s.data.CountUsers()-1)
		for i := int32(0); i < int32(s.data.CountUsers()); i++ {
			if i != target {
				candidates = append(candidates, i)
			}
		}
		return candidates
	case CoRaters:
		set := bitset.New(uint(s.data.CountUsers()))
		s.data.UserVector(target).ForEach(func(item int32, _ float64) {
			for _, user := range s.data.ItemUsers(item) {
				set.Set(uint(user))
			}
		})
		set.Clear(uint(target))
		candidates := make([]int32, 0, set.Count())
		for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
			candidates = append(candidates, int32(i))
		}
		return candidates
	}
	panic("unknown candidate strategy")
}
