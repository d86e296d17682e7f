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
	"math"
	"sort"
	"strings"

	"github.com/gorse-io/knn/config"
	"github.com/gorse-io/knn/dataset"
	"github.com/juju/errors"
)

// Similarity is a similarity function between the ratings of two users. Only items
// rated by both users are taken into account.
type Similarity int

const (
	Pearson Similarity = iota
	Cosine
)

func ParseSimilarity(name string) (Similarity, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case config.SimilarityPearson:
		return Pearson, nil
	case config.SimilarityCosine:
		return Cosine, nil
	}
	return 0, errors.NotValidf("similarity %q", name)
}

func (s Similarity) String() string {
	switch s {
	case Pearson:
		return config.SimilarityPearson
	case Cosine:
		return config.SimilarityCosine
	}
	return "unknown"
}

// Compute returns the similarity between two rating maps. The overlap is summed in
// item order so the result does not depend on map iteration.
func (s Similarity) Compute(a, b map[string]float64) float64 {
	small, large := a, b
	if len(large) < len(small) {
		small, large = large, small
	}
	overlap := make([]string, 0, len(small))
	for item := range small {
		if _, ok := large[item]; ok {
			overlap = append(overlap, item)
		}
	}
	sort.Strings(overlap)
	var m moments
	for _, item := range overlap {
		m.add(a[item], b[item])
	}
	return s.evaluate(&m)
}

func (s Similarity) between(a, b *dataset.SparseVector) float64 {
	var m moments
	a.ForIntersection(b, func(_ int32, x, y float64) {
		m.add(x, y)
	})
	return s.evaluate(&m)
}

func (s Similarity) evaluate(m *moments) float64 {
	switch s {
	case Pearson:
		return m.pearson()
	case Cosine:
		return m.cosine()
	}
	panic("unknown similarity")
}

// moments accumulates sums over the overlap of two rating vectors.
type moments struct {
	n, sumX, sumY, sumXY, sumX2, sumY2 float64
}

func (m *moments) add(x, y float64) {
	m.n++
	m.sumX += x
	m.sumY += y
	m.sumXY += x * y
	m.sumX2 += x * x
	m.sumY2 += y * y
}

// pearson returns 0 for an empty overlap or a vector without variance.
func (m *moments) pearson() float64 {
	if m.n == 0 {
		return 0
	}
	num := m.sumXY - m.sumX*m.sumY/m.n
	den := (m.sumX2 - m.sumX*m.sumX/m.n) * (m.sumY2 - m.sumY*m.sumY/m.n)
	if !(den > 0) {
		return 0
	}
	return clamp(num / math.Sqrt(den))
}

// cosine returns 0 for an empty overlap or a zero vector.
func (m *moments) cosine() float64 {
	den := m.sumX2 * m.sumY2
	if !(den > 0) {
		return 0
	}
	return clamp(m.sumXY / math.Sqrt(den))
}

// clamp removes rounding residue outside [-1, 1]. Overflowed sums yield NaN,
// which is scored as 0.
func clamp(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return math.Max(-1, math.Min(1, x))
}
