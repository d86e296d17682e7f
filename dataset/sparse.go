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

package dataset

import (
	"slices"
	"sort"
)

// SparseVector is the data structure for the sparse vector. Indices are kept sorted
// once the vector is built.
type SparseVector struct {
	Indices []int32
	Values  []float64
}

// Len returns the number of items.
func (vec *SparseVector) Len() int {
	return len(vec.Values)
}

// Less returns true if the index of i-th item is less than the index of j-th item.
func (vec *SparseVector) Less(i, j int) bool {
	return vec.Indices[i] < vec.Indices[j]
}

// Swap two items.
func (vec *SparseVector) Swap(i, j int) {
	vec.Indices[i], vec.Indices[j] = vec.Indices[j], vec.Indices[i]
	vec.Values[i], vec.Values[j] = vec.Values[j], vec.Values[i]
}

// ForEach iterates items in the sparse vector.
func (vec *SparseVector) ForEach(f func(index int32, value float64)) {
	for i := range vec.Indices {
		f(vec.Indices[i], vec.Values[i])
	}
}

// Contains reports whether index is present.
func (vec *SparseVector) Contains(index int32) bool {
	_, found := slices.BinarySearch(vec.Indices, index)
	return found
}

// ForIntersection iterates items in the intersection of two vectors. Both vectors must be
// sorted by indices, then common indices are found in linear time.
func (vec *SparseVector) ForIntersection(other *SparseVector, f func(index int32, a, b float64)) {
	i, j := 0, 0
	for i < vec.Len() && j < other.Len() {
		if vec.Indices[i] == other.Indices[j] {
			f(vec.Indices[i], vec.Values[i], other.Values[j])
			i++
			j++
		} else if vec.Indices[i] < other.Indices[j] {
			i++
		} else {
			j++
		}
	}
}

func newSparseVector(m map[int32]float64) SparseVector {
	vec := SparseVector{
		Indices: make([]int32, 0, len(m)),
		Values:  make([]float64, 0, len(m)),
	}
	for index, value := range m {
		vec.Indices = append(vec.Indices, index)
		vec.Values = append(vec.Values, value)
	}
	sort.Sort(&vec)
	return vec
}
