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
	"math"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObservation(t *testing.T) {
	o, err := ParseObservation([]string{"1", "1193", "5", "978300760"})
	assert.NoError(t, err)
	assert.Equal(t, "1", o.UserId)
	assert.Equal(t, "1193", o.ItemId)
	assert.Equal(t, 5.0, o.Rating)
	assert.Equal(t, time.Unix(978300760, 0).UTC(), o.Timestamp.UTC())

	o, err = ParseObservation([]string{" 2052828 ", "0439023483", "4.5"})
	assert.NoError(t, err)
	assert.Equal(t, "2052828", o.UserId)
	assert.Equal(t, 4.5, o.Rating)
	assert.True(t, o.Timestamp.IsZero())

	_, err = ParseObservation([]string{"1", "2"})
	assert.True(t, errors.Is(err, ErrMalformedObservation))
	_, err = ParseObservation([]string{"1", "2", "high"})
	assert.True(t, errors.Is(err, ErrMalformedObservation))
	_, err = ParseObservation([]string{"", "2", "3"})
	assert.True(t, errors.Is(err, ErrMalformedObservation))
	_, err = ParseObservation([]string{"1", "2", "3", "yesterday-ish"})
	assert.True(t, errors.Is(err, ErrMalformedObservation))
	o, err = ParseObservation([]string{"1", "2", "3", "2017-04-13 10:00:00"})
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2017, 4, 13, 10, 0, 0, 0, time.UTC), o.Timestamp)
	_, err = ParseObservation([]string{"1", "2", "NaN"})
	assert.True(t, errors.Is(err, ErrMalformedObservation))
}

func TestBuild(t *testing.T) {
	d, err := Build([]Observation{
		{UserId: "u1", ItemId: "i1", Rating: 5},
		{UserId: "u1", ItemId: "i2", Rating: 3},
		{UserId: "u2", ItemId: "i1", Rating: 4},
		{UserId: "u2", ItemId: "i3", Rating: 2},
		{UserId: "u3", ItemId: "i2", Rating: 1},
		{UserId: "u1", ItemId: "i2", Rating: 4, Timestamp: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, d.CountUsers())
	assert.Equal(t, 3, d.CountItems())
	assert.Equal(t, 5, d.CountRatings())
	assert.Equal(t, []string{"u1", "u2", "u3"}, d.UserIds())
	assert.Equal(t, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), d.Timestamp())

	// last write wins
	ratings, ok := d.UserRatings("u1")
	assert.True(t, ok)
	assert.Equal(t, map[string]float64{"i1": 5, "i2": 4}, ratings)
	_, ok = d.UserRatings("u9")
	assert.False(t, ok)

	// item-user index is consistent with the rating matrix
	itemUsers := make(map[string][]string)
	for itemIndex := int32(0); itemIndex < int32(d.CountItems()); itemIndex++ {
		itemId := d.ItemId(itemIndex)
		users := d.ItemUsers(itemIndex)
		for _, userIndex := range users {
			assert.True(t, d.Rated(d.UserId(userIndex), itemId))
		}
		itemUsers[itemId] = lookupUsers(d, users)
	}
	assert.Equal(t, map[string][]string{
		"i1": {"u1", "u2"},
		"i2": {"u1", "u3"},
		"i3": {"u2"},
	}, itemUsers)

	assert.Equal(t, 2, d.CountUserRatings("u1"))
	assert.Equal(t, 1, d.CountUserRatings("u3"))
	assert.Zero(t, d.CountUserRatings("u9"))
	assert.True(t, d.HasUser("u2"))
	assert.False(t, d.HasUser("u4"))
	assert.False(t, d.Rated("u2", "i2"))
	assert.False(t, d.Rated("u2", "i9"))

	assert.Equal(t, []Observation{
		{UserId: "u1", ItemId: "i1", Rating: 5},
		{UserId: "u1", ItemId: "i2", Rating: 4},
		{UserId: "u2", ItemId: "i1", Rating: 4},
		{UserId: "u2", ItemId: "i3", Rating: 2},
		{UserId: "u3", ItemId: "i2", Rating: 1},
	}, d.Observations())
}

func TestBuildMalformed(t *testing.T) {
	_, err := Build([]Observation{
		{UserId: "u1", ItemId: "i1", Rating: 5},
		{UserId: "u1", ItemId: "", Rating: 5},
	})
	assert.True(t, errors.Is(err, ErrMalformedObservation))
	_, err = Build([]Observation{{UserId: "u1", ItemId: "i1", Rating: math.Inf(1)}})
	assert.True(t, errors.Is(err, ErrMalformedObservation))
}

func TestBuilderFrozen(t *testing.T) {
	b := NewBuilder()
	assert.NoError(t, b.Add(Observation{UserId: "u1", ItemId: "i1", Rating: 1}))
	d := b.Build()
	assert.Error(t, b.Add(Observation{UserId: "u2", ItemId: "i1", Rating: 1}))
	assert.Equal(t, 1, d.CountUsers())
	// building again returns the same dataset
	again := b.Build()
	assert.Same(t, d, again)
	assert.Equal(t, 1, again.CountRatings())
	assert.Equal(t, 1, again.UserVector(0).Len())
}

func lookupUsers(d *Dataset, indices []int32) []string {
	users := make([]string, len(indices))
	for i, index := range indices {
		users[i] = d.UserId(index)
	}
	return users
}
