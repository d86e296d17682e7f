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
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/gorse-io/knn/common/util"
	"github.com/juju/errors"
)

// ErrMalformedObservation is returned for rows that do not decompose into (user, item, rating).
const ErrMalformedObservation = errors.ConstError("malformed observation")

// Observation is a raw rating of an item by a user.
type Observation struct {
	UserId    string
	ItemId    string
	Rating    float64
	Timestamp time.Time
}

// ParseObservation decomposes a positional row (user, item, rating[, timestamp]).
func ParseObservation(fields []string) (Observation, error) {
	if len(fields) < 3 {
		return Observation{}, errors.Annotatef(ErrMalformedObservation, "expect at least 3 fields, got %d", len(fields))
	}
	rating, err := util.ParseFloat[float64](fields[2])
	if err != nil {
		return Observation{}, errors.Annotatef(ErrMalformedObservation, "invalid rating %q", fields[2])
	}
	o := Observation{
		UserId: strings.TrimSpace(fields[0]),
		ItemId: strings.TrimSpace(fields[1]),
		Rating: rating,
	}
	if len(fields) > 3 && strings.TrimSpace(fields[3]) != "" {
		if o.Timestamp, err = parseTimestamp(strings.TrimSpace(fields[3])); err != nil {
			return Observation{}, errors.Annotatef(ErrMalformedObservation, "invalid timestamp %q", fields[3])
		}
	}
	return o, o.Validate()
}

// parseTimestamp accepts unix seconds (MovieLens) or any layout known to dateparse.
func parseTimestamp(s string) (time.Time, error) {
	if seconds, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(seconds, 0).UTC(), nil
	}
	return dateparse.ParseIn(s, time.UTC)
}

// Validate checks that the observation has both IDs and a finite rating.
func (o Observation) Validate() error {
	if o.UserId == "" {
		return errors.Annotate(ErrMalformedObservation, "empty user id")
	}
	if o.ItemId == "" {
		return errors.Annotate(ErrMalformedObservation, "empty item id")
	}
	if math.IsNaN(o.Rating) || math.IsInf(o.Rating, 0) {
		return errors.Annotatef(ErrMalformedObservation, "rating %v is not finite", o.Rating)
	}
	return nil
}

// Builder collects observations into a Dataset. It is not safe for concurrent use.
type Builder struct {
	userDict  *FreqDict
	itemDict  *FreqDict
	ratings   []map[int32]float64
	itemUsers [][]int32
	timestamp time.Time
	dataset   *Dataset
}

func NewBuilder() *Builder {
	return &Builder{
		userDict: NewFreqDict(),
		itemDict: NewFreqDict(),
	}
}

// Add inserts an observation. A later rating for the same (user, item) overwrites the
// earlier one.
func (b *Builder) Add(o Observation) error {
	if b.dataset != nil {
		return errors.New("dataset builder is frozen")
	}
	if err := o.Validate(); err != nil {
		return err
	}
	userIndex := int32(b.userDict.NotCount(o.UserId))
	itemIndex := int32(b.itemDict.NotCount(o.ItemId))
	if int(userIndex) == len(b.ratings) {
		b.ratings = append(b.ratings, make(map[int32]float64))
	}
	if int(itemIndex) == len(b.itemUsers) {
		b.itemUsers = append(b.itemUsers, nil)
	}
	if _, exist := b.ratings[userIndex][itemIndex]; !exist {
		b.userDict.Inc(int(userIndex))
		b.itemDict.Inc(int(itemIndex))
		b.itemUsers[itemIndex] = append(b.itemUsers[itemIndex], userIndex)
	}
	b.ratings[userIndex][itemIndex] = o.Rating
	if o.Timestamp.After(b.timestamp) {
		b.timestamp = o.Timestamp
	}
	return nil
}

// AddAll inserts observations in order and stops at the first malformed one.
func (b *Builder) AddAll(observations []Observation) error {
	for i, o := range observations {
		if err := b.Add(o); err != nil {
			return errors.Annotatef(err, "observation %d", i)
		}
	}
	return nil
}

// Build freezes the builder and returns the immutable dataset. Later calls return
// the same dataset.
func (b *Builder) Build() *Dataset {
	if b.dataset != nil {
		return b.dataset
	}
	d := &Dataset{
		timestamp:   b.timestamp,
		userDict:    b.userDict,
		itemDict:    b.itemDict,
		userRatings: make([]SparseVector, len(b.ratings)),
		itemUsers:   b.itemUsers,
	}
	for i, m := range b.ratings {
		d.userRatings[i] = newSparseVector(m)
		d.numRatings += len(m)
	}
	b.ratings = nil
	b.dataset = d
	return d
}

// Build constructs a dataset from observations.
func Build(observations []Observation) (*Dataset, error) {
	b := NewBuilder()
	if err := b.AddAll(observations); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// Dataset is the user-item rating matrix together with the item-user index. It is
// read-only once built and can be shared between goroutines.
type Dataset struct {
	timestamp   time.Time
	userDict    *FreqDict
	itemDict    *FreqDict
	userRatings []SparseVector
	itemUsers   [][]int32
	numRatings  int
}

// Timestamp returns the latest observation timestamp, zero if none was given.
func (d *Dataset) Timestamp() time.Time {
	return d.timestamp
}

func (d *Dataset) CountUsers() int {
	return d.userDict.Count()
}

func (d *Dataset) CountItems() int {
	return d.itemDict.Count()
}

func (d *Dataset) CountRatings() int {
	return d.numRatings
}

// UserIds returns user IDs in first-seen order.
func (d *Dataset) UserIds() []string {
	ids := make([]string, d.userDict.Count())
	for i := range ids {
		ids[i], _ = d.userDict.String(i)
	}
	return ids
}

// CountUserRatings returns the number of items rated by a user.
func (d *Dataset) CountUserRatings(userId string) int {
	i, ok := d.userDict.Lookup(userId)
	if !ok {
		return 0
	}
	return d.userDict.Freq(i)
}

func (d *Dataset) HasUser(userId string) bool {
	_, ok := d.userDict.Lookup(userId)
	return ok
}

func (d *Dataset) UserIndex(userId string) (int32, bool) {
	i, ok := d.userDict.Lookup(userId)
	return int32(i), ok
}

func (d *Dataset) UserId(userIndex int32) string {
	s, _ := d.userDict.String(int(userIndex))
	return s
}

func (d *Dataset) ItemId(itemIndex int32) string {
	s, _ := d.itemDict.String(int(itemIndex))
	return s
}

// UserVector returns the ratings of a user sorted by item index. Callers must not modify it.
func (d *Dataset) UserVector(userIndex int32) *SparseVector {
	return &d.userRatings[userIndex]
}

// ItemUsers returns users who rated the item, in the order they first rated it. Callers
// must not modify it.
func (d *Dataset) ItemUsers(itemIndex int32) []int32 {
	return d.itemUsers[itemIndex]
}

// UserRatings returns a copy of the ratings of a user keyed by item ID.
func (d *Dataset) UserRatings(userId string) (map[string]float64, bool) {
	i, ok := d.userDict.Lookup(userId)
	if !ok {
		return nil, false
	}
	vec := &d.userRatings[i]
	ratings := make(map[string]float64, vec.Len())
	vec.ForEach(func(index int32, value float64) {
		ratings[d.ItemId(index)] = value
	})
	return ratings, true
}

// Rated reports whether the user rated the item.
func (d *Dataset) Rated(userId, itemId string) bool {
	u, ok := d.userDict.Lookup(userId)
	if !ok {
		return false
	}
	i, ok := d.itemDict.Lookup(itemId)
	if !ok {
		return false
	}
	return d.userRatings[u].Contains(int32(i))
}

// Observations lists ratings grouped by user. Users are in first-seen order and
// items of a user in index order. Timestamps are not retained.
func (d *Dataset) Observations() []Observation {
	observations := make([]Observation, 0, d.numRatings)
	for u := range d.userRatings {
		userId := d.UserId(int32(u))
		d.userRatings[u].ForEach(func(index int32, value float64) {
			observations = append(observations, Observation{
				UserId: userId,
				ItemId: d.ItemId(index),
				Rating: value,
			})
		})
	}
	return observations
}
