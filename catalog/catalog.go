// Copyright 2026 gorse Project Authors
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

package catalog

import (
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"modernc.org/strutil"
)

// CategorySeparator separates multiple categories of an item, e.g. "Animation|Comedy".
const CategorySeparator = "|"

// Item is the descriptive record of an item. It never takes part in scoring.
type Item struct {
	ItemId   string
	Name     string
	Category string
}

// Genres splits the category of the item.
func (i Item) Genres() []string {
	if i.Category == "" {
		return nil
	}
	var genres []string
	for _, genre := range strings.Split(i.Category, CategorySeparator) {
		if genre = strings.TrimSpace(genre); genre != "" {
			genres = append(genres, genre)
		}
	}
	return genres
}

// Catalog maps item ids to items.
type Catalog struct {
	items      map[string]Item
	order      []string
	categories *strutil.Pool
}

func New() *Catalog {
	return &Catalog{
		items:      make(map[string]Item),
		categories: strutil.NewPool(),
	}
}

// Add inserts an item. A later item with the same id replaces the former one.
// Category strings are shared between items.
func (c *Catalog) Add(item Item) {
	item.Category = c.categories.Align(item.Category)
	if _, exist := c.items[item.ItemId]; !exist {
		c.order = append(c.order, item.ItemId)
	}
	c.items[item.ItemId] = item
}

func (c *Catalog) Len() int {
	return len(c.items)
}

func (c *Catalog) Lookup(itemId string) (Item, bool) {
	item, ok := c.items[itemId]
	return item, ok
}

// Items returns items in insertion order.
func (c *Catalog) Items() []Item {
	items := make([]Item, 0, len(c.order))
	for _, itemId := range c.order {
		items = append(items, c.items[itemId])
	}
	return items
}

// Categories returns the set of categories over all items.
func (c *Catalog) Categories() mapset.Set[string] {
	categories := mapset.NewThreadUnsafeSet[string]()
	for _, item := range c.items {
		categories.Append(item.Genres()...)
	}
	return categories
}
