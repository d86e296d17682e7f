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
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/gorse-io/knn/common/log"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

// Filter is a compiled boolean expression over an item, e.g.
//
//	item.Category contains "Comedy"
type Filter struct {
	expression string
	program    *vm.Program
	catalog    *Catalog
}

// NewFilter compiles the expression. Items missing from the catalog are
// evaluated as an empty item carrying only the id.
func NewFilter(catalog *Catalog, expression string) (*Filter, error) {
	program, err := expr.Compile(expression, expr.Env(map[string]any{
		"item": Item{},
	}), expr.AsBool())
	if err != nil {
		return nil, errors.NewNotValid(err, "invalid filter "+expression)
	}
	if catalog == nil {
		catalog = New()
	}
	return &Filter{expression: expression, program: program, catalog: catalog}, nil
}

func (f *Filter) String() string {
	return f.expression
}

// Match evaluates the filter against an item.
func (f *Filter) Match(itemId string) (bool, error) {
	item, ok := f.catalog.Lookup(itemId)
	if !ok {
		item = Item{ItemId: itemId}
	}
	result, err := expr.Run(f.program, map[string]any{
		"item": item,
	})
	if err != nil {
		return false, errors.Annotatef(err, "evaluate filter on item %s", itemId)
	}
	return result.(bool), nil
}

// Func adapts the filter to a predicate. Evaluation errors reject the item.
func (f *Filter) Func() func(itemId string) bool {
	return func(itemId string) bool {
		ok, err := f.Match(itemId)
		if err != nil {
			log.Logger().Warn("failed to evaluate filter",
				zap.String("filter", f.expression), zap.Error(err))
			return false
		}
		return ok
	}
}
