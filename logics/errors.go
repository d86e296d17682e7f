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

import "github.com/juju/errors"

const (
	// ErrUnknownUser means the query user has no ratings in the dataset.
	ErrUnknownUser = errors.ConstError("unknown user")
	// ErrEmptyNeighborSet means no other user could be compared with the query user.
	ErrEmptyNeighborSet = errors.ConstError("empty neighbor set")
	// ErrDegenerateWeights means the similarities of the selected neighbors sum to zero.
	ErrDegenerateWeights = errors.ConstError("degenerate neighbor weights")
)
