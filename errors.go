// Copyright 2024 The Cockroach Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package intmap

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var (
	// ErrCapacityOverflow is returned when the requested capacity cannot be
	// represented by a bucket array.
	ErrCapacityOverflow = errors.New("intmap: capacity overflow")

	// ErrAllocationFailed is returned when the Allocator fails to provide a
	// bucket array of the requested size. The Map is left unchanged.
	ErrAllocationFailed = errors.New("intmap: allocation failed")
)

func checkLoadFactor(loadFactor float64) {
	if !(loadFactor > 0) || math.IsInf(loadFactor, 1) {
		panic(fmt.Sprintf("intmap: load factor must be positive and finite, got %v", loadFactor))
	}
}

func checkCapacityHint(n int) {
	if n < 0 {
		panic(fmt.Sprintf("intmap: negative capacity %d", n))
	}
}

func capacityOverflow(count, additional int) error {
	return errors.Wrapf(ErrCapacityOverflow, "reserving %d elements on top of %d", additional, count)
}

func allocationFailed(buckets, got int) error {
	return errors.Wrapf(ErrAllocationFailed, "requested %d buckets, allocator returned %d", buckets, got)
}
