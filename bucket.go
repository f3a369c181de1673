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

import "unsafe"

// Pair holds a key and value.
type Pair[V any] struct {
	Key   uint64
	Value V
}

// Bucket holds the pairs whose keys map to one index of the bucket array.
//
// A Bucket is a small vector with an inline capacity of one pair. The common
// case of zero or one pair needs no allocation beyond the bucket array
// itself. The second pair to land in a bucket moves both pairs into a
// heap-allocated spill slice, and from then on every pair of the bucket lives
// in spill, even if the bucket later shrinks back to a single pair. The zero
// value is an empty bucket.
type Bucket[V any] struct {
	// inline holds the only pair of the bucket when spill is nil and full is
	// set.
	inline Pair[V]
	// spill is non-nil once the bucket has spilled. len(spill) is the
	// occupancy of the bucket in that state.
	spill []Pair[V]
	full  bool
}

// Len returns the number of pairs in the bucket.
func (b *Bucket[V]) Len() int {
	if b.spill != nil {
		return len(b.spill)
	}
	if b.full {
		return 1
	}
	return 0
}

// spilled returns true if the pairs of the bucket live in heap storage.
func (b *Bucket[V]) spilled() bool {
	return b.spill != nil
}

// pairs returns the pairs of the bucket. The returned slice aliases the
// bucket storage and is invalidated by any push or removal.
func (b *Bucket[V]) pairs() []Pair[V] {
	if b.spill != nil {
		return b.spill
	}
	if b.full {
		return unsafe.Slice(&b.inline, 1)
	}
	return nil
}

// at returns a pointer to the i'th pair of the bucket.
func (b *Bucket[V]) at(i int) *Pair[V] {
	if b.spill != nil {
		return &b.spill[i]
	}
	return &b.inline
}

// find returns the index of key within the bucket, or -1 if the bucket does
// not hold key.
func (b *Bucket[V]) find(key uint64) int {
	if b.spill == nil {
		if b.full && b.inline.Key == key {
			return 0
		}
		return -1
	}
	for i := range b.spill {
		if b.spill[i].Key == key {
			return i
		}
	}
	return -1
}

// push appends a pair known not to be in the bucket and returns its index.
func (b *Bucket[V]) push(key uint64, value V) int {
	if b.spill == nil {
		if !b.full {
			b.inline = Pair[V]{Key: key, Value: value}
			b.full = true
			return 0
		}
		spill := make([]Pair[V], 2, 4)
		spill[0] = b.inline
		spill[1] = Pair[V]{Key: key, Value: value}
		b.inline = Pair[V]{}
		b.full = false
		b.spill = spill
		return 1
	}
	b.spill = append(b.spill, Pair[V]{Key: key, Value: value})
	return len(b.spill) - 1
}

// swapRemove removes the i'th pair, moving the last pair of the bucket into
// its place, and returns the removed pair.
func (b *Bucket[V]) swapRemove(i int) Pair[V] {
	if b.spill == nil {
		p := b.inline
		b.inline = Pair[V]{}
		b.full = false
		return p
	}
	last := len(b.spill) - 1
	p := b.spill[i]
	b.spill[i] = b.spill[last]
	b.spill[last] = Pair[V]{}
	b.spill = b.spill[:last]
	return p
}

// pop removes and returns the last pair of the bucket, which must not be
// empty.
func (b *Bucket[V]) pop() Pair[V] {
	return b.swapRemove(b.Len() - 1)
}

// retain removes every pair for which keep returns false, preserving the
// relative order of the pairs that remain, and returns the number of pairs
// removed.
func (b *Bucket[V]) retain(keep func(key uint64, value *V) bool) int {
	if b.spill == nil {
		if b.full && !keep(b.inline.Key, &b.inline.Value) {
			b.inline = Pair[V]{}
			b.full = false
			return 1
		}
		return 0
	}
	n := 0
	for i := range b.spill {
		if keep(b.spill[i].Key, &b.spill[i].Value) {
			b.spill[n] = b.spill[i]
			n++
		}
	}
	removed := len(b.spill) - n
	clear(b.spill[n:])
	b.spill = b.spill[:n]
	return removed
}

// reset removes every pair from the bucket. A spilled bucket keeps its heap
// storage.
func (b *Bucket[V]) reset() {
	if b.spill != nil {
		clear(b.spill)
		b.spill = b.spill[:0]
		return
	}
	b.inline = Pair[V]{}
	b.full = false
}

// clone returns a deep copy of the bucket.
func (b *Bucket[V]) clone() Bucket[V] {
	c := *b
	if b.spill != nil {
		c.spill = make([]Pair[V], len(b.spill), cap(b.spill))
		copy(c.spill, b.spill)
	}
	return c
}
