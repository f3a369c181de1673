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

// The iteration methods below follow the range-over-func conventions, so
// they can be used directly in a range statement:
//
//	for k, v := range m.All {
//	  fmt.Printf("%v: %v\n", k, v)
//	}
//
// Iteration order is unspecified and changes when the map grows. Inserting
// into or removing from the map during iteration (other than through Drain
// itself) is not supported: the iteration will not panic, but may skip
// entries or yield removed ones.

// Seq is a sequence of key/value pairs. Map.All is a Seq.
type Seq[V any] func(yield func(key uint64, value V) bool)

// All calls yield sequentially for each key and value present in the map. If
// yield returns false, iteration stops.
func (m *Map[V]) All(yield func(key uint64, value V) bool) {
	buckets := m.buckets
	for i := range buckets {
		for _, p := range buckets[i].pairs() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// AllPtr is like All, but yields a pointer to each value which can be used to
// update the value in place.
func (m *Map[V]) AllPtr(yield func(key uint64, value *V) bool) {
	buckets := m.buckets
	for i := range buckets {
		pairs := buckets[i].pairs()
		for j := range pairs {
			if !yield(pairs[j].Key, &pairs[j].Value) {
				return
			}
		}
	}
}

// Keys calls yield sequentially for each key present in the map.
func (m *Map[V]) Keys(yield func(key uint64) bool) {
	m.All(func(key uint64, _ V) bool {
		return yield(key)
	})
}

// Values calls yield sequentially for each value present in the map.
func (m *Map[V]) Values(yield func(value V) bool) {
	m.All(func(_ uint64, value V) bool {
		return yield(value)
	})
}

// ValuesPtr calls yield sequentially with a pointer to each value present in
// the map.
func (m *Map[V]) ValuesPtr(yield func(value *V) bool) {
	m.AllPtr(func(_ uint64, value *V) bool {
		return yield(value)
	})
}

// Drain removes entries from the map one at a time and passes each to yield.
// Every entry is removed before it is yielded. If yield returns false,
// draining stops and the entries not yet yielded remain in the map, so a
// Drain that runs to completion leaves the map empty. The capacity of the map
// is retained.
func (m *Map[V]) Drain(yield func(key uint64, value V) bool) {
	defer m.checkInvariants()
	for i := 0; i < len(m.buckets); i++ {
		for m.buckets[i].Len() > 0 {
			p := m.buckets[i].pop()
			m.used--
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// Consume transfers ownership of every entry to yield and closes the map. If
// yield returns false, the remaining entries are discarded. The map must not
// be inserted into after Consume returns, as with Close.
func (m *Map[V]) Consume(yield func(key uint64, value V) bool) {
	buckets, allocator := m.buckets, m.allocator
	m.buckets = nil
	m.Close()

	defer func() {
		if allocator != nil && buckets != nil {
			allocator.Free(buckets)
		}
	}()
	for i := range buckets {
		for _, p := range buckets[i].pairs() {
			if !yield(p.Key, p.Value) {
				return
			}
		}
	}
}

// FromPairs constructs a Map holding pairs. When a key appears more than
// once the last pair for the key wins.
func FromPairs[V any](pairs []Pair[V], options ...option[V]) *Map[V] {
	m := New[V](len(pairs), options...)
	for i := range pairs {
		m.Insert(pairs[i].Key, pairs[i].Value)
	}
	return m
}

// FromSeq constructs a Map holding the pairs produced by seq. sizeHint is an
// estimate of the number of pairs seq produces and is used to size the map
// up front. When a key appears more than once the last pair for the key wins.
func FromSeq[V any](seq Seq[V], sizeHint int, options ...option[V]) *Map[V] {
	m := New[V](sizeHint, options...)
	seq(func(key uint64, value V) bool {
		m.Insert(key, value)
		return true
	})
	return m
}

// Extend inserts pairs into the map, overwriting existing values. When a key
// appears more than once the last pair for the key wins.
func (m *Map[V]) Extend(pairs []Pair[V]) {
	m.Reserve(extendHint(m, len(pairs)))
	for i := range pairs {
		m.Insert(pairs[i].Key, pairs[i].Value)
	}
}

// ExtendSeq inserts the pairs produced by seq into the map, overwriting
// existing values. sizeHint is an estimate of the number of pairs seq
// produces.
func (m *Map[V]) ExtendSeq(seq Seq[V], sizeHint int) {
	checkCapacityHint(sizeHint)
	m.Reserve(extendHint(m, sizeHint))
	seq(func(key uint64, value V) bool {
		m.Insert(key, value)
		return true
	})
}

// extendHint returns the number of additional entries to reserve before
// inserting n pairs. If the map already holds entries some of the pairs are
// likely updates, so only half of them are reserved for.
func extendHint[V any](m *Map[V], n int) int {
	if m.IsEmpty() {
		return n
	}
	return n/2 + n%2
}
