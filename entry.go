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

// Entry is a handle to the slot for a single key of a Map, which may be
// occupied or vacant. It is obtained from Map.Entry and lets the caller read,
// insert, update or remove the value for the key without looking the key up
// a second time.
//
// An Entry is only valid until the next operation that inserts into or
// removes from its Map, including operations performed through the Entry
// itself: Insert, Remove, OrInsert, OrInsertWith and OrDefault consume the
// Entry. Using an Entry after that is a programming error and its behavior is
// undefined.
type Entry[V any] struct {
	m   *Map[V]
	key uint64
	// bucket is the index of the bucket for key, or -1 if the map has no
	// buckets.
	bucket int
	// slot is the index of key within the bucket, or -1 if the entry is
	// vacant.
	slot int
}

// Entry resolves the bucket and slot for key and returns a handle to it.
func (m *Map[V]) Entry(key uint64) Entry[V] {
	e := Entry[V]{m: m, key: key, bucket: -1, slot: -1}
	if len(m.buckets) > 0 {
		e.bucket = m.bucketIndex(key)
		e.slot = m.buckets[e.bucket].find(key)
	}
	return e
}

// Key returns the key the entry is bound to.
func (e Entry[V]) Key() uint64 {
	return e.key
}

// Occupied returns true if the map holds a value for the key.
func (e Entry[V]) Occupied() bool {
	return e.slot >= 0
}

// Get returns the value for the key, or ok=false if the entry is vacant.
func (e Entry[V]) Get() (value V, ok bool) {
	if e.slot < 0 {
		return value, false
	}
	return e.pair().Value, true
}

// Ptr returns a pointer to the value for the key, or nil if the entry is
// vacant.
func (e Entry[V]) Ptr() *V {
	if e.slot < 0 {
		return nil
	}
	return &e.pair().Value
}

// Insert stores value for the key, returning the previous value if the entry
// was occupied.
func (e Entry[V]) Insert(value V) (prev V, ok bool) {
	if e.slot >= 0 {
		p := e.pair()
		prev, p.Value = p.Value, value
		return prev, true
	}
	e.m.insertAt(e.bucket, e.key, value)
	return prev, false
}

// Remove removes the key from the map, returning its value if the entry was
// occupied.
func (e Entry[V]) Remove() (value V, ok bool) {
	if e.slot < 0 {
		return value, false
	}
	p := e.m.buckets[e.bucket].swapRemove(e.slot)
	e.m.used--
	e.m.checkInvariants()
	return p.Value, true
}

// OrInsert returns a pointer to the value for the key, first storing value if
// the entry is vacant.
func (e Entry[V]) OrInsert(value V) *V {
	if e.slot >= 0 {
		return &e.pair().Value
	}
	return e.m.insertAt(e.bucket, e.key, value)
}

// OrInsertWith is like OrInsert, but only calls fn to produce the value when
// the entry is vacant.
func (e Entry[V]) OrInsertWith(fn func() V) *V {
	if e.slot >= 0 {
		return &e.pair().Value
	}
	return e.m.insertAt(e.bucket, e.key, fn())
}

// OrDefault is like OrInsert with the zero value of V.
func (e Entry[V]) OrDefault() *V {
	var zero V
	return e.OrInsert(zero)
}

// AndModify calls fn with a pointer to the value if the entry is occupied,
// and returns the entry for further chaining.
func (e Entry[V]) AndModify(fn func(value *V)) Entry[V] {
	if e.slot >= 0 {
		fn(&e.pair().Value)
	}
	return e
}

func (e Entry[V]) pair() *Pair[V] {
	return e.m.buckets[e.bucket].at(e.slot)
}
