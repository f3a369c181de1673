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

// Package intmap is a hash map specialized for uint64 keys. It is meant for
// keys that are handles, identifiers, or offsets: small, dense, or otherwise
// numeric values for which a general purpose map[K]V pays for hashing
// machinery it does not need.
//
// # Layout
//
// A Map is an array of buckets whose length is a power of two. Collisions are
// handled by chaining within the bucket rather than by open addressing. Each
// bucket is a small vector with room for a single pair inline. At sensible
// load factors most buckets hold zero or one pair, so the common case costs
// one mixing step, one mask, and one key comparison, with no pointer chasing.
// When a second key lands in a bucket the bucket spills its pairs into a
// slice allocated on the heap:
//
//	 buckets (len=4)
//	+---+
//	| 0 | --> [k=12 v=a]                      (inline)
//	+---+
//	| 1 | --> []                              (empty)
//	+---+
//	| 2 | --> spill: [k=7 v=b] [k=30 v=c]     (spilled)
//	+---+
//	| 3 | --> [k=5 v=d]                       (inline)
//	+---+
//
// # Mapping keys to buckets
//
// The bucket index of a key is mix(key) & (len(buckets)-1). The mask keeps
// only the low bits of the mixed value, so the mixer must move entropy from
// every input bit into the low bits. Identity hashing would send keys that
// differ only in their high bits to the same bucket, and keys that are
// multiples of the bucket count to bucket 0. DefaultMixer is the MurmurHash3
// finalizer, which is cheap and a bijection on uint64. Alternative mixers can
// be configured with WithMixer.
//
// # Growth
//
// The Map tracks the number of pairs it holds and a load factor. Before a new
// key is inserted, the Map grows if (len+1)/buckets would exceed the load
// factor. Growth doubles the bucket array (or more, if a larger reservation
// was requested) and rehashes every pair into a freshly allocated array. The
// new array is built completely before it replaces the old one, so a failed
// allocation leaves the Map as it was. The bucket array never shrinks,
// neither on Remove nor on Clear.
//
// The load factor is not bounded by 1. A load factor above 1 trades longer
// buckets for a smaller bucket array.
package intmap

import (
	"fmt"
	"math"
	"math/bits"
	"slices"
	"strings"
	"unsafe"
)

const (
	debug = false

	// minBuckets is the length of the bucket array allocated by the first
	// growth of an empty Map.
	minBuckets = 4

	// defaultLoadFactor is the load factor of a Map unless WithLoadFactor or
	// SetLoadFactor specify otherwise.
	defaultLoadFactor = 0.909
)

// Map is an unordered map from uint64 keys to values of type V.
//
// A Map is NOT goroutine-safe. Pointers returned by GetPtr, AllPtr,
// ValuesPtr and Entry are valid until the next operation that inserts or
// removes a key.
type Map[V any] struct {
	// The function used to scramble keys before they are masked down to a
	// bucket index.
	mix Mixer
	// The allocator to use for the bucket array.
	allocator Allocator[V]
	// buckets is either empty or a power of two in length.
	buckets []Bucket[V]
	// mask is len(buckets)-1, or 0 when there are no buckets.
	mask uint64
	// The number of pairs across all buckets.
	used       int
	loadFactor float64
}

// New constructs a new Map with room for initialCapacity elements before
// the first growth. If initialCapacity is 0 the map will start out with zero
// capacity and will grow on the first insert.
func New[V any](initialCapacity int, options ...option[V]) *Map[V] {
	m := &Map[V]{}
	m.Init(initialCapacity, options...)
	return m
}

// Init initializes a Map with the specified initial capacity. Init can be
// called on the zero value of Map, or to reuse a previously used Map. Any
// previous contents are released.
func (m *Map[V]) Init(initialCapacity int, options ...option[V]) {
	checkCapacityHint(initialCapacity)
	if m.allocator != nil && m.buckets != nil {
		m.allocator.Free(m.buckets)
	}
	*m = Map[V]{
		mix:        DefaultMixer,
		allocator:  defaultAllocator[V]{},
		loadFactor: defaultLoadFactor,
	}

	for _, op := range options {
		op.apply(m)
	}

	m.Reserve(initialCapacity)
	m.checkInvariants()
}

// Close closes the map, releasing any memory back to its configured
// allocator. It is unnecessary to close a map using the default allocator. It
// is invalid to insert into a Map after it has been closed, though Close
// itself is idempotent.
func (m *Map[V]) Close() {
	if m.allocator != nil && m.buckets != nil {
		m.allocator.Free(m.buckets)
	}
	m.buckets = nil
	m.mask = 0
	m.used = 0
	m.allocator = nil
}

// SetLoadFactor sets the maximum ratio of elements to buckets. Any positive
// value is accepted: values below 1 keep buckets sparse, values above 1 allow
// longer buckets in exchange for a smaller bucket array. If the Map already
// holds more elements than the new load factor allows it is grown
// immediately. SetLoadFactor panics if loadFactor is not positive.
func (m *Map[V]) SetLoadFactor(loadFactor float64) {
	checkLoadFactor(loadFactor)
	m.loadFactor = loadFactor
	m.Reserve(0)
}

// LoadFactor returns the maximum ratio of elements to buckets.
func (m *Map[V]) LoadFactor() float64 {
	return m.loadFactor
}

// Reserve ensures that additional elements can be inserted without growing
// the Map. Reserve never shrinks the Map. It panics if additional is negative
// or the required capacity cannot be allocated.
func (m *Map[V]) Reserve(additional int) {
	if err := m.TryReserve(additional); err != nil {
		panic(err)
	}
}

// TryReserve is like Reserve, but reports a capacity overflow or allocation
// failure as an error instead of panicking. On error the Map is unchanged.
func (m *Map[V]) TryReserve(additional int) error {
	checkCapacityHint(additional)
	if additional > math.MaxInt-m.used {
		return capacityOverflow(m.used, additional)
	}
	target := m.used + additional
	if !m.exceeds(target) {
		return nil
	}
	n, err := m.bucketsFor(target)
	if err != nil {
		return capacityOverflow(m.used, additional)
	}
	return m.resize(n)
}

// exceeds returns true if holding count elements requires a larger bucket
// array than the current one.
func (m *Map[V]) exceeds(count int) bool {
	if len(m.buckets) == 0 {
		return count > 0
	}
	return float64(count) > m.loadFactor*float64(len(m.buckets))
}

// bucketsFor returns the smallest power of two, no smaller than the current
// bucket array, for which count elements do not exceed the load factor.
func (m *Map[V]) bucketsFor(count int) (int, error) {
	limit := maxBuckets[V]()
	n := max(len(m.buckets), minBuckets)
	for float64(count) > m.loadFactor*float64(n) {
		if n >= limit {
			return 0, ErrCapacityOverflow
		}
		n <<= 1
	}
	return n, nil
}

// maxBuckets returns the largest power of two length of a []Bucket[V] whose
// size in bytes fits in an int.
func maxBuckets[V any]() int {
	var b Bucket[V]
	n := uint(math.MaxInt) / uint(unsafe.Sizeof(b))
	return 1 << (bits.Len(n) - 1)
}

// resize allocates a bucket array of length n and rehashes every pair into
// it. The new array replaces the old one only once it is fully populated.
func (m *Map[V]) resize(n int) error {
	if m.allocator == nil {
		panic("intmap: use of uninitialized or closed Map")
	}
	buckets := m.allocator.Alloc(n)
	if len(buckets) != n {
		return allocationFailed(n, len(buckets))
	}
	mask := uint64(n - 1)

	if debug {
		fmt.Printf("resize: buckets=%d->%d used=%d load-factor=%.3f\n",
			len(m.buckets), n, m.used, m.loadFactor)
	}

	for i := range m.buckets {
		for _, p := range m.buckets[i].pairs() {
			buckets[m.mix(p.Key)&mask].push(p.Key, p.Value)
		}
	}

	old := m.buckets
	m.buckets = buckets
	m.mask = mask
	if old != nil {
		m.allocator.Free(old)
	}
	m.checkInvariants()
	return nil
}

// bucketIndex returns the index of the bucket for key. The Map must have
// at least one bucket.
func (m *Map[V]) bucketIndex(key uint64) int {
	return int(m.mix(key) & m.mask)
}

// lookup returns the bucket and slot holding key, or (nil, -1) if key is not
// present.
func (m *Map[V]) lookup(key uint64) (*Bucket[V], int) {
	if len(m.buckets) == 0 {
		return nil, -1
	}
	b := &m.buckets[m.bucketIndex(key)]
	i := b.find(key)
	if debug {
		fmt.Printf("lookup(%d): bucket=%d len=%d slot=%d\n", key, m.bucketIndex(key), b.Len(), i)
	}
	if i < 0 {
		return nil, -1
	}
	return b, i
}

// insertAt inserts a key known not to be in the map. bucket is the index of
// the bucket for key under the current bucket array, or -1 if it has not been
// resolved. insertAt grows the map first if needed, and returns a pointer to
// the stored value.
func (m *Map[V]) insertAt(bucket int, key uint64, value V) *V {
	if m.exceeds(m.used + 1) {
		m.Reserve(1)
		bucket = -1
	}
	if bucket < 0 {
		bucket = m.bucketIndex(key)
	}
	b := &m.buckets[bucket]
	i := b.push(key, value)
	m.used++
	if debug {
		fmt.Printf("insert(%d): bucket=%d slot=%d used=%d\n", key, bucket, i, m.used)
	}
	m.checkInvariants()
	return &b.at(i).Value
}

// Insert inserts an entry into the map, overwriting an existing value if an
// entry with the same key already exists. It returns the previous value and
// true if the key was present.
func (m *Map[V]) Insert(key uint64, value V) (prev V, ok bool) {
	if b, i := m.lookup(key); i >= 0 {
		p := b.at(i)
		prev, p.Value = p.Value, value
		return prev, true
	}
	m.insertAt(-1, key, value)
	return prev, false
}

// InsertChecked inserts an entry into the map only if the key is not already
// present. An existing value is never overwritten. It returns true if the
// value was stored.
func (m *Map[V]) InsertChecked(key uint64, value V) bool {
	if _, i := m.lookup(key); i >= 0 {
		return false
	}
	m.insertAt(-1, key, value)
	return true
}

// Get retrieves the value from the map for the specified key, return ok=false
// if the key is not present.
func (m *Map[V]) Get(key uint64) (value V, ok bool) {
	if b, i := m.lookup(key); i >= 0 {
		return b.at(i).Value, true
	}
	return value, false
}

// GetPtr returns a pointer to the value for the specified key, or nil if the
// key is not present. The value can be modified in place through the
// pointer.
func (m *Map[V]) GetPtr(key uint64) *V {
	if b, i := m.lookup(key); i >= 0 {
		return &b.at(i).Value
	}
	return nil
}

// Contains returns true if the key is present in the map.
func (m *Map[V]) Contains(key uint64) bool {
	_, i := m.lookup(key)
	return i >= 0
}

// Remove removes the entry corresponding to the specified key from the map
// and returns its value. It returns ok=false if the key is not present. The
// capacity of the map is unchanged.
func (m *Map[V]) Remove(key uint64) (value V, ok bool) {
	b, i := m.lookup(key)
	if i < 0 {
		return value, false
	}
	p := b.swapRemove(i)
	m.used--
	m.checkInvariants()
	return p.Value, true
}

// Clear removes all entries from the map. The capacity of the map is
// retained.
func (m *Map[V]) Clear() {
	for i := range m.buckets {
		m.buckets[i].reset()
	}
	m.used = 0
	m.checkInvariants()
}

// Retain removes every entry for which keep returns false.
func (m *Map[V]) Retain(keep func(key uint64, value V) bool) {
	m.retain(func(key uint64, value *V) bool {
		return keep(key, *value)
	})
}

// RetainPtr is like Retain, but passes keep a pointer to each value so that
// retained values can be updated in the same pass.
func (m *Map[V]) RetainPtr(keep func(key uint64, value *V) bool) {
	m.retain(keep)
}

func (m *Map[V]) retain(keep func(key uint64, value *V) bool) {
	for i := range m.buckets {
		m.used -= m.buckets[i].retain(keep)
	}
	m.checkInvariants()
}

// Len returns the number of entries in the map.
func (m *Map[V]) Len() int {
	return m.used
}

// IsEmpty returns true if the map holds no entries.
func (m *Map[V]) IsEmpty() bool {
	return m.used == 0
}

// Load returns the number of entries in the map. It is the numerator of
// LoadRate.
func (m *Map[V]) Load() int {
	return m.used
}

// LoadRate returns the ratio of entries to buckets. A map without buckets
// has a load rate of 0.
func (m *Map[V]) LoadRate() float64 {
	if len(m.buckets) == 0 {
		return 0
	}
	return float64(m.used) / float64(len(m.buckets))
}

// Capacity returns the number of buckets.
func (m *Map[V]) Capacity() int {
	return len(m.buckets)
}

// Collisions returns the number of buckets holding more than one entry. It
// scans every bucket.
func (m *Map[V]) Collisions() int {
	var n int
	for i := range m.buckets {
		if m.buckets[i].Len() > 1 {
			n++
		}
	}
	return n
}

// MaxBucketLen returns the number of entries in the fullest bucket.
func (m *Map[V]) MaxBucketLen() int {
	var n int
	for i := range m.buckets {
		n = max(n, m.buckets[i].Len())
	}
	return n
}

// Clone returns a deep copy of the map. The clone shares nothing with m and
// uses the same mixer, allocator and load factor.
func (m *Map[V]) Clone() *Map[V] {
	c := &Map[V]{
		mix:        m.mix,
		allocator:  m.allocator,
		mask:       m.mask,
		used:       m.used,
		loadFactor: m.loadFactor,
	}
	if len(m.buckets) > 0 {
		c.buckets = c.allocator.Alloc(len(m.buckets))
		if len(c.buckets) != len(m.buckets) {
			panic(allocationFailed(len(m.buckets), len(c.buckets)))
		}
		for i := range m.buckets {
			c.buckets[i] = m.buckets[i].clone()
		}
	}
	c.checkInvariants()
	return c
}

// String renders the entries of the map in ascending key order, in the same
// format fmt uses for a builtin map.
func (m *Map[V]) String() string {
	pairs := make([]Pair[V], 0, m.used)
	for i := range m.buckets {
		pairs = append(pairs, m.buckets[i].pairs()...)
	}
	slices.SortFunc(pairs, func(a, b Pair[V]) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})

	var buf strings.Builder
	buf.WriteString("map[")
	for i := range pairs {
		if i > 0 {
			buf.WriteByte(' ')
		}
		fmt.Fprintf(&buf, "%d:%v", pairs[i].Key, pairs[i].Value)
	}
	buf.WriteByte(']')
	return buf.String()
}

func (m *Map[V]) checkInvariants() {
	if invariants {
		n := len(m.buckets)
		if n > 0 {
			if n < minBuckets || n&(n-1) != 0 {
				panic(fmt.Sprintf("invariant failed: bucket count %d is not a power of two >= %d\n%s",
					n, minBuckets, m.debugString()))
			}
			if m.mask != uint64(n-1) {
				panic(fmt.Sprintf("invariant failed: mask %d does not match bucket count %d\n%s",
					m.mask, n, m.debugString()))
			}
		}

		var used int
		for i := range m.buckets {
			pairs := m.buckets[i].pairs()
			for j := range pairs {
				key := pairs[j].Key
				if b := m.bucketIndex(key); b != i {
					panic(fmt.Sprintf("invariant failed: key %d found in bucket %d, but maps to bucket %d\n%s",
						key, i, b, m.debugString()))
				}
				for k := j + 1; k < len(pairs); k++ {
					if pairs[k].Key == key {
						panic(fmt.Sprintf("invariant failed: key %d duplicated in bucket %d\n%s",
							key, i, m.debugString()))
					}
				}
			}
			used += len(pairs)
		}

		if used != m.used {
			panic(fmt.Sprintf("invariant failed: found %d entries, but used count is %d\n%s",
				used, m.used, m.debugString()))
		}
	}
}

func (m *Map[V]) debugString() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "buckets=%d  used=%d  load-factor=%.3f\n", len(m.buckets), m.used, m.loadFactor)
	for i := range m.buckets {
		b := &m.buckets[i]
		switch {
		case b.Len() == 0:
			fmt.Fprintf(&buf, "  %4d: empty\n", i)
		case b.spilled():
			fmt.Fprintf(&buf, "  %4d: spilled %v\n", i, b.pairs())
		default:
			fmt.Fprintf(&buf, "  %4d: %v\n", i, b.pairs())
		}
	}
	return buf.String()
}
