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
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
	"github.com/zeebo/xxh3"
)

// option provide an interface to do work on Map while it is being created.
type option[V any] interface {
	apply(m *Map[V])
}

// Mixer scrambles a key before it is reduced to a bucket index. The bucket
// index is taken from the low bits of the mixed value, so a Mixer must
// propagate changes in any input bit to the low output bits. A Mixer must be
// deterministic.
type Mixer func(key uint64) uint64

// DefaultMixer is the 64-bit finalizer from MurmurHash3. It is a bijection,
// so distinct keys never produce the same mixed value, and every input bit
// affects every output bit.
func DefaultMixer(key uint64) uint64 {
	key ^= key >> 33
	key *= 0xff51afd7ed558ccd
	key ^= key >> 33
	key *= 0xc4ceb9fe1a85ec53
	key ^= key >> 33
	return key
}

// XXH3Mixer hashes the little-endian encoding of the key with XXH3.
func XXH3Mixer(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxh3.Hash(buf[:])
}

// XXHashMixer hashes the little-endian encoding of the key with XXH64.
func XXHashMixer(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return xxhash.Sum64(buf[:])
}

// Murmur3Mixer hashes the little-endian encoding of the key with the 64-bit
// variant of MurmurHash3.
func Murmur3Mixer(key uint64) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)
	return murmur3.Sum64(buf[:])
}

type mixerOption[V any] struct {
	mix Mixer
}

func (op mixerOption[V]) apply(m *Map[V]) {
	m.mix = op.mix
}

// WithMixer is an option to specify the function used to scramble keys
// before they are mapped to a bucket.
func WithMixer[V any](mix Mixer) option[V] {
	if mix == nil {
		panic("intmap: nil Mixer")
	}
	return mixerOption[V]{mix}
}

type loadFactorOption[V any] struct {
	loadFactor float64
}

func (op loadFactorOption[V]) apply(m *Map[V]) {
	m.loadFactor = op.loadFactor
}

// WithLoadFactor is an option to specify the initial load factor of a Map.
// See Map.SetLoadFactor.
func WithLoadFactor[V any](loadFactor float64) option[V] {
	checkLoadFactor(loadFactor)
	return loadFactorOption[V]{loadFactor}
}

// Allocator specifies an interface for allocating and releasing the bucket
// array used by a Map. The default allocator utilizes Go's builtin make() and
// allows the GC to reclaim memory.
//
// If the allocator is manually managing memory and requires that buckets be
// freed then Map.Close must be called in order to ensure Free is called.
type Allocator[V any] interface {
	// Alloc should return a slice equivalent to make([]Bucket[V], n). A slice
	// of any other length is treated as an allocation failure and leaves the
	// Map unchanged.
	Alloc(n int) []Bucket[V]

	// Free can optionally release the memory associated with the supplied
	// slice that is guaranteed to have been allocated by Alloc.
	Free(b []Bucket[V])
}

type defaultAllocator[V any] struct{}

func (defaultAllocator[V]) Alloc(n int) []Bucket[V] {
	return make([]Bucket[V], n)
}

func (defaultAllocator[V]) Free(_ []Bucket[V]) {
}

type allocatorOption[V any] struct {
	allocator Allocator[V]
}

func (op allocatorOption[V]) apply(m *Map[V]) {
	m.allocator = op.allocator
}

// WithAllocator is an option for specify the Allocator to use for a Map[V].
func WithAllocator[V any](allocator Allocator[V]) option[V] {
	return allocatorOption[V]{allocator}
}
