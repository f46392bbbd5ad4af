// Copyright 2025 go-highway Authors
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

package vector

import "sync"

// Interner hash-conses structurally equal nodes so that callers can
// share sub-trees by reference. It is safe for concurrent use.
type Interner struct {
	mu      sync.Mutex
	buckets map[uint64][]Node
}

// NewInterner returns an empty Interner.
func NewInterner() *Interner {
	return &Interner{buckets: make(map[uint64][]Node)}
}

// Intern returns the first interned node equal to n, or stores and
// returns n.
func (in *Interner) Intern(n Node) Node {
	h := n.Hash()
	in.mu.Lock()
	defer in.mu.Unlock()
	for _, m := range in.buckets[h] {
		if m.Equal(n) {
			return m
		}
	}
	in.buckets[h] = append(in.buckets[h], n)
	return n
}

// Len returns the number of distinct nodes interned.
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, b := range in.buckets {
		n += len(b)
	}
	return n
}
