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

// Package codetree holds generated code as a tree of text fragments with
// insertion points, so that a later pass can still write declarations or
// loop headers "above" code that was already emitted.
//
// A Writer layers C emission on top of a Tree (indentation, labels, gotos,
// temporaries and per-unit loop levels) and an ErrorHandler chain cascades
// runtime failures out of nested loops.
package codetree

// Condition is a boolean cell shared between the code that guards a
// segment and the code that later decides the segment is needed.
type Condition struct {
	value bool
}

// NewCondition returns a cell holding v.
func NewCondition(v bool) *Condition {
	return &Condition{value: v}
}

// Set stores v.
func (c *Condition) Set(v bool) { c.value = v }

// Value reports the current value.
func (c *Condition) Value() bool { return c.value }

// Tree is one node of the output buffer tree: committed children followed
// by an open output segment.
type Tree struct {
	children  []*Tree
	output    []string
	condition *Condition
}

// New returns an empty root tree.
func New() *Tree {
	return &Tree{}
}

// Write appends text to the open segment.
func (t *Tree) Write(text string) {
	t.output = append(t.output, text)
}

// commit freezes the open segment as a child so that anything appended
// afterwards is ordered after it.
func (t *Tree) commit() {
	if len(t.output) == 0 {
		return
	}
	t.children = append(t.children, &Tree{output: t.output})
	t.output = nil
}

// InsertionPoint commits the open segment and returns a new child fixed at
// the current position. Text written to the child later still flattens at
// that position. A non-nil cond hides the child (and everything below it)
// while cond is false.
func (t *Tree) InsertionPoint(cond *Condition) *Tree {
	t.commit()
	ip := &Tree{condition: cond}
	t.children = append(t.children, ip)
	return ip
}

// Active reports whether the node is emitted.
func (t *Tree) Active() bool {
	return t.condition == nil || t.condition.Value()
}

// Values flattens the tree depth-first in creation order. It does not
// modify the tree, so repeated calls return equal slices.
func (t *Tree) Values() []string {
	var result []string
	t.collect(&result)
	return result
}

func (t *Tree) collect(result *[]string) {
	if !t.Active() {
		return
	}
	for _, child := range t.children {
		child.collect(result)
	}
	*result = append(*result, t.output...)
}

// Len returns the number of fragments Values would return.
func (t *Tree) Len() int {
	if !t.Active() {
		return 0
	}
	n := len(t.output)
	for _, child := range t.children {
		n += child.Len()
	}
	return n
}
