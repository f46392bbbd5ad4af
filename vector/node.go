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

// Package vector generates C loop nests for elementwise and broadcast
// array expressions.
//
// An expression is a tree of immutable nodes. Specialize binds every node
// to a code-generation strategy taken from the Context and returns a new
// tree; the strategies then emit evaluation, loop and disposal code into a
// codetree.Writer. The root of a generation unit is an NDIterator, which
// opens one loop per dimension of its widest array operand, lets every
// array operand collect the loop indices it needs for its pointer
// arithmetic, evaluates the body once at the innermost level and closes
// the loops in reverse order.
package vector

import (
	"fmt"
	"math/bits"

	"github.com/ajroetker/ndgen/ndtype"
	"github.com/zeebo/xxh3"
)

// Pos is the source position of the construct a node was built from. It
// is carried through untouched.
type Pos struct {
	Filename string
	Line     int
	Column   int
}

func (p Pos) String() string {
	if p.Filename == "" && p.Line == 0 {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.Filename, p.Line, p.Column)
}

// Variant tags the node kinds; strategy tables are keyed by it.
type Variant int

const (
	VariantScalar Variant = iota
	VariantConstantScalar
	VariantOpaque
	VariantArrayOperand
	VariantBinop
	VariantUnop
	VariantCast
	VariantDereference
	VariantAssignment
	VariantCall
	VariantNDIterator
)

var variantNames = [...]string{
	VariantScalar:         "Scalar",
	VariantConstantScalar: "ConstantScalar",
	VariantOpaque:         "NodeWrapper",
	VariantArrayOperand:   "ArrayOperandWrapper",
	VariantBinop:          "Binop",
	VariantUnop:           "Unop",
	VariantCast:           "CastNode",
	VariantDereference:    "DereferenceNode",
	VariantAssignment:     "Assignment",
	VariantCall:           "Call",
	VariantNDIterator:     "NDIterator",
}

func (v Variant) String() string {
	if int(v) >= 0 && int(v) < len(variantNames) {
		return variantNames[v]
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// Options are passed down through specialization to every strategy.
type Options struct {
	// VectorSize is the loop step hint used when the iterator has none.
	VectorSize int
}

// Node is an expression node. Nodes are immutable: Specialize returns a
// new tree and never modifies the receiver or its sub-expressions.
type Node interface {
	Pos() Pos
	Type() ndtype.Type
	Variant() Variant
	// Subexprs returns the operands in order. Callers must not modify it.
	Subexprs() []Node
	// Codegen returns the bound strategy, or nil before specialization.
	Codegen() Strategy
	// MayError reports whether evaluating the node may fail at run time.
	MayError() bool
	// IsCFContig reports whether every array the node reads is C and/or
	// Fortran contiguous.
	IsCFContig() (c, f bool)
	// Equal reports structural equality, ignoring bound strategies.
	Equal(other Node) bool
	// Hash is consistent with Equal.
	Hash() uint64
	Specialize(ctx *Context, opts Options) (Node, error)
	String() string
}

// overrides lists everything a node copy may change. Fields left at their
// zero value keep the original.
type overrides struct {
	pos      *Pos
	typ      ndtype.Type
	operands []Node
}

// node holds the fields shared by all variants.
type node struct {
	pos     Pos
	typ     ndtype.Type
	codegen Strategy
}

func (n *node) Pos() Pos              { return n.pos }
func (n *node) Type() ndtype.Type     { return n.typ }
func (n *node) Codegen() Strategy     { return n.codegen }
func (n *node) setCodegen(s Strategy) { n.codegen = s }

func (n node) with(o overrides) node {
	out := node{pos: n.pos, typ: n.typ}
	if o.pos != nil {
		out.pos = *o.pos
	}
	if o.typ != nil {
		out.typ = o.typ
	}
	return out
}

// bindable is implemented by freshly copied nodes that have not been
// published yet.
type bindable interface {
	Node
	setCodegen(Strategy)
}

// Scalar is a named scalar value such as a variable or a loop index.
type Scalar struct {
	node
	name string
}

// NewScalar returns a scalar spelled name.
func NewScalar(pos Pos, typ ndtype.Type, name string) *Scalar {
	return &Scalar{node: node{pos: pos, typ: typ}, name: name}
}

// Name returns the C spelling.
func (s *Scalar) Name() string             { return s.name }
func (s *Scalar) Variant() Variant         { return VariantScalar }
func (s *Scalar) Subexprs() []Node         { return nil }
func (s *Scalar) MayError() bool           { return false }
func (s *Scalar) String() string           { return s.name }
func (s *Scalar) IsCFContig() (bool, bool) { return true, true }

func (s *Scalar) Equal(other Node) bool {
	o, ok := other.(*Scalar)
	return ok && o.name == s.name && o.typ.Equal(s.typ)
}

func (s *Scalar) Hash() uint64 {
	return mixHash(xxh3.HashString(s.name), s.typ.Hash())
}

func (s *Scalar) with(o overrides) *Scalar {
	return &Scalar{node: s.node.with(o), name: s.name}
}

func (s *Scalar) Specialize(ctx *Context, opts Options) (Node, error) {
	return ctx.bind(s.with(overrides{}), opts)
}

// ConstantScalar is a literal.
type ConstantScalar struct {
	node
	value string
}

// NewConstantScalar returns a literal spelled value.
func NewConstantScalar(pos Pos, typ ndtype.Type, value string) *ConstantScalar {
	return &ConstantScalar{node: node{pos: pos, typ: typ}, value: value}
}

// Value returns the literal spelling.
func (c *ConstantScalar) Value() string            { return c.value }
func (c *ConstantScalar) Variant() Variant         { return VariantConstantScalar }
func (c *ConstantScalar) Subexprs() []Node         { return nil }
func (c *ConstantScalar) MayError() bool           { return false }
func (c *ConstantScalar) String() string           { return c.value }
func (c *ConstantScalar) IsCFContig() (bool, bool) { return true, true }

func (c *ConstantScalar) Equal(other Node) bool {
	o, ok := other.(*ConstantScalar)
	return ok && o.value == c.value && o.typ.Equal(c.typ)
}

func (c *ConstantScalar) Hash() uint64 {
	return mixHash(xxh3.HashString("const:"+c.value), c.typ.Hash())
}

func (c *ConstantScalar) with(o overrides) *ConstantScalar {
	return &ConstantScalar{node: c.node.with(o), value: c.value}
}

func (c *ConstantScalar) Specialize(ctx *Context, opts Options) (Node, error) {
	return ctx.bind(c.with(overrides{}), opts)
}

// NodeWrapper adapts an external node that has no richer mapping. Its
// value is spelled by the external node's name.
type NodeWrapper struct {
	node
	opaque Opaque
	name   string
}

func newNodeWrapper(op Opaque) *NodeWrapper {
	return &NodeWrapper{
		node:   node{pos: op.Pos(), typ: op.Type()},
		opaque: op,
		name:   op.Name(),
	}
}

// Opaque returns the wrapped external node; nil for wrappers built
// directly with NewArrayOperand.
func (w *NodeWrapper) Opaque() Opaque   { return w.opaque }
func (w *NodeWrapper) Name() string     { return w.name }
func (w *NodeWrapper) Variant() Variant { return VariantOpaque }
func (w *NodeWrapper) Subexprs() []Node { return nil }
func (w *NodeWrapper) MayError() bool   { return false }
func (w *NodeWrapper) String() string   { return w.name }

func (w *NodeWrapper) IsCFContig() (bool, bool) {
	if a, ok := w.typ.(*ndtype.Array); ok {
		return a.Contiguity()
	}
	return true, true
}

func (w *NodeWrapper) Equal(other Node) bool {
	o, ok := other.(*NodeWrapper)
	return ok && sameWrapped(w, o)
}

func (w *NodeWrapper) Hash() uint64 {
	return mixHash(xxh3.HashString(w.name), w.typ.Hash())
}

func (w *NodeWrapper) with(o overrides) *NodeWrapper {
	return &NodeWrapper{node: w.node.with(o), opaque: w.opaque, name: w.name}
}

func (w *NodeWrapper) Specialize(ctx *Context, opts Options) (Node, error) {
	return ctx.bind(w.with(overrides{}), opts)
}

// sameWrapped compares the identity of two wrapped external nodes.
func sameWrapped(a, b *NodeWrapper) bool {
	if a.name != b.name || !a.typ.Equal(b.typ) {
		return false
	}
	if a.opaque == nil || b.opaque == nil {
		return a.opaque == nil && b.opaque == nil
	}
	return a.opaque.Tag() == b.opaque.Tag()
}

// mixHash combines hashes so that operand order matters.
func mixHash(hs ...uint64) uint64 {
	var h uint64 = 0xcbf29ce484222325
	for i, v := range hs {
		h ^= bits.RotateLeft64(v, i*7+1)
		h *= 0x100000001b3
	}
	return h
}

func anyMayError(nodes []Node) bool {
	for _, n := range nodes {
		if n.MayError() {
			return true
		}
	}
	return false
}

func equalNodes(a, b []Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func hashNodes(seed uint64, nodes []Node) uint64 {
	hs := make([]uint64, 0, len(nodes)+1)
	hs = append(hs, seed)
	for _, n := range nodes {
		hs = append(hs, n.Hash())
	}
	return mixHash(hs...)
}
