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

import (
	"fmt"

	"github.com/ajroetker/ndgen/ndtype"
	"github.com/samber/lo"
	"github.com/zeebo/xxh3"
)

// Layout spells the buffer fields of an array operand. Data is formatted
// with the operand name; Shape, Strides and Suboffsets with the name and
// the axis number.
type Layout struct {
	Data       string
	Shape      string
	Strides    string
	Suboffsets string
}

// MemviewLayout reads a memoryview-style struct.
var MemviewLayout = Layout{
	Data:       "%s.data",
	Shape:      "%s.shape[%d]",
	Strides:    "%s.strides[%d]",
	Suboffsets: "%s.suboffsets[%d]",
}

// FlatLayout reads separate pointer arguments named after the operand, as
// used by generated kernel signatures.
var FlatLayout = Layout{
	Data:       "%s_data",
	Shape:      "%s_shape[%d]",
	Strides:    "%s_strides[%d]",
	Suboffsets: "%s_suboffsets[%d]",
}

// ArrayOperandWrapper is an array read or written elementwise inside an
// iteration unit.
type ArrayOperandWrapper struct {
	NodeWrapper
	layout Layout
}

// NewArrayOperand returns an array operand named name. The type's element
// is the type of a single access.
func NewArrayOperand(pos Pos, name string, typ *ndtype.Array, layout Layout) *ArrayOperandWrapper {
	return &ArrayOperandWrapper{
		NodeWrapper: NodeWrapper{node: node{pos: pos, typ: typ}, name: name},
		layout:      layout,
	}
}

func newArrayOperandFromOpaque(op Opaque, layout Layout) *ArrayOperandWrapper {
	return &ArrayOperandWrapper{NodeWrapper: *newNodeWrapper(op), layout: layout}
}

func (a *ArrayOperandWrapper) Variant() Variant { return VariantArrayOperand }
func (a *ArrayOperandWrapper) Layout() Layout   { return a.layout }

// ArrayType returns the operand's array type.
func (a *ArrayOperandWrapper) ArrayType() *ndtype.Array {
	return a.typ.(*ndtype.Array)
}

// NDim returns the operand's rank.
func (a *ArrayOperandWrapper) NDim() int { return a.ArrayType().NDim() }

// ElementPointer returns the base data pointer.
func (a *ArrayOperandWrapper) ElementPointer() Node {
	return NewScalar(a.pos, ndtype.PointerTo(a.ArrayType().Elem), fmt.Sprintf(a.layout.Data, a.name))
}

// Extent returns the size of axis dim.
func (a *ArrayOperandWrapper) Extent(dim int) Node {
	return NewScalar(a.pos, ndtype.Index, fmt.Sprintf(a.layout.Shape, a.name, dim))
}

// Stride returns the byte stride of axis dim.
func (a *ArrayOperandWrapper) Stride(dim int) Node {
	return NewScalar(a.pos, ndtype.Index, fmt.Sprintf(a.layout.Strides, a.name, dim))
}

// Suboffset returns the suboffset of axis dim.
func (a *ArrayOperandWrapper) Suboffset(dim int) Node {
	return NewScalar(a.pos, ndtype.Index, fmt.Sprintf(a.layout.Suboffsets, a.name, dim))
}

func (a *ArrayOperandWrapper) String() string { return a.name }

func (a *ArrayOperandWrapper) IsCFContig() (bool, bool) {
	return a.ArrayType().Contiguity()
}

func (a *ArrayOperandWrapper) Equal(other Node) bool {
	o, ok := other.(*ArrayOperandWrapper)
	return ok && o.layout == a.layout && sameWrapped(&a.NodeWrapper, &o.NodeWrapper)
}

func (a *ArrayOperandWrapper) Hash() uint64 {
	return mixHash(xxh3.HashString("array:"+a.name), a.typ.Hash())
}

func (a *ArrayOperandWrapper) with(o overrides) *ArrayOperandWrapper {
	return &ArrayOperandWrapper{NodeWrapper: *a.NodeWrapper.with(o), layout: a.layout}
}

func (a *ArrayOperandWrapper) Specialize(ctx *Context, opts Options) (Node, error) {
	return ctx.bind(a.with(overrides{}), opts)
}

// NDIterator is the root of an iteration unit. It loops over the
// broadcast shape of its array operands and evaluates Body once per
// element.
type NDIterator struct {
	Operation
	arrays     []*ArrayOperandWrapper
	vectorSize int
}

// NewNDIterator returns a unit evaluating body over arrays. vectorSize is
// a loop step hint; 0 means scalar loops.
func NewNDIterator(pos Pos, body Node, arrays []*ArrayOperandWrapper, vectorSize int) *NDIterator {
	return &NDIterator{
		Operation:  newOperation(pos, body.Type(), body),
		arrays:     arrays,
		vectorSize: vectorSize,
	}
}

func (it *NDIterator) Body() Node                            { return it.operands[0] }
func (it *NDIterator) ArrayOperands() []*ArrayOperandWrapper { return it.arrays }
func (it *NDIterator) VectorSize() int                       { return it.vectorSize }
func (it *NDIterator) Variant() Variant                      { return VariantNDIterator }

func (it *NDIterator) String() string {
	return fmt.Sprintf("iter[%d](%s)", len(it.arrays), it.operands[0])
}

// MaxNDim returns the largest operand rank.
func (it *NDIterator) MaxNDim() (int, error) {
	if len(it.arrays) == 0 {
		return 0, &ConfigurationError{Pos: it.pos, Err: ErrNoArrayOperands}
	}
	n := lo.Max(lo.Map(it.arrays, func(a *ArrayOperandWrapper, _ int) int { return a.NDim() }))
	if n == 0 {
		return 0, &ConfigurationError{Pos: it.pos, Err: ErrNoArrayOperands, Detail: "all array operands are 0-d"}
	}
	return n, nil
}

// Extent returns the extent of loop level. Operands are right-aligned
// against the widest one; the first operand that has an axis at this
// level supplies it.
func (it *NDIterator) Extent(level int) (Node, error) {
	maxNDim, err := it.MaxNDim()
	if err != nil {
		return nil, err
	}
	for _, a := range it.arrays {
		offset := maxNDim - a.NDim()
		if level >= offset {
			return a.Extent(level - offset), nil
		}
	}
	return nil, &ConfigurationError{Pos: it.pos, Err: ErrRankMismatch, Detail: fmt.Sprintf("no operand covers loop level %d", level)}
}

func (it *NDIterator) Equal(other Node) bool {
	o, ok := other.(*NDIterator)
	if !ok || o.vectorSize != it.vectorSize || len(o.arrays) != len(it.arrays) {
		return false
	}
	for i := range it.arrays {
		if !it.arrays[i].Equal(o.arrays[i]) {
			return false
		}
	}
	return equalNodes(it.operands, o.operands)
}

func (it *NDIterator) Hash() uint64 {
	return hashNodes(xxh3.HashString(fmt.Sprintf("iter:%d:%d", len(it.arrays), it.vectorSize)), it.operands)
}

func (it *NDIterator) with(o overrides) *NDIterator {
	return &NDIterator{Operation: it.Operation.with(o), arrays: it.arrays, vectorSize: it.vectorSize}
}

func (it *NDIterator) Specialize(ctx *Context, opts Options) (Node, error) {
	if it.vectorSize > 0 {
		opts.VectorSize = it.vectorSize
	}
	operands, err := specializeOperands(ctx, it.operands, opts)
	if err != nil {
		return nil, err
	}
	return ctx.bind(it.with(overrides{operands: operands}), opts)
}
