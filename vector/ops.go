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
	"strings"

	"github.com/ajroetker/ndgen/ndtype"
	"github.com/zeebo/xxh3"
)

// Operation is the shared base of nodes with operands.
type Operation struct {
	node
	operands []Node
}

func newOperation(pos Pos, typ ndtype.Type, operands ...Node) Operation {
	return Operation{node: node{pos: pos, typ: typ}, operands: operands}
}

func (o *Operation) Subexprs() []Node { return o.operands }
func (o *Operation) MayError() bool   { return anyMayError(o.operands) }

// IsCFContig conjoins the contiguity of all operands.
func (o *Operation) IsCFContig() (bool, bool) {
	c, f := true, true
	for _, op := range o.operands {
		oc, of := op.IsCFContig()
		c = c && oc
		f = f && of
	}
	return c, f
}

func (o *Operation) with(ov overrides) Operation {
	out := Operation{node: o.node.with(ov), operands: o.operands}
	if ov.operands != nil {
		out.operands = ov.operands
	}
	return out
}

// specializeOperands specializes each operand in order.
func specializeOperands(ctx *Context, operands []Node, opts Options) ([]Node, error) {
	out := make([]Node, len(operands))
	for i, op := range operands {
		s, err := op.Specialize(ctx, opts)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Binop is a binary C operator applied to two operands.
type Binop struct {
	Operation
	operator string
}

// NewBinop returns lhs operator rhs with result type typ.
func NewBinop(pos Pos, typ ndtype.Type, lhs, rhs Node, operator string) *Binop {
	return &Binop{Operation: newOperation(pos, typ, lhs, rhs), operator: operator}
}

func (b *Binop) Operator() string { return b.operator }
func (b *Binop) LHS() Node        { return b.operands[0] }
func (b *Binop) RHS() Node        { return b.operands[1] }
func (b *Binop) Variant() Variant { return VariantBinop }

func (b *Binop) String() string {
	return fmt.Sprintf("(%s %s %s)", b.operands[0], b.operator, b.operands[1])
}

func (b *Binop) Equal(other Node) bool {
	o, ok := other.(*Binop)
	return ok && o.operator == b.operator && equalNodes(b.operands, o.operands)
}

func (b *Binop) Hash() uint64 {
	return hashNodes(xxh3.HashString("binop"+b.operator), b.operands)
}

func (b *Binop) with(o overrides) *Binop {
	return &Binop{Operation: b.Operation.with(o), operator: b.operator}
}

func (b *Binop) Specialize(ctx *Context, opts Options) (Node, error) {
	operands, err := specializeOperands(ctx, b.operands, opts)
	if err != nil {
		return nil, err
	}
	return ctx.bind(b.with(overrides{operands: operands}), opts)
}

// Unop is a prefix C operator applied to one operand.
type Unop struct {
	Operation
	operator string
}

// NewUnop returns operator operand with result type typ.
func NewUnop(pos Pos, typ ndtype.Type, operand Node, operator string) *Unop {
	return &Unop{Operation: newOperation(pos, typ, operand), operator: operator}
}

func (u *Unop) Operator() string { return u.operator }
func (u *Unop) Operand() Node    { return u.operands[0] }
func (u *Unop) Variant() Variant { return VariantUnop }

func (u *Unop) String() string {
	return fmt.Sprintf("(%s%s)", u.operator, u.operands[0])
}

func (u *Unop) Equal(other Node) bool {
	o, ok := other.(*Unop)
	return ok && o.operator == u.operator && equalNodes(u.operands, o.operands)
}

func (u *Unop) Hash() uint64 {
	return hashNodes(xxh3.HashString("unop"+u.operator), u.operands)
}

func (u *Unop) with(o overrides) *Unop {
	return &Unop{Operation: u.Operation.with(o), operator: u.operator}
}

func (u *Unop) Specialize(ctx *Context, opts Options) (Node, error) {
	operands, err := specializeOperands(ctx, u.operands, opts)
	if err != nil {
		return nil, err
	}
	return ctx.bind(u.with(overrides{operands: operands}), opts)
}

// CastNode converts its operand to the node's type.
type CastNode struct {
	Operation
}

// NewCastNode returns (typ) operand.
func NewCastNode(pos Pos, typ ndtype.Type, operand Node) *CastNode {
	return &CastNode{Operation: newOperation(pos, typ, operand)}
}

func (c *CastNode) Operand() Node    { return c.operands[0] }
func (c *CastNode) Variant() Variant { return VariantCast }

func (c *CastNode) String() string {
	return fmt.Sprintf("((%s) %s)", c.typ, c.operands[0])
}

func (c *CastNode) Equal(other Node) bool {
	o, ok := other.(*CastNode)
	return ok && o.typ.Equal(c.typ) && equalNodes(c.operands, o.operands)
}

func (c *CastNode) Hash() uint64 {
	return hashNodes(ndtypeSeed("cast", c.typ), c.operands)
}

func (c *CastNode) with(o overrides) *CastNode {
	return &CastNode{Operation: c.Operation.with(o)}
}

func (c *CastNode) Specialize(ctx *Context, opts Options) (Node, error) {
	operands, err := specializeOperands(ctx, c.operands, opts)
	if err != nil {
		return nil, err
	}
	return ctx.bind(c.with(overrides{operands: operands}), opts)
}

// DereferenceNode reads through a pointer operand.
type DereferenceNode struct {
	Operation
}

// NewDereferenceNode returns *operand. The operand must have pointer type;
// the node's type is the pointee.
func NewDereferenceNode(pos Pos, operand Node) (*DereferenceNode, error) {
	p, ok := operand.Type().(*ndtype.Pointer)
	if !ok {
		return nil, &ConfigurationError{
			Pos:    pos,
			Err:    ErrNotPointer,
			Detail: fmt.Sprintf("cannot dereference %s of type %v", operand, operand.Type()),
		}
	}
	return &DereferenceNode{Operation: newOperation(pos, p.Base, operand)}, nil
}

func (d *DereferenceNode) Operand() Node    { return d.operands[0] }
func (d *DereferenceNode) Variant() Variant { return VariantDereference }

func (d *DereferenceNode) String() string {
	return fmt.Sprintf("(*%s)", d.operands[0])
}

func (d *DereferenceNode) Equal(other Node) bool {
	o, ok := other.(*DereferenceNode)
	return ok && equalNodes(d.operands, o.operands)
}

func (d *DereferenceNode) Hash() uint64 {
	return hashNodes(xxh3.HashString("deref"), d.operands)
}

func (d *DereferenceNode) with(o overrides) *DereferenceNode {
	return &DereferenceNode{Operation: d.Operation.with(o)}
}

func (d *DereferenceNode) Specialize(ctx *Context, opts Options) (Node, error) {
	operands, err := specializeOperands(ctx, d.operands, opts)
	if err != nil {
		return nil, err
	}
	return ctx.bind(d.with(overrides{operands: operands}), opts)
}

// Assignment stores RHS into LHS once per element. Its type is the type
// of the destination.
type Assignment struct {
	Operation
}

// NewAssignment returns lhs = rhs.
func NewAssignment(pos Pos, lhs, rhs Node) *Assignment {
	return &Assignment{Operation: newOperation(pos, lhs.Type(), lhs, rhs)}
}

func (a *Assignment) LHS() Node        { return a.operands[0] }
func (a *Assignment) RHS() Node        { return a.operands[1] }
func (a *Assignment) Variant() Variant { return VariantAssignment }

func (a *Assignment) String() string {
	return fmt.Sprintf("%s = %s", a.operands[0], a.operands[1])
}

func (a *Assignment) Equal(other Node) bool {
	o, ok := other.(*Assignment)
	return ok && equalNodes(a.operands, o.operands)
}

func (a *Assignment) Hash() uint64 {
	return hashNodes(xxh3.HashString("assign"), a.operands)
}

func (a *Assignment) with(o overrides) *Assignment {
	return &Assignment{Operation: a.Operation.with(o)}
}

func (a *Assignment) Specialize(ctx *Context, opts Options) (Node, error) {
	operands, err := specializeOperands(ctx, a.operands, opts)
	if err != nil {
		return nil, err
	}
	return ctx.bind(a.with(overrides{operands: operands}), opts)
}

// Call applies a C function elementwise. When ErrorValue is set, a result
// equal to it signals failure.
type Call struct {
	Operation
	fn         string
	errorValue string
}

// NewCall returns fn(args...) with result type typ. errorValue may be
// empty for calls that cannot fail.
func NewCall(pos Pos, typ ndtype.Type, fn string, args []Node, errorValue string) *Call {
	return &Call{Operation: newOperation(pos, typ, args...), fn: fn, errorValue: errorValue}
}

func (c *Call) Func() string       { return c.fn }
func (c *Call) Args() []Node       { return c.operands }
func (c *Call) ErrorValue() string { return c.errorValue }
func (c *Call) Variant() Variant   { return VariantCall }

func (c *Call) MayError() bool {
	return c.errorValue != "" || c.Operation.MayError()
}

func (c *Call) String() string {
	args := make([]string, len(c.operands))
	for i, a := range c.operands {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s(%s)", c.fn, strings.Join(args, ", "))
}

func (c *Call) Equal(other Node) bool {
	o, ok := other.(*Call)
	return ok && o.fn == c.fn && o.errorValue == c.errorValue &&
		o.typ.Equal(c.typ) && equalNodes(c.operands, o.operands)
}

func (c *Call) Hash() uint64 {
	return hashNodes(xxh3.HashString("call:"+c.fn+":"+c.errorValue), c.operands)
}

func (c *Call) with(o overrides) *Call {
	return &Call{Operation: c.Operation.with(o), fn: c.fn, errorValue: c.errorValue}
}

func (c *Call) Specialize(ctx *Context, opts Options) (Node, error) {
	operands, err := specializeOperands(ctx, c.operands, opts)
	if err != nil {
		return nil, err
	}
	return ctx.bind(c.with(overrides{operands: operands}), opts)
}

func ndtypeSeed(kind string, t ndtype.Type) uint64 {
	return mixHash(xxh3.HashString(kind), t.Hash())
}
