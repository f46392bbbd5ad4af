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

	"github.com/ajroetker/ndgen/codetree"
	"github.com/samber/lo"
)

// Strategy generates code for one specialized node.
type Strategy interface {
	// GenerateEvaluationCode emits the statements that make Result valid.
	GenerateEvaluationCode(w *codetree.Writer, ctx *Context) error
	// GenerateCleanupCode emits statements releasing what evaluation
	// acquired.
	GenerateCleanupCode(w *codetree.Writer, ctx *Context) error
	// Result returns the C expression holding the node's value. It has no
	// side effects and is valid after GenerateEvaluationCode.
	Result() string
	// BeginLoop is called when the loop for level is opened with the
	// given index variable.
	BeginLoop(w *codetree.Writer, ctx *Context, level int, index string) error
	// EndLoop is called after the loop for level is closed.
	EndLoop(w *codetree.Writer, ctx *Context, level int, index string) error
}

// StrategyFactory builds the strategy for a specialized node. The node's
// sub-expressions are already specialized.
type StrategyFactory func(n Node, opts Options) (Strategy, error)

// StrategyTable maps node variants to strategy factories.
type StrategyTable map[Variant]StrategyFactory

// DefaultStrategies returns a table covering every variant.
func DefaultStrategies() StrategyTable {
	return StrategyTable{
		VariantScalar:         newScalarCodeGen,
		VariantConstantScalar: newScalarCodeGen,
		VariantOpaque:         newOpaqueCodeGen,
		VariantArrayOperand:   newArrayOperandCodeGen,
		VariantBinop:          newElementalCodeGen,
		VariantUnop:           newElementalCodeGen,
		VariantCast:           newCastCodeGen,
		VariantDereference:    newDereferenceCodeGen,
		VariantAssignment:     newAssignmentCodeGen,
		VariantCall:           newCallCodeGen,
		VariantNDIterator:     newNDIteratorCodeGen,
	}
}

// Clone returns a copy of t that can be modified independently.
func (t StrategyTable) Clone() StrategyTable {
	return lo.Assign(t)
}

// subtreeOwner is implemented by strategies that generate and dispose of
// their sub-expressions themselves.
type subtreeOwner interface {
	ownsSubexprs() bool
}

func ownsSubexprs(s Strategy) bool {
	o, ok := s.(subtreeOwner)
	return ok && o.ownsSubexprs()
}

// GenerateCode emits evaluation code for n's sub-expressions, in order,
// and then for n.
func GenerateCode(w *codetree.Writer, ctx *Context, n Node) error {
	s, err := ctx.Codegen(n)
	if err != nil {
		return err
	}
	if !ownsSubexprs(s) {
		for _, sub := range n.Subexprs() {
			if err := GenerateCode(w, ctx, sub); err != nil {
				return err
			}
		}
	}
	return s.GenerateEvaluationCode(w, ctx)
}

// GenerateDisposalCode emits cleanup code for n's sub-expressions, in
// order, and then for n.
func GenerateDisposalCode(w *codetree.Writer, ctx *Context, n Node) error {
	s, err := ctx.Codegen(n)
	if err != nil {
		return err
	}
	if !ownsSubexprs(s) {
		for _, sub := range n.Subexprs() {
			if err := GenerateDisposalCode(w, ctx, sub); err != nil {
				return err
			}
		}
	}
	return s.GenerateCleanupCode(w, ctx)
}

// BeginLoop notifies n's strategy that the loop for level was opened.
func BeginLoop(w *codetree.Writer, ctx *Context, n Node, level int, index string) error {
	s, err := ctx.Codegen(n)
	if err != nil {
		return err
	}
	return s.BeginLoop(w, ctx, level, index)
}

// EndLoop notifies n's strategy that the loop for level was closed.
func EndLoop(w *codetree.Writer, ctx *Context, n Node, level int, index string) error {
	s, err := ctx.Codegen(n)
	if err != nil {
		return err
	}
	return s.EndLoop(w, ctx, level, index)
}

// BaseCodeGen is embedded by strategies. Evaluation and cleanup do
// nothing; loop notifications are forwarded to the sub-expressions.
type BaseCodeGen struct {
	Node    Node
	Options Options
}

func (b *BaseCodeGen) GenerateEvaluationCode(*codetree.Writer, *Context) error { return nil }
func (b *BaseCodeGen) GenerateCleanupCode(*codetree.Writer, *Context) error    { return nil }

// Result spells the node itself.
func (b *BaseCodeGen) Result() string { return b.Node.String() }

func (b *BaseCodeGen) BeginLoop(w *codetree.Writer, ctx *Context, level int, index string) error {
	for _, sub := range b.Node.Subexprs() {
		if err := BeginLoop(w, ctx, sub, level, index); err != nil {
			return err
		}
	}
	return nil
}

func (b *BaseCodeGen) EndLoop(w *codetree.Writer, ctx *Context, level int, index string) error {
	for _, sub := range b.Node.Subexprs() {
		if err := EndLoop(w, ctx, sub, level, index); err != nil {
			return err
		}
	}
	return nil
}

// boundStrategies returns the strategies of already specialized nodes.
func boundStrategies(nodes []Node) ([]Strategy, error) {
	out := make([]Strategy, len(nodes))
	for i, n := range nodes {
		s := n.Codegen()
		if s == nil {
			return nil, &SpecializationError{Node: n}
		}
		out[i] = s
	}
	return out, nil
}

// ScalarCodeGen spells scalars and literals by name.
type ScalarCodeGen struct {
	BaseCodeGen
	result string
}

func newScalarCodeGen(n Node, opts Options) (Strategy, error) {
	s := &ScalarCodeGen{BaseCodeGen: BaseCodeGen{Node: n, Options: opts}}
	switch n := n.(type) {
	case *Scalar:
		s.result = n.Name()
	case *ConstantScalar:
		s.result = n.Value()
	default:
		return nil, fmt.Errorf("scalar strategy bound to %v", n.Variant())
	}
	return s, nil
}

func (s *ScalarCodeGen) Result() string { return s.result }

// OpaqueCodeGen spells an external node by its name.
type OpaqueCodeGen struct {
	BaseCodeGen
	name string
}

func newOpaqueCodeGen(n Node, opts Options) (Strategy, error) {
	w, ok := n.(*NodeWrapper)
	if !ok {
		return nil, fmt.Errorf("opaque strategy bound to %v", n.Variant())
	}
	return &OpaqueCodeGen{BaseCodeGen: BaseCodeGen{Node: n, Options: opts}, name: w.Name()}, nil
}

func (o *OpaqueCodeGen) Result() string { return o.name }

// ElementalCodeGen composes the results of unary and binary operators.
type ElementalCodeGen struct {
	BaseCodeGen
	operator string
	operands []Strategy
}

func newElementalCodeGen(n Node, opts Options) (Strategy, error) {
	var operator string
	switch n := n.(type) {
	case *Binop:
		operator = n.Operator()
	case *Unop:
		operator = n.Operator()
	default:
		return nil, fmt.Errorf("elemental strategy bound to %v", n.Variant())
	}
	operands, err := boundStrategies(n.Subexprs())
	if err != nil {
		return nil, err
	}
	return &ElementalCodeGen{
		BaseCodeGen: BaseCodeGen{Node: n, Options: opts},
		operator:    operator,
		operands:    operands,
	}, nil
}

func (e *ElementalCodeGen) Result() string {
	if len(e.operands) == 1 {
		return fmt.Sprintf("(%s%s)", e.operator, e.operands[0].Result())
	}
	return fmt.Sprintf("(%s %s %s)", e.operands[0].Result(), e.operator, e.operands[1].Result())
}

// CastCodeGen converts its operand's result.
type CastCodeGen struct {
	BaseCodeGen
	operand Strategy
}

func newCastCodeGen(n Node, opts Options) (Strategy, error) {
	operands, err := boundStrategies(n.Subexprs())
	if err != nil {
		return nil, err
	}
	return &CastCodeGen{BaseCodeGen: BaseCodeGen{Node: n, Options: opts}, operand: operands[0]}, nil
}

func (c *CastCodeGen) Result() string {
	return fmt.Sprintf("((%s) %s)", c.Node.Type(), c.operand.Result())
}

// DereferenceCodeGen reads through its operand's result.
type DereferenceCodeGen struct {
	BaseCodeGen
	operand Strategy
}

func newDereferenceCodeGen(n Node, opts Options) (Strategy, error) {
	operands, err := boundStrategies(n.Subexprs())
	if err != nil {
		return nil, err
	}
	return &DereferenceCodeGen{BaseCodeGen: BaseCodeGen{Node: n, Options: opts}, operand: operands[0]}, nil
}

func (d *DereferenceCodeGen) Result() string {
	return fmt.Sprintf("(*%s)", d.operand.Result())
}

// AssignmentCodeGen emits one store statement per evaluation.
type AssignmentCodeGen struct {
	BaseCodeGen
	lhs, rhs Strategy
}

func newAssignmentCodeGen(n Node, opts Options) (Strategy, error) {
	operands, err := boundStrategies(n.Subexprs())
	if err != nil {
		return nil, err
	}
	return &AssignmentCodeGen{BaseCodeGen: BaseCodeGen{Node: n, Options: opts}, lhs: operands[0], rhs: operands[1]}, nil
}

func (a *AssignmentCodeGen) GenerateEvaluationCode(w *codetree.Writer, _ *Context) error {
	w.Putln("%s = %s;", a.lhs.Result(), a.rhs.Result())
	return nil
}

func (a *AssignmentCodeGen) Result() string { return a.lhs.Result() }

// CallCodeGen stores a call's result in a temporary and, for fallible
// calls, jumps to the live error handler when it equals the error value.
type CallCodeGen struct {
	BaseCodeGen
	fn         string
	errorValue string
	args       []Strategy
	result     string
}

func newCallCodeGen(n Node, opts Options) (Strategy, error) {
	call, ok := n.(*Call)
	if !ok {
		return nil, fmt.Errorf("call strategy bound to %v", n.Variant())
	}
	args, err := boundStrategies(call.Args())
	if err != nil {
		return nil, err
	}
	return &CallCodeGen{
		BaseCodeGen: BaseCodeGen{Node: n, Options: opts},
		fn:          call.Func(),
		errorValue:  call.ErrorValue(),
		args:        args,
	}, nil
}

func (c *CallCodeGen) GenerateEvaluationCode(w *codetree.Writer, _ *Context) error {
	h := w.ErrorHandler()
	if c.errorValue != "" && h == nil {
		return &ConfigurationError{Pos: c.Node.Pos(), Err: ErrNoErrorScope, Detail: c.fn}
	}
	args := lo.Map(c.args, func(s Strategy, _ int) string { return s.Result() })
	c.result = w.DeclareTemp(c.Node.Type(), "r")
	w.Putln("%s = %s(%s);", c.result, c.fn, strings.Join(args, ", "))
	if c.errorValue != "" {
		w.Putln("if (%s == %s) {", c.result, c.errorValue)
		w.Indent()
		h.GotoError(w, false)
		w.Dedent()
		w.Putln("}")
	}
	return nil
}

func (c *CallCodeGen) Result() string { return c.result }
