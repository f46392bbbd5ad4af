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
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/ajroetker/ndgen/codetree"
	"github.com/ajroetker/ndgen/ndtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode is a minimal external node.
type fakeNode struct {
	tag      string
	name     string
	operator string
	typ      ndtype.Type
	children []Opaque
	errValue string
}

func (f *fakeNode) Pos() Pos           { return Pos{Filename: "x.go", Line: 1} }
func (f *fakeNode) Type() ndtype.Type  { return f.typ }
func (f *fakeNode) Tag() string        { return f.tag }
func (f *fakeNode) Name() string       { return f.name }
func (f *fakeNode) Operator() string   { return f.operator }
func (f *fakeNode) Children() []Opaque { return f.children }
func (f *fakeNode) ErrorValue() string { return f.errValue }

func leaf(name string, typ ndtype.Type) *fakeNode {
	return &fakeNode{tag: "name", name: name, typ: typ}
}

func TestMapNodeFallbacks(t *testing.T) {
	ctx := NewContext(WithLayout(FlatLayout))
	tests := []struct {
		name    string
		op      Opaque
		variant Variant
	}{
		{"constant", leaf("1", ndtype.Int.AsConstant()), VariantConstantScalar},
		{"scalar", leaf("x", ndtype.Float64), VariantScalar},
		{"index", leaf("n", ndtype.Index), VariantScalar},
		{"array", leaf("a", ndtype.NewArray(ndtype.Float64, ndtype.StridedAxes(2))), VariantArrayOperand},
		{"pointer", leaf("p", ndtype.PointerTo(ndtype.Float64)), VariantOpaque},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := ctx.MapNode(tt.op)
			require.NoError(t, err)
			assert.Equal(t, tt.variant, n.Variant())
			assert.Equal(t, tt.op.Pos(), n.Pos())
		})
	}

	n, err := ctx.MapNode(leaf("a", ndtype.NewArray(ndtype.Float64, ndtype.StridedAxes(1))))
	require.NoError(t, err)
	a := n.(*ArrayOperandWrapper)
	assert.Equal(t, FlatLayout, a.Layout())
	assert.Equal(t, "a_strides[0]", a.Stride(0).String())
}

func TestMapNodeBuilders(t *testing.T) {
	ctx := NewContext()
	vec := ndtype.NewArray(ndtype.Float64, ndtype.StridedAxes(1))
	x := leaf("x", vec)
	y := leaf("y", ndtype.Float64)

	t.Run("binop", func(t *testing.T) {
		n, err := ctx.MapNode(&fakeNode{tag: "binop", operator: "*", typ: ndtype.Float64, children: []Opaque{x, y}})
		require.NoError(t, err)
		b, ok := n.(*Binop)
		require.True(t, ok, "got %T", n)
		assert.Equal(t, "*", b.Operator())
		assert.Equal(t, VariantArrayOperand, b.LHS().Variant())
		assert.Equal(t, VariantScalar, b.RHS().Variant())
	})

	t.Run("unop", func(t *testing.T) {
		n, err := ctx.MapNode(&fakeNode{tag: "unop", operator: "-", typ: ndtype.Float64, children: []Opaque{y}})
		require.NoError(t, err)
		assert.Equal(t, "(-y)", n.String())
	})

	t.Run("cast", func(t *testing.T) {
		n, err := ctx.MapNode(&fakeNode{tag: "cast", typ: ndtype.Float32, children: []Opaque{y}})
		require.NoError(t, err)
		assert.True(t, n.Type().Equal(ndtype.Float32))
	})

	t.Run("deref", func(t *testing.T) {
		p := leaf("p", ndtype.PointerTo(ndtype.Int))
		n, err := ctx.MapNode(&fakeNode{tag: "deref", children: []Opaque{p}})
		require.NoError(t, err)
		assert.True(t, n.Type().Equal(ndtype.Int))

		_, err = ctx.MapNode(&fakeNode{tag: "deref", children: []Opaque{y}})
		assert.ErrorIs(t, err, ErrNotPointer)
	})

	t.Run("assign", func(t *testing.T) {
		n, err := ctx.MapNode(&fakeNode{tag: "assign", children: []Opaque{x, y}})
		require.NoError(t, err)
		assert.Equal(t, VariantAssignment, n.Variant())
		assert.True(t, n.Type().Equal(vec))
	})

	t.Run("fallible call", func(t *testing.T) {
		n, err := ctx.MapNode(&fakeNode{tag: "call", name: "f", typ: ndtype.Float64, children: []Opaque{x, y}, errValue: "-1"})
		require.NoError(t, err)
		c := n.(*Call)
		assert.Equal(t, "f", c.Func())
		assert.Equal(t, "-1", c.ErrorValue())
		assert.Len(t, c.Args(), 2)
		assert.True(t, c.MayError())
	})

	t.Run("arity", func(t *testing.T) {
		_, err := ctx.MapNode(&fakeNode{tag: "binop", operator: "+", typ: ndtype.Float64, children: []Opaque{y}})
		assert.ErrorIs(t, err, ErrArity)
	})
}

func TestMapNodeCustomBuilder(t *testing.T) {
	m := DefaultNodeMap()
	m["fma"] = func(_ *Context, op Opaque, ch []Node) (Node, error) {
		mul := NewBinop(op.Pos(), op.Type(), ch[0], ch[1], "*")
		return NewBinop(op.Pos(), op.Type(), mul, ch[2], "+"), nil
	}
	ctx := NewContext(WithNodeMap(m))
	n, err := ctx.MapNode(&fakeNode{tag: "fma", typ: ndtype.Float64, children: []Opaque{
		leaf("a", ndtype.Float64), leaf("b", ndtype.Float64), leaf("c", ndtype.Float64),
	}})
	require.NoError(t, err)
	assert.Equal(t, "((a * b) + c)", n.String())
}

func TestCodegenUnspecialized(t *testing.T) {
	ctx := NewContext()
	x := scalar("x")

	_, err := ctx.Codegen(x)
	var se *SpecializationError
	require.ErrorAs(t, err, &se)
	assert.Same(t, x, se.Node)
	assert.True(t, errors.Is(err, ErrNotSpecialized))

	err = GenerateCode(codetree.NewWriter(), ctx, NewBinop(Pos{}, ndtype.Float64, x, x, "+"))
	assert.ErrorIs(t, err, ErrNotSpecialized)
}

type upperCodeGen struct {
	Strategy
}

func (u upperCodeGen) Result() string { return strings.ToUpper(u.Strategy.Result()) }

func TestCustomStrategies(t *testing.T) {
	table := DefaultStrategies().Clone()
	table[VariantScalar] = func(n Node, opts Options) (Strategy, error) {
		s, err := newScalarCodeGen(n, opts)
		if err != nil {
			return nil, err
		}
		return upperCodeGen{s}, nil
	}
	ctx := NewContext(WithStrategies(table))
	w := codetree.NewWriter()
	_, err := ctx.Generate(NewAssignment(Pos{}, scalar("x"), scalar("y")), w)
	require.NoError(t, err)
	assert.Equal(t, "X = Y;\n", w.Code())

	_, err = DefaultStrategies()[VariantScalar](scalar("z"), Options{})
	assert.NoError(t, err)
}

func TestMissingStrategy(t *testing.T) {
	ctx := NewContext(WithStrategies(StrategyTable{}))
	_, err := ctx.Generate(scalar("x"), codetree.NewWriter())
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestContextErrorHandlerChains(t *testing.T) {
	ctx := NewContext()
	w := codetree.NewWriter()
	outer := ctx.ErrorHandler(w)
	inner := ctx.ErrorHandler(w)

	assert.Same(t, inner, w.ErrorHandler())
	assert.Same(t, outer, inner.Prev())
	assert.Equal(t, 1, inner.Depth())
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := NewContext(WithLogger(logger))

	dst := array("dst", ndtype.StridedAxes(1))
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, scalar("x")), []*ArrayOperandWrapper{dst}, 0)
	_, err := ctx.Generate(it, codetree.NewWriter())
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "opened loop")
	assert.Contains(t, buf.String(), "specialized node")
}
