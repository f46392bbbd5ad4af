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
	"testing"

	"github.com/ajroetker/ndgen/codetree"
	"github.com/ajroetker/ndgen/ndtype"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// elemExpr spells the element access of a direct strided operand.
func elemExpr(name string, indices ...string) string {
	p := fmt.Sprintf("((char *) %s.data)", name)
	for dim, index := range indices {
		p = fmt.Sprintf("(%s + (%s * %s.strides[%d]))", p, index, name, dim)
	}
	return fmt.Sprintf("(*((double *) %s))", p)
}

func lines(code string) []string {
	return strings.Split(strings.TrimSuffix(code, "\n"), "\n")
}

func countTrimmed(code, prefix string) int {
	n := 0
	for _, l := range lines(code) {
		if strings.HasPrefix(strings.TrimSpace(l), prefix) {
			n++
		}
	}
	return n
}

func TestBroadcastAdd(t *testing.T) {
	dst := array("dst", ndtype.StridedAxes(2))
	a := array("a", ndtype.StridedAxes(2))
	b := array("b", ndtype.StridedAxes(1))
	body := NewAssignment(Pos{}, dst, NewBinop(Pos{}, ndtype.Float64, a, b, "+"))
	it := NewNDIterator(Pos{}, body, []*ArrayOperandWrapper{dst, a, b}, 0)

	w := codetree.NewWriter()
	spec, err := NewContext().Generate(it, w)
	require.NoError(t, err)

	want := []string{
		"ptrdiff_t __ndgen_i0;",
		"for (__ndgen_i0 = 0; __ndgen_i0 < dst.shape[0]; __ndgen_i0++) {",
		"    ptrdiff_t __ndgen_i1;",
		"    for (__ndgen_i1 = 0; __ndgen_i1 < dst.shape[1]; __ndgen_i1++) {",
		"        " + elemExpr("dst", "__ndgen_i0", "__ndgen_i1") + " = (" +
			elemExpr("a", "__ndgen_i0", "__ndgen_i1") + " + " + elemExpr("b", "__ndgen_i1") + ");",
		"    }",
		"}",
	}
	code := w.Code()
	if diff := cmp.Diff(want, lines(code)); diff != "" {
		t.Errorf("generated code mismatch (-want +got):\n%s", diff)
	}

	// The broadcast operand only ever sees the innermost index.
	assert.NotContains(t, code, "b.strides[1]")
	assert.NotContains(t, code, "__ndgen_i0 * b.strides")

	// Index collection is balanced once the loops are closed.
	lhs := spec.(*NDIterator).Body().(*Assignment).LHS()
	assert.Empty(t, lhs.Codegen().(*ArrayOperandCodeGen).Indices())
	assert.Nil(t, w.ErrorHandler())
	assert.Zero(t, w.DeclarationLevels().Len())
	assert.Zero(t, w.LoopLevels().Len())
}

func TestIteratorLevels(t *testing.T) {
	dst := array("dst", ndtype.StridedAxes(3))
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, scalar("x")), []*ArrayOperandWrapper{dst}, 0)
	spec, err := NewContext().Generate(it, codetree.NewWriter())
	require.NoError(t, err)

	levels := spec.Codegen().(*NDIteratorCodeGen).Levels()
	require.Len(t, levels, 3)
	for i, lp := range levels {
		assert.Equal(t, fmt.Sprintf("__ndgen_i%d", i), lp.Index)
		assert.NotNil(t, lp.Declaration)
		assert.NotNil(t, lp.Loop)
		assert.NotNil(t, lp.Cleanup)
		assert.Nil(t, lp.Handler)
	}
}

func TestExtentSelection(t *testing.T) {
	row := array("row", ndtype.StridedAxes(1))
	m := array("m", ndtype.StridedAxes(3))
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, m, row), []*ArrayOperandWrapper{row, m}, 0)

	tests := []struct {
		level int
		want  string
	}{
		{0, "m.shape[0]"},
		{1, "m.shape[1]"},
		{2, "row.shape[0]"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.level), func(t *testing.T) {
			n, err := it.Extent(tt.level)
			require.NoError(t, err)
			assert.Equal(t, tt.want, n.String())
		})
	}
}

func TestIteratorConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		iter *NDIterator
		want error
	}{
		{
			name: "no array operands",
			iter: NewNDIterator(Pos{}, NewAssignment(Pos{}, scalar("x"), scalar("y")), nil, 0),
			want: ErrNoArrayOperands,
		},
		{
			name: "only 0-d operands",
			iter: NewNDIterator(Pos{}, NewAssignment(Pos{}, scalar("x"), scalar("y")),
				[]*ArrayOperandWrapper{array("z", nil)}, 0),
			want: ErrNoArrayOperands,
		},
		{
			name: "operand rank exceeds loop depth",
			iter: NewNDIterator(Pos{},
				NewAssignment(Pos{}, array("dst", ndtype.StridedAxes(2)), array("cube", ndtype.StridedAxes(3))),
				[]*ArrayOperandWrapper{array("dst", ndtype.StridedAxes(2))}, 0),
			want: ErrRankMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewContext().Generate(tt.iter, codetree.NewWriter())
			require.ErrorIs(t, err, tt.want)
			var cfg *ConfigurationError
			assert.ErrorAs(t, err, &cfg)
		})
	}
}

type loopEvent struct {
	open  bool
	level int
}

// recordingLoop records the order in which loop levels open and close.
type recordingLoop struct {
	CountedLoop
	events []loopEvent
}

func (r *recordingLoop) Open(w *codetree.Writer, level int, extent string) (string, error) {
	r.events = append(r.events, loopEvent{open: true, level: level})
	return r.CountedLoop.Open(w, level, extent)
}

func (r *recordingLoop) Close(w *codetree.Writer, level int) error {
	r.events = append(r.events, loopEvent{level: level})
	return r.CountedLoop.Close(w, level)
}

func TestLoopsCloseInReverseOrder(t *testing.T) {
	rec := &recordingLoop{}
	ctx := NewContext(WithLoopKind(func(*NDIterator, Options) LoopEmitter { return rec }))

	dst := array("dst", ndtype.StridedAxes(3))
	src := array("src", ndtype.StridedAxes(2))
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, src), []*ArrayOperandWrapper{dst, src}, 0)
	w := codetree.NewWriter()
	_, err := ctx.Generate(it, w)
	require.NoError(t, err)

	want := []loopEvent{
		{true, 0}, {true, 1}, {true, 2},
		{false, 2}, {false, 1}, {false, 0},
	}
	if diff := cmp.Diff(want, rec.events, cmp.AllowUnexported(loopEvent{})); diff != "" {
		t.Errorf("loop events mismatch (-want +got):\n%s", diff)
	}
	code := w.Code()
	assert.Equal(t, 3, countTrimmed(code, "for ("))
	assert.Equal(t, 3, countTrimmed(code, "}"))
}

func TestTiledInnermostLoop(t *testing.T) {
	dst := array("dst", ndtype.StridedAxes(2))
	src := array("src", ndtype.StridedAxes(2))
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, src), []*ArrayOperandWrapper{dst, src}, 4)

	w := codetree.NewWriter()
	_, err := NewContext().Generate(it, w)
	require.NoError(t, err)
	code := w.Code()

	assert.Contains(t, code, "for (__ndgen_tile1 = 0; __ndgen_tile1 < dst.shape[1]; __ndgen_tile1 += 4) {")
	assert.Contains(t, code, "__ndgen_end2 = __ndgen_tile1 + 4 < dst.shape[1] ? __ndgen_tile1 + 4 : dst.shape[1];")
	assert.Contains(t, code, "for (__ndgen_i3 = __ndgen_tile1; __ndgen_i3 < __ndgen_end2; __ndgen_i3++) {")
	assert.Contains(t, code, elemExpr("src", "__ndgen_i0", "__ndgen_i3"))
	assert.Equal(t, countTrimmed(code, "for ("), countTrimmed(code, "}"))
	assert.Zero(t, w.TiledLoopLevels().Len())
}

func TestVectorSizeFromOptions(t *testing.T) {
	dst := array("dst", ndtype.StridedAxes(1))
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, scalar("x")), []*ArrayOperandWrapper{dst}, 0)
	loop := DefaultLoopKind(it, Options{VectorSize: 8})
	tiled, ok := loop.(*TiledLoop)
	require.True(t, ok, "got %T", loop)
	assert.Equal(t, 8, tiled.VectorSize)
	assert.Equal(t, 0, tiled.Innermost)

	_, ok = DefaultLoopKind(it, Options{}).(CountedLoop)
	assert.True(t, ok)
}

func TestIndirectAxes(t *testing.T) {
	t.Run("ptr", func(t *testing.T) {
		a := array("a", []ndtype.Axis{{Access: ndtype.Ptr}, {Packing: ndtype.Contig}})
		dst := array("dst", ndtype.StridedAxes(2))
		it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, a), []*ArrayOperandWrapper{dst, a}, 0)
		w := codetree.NewWriter()
		_, err := NewContext().Generate(it, w)
		require.NoError(t, err)

		chased := "((*((char **) (((char *) a.data) + (__ndgen_i0 * a.strides[0])))) + a.suboffsets[0])"
		assert.Contains(t, w.Code(), "(*((double *) ("+chased+" + (__ndgen_i1 * a.strides[1]))))")
		assert.NotContains(t, w.Code(), "a.suboffsets[1]")
	})

	t.Run("full", func(t *testing.T) {
		a := array("a", []ndtype.Axis{{Access: ndtype.Full}})
		dst := array("dst", ndtype.StridedAxes(1))
		it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, a), []*ArrayOperandWrapper{dst, a}, 0)
		w := codetree.NewWriter()
		_, err := NewContext().Generate(it, w)
		require.NoError(t, err)

		want := []string{
			"ptrdiff_t __ndgen_i0;",
			"char *__ndgen_p1;",
			"for (__ndgen_i0 = 0; __ndgen_i0 < dst.shape[0]; __ndgen_i0++) {",
			"    __ndgen_p1 = (((char *) a.data) + (__ndgen_i0 * a.strides[0]));",
			"    if (a.suboffsets[0] >= 0) {",
			"        __ndgen_p1 = *((char **) __ndgen_p1) + a.suboffsets[0];",
			"    }",
			"    " + elemExpr("dst", "__ndgen_i0") + " = (*((double *) __ndgen_p1));",
			"}",
		}
		if diff := cmp.Diff(want, lines(w.Code())); diff != "" {
			t.Errorf("generated code mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestFallibleCallCascades(t *testing.T) {
	dst := array("dst", ndtype.StridedAxes(3))
	src := array("src", ndtype.StridedAxes(3))
	call := NewCall(Pos{}, ndtype.Float64, "f", []Node{src}, "-1")
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, call), []*ArrayOperandWrapper{dst, src}, 0)

	w := codetree.NewWriter()
	spec, err := NewContext().Generate(it, w)
	require.NoError(t, err)
	code := w.Code()

	assert.Contains(t, code, "__ndgen_r9 = f("+elemExpr("src", "__ndgen_i2", "__ndgen_i5", "__ndgen_i8")+");")
	assert.Contains(t, code, "if (__ndgen_r9 == -1) {")
	assert.Contains(t, code, "goto __ndgen_error6;")
	assert.Equal(t, 2, strings.Count(code, "if (__ndgen_failed"), "one cascade check per nested level")
	assert.Equal(t, 2, strings.Count(code, "int __ndgen_failed"))
	assert.Equal(t, 3, strings.Count(code, "if (0) {"))
	assert.Equal(t, 3, countTrimmed(code, "for ("))
	assert.Nil(t, w.ErrorHandler(), "writer handler restored")

	levels := spec.Codegen().(*NDIteratorCodeGen).Levels()
	require.Len(t, levels, 3)
	assert.Equal(t, codetree.TriggeredLocal, levels[2].Handler.State())
	assert.Equal(t, codetree.Cascading, levels[1].Handler.State())
	assert.Equal(t, codetree.Cascading, levels[0].Handler.State())
	assert.Same(t, levels[0].Handler, levels[1].Handler.Prev())
}

func TestFallibleCallChainsToOuterHandler(t *testing.T) {
	ctx := NewContext()
	w := codetree.NewWriter()
	outer := ctx.ErrorHandler(w)

	dst := array("dst", ndtype.StridedAxes(1))
	call := NewCall(Pos{}, ndtype.Float64, "f", []Node{scalar("x")}, "0")
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, call), []*ArrayOperandWrapper{dst}, 0)
	_, err := ctx.Generate(it, w)
	require.NoError(t, err)

	assert.Same(t, outer, w.ErrorHandler())
	assert.Equal(t, codetree.Cascading, outer.State())
	assert.Contains(t, w.Code(), "goto "+w.Mangle(outer.Label().Name)+";")
}

func TestFallibleCallWithoutScope(t *testing.T) {
	call := NewCall(Pos{}, ndtype.Float64, "f", []Node{scalar("x")}, "-1")
	_, err := NewContext().Generate(call, codetree.NewWriter())
	assert.ErrorIs(t, err, ErrNoErrorScope)
}

func TestInfallibleCall(t *testing.T) {
	dst := array("dst", ndtype.StridedAxes(1))
	call := NewCall(Pos{}, ndtype.Float64, "sqrt", []Node{dst}, "")
	it := NewNDIterator(Pos{}, NewAssignment(Pos{}, dst, call), []*ArrayOperandWrapper{dst}, 0)
	w := codetree.NewWriter()
	_, err := NewContext().Generate(it, w)
	require.NoError(t, err)

	assert.NotContains(t, w.Code(), "goto")
	assert.NotContains(t, w.Code(), "failed")
}
