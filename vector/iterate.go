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

	"github.com/ajroetker/ndgen/codetree"
	"github.com/ajroetker/ndgen/ndtype"
)

// ArrayOperandCodeGen collects the indices of the enclosing loops and
// computes the element address from the operand's strides. Operands of
// lower rank than the loop nest use the innermost indices, which
// broadcasts them over the outer loops.
type ArrayOperandCodeGen struct {
	BaseCodeGen
	operand *ArrayOperandWrapper
	indices []string
	element Strategy
}

func newArrayOperandCodeGen(n Node, opts Options) (Strategy, error) {
	a, ok := n.(*ArrayOperandWrapper)
	if !ok {
		return nil, fmt.Errorf("array operand strategy bound to %v", n.Variant())
	}
	return &ArrayOperandCodeGen{BaseCodeGen: BaseCodeGen{Node: n, Options: opts}, operand: a}, nil
}

func (a *ArrayOperandCodeGen) BeginLoop(_ *codetree.Writer, _ *Context, _ int, index string) error {
	a.indices = append(a.indices, index)
	return nil
}

func (a *ArrayOperandCodeGen) EndLoop(_ *codetree.Writer, _ *Context, _ int, index string) error {
	if n := len(a.indices); n > 0 && a.indices[n-1] == index {
		a.indices = a.indices[:n-1]
	}
	return nil
}

// Indices returns the loop indices collected so far, outermost first.
func (a *ArrayOperandCodeGen) Indices() []string { return a.indices }

func (a *ArrayOperandCodeGen) GenerateEvaluationCode(w *codetree.Writer, ctx *Context) error {
	op := a.operand
	ndim := op.NDim()
	if ndim > len(a.indices) {
		return &ConfigurationError{
			Pos:    op.Pos(),
			Err:    ErrRankMismatch,
			Detail: fmt.Sprintf("%s has rank %d inside %d loops", op.Name(), ndim, len(a.indices)),
		}
	}
	indices := a.indices[len(a.indices)-ndim:]
	pos := op.Pos()
	axes := op.ArrayType().Axes

	var p Node = NewCastNode(pos, ndtype.CharPtr, op.ElementPointer())
	for dim, index := range indices {
		step := NewBinop(pos, ndtype.Index, NewScalar(pos, ndtype.Index, index), op.Stride(dim), "*")
		p = NewBinop(pos, ndtype.CharPtr, p, step, "+")
		var err error
		switch axes[dim].Access {
		case ndtype.Ptr:
			p, err = a.chase(p, dim)
		case ndtype.Full:
			p, err = a.chaseIfIndirect(w, ctx, p, dim)
		}
		if err != nil {
			return err
		}
	}

	elem, err := NewDereferenceNode(pos, NewCastNode(pos, ndtype.PointerTo(op.ArrayType().Elem), p))
	if err != nil {
		return err
	}
	spec, err := elem.Specialize(ctx, a.Options)
	if err != nil {
		return err
	}
	if err := GenerateCode(w, ctx, spec); err != nil {
		return err
	}
	a.element = spec.Codegen()
	return nil
}

// chase follows the pointer stored at p: *((char **) p) + suboffset.
func (a *ArrayOperandCodeGen) chase(p Node, dim int) (Node, error) {
	pos := a.operand.Pos()
	d, err := NewDereferenceNode(pos, NewCastNode(pos, ndtype.PointerTo(ndtype.CharPtr), p))
	if err != nil {
		return nil, err
	}
	return NewBinop(pos, ndtype.CharPtr, d, a.operand.Suboffset(dim), "+"), nil
}

// chaseIfIndirect stores p in a temporary and follows it only when the
// axis has a non-negative suboffset at run time.
func (a *ArrayOperandCodeGen) chaseIfIndirect(w *codetree.Writer, ctx *Context, p Node, dim int) (Node, error) {
	spec, err := p.Specialize(ctx, a.Options)
	if err != nil {
		return nil, err
	}
	if err := GenerateCode(w, ctx, spec); err != nil {
		return nil, err
	}
	sub := a.operand.Suboffset(dim).String()
	tmp := w.DeclareTemp(ndtype.CharPtr, "p")
	w.Putln("%s = %s;", tmp, spec.Codegen().Result())
	w.Putln("if (%s >= 0) {", sub)
	w.Indent()
	w.Putln("%s = *((char **) %s) + %s;", tmp, tmp, sub)
	w.Dedent()
	w.Putln("}")
	return NewScalar(a.operand.Pos(), ndtype.CharPtr, tmp), nil
}

// Result is the dereferenced element address.
func (a *ArrayOperandCodeGen) Result() string {
	if a.element == nil {
		return a.operand.Name()
	}
	return a.element.Result()
}

// LevelPoints records the insertion points of one loop level.
type LevelPoints struct {
	// Declaration receives the index and flag declarations for the level.
	Declaration *codetree.Writer
	// Loop sits just before the loop header.
	Loop *codetree.Writer
	// Cleanup sits just after the loop.
	Cleanup *codetree.Writer
	Index   string
	Handler *codetree.ErrorHandler
}

// NDIteratorCodeGen emits the loop nest of an iteration unit.
type NDIteratorCodeGen struct {
	BaseCodeGen
	iter   *NDIterator
	levels []LevelPoints
}

func newNDIteratorCodeGen(n Node, opts Options) (Strategy, error) {
	it, ok := n.(*NDIterator)
	if !ok {
		return nil, fmt.Errorf("iterator strategy bound to %v", n.Variant())
	}
	return &NDIteratorCodeGen{BaseCodeGen: BaseCodeGen{Node: n, Options: opts}, iter: it}, nil
}

func (c *NDIteratorCodeGen) ownsSubexprs() bool { return true }

// Levels returns the insertion points of the last generated loop nest,
// outermost first.
func (c *NDIteratorCodeGen) Levels() []LevelPoints { return c.levels }

// Result is empty: an iteration unit is a statement.
func (c *NDIteratorCodeGen) Result() string { return "" }

// GenerateEvaluationCode opens one loop per level of the widest operand,
// evaluates the body once at the innermost level and closes the loops
// innermost first. When the body may fail, each level gets its own error
// handler whose catch block follows the level's loop and whose failures
// cascade to the enclosing level.
func (c *NDIteratorCodeGen) GenerateEvaluationCode(w *codetree.Writer, ctx *Context) error {
	maxNDim, err := c.iter.MaxNDim()
	if err != nil {
		return err
	}
	body := c.iter.Body()
	mayError := body.MayError()
	loops := ctx.loopEmitter(c.iter, c.Options)

	outer := w.ErrorHandler()
	depth := [3]int{w.DeclarationLevels().Len(), w.LoopLevels().Len(), w.CleanupLevels().Len()}
	defer func() {
		w.SetErrorHandler(outer)
		truncate(w.DeclarationLevels(), depth[0])
		truncate(w.LoopLevels(), depth[1])
		truncate(w.CleanupLevels(), depth[2])
	}()

	c.levels = make([]LevelPoints, maxNDim)
	for level := range maxNDim {
		lp := &c.levels[level]
		lp.Declaration = w.InsertionPoint(nil)
		w.DeclarationLevels().Push(lp.Declaration)
		lp.Loop = w.InsertionPoint(nil)
		w.LoopLevels().Push(lp.Loop)
		if mayError {
			lp.Handler = ctx.ErrorHandler(w)
			lp.Handler.SetupError(lp.Declaration)
		}
		extent, err := c.extent(ctx, level)
		if err != nil {
			return err
		}
		lp.Index, err = loops.Open(w, level, extent)
		if err != nil {
			return fmt.Errorf("opening loop %d: %w", level, err)
		}
		ctx.logger.Debug("opened loop", "level", level, "index", lp.Index, "extent", extent)
		if err := BeginLoop(w, ctx, body, level, lp.Index); err != nil {
			return err
		}
	}

	if err := GenerateCode(w, ctx, body); err != nil {
		return err
	}

	for level := maxNDim - 1; level >= 0; level-- {
		lp := &c.levels[level]
		if err := loops.Close(w, level); err != nil {
			return fmt.Errorf("closing loop %d: %w", level, err)
		}
		lp.Cleanup = w.InsertionPoint(nil)
		w.CleanupLevels().Push(lp.Cleanup)
		if lp.Handler != nil {
			lp.Handler.CatchHere(w)
			lp.Handler.Cascade(w)
		}
		if err := EndLoop(w, ctx, body, level, lp.Index); err != nil {
			return err
		}
		w.CleanupLevels().Pop()
		w.LoopLevels().Pop()
		w.DeclarationLevels().Pop()
	}

	w.SetErrorHandler(outer)
	return GenerateDisposalCode(w, ctx, body)
}

func (c *NDIteratorCodeGen) GenerateCleanupCode(*codetree.Writer, *Context) error { return nil }

func (c *NDIteratorCodeGen) extent(ctx *Context, level int) (string, error) {
	n, err := c.iter.Extent(level)
	if err != nil {
		return "", err
	}
	spec, err := n.Specialize(ctx, c.Options)
	if err != nil {
		return "", err
	}
	return spec.Codegen().Result(), nil
}

func truncate(s *codetree.LevelStack, n int) {
	for s.Len() > n {
		s.Pop()
	}
}
