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
	"github.com/ajroetker/ndgen/codetree"
	"github.com/ajroetker/ndgen/ndtype"
)

// LoopEmitter writes the header and footer of one loop level. Open is
// called with the declaration point for the level already pushed on the
// writer and returns the index variable.
type LoopEmitter interface {
	Open(w *codetree.Writer, level int, extent string) (index string, err error)
	Close(w *codetree.Writer, level int) error
}

// LoopKindFactory chooses the loop emitter for an iteration unit.
type LoopKindFactory func(it *NDIterator, opts Options) LoopEmitter

// DefaultLoopKind strip-mines the innermost loop when a vector size is
// set and emits plain counted loops otherwise.
func DefaultLoopKind(it *NDIterator, opts Options) LoopEmitter {
	vs := it.VectorSize()
	if vs == 0 {
		vs = opts.VectorSize
	}
	if vs <= 1 {
		return CountedLoop{}
	}
	maxNDim, err := it.MaxNDim()
	if err != nil {
		return CountedLoop{}
	}
	return &TiledLoop{VectorSize: vs, Innermost: maxNDim - 1}
}

// CountedLoop emits for (i = 0; i < n; i++).
type CountedLoop struct{}

func (CountedLoop) Open(w *codetree.Writer, _ int, extent string) (string, error) {
	i := w.DeclarationLevels().Top().AllocateTemp(ndtype.Index, "i")
	w.Putln("for (%s = 0; %s < %s; %s++) {", i, i, extent, i)
	w.Indent()
	return i, nil
}

func (CountedLoop) Close(w *codetree.Writer, _ int) error {
	w.Dedent()
	w.Putln("}")
	return nil
}

// TiledLoop strip-mines the innermost level into tiles of VectorSize
// elements. Outer levels are counted loops.
type TiledLoop struct {
	VectorSize int
	Innermost  int
}

func (t *TiledLoop) Open(w *codetree.Writer, level int, extent string) (string, error) {
	if level != t.Innermost {
		return CountedLoop{}.Open(w, level, extent)
	}
	decl := w.DeclarationLevels().Top()
	tile := decl.AllocateTemp(ndtype.Index, "tile")
	end := decl.AllocateTemp(ndtype.Index, "end")
	i := decl.AllocateTemp(ndtype.Index, "i")
	w.TiledLoopLevels().Push(w.InsertionPoint(nil))
	w.Putln("for (%s = 0; %s < %s; %s += %d) {", tile, tile, extent, tile, t.VectorSize)
	w.Indent()
	w.Putln("%s = %s + %d < %s ? %s + %d : %s;", end, tile, t.VectorSize, extent, tile, t.VectorSize, extent)
	w.Putln("for (%s = %s; %s < %s; %s++) {", i, tile, i, end, i)
	w.Indent()
	return i, nil
}

func (t *TiledLoop) Close(w *codetree.Writer, level int) error {
	if level != t.Innermost {
		return CountedLoop{}.Close(w, level)
	}
	for range 2 {
		w.Dedent()
		w.Putln("}")
	}
	w.TiledLoopLevels().Pop()
	return nil
}
