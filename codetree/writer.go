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

package codetree

import (
	"fmt"
	"strings"

	"github.com/ajroetker/ndgen/ndtype"
)

// DefaultManglePrefix prefixes every generated identifier and label.
const DefaultManglePrefix = "__ndgen_"

// Label is a point that can be jumped to.
type Label struct {
	Name string
}

// LevelStack records one insertion point per open loop level.
type LevelStack struct {
	points []*Writer
}

// Push records w as the innermost level.
func (s *LevelStack) Push(w *Writer) { s.points = append(s.points, w) }

// Pop removes and returns the innermost level, or nil when empty.
func (s *LevelStack) Pop() *Writer {
	if len(s.points) == 0 {
		return nil
	}
	w := s.points[len(s.points)-1]
	s.points = s.points[:len(s.points)-1]
	return w
}

// Top returns the innermost level, or nil when empty.
func (s *LevelStack) Top() *Writer {
	if len(s.points) == 0 {
		return nil
	}
	return s.points[len(s.points)-1]
}

// At returns level i, outermost first.
func (s *LevelStack) At(i int) *Writer { return s.points[i] }

// Len returns the number of recorded levels.
func (s *LevelStack) Len() int { return len(s.points) }

// unit is the state shared by every Writer of one generation unit.
type unit struct {
	root         *Tree
	formatter    Formatter
	manglePrefix string
	indentUnit   string
	counter      int

	loopLevels        LevelStack // just before the start of each loop
	tiledLoopLevels   LevelStack // like loopLevels, for strip-mined loops
	cleanupLevels     LevelStack // just after the end of each loop
	declarationLevels LevelStack // valid C89 declaration points
}

// Writer emits C code into a Tree. Writers created with InsertionPoint
// share the unit state of the writer they came from.
type Writer struct {
	tree    *Tree
	unit    *unit
	indent  int
	handler *ErrorHandler
}

// WriterOption configures NewWriter.
type WriterOption func(*unit)

// WithFormatter sets the formatter used by Code.
func WithFormatter(f Formatter) WriterOption {
	return func(u *unit) { u.formatter = f }
}

// WithManglePrefix sets the identifier prefix.
func WithManglePrefix(prefix string) WriterOption {
	return func(u *unit) { u.manglePrefix = prefix }
}

// WithIndentUnit sets the string emitted per indentation level.
func WithIndentUnit(s string) WriterOption {
	return func(u *unit) { u.indentUnit = s }
}

// NewWriter returns a writer over a fresh tree.
func NewWriter(opts ...WriterOption) *Writer {
	u := &unit{
		root:         New(),
		formatter:    StringFormatter{},
		manglePrefix: DefaultManglePrefix,
		indentUnit:   "    ",
	}
	for _, opt := range opts {
		opt(u)
	}
	return &Writer{tree: u.root, unit: u}
}

// Tree returns the buffer this writer appends to.
func (w *Writer) Tree() *Tree { return w.tree }

// Write appends raw text.
func (w *Writer) Write(text string) {
	w.tree.Write(text)
}

// Putln writes one indented, formatted line.
func (w *Writer) Putln(format string, args ...any) {
	var sb strings.Builder
	for range w.indent {
		sb.WriteString(w.unit.indentUnit)
	}
	fmt.Fprintf(&sb, format, args...)
	sb.WriteByte('\n')
	w.tree.Write(sb.String())
}

// Indent increases the indentation of subsequent lines.
func (w *Writer) Indent() { w.indent++ }

// Dedent decreases the indentation of subsequent lines.
func (w *Writer) Dedent() {
	if w.indent > 0 {
		w.indent--
	}
}

// IndentLevel returns the current indentation depth.
func (w *Writer) IndentLevel() int { return w.indent }

// InsertionPoint returns a writer for a new child fixed at the current
// position. It inherits indentation and the live error handler.
func (w *Writer) InsertionPoint(cond *Condition) *Writer {
	return &Writer{
		tree:    w.tree.InsertionPoint(cond),
		unit:    w.unit,
		indent:  w.indent,
		handler: w.handler,
	}
}

// Mangle prefixes a generated name so it cannot clash with user names.
func (w *Writer) Mangle(name string) string {
	return w.unit.manglePrefix + name
}

// NewLabel returns a unit-unique label derived from hint.
func (w *Writer) NewLabel(hint string) Label {
	return Label{Name: w.uniqueName(hint)}
}

// PutLabel places label at the current position.
func (w *Writer) PutLabel(label Label) {
	w.Putln("%s:;", w.Mangle(label.Name))
}

// PutGoto jumps to label.
func (w *Writer) PutGoto(label Label) {
	w.Putln("goto %s;", w.Mangle(label.Name))
}

func (w *Writer) uniqueName(hint string) string {
	name := fmt.Sprintf("%s%d", hint, w.unit.counter)
	w.unit.counter++
	return name
}

// AllocateTemp declares a fresh temporary of type t in this writer and
// returns its name.
func (w *Writer) AllocateTemp(t ndtype.Type, hint string) string {
	if hint == "" {
		hint = "t"
	}
	name := w.Mangle(w.uniqueName(hint))
	w.Putln("%s;", t.Declare(name))
	return name
}

// DeclareTemp allocates a temporary at the innermost declaration level,
// or in w when no loop level is open.
func (w *Writer) DeclareTemp(t ndtype.Type, hint string) string {
	if decl := w.unit.declarationLevels.Top(); decl != nil {
		return decl.AllocateTemp(t, hint)
	}
	return w.AllocateTemp(t, hint)
}

// LoopLevels are the insertion points just before each loop header.
func (w *Writer) LoopLevels() *LevelStack { return &w.unit.loopLevels }

// TiledLoopLevels are the insertion points before each strip-mined loop.
func (w *Writer) TiledLoopLevels() *LevelStack { return &w.unit.tiledLoopLevels }

// CleanupLevels are the insertion points just after each loop.
func (w *Writer) CleanupLevels() *LevelStack { return &w.unit.cleanupLevels }

// DeclarationLevels are C89 declaration points, one per loop level.
func (w *Writer) DeclarationLevels() *LevelStack { return &w.unit.declarationLevels }

// ErrorHandler returns the handler live for this buffer, or nil.
func (w *Writer) ErrorHandler() *ErrorHandler { return w.handler }

// SetErrorHandler makes h the live handler for this buffer.
func (w *Writer) SetErrorHandler(h *ErrorHandler) { w.handler = h }

// Values flattens this writer's subtree.
func (w *Writer) Values() []string { return w.tree.Values() }

// Code formats the whole unit, starting at the root tree.
func (w *Writer) Code() string {
	return w.unit.formatter.FormatValues(w.unit.root.Values())
}
