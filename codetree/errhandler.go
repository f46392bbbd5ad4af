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

import "github.com/ajroetker/ndgen/ndtype"

// HandlerState is the position of an ErrorHandler in its state machine.
type HandlerState int

const (
	// Inactive handlers were never jumped to.
	Inactive HandlerState = iota
	// TriggeredLocal handlers are jumped to by a failing operation in
	// their own scope.
	TriggeredLocal
	// Cascading handlers are jumped to by a nested handler unwinding.
	Cascading
)

func (s HandlerState) String() string {
	switch s {
	case TriggeredLocal:
		return "triggered-local"
	case Cascading:
		return "cascading"
	default:
		return "inactive"
	}
}

// ErrorHandler is one error scope of a chain running from the innermost
// scope to the outermost. Failure inside the scope jumps to its label;
// the catch block records the failure in a flag and the cascade check
// forwards it to the parent scope, one check per level.
//
// The flag is only materialized when the handler has a parent to cascade
// to and something actually jumps here. Until then the condition is false
// and every piece of flag code sits in hidden insertion points.
type ErrorHandler struct {
	prev      *ErrorHandler
	depth     int
	label     Label
	flag      string
	condition *Condition
	reached   *Condition
	state     HandlerState
}

// NewErrorHandler returns a handler chained under prev (which may be nil).
func NewErrorHandler(w *Writer, prev *ErrorHandler) *ErrorHandler {
	depth := 0
	if prev != nil {
		depth = prev.depth + 1
	}
	return &ErrorHandler{
		prev:      prev,
		depth:     depth,
		label:     w.NewLabel("error"),
		flag:      w.Mangle(w.uniqueName("failed")),
		condition: NewCondition(false),
		reached:   NewCondition(false),
	}
}

// Prev returns the enclosing handler, or nil for the outermost one.
func (h *ErrorHandler) Prev() *ErrorHandler { return h.prev }

// Depth is the number of handlers enclosing h.
func (h *ErrorHandler) Depth() int { return h.depth }

// Label returns the catch label.
func (h *ErrorHandler) Label() Label { return h.label }

// Flag returns the name of the failure flag.
func (h *ErrorHandler) Flag() string { return h.flag }

// Condition is true once the failure flag is needed.
func (h *ErrorHandler) Condition() *Condition { return h.condition }

// State returns the current state.
func (h *ErrorHandler) State() HandlerState { return h.state }

// SetupError declares and clears the failure flag at w. The declaration is
// emitted only if the flag turns out to be needed.
func (h *ErrorHandler) SetupError(w *Writer) {
	point := w.InsertionPoint(h.condition)
	point.Putln("%s = 0;", ndtype.Int.Declare(h.flag))
}

// GotoError emits a jump to the catch label. cascade marks a jump coming
// from a nested handler rather than from a failing operation.
func (h *ErrorHandler) GotoError(w *Writer, cascade bool) {
	w.PutGoto(h.label)
	h.reached.Set(true)
	if cascade {
		h.state = Cascading
	} else if h.state == Inactive {
		h.state = TriggeredLocal
	}
	if h.prev != nil {
		h.condition.Set(true)
	}
}

// CatchHere places the catch block. Normal control flow skips it.
func (h *ErrorHandler) CatchHere(w *Writer) {
	block := w.InsertionPoint(h.reached)
	block.Putln("if (0) {")
	block.PutLabel(h.label)
	block.Indent()
	mark := block.InsertionPoint(h.condition)
	mark.Putln("%s = 1;", h.flag)
	block.Dedent()
	block.Putln("}")
}

// Cascade emits the check that forwards a recorded failure to the parent
// handler. The outermost handler has nothing to forward to.
func (h *ErrorHandler) Cascade(w *Writer) {
	if h.prev == nil || h.state == Inactive {
		return
	}
	check := w.InsertionPoint(h.condition)
	check.Putln("if (%s) {", h.flag)
	check.Indent()
	h.prev.GotoError(check, true)
	check.Dedent()
	check.Putln("}")
}
