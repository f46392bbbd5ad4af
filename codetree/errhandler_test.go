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
	"strings"
	"testing"
)

func TestErrorHandlerCascade(t *testing.T) {
	w := NewWriter()
	h0 := NewErrorHandler(w, nil)
	h0.SetupError(w)
	h1 := NewErrorHandler(w, h0)
	h1.SetupError(w)
	h2 := NewErrorHandler(w, h1)
	h2.SetupError(w)

	w.Putln("if (bad) {")
	w.Indent()
	h2.GotoError(w, false)
	w.Dedent()
	w.Putln("}")
	for _, h := range []*ErrorHandler{h2, h1, h0} {
		h.CatchHere(w)
		h.Cascade(w)
	}

	want := strings.Join([]string{
		"int __ndgen_failed3 = 0;",
		"int __ndgen_failed5 = 0;",
		"if (bad) {",
		"    goto __ndgen_error4;",
		"}",
		"if (0) {",
		"__ndgen_error4:;",
		"    __ndgen_failed5 = 1;",
		"}",
		"if (__ndgen_failed5) {",
		"    goto __ndgen_error2;",
		"}",
		"if (0) {",
		"__ndgen_error2:;",
		"    __ndgen_failed3 = 1;",
		"}",
		"if (__ndgen_failed3) {",
		"    goto __ndgen_error0;",
		"}",
		"if (0) {",
		"__ndgen_error0:;",
		"}",
	}, "\n") + "\n"
	if got := w.Code(); got != want {
		t.Errorf("Code() =\n%s\nwant\n%s", got, want)
	}

	if got := strings.Count(w.Code(), "if (__ndgen_failed"); got != 2 {
		t.Errorf("cascade checks = %d, want 2", got)
	}

	states := []struct {
		h    *ErrorHandler
		want HandlerState
	}{
		{h2, TriggeredLocal},
		{h1, Cascading},
		{h0, Cascading},
	}
	for _, tt := range states {
		if got := tt.h.State(); got != tt.want {
			t.Errorf("depth %d State() = %v, want %v", tt.h.Depth(), got, tt.want)
		}
	}
}

func TestErrorHandlerUnreached(t *testing.T) {
	w := NewWriter()
	parent := NewErrorHandler(w, nil)
	h := NewErrorHandler(w, parent)
	h.SetupError(w)
	w.Putln("ok;")
	h.CatchHere(w)
	h.Cascade(w)

	if got, want := w.Code(), "ok;\n"; got != want {
		t.Errorf("Code() = %q, want %q", got, want)
	}
	if h.State() != Inactive || parent.State() != Inactive {
		t.Errorf("states = %v, %v, want inactive", h.State(), parent.State())
	}
	if h.Condition().Value() {
		t.Error("flag condition set without a jump")
	}
}

func TestErrorHandlerOutermostHasNoFlag(t *testing.T) {
	w := NewWriter()
	h := NewErrorHandler(w, nil)
	h.SetupError(w)
	h.GotoError(w, false)
	h.CatchHere(w)
	h.Cascade(w)

	code := w.Code()
	if strings.Contains(code, h.Flag()) {
		t.Errorf("outermost handler materialized its flag:\n%s", code)
	}
	if !strings.Contains(code, "__ndgen_error0:;") {
		t.Errorf("missing catch label:\n%s", code)
	}
	if h.Prev() != nil || h.Depth() != 0 {
		t.Errorf("Prev() = %v, Depth() = %d", h.Prev(), h.Depth())
	}
}
