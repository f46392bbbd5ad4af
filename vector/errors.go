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
	"errors"
	"fmt"
)

var (
	// ErrNotSpecialized is returned when code is requested for a node
	// that has no bound strategy.
	ErrNotSpecialized = errors.New("node has not been specialized")
	// ErrNoArrayOperands is returned for an iteration unit without array
	// operands of rank at least one.
	ErrNoArrayOperands = errors.New("iteration unit has no array operands")
	// ErrRankMismatch is returned when an operand needs more loop indices
	// than the enclosing loops provide.
	ErrRankMismatch = errors.New("operand rank exceeds enclosing loop depth")
	// ErrNoStrategy is returned when the strategy table has no entry for
	// a node variant.
	ErrNoStrategy = errors.New("no code generation strategy for node variant")
	// ErrNotPointer is returned when dereferencing a non-pointer.
	ErrNotPointer = errors.New("operand is not a pointer")
	// ErrNoErrorScope is returned when a fallible node is evaluated with
	// no live error handler.
	ErrNoErrorScope = errors.New("fallible node evaluated outside an error scope")
	// ErrArity is returned when a mapped external node has the wrong
	// number of children.
	ErrArity = errors.New("wrong number of operands")
)

// SpecializationError reports a node used for code generation before it
// was specialized.
type SpecializationError struct {
	Node Node
}

func (e *SpecializationError) Error() string {
	return fmt.Sprintf("%v: %s (%v)", ErrNotSpecialized, e.Node, e.Node.Variant())
}

func (e *SpecializationError) Unwrap() error { return ErrNotSpecialized }

// ConfigurationError reports an iteration unit or node that cannot be
// generated as configured.
type ConfigurationError struct {
	Pos    Pos
	Err    error
	Detail string
}

func (e *ConfigurationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: %v", e.Pos, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Pos, e.Err, e.Detail)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
