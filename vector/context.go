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
	"context"
	"fmt"
	"log/slog"

	"github.com/ajroetker/ndgen/codetree"
	"github.com/ajroetker/ndgen/ndtype"
)

// Opaque is an expression node owned by a front end. The Context maps
// trees of them into Nodes.
type Opaque interface {
	Pos() Pos
	Type() ndtype.Type
	// Tag classifies the node for the NodeMap, e.g. "binop".
	Tag() string
	// Name is the C spelling of leaves and the function name of calls.
	Name() string
	// Operator is the C operator of unary and binary nodes.
	Operator() string
	Children() []Opaque
}

// Fallible is implemented by external call nodes that report failure
// through a sentinel return value.
type Fallible interface {
	ErrorValue() string
}

// NodeBuilder builds a Node for an external node whose children have
// already been mapped.
type NodeBuilder func(ctx *Context, op Opaque, children []Node) (Node, error)

// NodeMap maps external node tags to builders.
type NodeMap map[string]NodeBuilder

// DefaultNodeMap returns builders for the tags binop, unop, cast, deref,
// assign and call.
func DefaultNodeMap() NodeMap {
	return NodeMap{
		"binop": func(_ *Context, op Opaque, ch []Node) (Node, error) {
			if err := arity(op, ch, 2); err != nil {
				return nil, err
			}
			return NewBinop(op.Pos(), op.Type(), ch[0], ch[1], op.Operator()), nil
		},
		"unop": func(_ *Context, op Opaque, ch []Node) (Node, error) {
			if err := arity(op, ch, 1); err != nil {
				return nil, err
			}
			return NewUnop(op.Pos(), op.Type(), ch[0], op.Operator()), nil
		},
		"cast": func(_ *Context, op Opaque, ch []Node) (Node, error) {
			if err := arity(op, ch, 1); err != nil {
				return nil, err
			}
			return NewCastNode(op.Pos(), op.Type(), ch[0]), nil
		},
		"deref": func(_ *Context, op Opaque, ch []Node) (Node, error) {
			if err := arity(op, ch, 1); err != nil {
				return nil, err
			}
			return NewDereferenceNode(op.Pos(), ch[0])
		},
		"assign": func(_ *Context, op Opaque, ch []Node) (Node, error) {
			if err := arity(op, ch, 2); err != nil {
				return nil, err
			}
			return NewAssignment(op.Pos(), ch[0], ch[1]), nil
		},
		"call": func(_ *Context, op Opaque, ch []Node) (Node, error) {
			var errorValue string
			if f, ok := op.(Fallible); ok {
				errorValue = f.ErrorValue()
			}
			return NewCall(op.Pos(), op.Type(), op.Name(), ch, errorValue), nil
		},
	}
}

func arity(op Opaque, children []Node, want int) error {
	if len(children) != want {
		return &ConfigurationError{
			Pos:    op.Pos(),
			Err:    ErrArity,
			Detail: fmt.Sprintf("%s %q has %d operands, want %d", op.Tag(), op.Name(), len(children), want),
		}
	}
	return nil
}

// Context supplies node mapping, strategies, loop kinds and the operand
// layout to a generation run. A Context is read-only after construction
// and may be shared by concurrent runs on separate writers.
type Context struct {
	nodeMap    NodeMap
	strategies StrategyTable
	loopKind   LoopKindFactory
	layout     Layout
	logger     *slog.Logger
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithNodeMap replaces the external node builders.
func WithNodeMap(m NodeMap) ContextOption {
	return func(c *Context) { c.nodeMap = m }
}

// WithStrategies replaces the strategy table.
func WithStrategies(t StrategyTable) ContextOption {
	return func(c *Context) { c.strategies = t }
}

// WithLoopKind sets the factory choosing how iterator loops are emitted.
func WithLoopKind(f LoopKindFactory) ContextOption {
	return func(c *Context) { c.loopKind = f }
}

// WithLayout sets the buffer layout of array operands built by MapNode.
func WithLayout(l Layout) ContextOption {
	return func(c *Context) { c.layout = l }
}

// WithLogger sets the logger for debug records.
func WithLogger(l *slog.Logger) ContextOption {
	return func(c *Context) { c.logger = l }
}

// NewContext returns a Context with the default node map, strategies,
// loop kind and memoryview layout.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		nodeMap:    DefaultNodeMap(),
		strategies: DefaultStrategies(),
		loopKind:   DefaultLoopKind,
		layout:     MemviewLayout,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Layout returns the layout used for mapped array operands.
func (c *Context) Layout() Layout { return c.layout }

// Logger returns the Context's logger.
func (c *Context) Logger() *slog.Logger { return c.logger }

// MapNode maps an external tree into Nodes. Children are mapped first.
// Tags without a builder fall back on the node's type: constants become
// ConstantScalar, scalars Scalar, arrays ArrayOperandWrapper, and anything
// else an opaque NodeWrapper.
func (c *Context) MapNode(op Opaque) (Node, error) {
	kids := op.Children()
	children := make([]Node, len(kids))
	for i, k := range kids {
		n, err := c.MapNode(k)
		if err != nil {
			return nil, err
		}
		children[i] = n
	}
	if build, ok := c.nodeMap[op.Tag()]; ok {
		return build(c, op, children)
	}
	t := op.Type()
	switch {
	case ndtype.IsConstant(t):
		return NewConstantScalar(op.Pos(), t, op.Name()), nil
	case ndtype.IsScalar(t):
		return NewScalar(op.Pos(), t, op.Name()), nil
	case ndtype.IsArray(t):
		return newArrayOperandFromOpaque(op, c.layout), nil
	default:
		return newNodeWrapper(op), nil
	}
}

// Codegen returns the strategy bound to n.
func (c *Context) Codegen(n Node) (Strategy, error) {
	s := n.Codegen()
	if s == nil {
		return nil, &SpecializationError{Node: n}
	}
	return s, nil
}

// ErrorHandler pushes a new error handler onto w, chained to the handler
// w currently has. Callers restore the previous handler when the scope
// ends.
func (c *Context) ErrorHandler(w *codetree.Writer) *codetree.ErrorHandler {
	h := codetree.NewErrorHandler(w, w.ErrorHandler())
	w.SetErrorHandler(h)
	c.logger.Debug("acquired error handler", "label", h.Label().Name, "depth", h.Depth())
	return h
}

// Generate specializes n and writes its evaluation and disposal code to w.
// It returns the specialized tree.
func (c *Context) Generate(n Node, w *codetree.Writer) (Node, error) {
	spec, err := n.Specialize(c, Options{})
	if err != nil {
		return nil, fmt.Errorf("specializing %s: %w", n.Variant(), err)
	}
	if err := GenerateCode(w, c, spec); err != nil {
		return nil, err
	}
	if err := GenerateDisposalCode(w, c, spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// bind resolves the strategy for a freshly copied node and attaches it.
func (c *Context) bind(n bindable, opts Options) (Node, error) {
	factory, ok := c.strategies[n.Variant()]
	if !ok {
		return nil, &ConfigurationError{Pos: n.Pos(), Err: ErrNoStrategy, Detail: n.Variant().String()}
	}
	s, err := factory(n, opts)
	if err != nil {
		return nil, err
	}
	n.setCodegen(s)
	if c.logger.Enabled(context.Background(), slog.LevelDebug) {
		c.logger.Debug("specialized node", "variant", n.Variant(), "node", n.String())
	}
	return n, nil
}

func (c *Context) loopEmitter(it *NDIterator, opts Options) LoopEmitter {
	return c.loopKind(it, opts)
}
