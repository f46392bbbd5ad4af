package main

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
	"strings"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/ajroetker/ndgen/ndtype"
	"github.com/ajroetker/ndgen/vector"
)

// decls are the names an expression may refer to.
type decls struct {
	arrays   map[string]*ndtype.Array
	scalars  map[string]ndtype.Type
	fallible map[string]string // function -> error value
	elem     *ndtype.Scalar    // default element type
}

func newDecls(elem *ndtype.Scalar) *decls {
	return &decls{
		arrays:   make(map[string]*ndtype.Array),
		scalars:  make(map[string]ndtype.Type),
		fallible: make(map[string]string),
		elem:     elem,
	}
}

// addArray parses name:rank, name:elem:rank or name:elem:rank:packing
// where packing is strided (default), c, f, indirect or generic.
func (d *decls) addArray(spec string) error {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 || len(parts) > 4 {
		return fmt.Errorf("invalid array %q: want name[:elem]:rank[:packing]", spec)
	}
	name, elem := parts[0], ndtype.Type(d.elem)
	rankStr := parts[1]
	if len(parts) >= 3 {
		s, err := ndtype.ParseScalar(parts[1])
		if err != nil {
			return fmt.Errorf("array %s: %w", name, err)
		}
		elem, rankStr = s, parts[2]
	}
	rank, err := strconv.Atoi(rankStr)
	if err != nil || rank < 0 {
		return fmt.Errorf("array %s: invalid rank %q", name, rankStr)
	}
	packing := "strided"
	if len(parts) == 4 {
		packing = parts[3]
	}
	axes, err := axesFor(packing, rank)
	if err != nil {
		return fmt.Errorf("array %s: %w", name, err)
	}
	if err := d.declare(name); err != nil {
		return err
	}
	d.arrays[name] = ndtype.NewArray(elem, axes)
	return nil
}

func axesFor(packing string, rank int) ([]ndtype.Axis, error) {
	switch packing {
	case "strided":
		return ndtype.StridedAxes(rank), nil
	case "c":
		return ndtype.CContigAxes(rank), nil
	case "f":
		return ndtype.FContigAxes(rank), nil
	case "indirect", "generic":
		access := ndtype.Ptr
		if packing == "generic" {
			access = ndtype.Full
		}
		axes := ndtype.StridedAxes(rank)
		for i := range axes {
			axes[i].Access = access
		}
		return axes, nil
	default:
		return nil, fmt.Errorf("unknown packing %q", packing)
	}
}

// addScalar parses name or name:type, where type may be a pointer such
// as *float64.
func (d *decls) addScalar(spec string) error {
	name, typName, ok := strings.Cut(spec, ":")
	var typ ndtype.Type = d.elem
	if ok {
		ptr := strings.HasPrefix(typName, "*")
		s, err := ndtype.ParseScalar(strings.TrimPrefix(typName, "*"))
		if err != nil {
			return fmt.Errorf("scalar %s: %w", name, err)
		}
		typ = s
		if ptr {
			typ = ndtype.PointerTo(s)
		}
	}
	if err := d.declare(name); err != nil {
		return err
	}
	d.scalars[name] = typ
	return nil
}

// addFallible parses fn=errvalue.
func (d *decls) addFallible(spec string) error {
	fn, val, ok := strings.Cut(spec, "=")
	if !ok || fn == "" || val == "" {
		return fmt.Errorf("invalid fallible %q: want fn=errvalue", spec)
	}
	d.fallible[fn] = val
	return nil
}

func (d *decls) declare(name string) error {
	if !token.IsIdentifier(name) {
		return fmt.Errorf("invalid name %q", name)
	}
	if _, ok := d.arrays[name]; ok {
		return fmt.Errorf("%s redeclared", name)
	}
	if _, ok := d.scalars[name]; ok {
		return fmt.Errorf("%s redeclared", name)
	}
	return nil
}

// goNode is an expression node parsed from Go syntax.
type goNode struct {
	pos      vector.Pos
	typ      ndtype.Type
	tag      string
	name     string
	operator string
	children []vector.Opaque
	errValue string
}

func (n *goNode) Pos() vector.Pos           { return n.pos }
func (n *goNode) Type() ndtype.Type         { return n.typ }
func (n *goNode) Tag() string               { return n.tag }
func (n *goNode) Name() string              { return n.name }
func (n *goNode) Operator() string          { return n.operator }
func (n *goNode) Children() []vector.Opaque { return n.children }
func (n *goNode) ErrorValue() string        { return n.errValue }

// binaryOps maps Go binary operators to C.
var binaryOps = map[token.Token]string{
	token.ADD: "+", token.SUB: "-", token.MUL: "*", token.QUO: "/", token.REM: "%",
	token.AND: "&", token.OR: "|", token.XOR: "^", token.SHL: "<<", token.SHR: ">>",
	token.EQL: "==", token.NEQ: "!=", token.LSS: "<", token.LEQ: "<=", token.GTR: ">", token.GEQ: ">=",
	token.LAND: "&&", token.LOR: "||",
}

// unaryOps maps Go unary operators to C. Go's ^x is C's ~x.
var unaryOps = map[token.Token]string{
	token.SUB: "-", token.NOT: "!", token.XOR: "~",
}

// statement is one parsed "dst = expr" kernel statement.
type statement struct {
	source  string
	dest    string
	root    *goNode
	arrays  []string // referenced arrays, destination first
	scalars []string // referenced scalars in order of appearance
}

// parser state for one statement.
type stmtParser struct {
	d       *decls
	fset    *token.FileSet
	file    string
	arrays  []string
	scalars []string
	seen    map[string]bool
}

// parseStatement parses src, which must be a single assignment to a
// declared array, into an external node tree.
func (d *decls) parseStatement(file, src string) (*statement, error) {
	fset := token.NewFileSet()
	wrapped := "package p\nfunc _() {\n" + src + "\n}\n"
	f, err := parser.ParseFile(fset, file, wrapped, 0)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	body := f.Decls[0].(*ast.FuncDecl).Body.List
	if len(body) != 1 {
		return nil, fmt.Errorf("%q: want exactly one statement", src)
	}
	assign, ok := body[0].(*ast.AssignStmt)
	if !ok || assign.Tok != token.ASSIGN || len(assign.Lhs) != 1 || len(assign.Rhs) != 1 {
		return nil, fmt.Errorf("%q: want dst = expr", src)
	}
	dst, ok := astutil.Unparen(assign.Lhs[0]).(*ast.Ident)
	if !ok {
		return nil, fmt.Errorf("%q: destination must be a name", src)
	}
	if _, ok := d.arrays[dst.Name]; !ok {
		return nil, fmt.Errorf("%q: destination %s is not a declared array", src, dst.Name)
	}

	p := &stmtParser{d: d, fset: fset, file: file, seen: make(map[string]bool)}
	lhs, err := p.expr(dst)
	if err != nil {
		return nil, err
	}
	rhs, err := p.expr(assign.Rhs[0])
	if err != nil {
		return nil, err
	}
	root := &goNode{pos: p.pos(assign), typ: lhs.typ, tag: "assign", children: []vector.Opaque{lhs, rhs}}
	return &statement{source: src, dest: dst.Name, root: root, arrays: p.arrays, scalars: p.scalars}, nil
}

// pos maps a position in the wrapped source back to the statement.
func (p *stmtParser) pos(n ast.Node) vector.Pos {
	position := p.fset.Position(n.Pos())
	return vector.Pos{Filename: p.file, Line: position.Line - 2, Column: position.Column}
}

func (p *stmtParser) errorf(n ast.Node, format string, args ...any) error {
	return fmt.Errorf("%s: %s", p.pos(n), fmt.Sprintf(format, args...))
}

func (p *stmtParser) expr(e ast.Expr) (*goNode, error) {
	switch e := astutil.Unparen(e).(type) {
	case *ast.Ident:
		return p.ident(e)
	case *ast.BasicLit:
		return p.literal(e)
	case *ast.BinaryExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			return nil, p.errorf(e, "unsupported operator %s", e.Op)
		}
		x, err := p.expr(e.X)
		if err != nil {
			return nil, err
		}
		y, err := p.expr(e.Y)
		if err != nil {
			return nil, err
		}
		typ := resultType(x.typ, y.typ)
		switch e.Op {
		case token.EQL, token.NEQ, token.LSS, token.LEQ, token.GTR, token.GEQ, token.LAND, token.LOR:
			typ = ndtype.Int
		}
		return &goNode{pos: p.pos(e), typ: typ, tag: "binop", operator: op, children: []vector.Opaque{x, y}}, nil
	case *ast.UnaryExpr:
		x, err := p.expr(e.X)
		if err != nil {
			return nil, err
		}
		if e.Op == token.ADD {
			return x, nil
		}
		op, ok := unaryOps[e.Op]
		if !ok {
			return nil, p.errorf(e, "unsupported operator %s", e.Op)
		}
		return &goNode{pos: p.pos(e), typ: valueType(x.typ), tag: "unop", operator: op, children: []vector.Opaque{x}}, nil
	case *ast.StarExpr:
		x, err := p.expr(e.X)
		if err != nil {
			return nil, err
		}
		ptr, ok := x.typ.(*ndtype.Pointer)
		if !ok {
			return nil, p.errorf(e, "cannot dereference %s", x.name)
		}
		return &goNode{pos: p.pos(e), typ: ptr.Base, tag: "deref", children: []vector.Opaque{x}}, nil
	case *ast.CallExpr:
		return p.call(e)
	default:
		return nil, p.errorf(e, "unsupported expression %T", e)
	}
}

func (p *stmtParser) ident(e *ast.Ident) (*goNode, error) {
	if a, ok := p.d.arrays[e.Name]; ok {
		if !p.seen[e.Name] {
			p.seen[e.Name] = true
			p.arrays = append(p.arrays, e.Name)
		}
		return &goNode{pos: p.pos(e), typ: a, tag: "name", name: e.Name}, nil
	}
	if t, ok := p.d.scalars[e.Name]; ok {
		if !p.seen[e.Name] {
			p.seen[e.Name] = true
			p.scalars = append(p.scalars, e.Name)
		}
		return &goNode{pos: p.pos(e), typ: t, tag: "name", name: e.Name}, nil
	}
	return nil, p.errorf(e, "undeclared name: %s", e.Name)
}

func (p *stmtParser) literal(e *ast.BasicLit) (*goNode, error) {
	var typ *ndtype.Scalar
	switch e.Kind {
	case token.INT:
		typ = ndtype.Int
	case token.FLOAT:
		typ = ndtype.Float64
	default:
		return nil, p.errorf(e, "unsupported literal %s", e.Value)
	}
	return &goNode{pos: p.pos(e), typ: typ.AsConstant(), tag: "const", name: e.Value}, nil
}

func (p *stmtParser) call(e *ast.CallExpr) (*goNode, error) {
	fn, ok := astutil.Unparen(e.Fun).(*ast.Ident)
	if !ok {
		return nil, p.errorf(e, "unsupported call target")
	}
	args := make([]vector.Opaque, len(e.Args))
	for i, a := range e.Args {
		n, err := p.expr(a)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}
	if conv, err := ndtype.ParseScalar(fn.Name); err == nil {
		if len(args) != 1 {
			return nil, p.errorf(e, "conversion to %s takes one argument", fn.Name)
		}
		return &goNode{pos: p.pos(e), typ: conv, tag: "cast", children: args}, nil
	}
	return &goNode{
		pos:      p.pos(e),
		typ:      p.d.elem,
		tag:      "call",
		name:     fn.Name,
		children: args,
		errValue: p.d.fallible[fn.Name],
	}, nil
}

// valueType is the per-element type of t.
func valueType(t ndtype.Type) ndtype.Type {
	if a, ok := t.(*ndtype.Array); ok {
		return a.Elem
	}
	if s, ok := t.(*ndtype.Scalar); ok && s.Constant {
		return &ndtype.Scalar{Name: s.Name}
	}
	return t
}

// resultType prefers the type of a non-constant operand.
func resultType(x, y ndtype.Type) ndtype.Type {
	if ndtype.IsConstant(x) && !ndtype.IsConstant(y) {
		return valueType(y)
	}
	return valueType(x)
}
