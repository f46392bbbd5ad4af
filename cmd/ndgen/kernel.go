package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ajroetker/ndgen/codetree"
	"github.com/ajroetker/ndgen/ndtype"
	"github.com/ajroetker/ndgen/target"
	"github.com/ajroetker/ndgen/vector"
)

// generator turns parsed statements into C kernels for one target.
type generator struct {
	cfg    *Config
	target target.Target
	layout vector.Layout
	decls  *decls
	ctx    *vector.Context
	logger *slog.Logger
}

func newGenerator(cfg *Config, d *decls, logger *slog.Logger) (*generator, error) {
	t, err := cfg.resolveTarget()
	if err != nil {
		return nil, err
	}
	layout, err := cfg.layout()
	if err != nil {
		return nil, err
	}
	return &generator{
		cfg:    cfg,
		target: t,
		layout: layout,
		decls:  d,
		ctx:    vector.NewContext(vector.WithLayout(layout), vector.WithLogger(logger)),
		logger: logger,
	}, nil
}

// kernelName builds e.g. NdgenOut0_Avx2. A Caser is not safe for
// concurrent use.
func (g *generator) kernelName(i int, st *statement) string {
	title := cases.Title(language.English)
	capPrefix := title.String(g.cfg.FuncPrefix)
	capDest := title.String(st.dest)
	capTarget := title.String(strings.TrimPrefix(g.target.Suffix(), "_"))
	return fmt.Sprintf("%s%s%d_%s", capPrefix, capDest, i, capTarget)
}

// params spells the kernel parameters for the referenced operands.
func (g *generator) params(st *statement) []string {
	var params []string
	for _, name := range st.arrays {
		a := g.decls.arrays[name]
		if g.layout == vector.FlatLayout {
			params = append(params,
				ndtype.PointerTo(a.Elem).Declare(name+"_data"),
				"const ptrdiff_t *"+name+"_shape",
				"const ptrdiff_t *"+name+"_strides",
			)
			if lo.SomeBy(a.Axes, func(ax ndtype.Axis) bool { return ax.IsIndirect() }) {
				params = append(params, "const ptrdiff_t *"+name+"_suboffsets")
			}
		} else {
			params = append(params, "ndgen_memview "+name)
		}
	}
	for _, name := range st.scalars {
		params = append(params, g.decls.scalars[name].Declare(name))
	}
	if len(params) == 0 {
		return []string{"void"}
	}
	return params
}

// generate emits kernel i. Kernels return 0, or -1 when a fallible call
// failed.
func (g *generator) generate(i int, st *statement) (string, error) {
	name := g.kernelName(i, st)
	root, err := g.ctx.MapNode(st.root)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	arrays := lo.Map(st.arrays, func(a string, _ int) *vector.ArrayOperandWrapper {
		return vector.NewArrayOperand(root.Pos(), a, g.decls.arrays[a], g.layout)
	})
	it := vector.NewNDIterator(root.Pos(), root, arrays, g.cfg.vectorSize(g.target))

	w := codetree.NewWriter(codetree.WithManglePrefix(g.cfg.ManglePrefix))
	if g.target.Guard != "" {
		w.Putln("#if %s", g.target.Guard)
	}
	w.Putln("/* %s */", st.source)
	w.Putln("int %s(%s)", name, strings.Join(g.params(st), ", "))
	w.Putln("{")
	w.Indent()
	var h *codetree.ErrorHandler
	if it.MayError() {
		h = g.ctx.ErrorHandler(w)
	}
	if _, err := g.ctx.Generate(it, w); err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	w.Putln("return 0;")
	if h != nil {
		h.CatchHere(w)
		w.Putln("return -1;")
		w.SetErrorHandler(h.Prev())
	}
	w.Dedent()
	w.Putln("}")
	if g.target.Guard != "" {
		w.Putln("#endif")
	}

	g.logger.Debug("generated kernel", "name", name, "arrays", len(arrays), "fallible", h != nil)
	return w.Code(), nil
}

// preamble is printed once before the kernels.
func (g *generator) preamble() string {
	var sb strings.Builder
	sb.WriteString("/* Generated by ndgen. DO NOT EDIT. */\n")
	sb.WriteString("#include <stddef.h>\n")
	if g.layout == vector.MemviewLayout {
		sb.WriteString("\ntypedef struct {\n")
		sb.WriteString("    char *data;\n")
		sb.WriteString("    const ptrdiff_t *shape;\n")
		sb.WriteString("    const ptrdiff_t *strides;\n")
		sb.WriteString("    const ptrdiff_t *suboffsets;\n")
		sb.WriteString("} ndgen_memview;\n")
	}
	return sb.String()
}
