package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ajroetker/ndgen/ndtype"
)

type genOptions struct {
	arrays   []string
	scalars  []string
	fallible []string
	output   string
}

func newGenCmd() *cobra.Command {
	var opts genOptions
	cmd := &cobra.Command{
		Use:   "gen [flags] STATEMENT...",
		Short: "Generate C loop kernels for elementwise statements",
		Long: `Generate one C kernel per statement. A statement is a Go assignment
to a declared array, for example:

  ndgen gen --array out:2 --array a:2 --array b:1 'out = a + b'

Arrays are declared as name[:elem]:rank[:packing] where packing is strided,
c, f, indirect or generic. Operands of lower rank broadcast over the
leading dimensions.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(cmd, &opts, args)
		},
	}
	cmd.Flags().StringArrayVar(&opts.arrays, "array", nil, "declare an array operand (name[:elem]:rank[:packing])")
	cmd.Flags().StringArrayVar(&opts.scalars, "scalar", nil, "declare a scalar operand (name[:type], type may be a pointer like *float64)")
	cmd.Flags().StringArrayVar(&opts.fallible, "fallible", nil, "mark a function as failing when it returns a value (fn=errvalue)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

func runGen(cmd *cobra.Command, opts *genOptions, args []string) error {
	cfg := configFrom(cmd.Context())
	logger := loggerFrom(cmd.Context())

	elem, err := ndtype.ParseScalar(cfg.ElemType)
	if err != nil {
		return err
	}
	d := newDecls(elem)
	for _, a := range opts.arrays {
		if err := d.addArray(a); err != nil {
			return err
		}
	}
	for _, s := range opts.scalars {
		if err := d.addScalar(s); err != nil {
			return err
		}
	}
	for _, f := range opts.fallible {
		if err := d.addFallible(f); err != nil {
			return err
		}
	}

	stmts := make([]*statement, len(args))
	for i, src := range args {
		st, err := d.parseStatement(fmt.Sprintf("stmt%d", i), src)
		if err != nil {
			return err
		}
		stmts[i] = st
	}

	g, err := newGenerator(cfg, d, logger)
	if err != nil {
		return err
	}
	kernels, err := generateAll(g, stmts, cfg.Jobs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	return writeKernels(out, g.preamble(), kernels)
}

// generateAll generates the kernels concurrently and returns them in
// statement order.
func generateAll(g *generator, stmts []*statement, jobs int) ([]string, error) {
	kernels := make([]string, len(stmts))
	var eg errgroup.Group
	eg.SetLimit(jobs)
	for i, st := range stmts {
		eg.Go(func() error {
			code, err := g.generate(i, st)
			if err != nil {
				return err
			}
			kernels[i] = code
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return kernels, nil
}

func writeKernels(w io.Writer, preamble string, kernels []string) error {
	if _, err := io.WriteString(w, preamble); err != nil {
		return err
	}
	for _, k := range kernels {
		if _, err := fmt.Fprintf(w, "\n%s", k); err != nil {
			return err
		}
	}
	return nil
}
