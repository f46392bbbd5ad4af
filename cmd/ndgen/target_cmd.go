package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajroetker/ndgen/internal/cpuinfo"
)

// laneTypes are the element types reported by the target command.
var laneTypes = []string{"float32", "float64", "int32", "int64", "int16", "int8"}

func newTargetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target",
		Short: "Print host CPU features and the selected target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := configFrom(cmd.Context())
			t, err := cfg.resolveTarget()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			cpuinfo.Detect().Print(out)
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Target: %s\n", t.Name)
			if t.Guard != "" {
				fmt.Fprintf(out, "Guard: %s\n", t.Guard)
			}
			fmt.Fprintf(out, "Vector width: %d bytes\n", t.VecWidth)
			fmt.Fprintf(out, "Vector size (%s): %d\n", cfg.ElemType, cfg.vectorSize(t))
			for _, et := range laneTypes {
				fmt.Fprintf(out, "  %-8s %d lanes\n", et, t.LanesFor(et))
			}
			return nil
		},
	}
}
