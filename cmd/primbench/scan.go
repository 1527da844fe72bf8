package main

import (
	"github.com/LynnColeArt/gudaprim/scan"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

func newScanCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run the single-pass inclusive scan",
		RunE: func(*cobra.Command, []string) error {
			return runScan(opts)
		},
	}
	cmd.Flags().IntVarP(&opts.scanSize, "size", "n", 1<<20, "number of elements")
	cmd.Flags().IntVar(&opts.workGroup, "wg-size", 0, "work-group size, which is also the tile size (0 = default)")
	cmd.Flags().StringVar(&opts.op, "op", "plus", "scan operator: plus, max, min or or")
	return cmd
}

func runScan(opts *options) error {
	var op func(a, b int32) int32
	switch opts.op {
	case "plus":
		op = scan.Plus[int32]
	case "max":
		op = scan.Max[int32]
	case "min":
		op = scan.Min[int32]
	case "or":
		op = scan.Or[int32]
	default:
		return errors.Newf("unknown operator %q", opts.op)
	}

	ctx, reg, err := newContext(opts)
	if err != nil {
		return err
	}
	defer ctx.Destroy()

	rng := newRand(opts)
	in := make([]int32, opts.scanSize)
	for i := range in {
		in[i] = int32(rng.Intn(201) - 100)
	}
	out := make([]int32, opts.scanSize)
	cfg := scan.Config{WorkGroupSize: opts.workGroup}

	if err := timeRuns(opts, "scan", opts.scanSize, func() error {
		return scan.Inclusive(ctx.DefaultStream(), in, out, op, cfg)
	}); err != nil {
		return err
	}

	var acc int32
	for i, v := range in {
		if i == 0 {
			acc = v
		} else {
			acc = op(acc, v)
		}
		if out[i] != acc {
			return errors.Newf("mismatch at %d: got %d, want %d", i, out[i], acc)
		}
	}
	logger.WithField("elements", opts.scanSize).Info("scan verified")
	return dumpMetrics(opts, reg)
}
