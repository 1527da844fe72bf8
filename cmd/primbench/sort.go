package main

import (
	"math"
	"sort"

	"github.com/LynnColeArt/gudaprim"
	"github.com/LynnColeArt/gudaprim/radix"
	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newSortCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sort",
		Short: "Run the one-work-group radix sort",
		RunE: func(*cobra.Command, []string) error {
			return runSort(opts)
		},
	}
	cmd.Flags().IntVarP(&opts.sortSize, "size", "n", 0, "number of keys (0 = capacity)")
	cmd.Flags().BoolVar(&opts.descending, "descending", false, "sort in descending order")
	cmd.Flags().StringVar(&opts.keyType, "keys", "int32", "key type: int32, uint64 or float32")
	cmd.Flags().IntVar(&opts.groupSize, "group-size", 0, "work-items in the work-group (0 = default)")
	cmd.Flags().IntVar(&opts.blockSize, "block-size", 0, "keys per work-item (0 = default)")
	cmd.Flags().IntVar(&opts.radixBits, "radix-bits", 0, "key bits per pass (0 = default)")
	return cmd
}

func runSort(opts *options) error {
	cfg := radix.Config{GroupSize: opts.groupSize, BlockSize: opts.blockSize, RadixBits: opts.radixBits}
	n := opts.sortSize
	if n == 0 {
		n = radix.Capacity(cfg)
	}

	ctx, reg, err := newContext(opts)
	if err != nil {
		return err
	}
	defer ctx.Destroy()

	rng := newRand(opts)
	switch opts.keyType {
	case "int32":
		err = benchSort(opts, ctx, cfg, n, func() int32 { return rng.Int31() - math.MaxInt32/2 })
	case "uint64":
		err = benchSort(opts, ctx, cfg, n, rng.Uint64)
	case "float32":
		err = benchSort(opts, ctx, cfg, n, func() float32 { return float32(rng.NormFloat64()) })
	default:
		err = errors.Newf("unknown key type %q", opts.keyType)
	}
	if err != nil {
		return err
	}
	return dumpMetrics(opts, reg)
}

func benchSort[K radix.Key](opts *options, ctx *gudaprim.Context, cfg radix.Config, n int, gen func() K) error {
	input := make([]K, n)
	for i := range input {
		input[i] = gen()
	}
	keys := make([]K, n)
	ascending := !opts.descending

	if err := timeRuns(opts, "sort", n, func() error {
		copy(keys, input)
		return radix.SortOneWorkGroup(ctx.DefaultStream(), keys, ascending, cfg).Wait()
	}); err != nil {
		return err
	}

	sorted := sort.SliceIsSorted(keys, func(i, j int) bool {
		if ascending {
			return keys[i] < keys[j]
		}
		return keys[i] > keys[j]
	})
	if !sorted {
		return errors.New("output is not sorted")
	}
	logger.WithFields(logrus.Fields{
		"keys":      n,
		"ascending": ascending,
	}).Info("sort verified")
	return nil
}
