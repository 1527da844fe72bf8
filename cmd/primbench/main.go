// Copyright ©2024 The GUDA Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command primbench runs the device primitives on generated input, checks
// the results against a sequential reference and reports throughput.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/LynnColeArt/gudaprim"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	appName = "primbench"
	appSha  = "populated-at-link-time"
	logger  *logrus.Entry
)

type options struct {
	residency   int
	order       string
	seed        int64
	repeat      int
	logJSON     bool
	verbose     bool
	dumpMetrics bool

	// scan
	scanSize  int
	workGroup int
	op        string

	// sort
	sortSize   int
	descending bool
	keyType    string
	groupSize  int
	blockSize  int
	radixBits  int
}

func main() {
	host, _ := os.Hostname()
	rootLogger := logrus.New()
	logger = rootLogger.WithFields(logrus.Fields{
		"app":  appName,
		"sha":  appSha,
		"host": host,
	})

	if err := newRootCmd(rootLogger).Execute(); err != nil {
		logger.WithField("err", err).Error("shutting down due to error")
		os.Exit(1)
	}
}

func newRootCmd(rootLogger *logrus.Logger) *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:          appName,
		Short:        "Benchmark device-resident parallel primitives",
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if opts.logJSON {
				rootLogger.SetFormatter(new(logrus.JSONFormatter))
			}
			if opts.verbose {
				rootLogger.SetLevel(logrus.DebugLevel)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.IntVar(&opts.residency, "residency", 0, "maximum resident work-groups (0 = two per core)")
	flags.StringVar(&opts.order, "order", "in-order", "work-group dispatch order: in-order, reversed or shuffled")
	flags.Int64Var(&opts.seed, "seed", 1, "seed for input generation and shuffled dispatch")
	flags.IntVar(&opts.repeat, "repeat", 3, "number of timed runs")
	flags.BoolVar(&opts.logJSON, "log-json", false, "emit logs as JSON")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.dumpMetrics, "metrics", false, "print the collected metrics on exit")

	cmd.AddCommand(newScanCmd(opts), newSortCmd(opts), newDeviceCmd(opts))
	return cmd
}

func newDeviceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Print the emulated device description",
		RunE: func(*cobra.Command, []string) error {
			ctx, _, err := newContext(opts)
			if err != nil {
				return err
			}
			defer ctx.Destroy()
			printDevice(ctx.Device())
			return nil
		},
	}
}

// newContext builds a device context from the common flags.
func newContext(opts *options) (*gudaprim.Context, *prometheus.Registry, error) {
	order, err := gudaprim.ParseDispatchOrder(opts.order)
	if err != nil {
		return nil, nil, err
	}
	reg := prometheus.NewRegistry()
	ctx, err := gudaprim.NewContext(gudaprim.Config{
		MaxResidentGroups: opts.residency,
		DispatchOrder:     order,
		DispatchSeed:      opts.seed,
		Registerer:        reg,
		Logger:            logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return ctx, reg, nil
}

func printDevice(dev *gudaprim.Device) {
	version, _ := gudaprim.Version()
	if version == "" {
		version = "(devel)"
	}
	fmt.Printf("gudaprim:        %s\n", version)
	fmt.Printf("Device:          %s\n", dev.Name)
	fmt.Printf("Cores:           %d\n", dev.NumCores)
	fmt.Printf("Memory:          %s\n", humanize.IBytes(dev.TotalMem))
	fmt.Printf("Resident groups: %d\n", dev.MaxResidentGroups)
	fmt.Printf("Local memory:    %s\n", humanize.IBytes(uint64(dev.LocalMemSize)))
	fmt.Printf("Sub-group size:  %d\n", dev.SubGroupSize)
	fmt.Println(dev.Features)
}

// timeRuns calls run opts.repeat times and reports the best time.
func timeRuns(opts *options, name string, n int, run func() error) error {
	best := time.Duration(0)
	for i := 0; i < max(opts.repeat, 1); i++ {
		start := time.Now()
		if err := run(); err != nil {
			return err
		}
		if d := time.Since(start); best == 0 || d < best {
			best = d
		}
	}
	rate := float64(n) / best.Seconds()
	fmt.Printf("%-6s %12s elements  best %-12v %s elements/s\n",
		name, humanize.Comma(int64(n)), best, humanize.SI(rate, ""))
	return nil
}

func dumpMetrics(opts *options, reg *prometheus.Registry) error {
	if !opts.dumpMetrics {
		return nil
	}
	families, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(os.Stdout, mf); err != nil {
			return err
		}
	}
	return nil
}

func newRand(opts *options) *rand.Rand {
	return rand.New(rand.NewSource(opts.seed))
}
