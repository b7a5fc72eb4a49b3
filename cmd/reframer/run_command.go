package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zsiec/reframer/internal/config"
	"github.com/zsiec/reframer/internal/ingest"
	"github.com/zsiec/reframer/internal/logging"
	"github.com/zsiec/reframer/internal/metrics"
	"github.com/zsiec/reframer/internal/pipeline"
	"github.com/zsiec/reframer/internal/sink"
)

type runFlags struct {
	input       string
	starts      []string
	ends        []string
	round       string
	rt          string
	out         string
	splitRange  bool
	captions    bool
	metricsAddr string
	logLevel    string
	logFormat   string
}

func newRunCommand(configFlag *string) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Reframe an input into object files",
		Example: `  reframer run --input in.ts --xs T00:00:10 --xe T00:00:20 --out clips
  reframer run --input srt://:6000 --xs D5000 --splitrange`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFlag, f.apply(cmd))
			if err != nil {
				return err
			}
			return runReframer(cmd, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.input, "input", "i", "", "Input file path, srt://:port to listen or srt://host:port to pull")
	flags.StringSliceVar(&f.starts, "xs", nil, "Range start expressions")
	flags.StringSliceVar(&f.ends, "xe", nil, "Range end expressions")
	flags.StringVar(&f.round, "xround", "", "Start rounding: before, after or closest")
	flags.StringVar(&f.rt, "rt", "", "Real-time pacing: off, on or sync")
	flags.StringVarP(&f.out, "out", "o", "", "Output directory")
	flags.BoolVar(&f.splitRange, "splitrange", false, "Write every range to its own file")
	flags.BoolVar(&f.captions, "captions", false, "Extract CEA-608 captions as a text stream")
	flags.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flags.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&f.logFormat, "log-format", "", "Log format: auto, text or json")
	return cmd
}

// apply returns a config override for the flags set on the command line.
func (f *runFlags) apply(cmd *cobra.Command) func(*config.Config) {
	changed := cmd.Flags().Changed
	return func(c *config.Config) {
		if changed("input") {
			c.Input.URL = f.input
		}
		if changed("xs") {
			c.Reframe.Starts = f.starts
		}
		if changed("xe") {
			c.Reframe.Ends = f.ends
		}
		if changed("xround") {
			c.Reframe.Round = f.round
		}
		if changed("rt") {
			c.Reframe.RealTime = f.rt
		}
		if changed("out") {
			c.Output.Dir = f.out
		}
		if changed("splitrange") {
			c.Reframe.SplitRange = f.splitRange
		}
		if changed("captions") {
			c.Input.Captions = f.captions
		}
		if changed("metrics-addr") {
			c.Metrics.Addr = f.metricsAddr
		}
		if changed("log-level") {
			c.Logging.Level = f.logLevel
		}
		if changed("log-format") {
			c.Logging.Format = f.logFormat
		}
	}
}

func runReframer(cmd *cobra.Command, cfg *config.Config) error {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return err
	}
	log := logging.New(os.Stderr, level, logging.Format(cfg.Logging.Format)).
		With("session", uuid.NewString())
	slog.SetDefault(log)

	opts, err := cfg.Options()
	if err != nil {
		return err
	}
	m := metrics.New()
	opts.Stats = m

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	log.Info("reframer starting",
		"version", version,
		"input", cfg.Input.URL,
		"starts", cfg.Reframe.Starts,
		"ends", cfg.Reframe.Ends,
		"out", cfg.Output.Dir,
	)

	g, ctx := errgroup.WithContext(ctx)
	// Listeners and the metrics server run until the pipeline is done.
	srvCtx, stopServers := context.WithCancel(ctx)
	defer stopServers()

	open, seekable, err := openInput(srvCtx, g, cfg, log)
	if err != nil {
		stopServers()
		_ = g.Wait()
		return err
	}
	src := ingest.NewSource(open, seekable, log)
	src.SetCaptions(cfg.Input.Captions)
	src.SetMaxBytes(cfg.MaxBufferBytes())
	src.SetStats(m)

	snk, err := sink.New(cfg.Output.Dir, log)
	if err != nil {
		stopServers()
		_ = g.Wait()
		return err
	}
	p := pipeline.New(src, opts, snk, log)
	p.SetStats(m)

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return metrics.Serve(srvCtx, cfg.Metrics.Addr, m, log)
		})
	}
	g.Go(func() error {
		defer stopServers()
		return p.Run(ctx)
	})

	start := time.Now()
	err = g.Wait()
	files := snk.Files()
	log.Info("reframer finished", "files", len(files), "elapsed", time.Since(start).Round(time.Millisecond))
	if len(files) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), renderFiles(files))
	}
	return err
}

func renderFiles(files []sink.File) string {
	headers := []string{"Stream", "File", "Objects", "Size", "Start", "End"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}
	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{
			f.Stream,
			filepath.Base(f.Path),
			strconv.Itoa(f.Objects),
			humanize.IBytes(uint64(f.Bytes)),
			formatMicros(f.StartUS),
			formatMicros(f.EndUS),
		})
	}
	return renderTable(headers, rows, aligns)
}

func formatMicros(us uint64) string {
	return (time.Duration(us) * time.Microsecond).String()
}
