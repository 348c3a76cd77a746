package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"settlematch/internal/config"
	"settlematch/internal/domain"
	"settlematch/internal/gateway"
	"settlematch/internal/report"
	"settlematch/internal/usecase"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "settlematch",
		Short:         "Reconciles confirmation advices against payment instructions",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.verbose {
				log.SetLevel(log.DEBUG)
			} else {
				log.SetLevel(log.INFO)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose logging and cycle reports")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newServeCommand(opts))
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	var fullScan bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a single reconciliation cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			uc, err := buildUseCase(cfg)
			if err != nil {
				return err
			}
			return runCycle(cmd.Context(), uc, cfg, usecase.CycleOptions{
				FullScan: fullScan,
				Verbose:  opts.verbose,
			})
		},
	}

	cmd.Flags().BoolVar(&fullScan, "full-scan", false, "visit every partition instead of the trailing window")
	return cmd
}

func newServeCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run cycles on a fixed interval plus a daily verbose report",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			uc, err := buildUseCase(cfg)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), uc, cfg)
		},
	}
	return cmd
}

// buildUseCase wires the gateway implementations into the orchestrator.
func buildUseCase(cfg config.Config) (*usecase.ReconcileUseCase, error) {
	startDate, err := cfg.StartDateTime()
	if err != nil {
		return nil, err
	}

	extractor := gateway.NewPDFExtractor()
	parser := gateway.NewAdviceParser()

	scanner := gateway.NewScanner(
		map[domain.Side]gateway.SideSource{
			domain.SideA: {Root: cfg.SideA.Root, Subpath: cfg.SideA.Subpath, NestedSubpath: cfg.SideA.NestedSubpath},
			domain.SideB: {Root: cfg.SideB.Root, Subpath: cfg.SideB.Subpath, NestedSubpath: cfg.SideB.NestedSubpath},
		},
		extractor, parser, cfg.DocExt, cfg.ScanWindowDays, startDate,
	)

	matcher := usecase.NewMatcher(extractor, parser)
	store := gateway.NewSnapshotStore(cfg.StateFile)
	archiver := gateway.NewFileArchiver(cfg.MatchDir, cfg.UnmatchedDir)
	locker := gateway.NewFileLock(cfg.LockFile)

	uc := usecase.NewReconcileUseCase(scanner, matcher, store, archiver, locker)
	uc.WaitingDays = cfg.WaitingDays
	return uc, nil
}

func runCycle(ctx context.Context, uc *usecase.ReconcileUseCase, cfg config.Config, opts usecase.CycleOptions) error {
	result, err := uc.RunCycle(ctx, opts)
	if errors.Is(err, usecase.ErrCycleLocked) {
		log.Warnf("[Main] %v, skipping this cycle", err)
		return nil
	}
	if err != nil {
		return err
	}

	if opts.Verbose && !result.ShortCycle {
		report.Summary(os.Stdout, result.Stats)
		if err := report.Write(cfg.OutputDir, time.Now(), result); err != nil {
			log.Errorf("[Main] %v", err)
		}
	}
	return nil
}

// serve runs cycles sequentially on a ticker; an extra verbose cycle runs once
// a day at the configured time. There is never more than one cycle in flight.
func serve(parent context.Context, uc *usecase.ReconcileUseCase, cfg config.Config) error {
	interval, err := cfg.Interval()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("[Main] starting service: cycle every %s, daily report at %s", interval, cfg.DailyReportAt)

	var lastReport time.Time
	runOnce := func() {
		now := time.Now()
		verbose := dueForDailyReport(now, lastReport, cfg.DailyReportAt)
		if verbose {
			lastReport = now
		}
		if err := runCycle(ctx, uc, cfg, usecase.CycleOptions{Verbose: verbose}); err != nil {
			log.Errorf("[Main] cycle failed: %v", err)
		}
	}

	runOnce()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Infof("[Main] shutting down")
			return nil
		case <-ticker.C:
			runOnce()
		}
	}
}

// dueForDailyReport reports whether the daily verbose report is owed: the
// configured time of day has passed and no report ran yet today.
func dueForDailyReport(now, lastReport time.Time, at string) bool {
	if at == "" {
		return false
	}
	due, err := time.Parse("15:04", at)
	if err != nil {
		return false
	}
	threshold := time.Date(now.Year(), now.Month(), now.Day(), due.Hour(), due.Minute(), 0, 0, now.Location())
	if now.Before(threshold) {
		return false
	}
	return lastReport.Before(threshold)
}
