// Command gpsreceiver drives the software-defined GPS L1 C/A receiver
// against a recorded sample file: it bit-reverses each input byte, packs
// every four bytes into one 32-sample word, dispatches each word through the
// receiver core, and logs a
// periodic status snapshot plus (once enough ephemeris is known) a solved
// position fix.
package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/collab"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/config"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/receiver"
	"github.com/hamsternz/Full-Stack-GPS-Receiver/internal/solve"
)

func main() {
	root := &cobra.Command{
		Use:   "gpsreceiver",
		Short: "Software-defined GPS L1 C/A receiver",
	}

	var cfgPath, navDir, priorityFile string
	var statusPeriodMs, bands, parallel, maxChannels int
	var logLevel string

	runCmd := &cobra.Command{
		Use:   "run <sample-file>",
		Short: "Process a recorded IF sample file and track visible satellites",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			cfg.SampleFile = args[0]
			applyFlagOverrides(cfg, navDir, priorityFile, statusPeriodMs, bands, parallel, maxChannels, logLevel)
			return run(cfg)
		},
	}
	runCmd.Flags().StringVar(&cfgPath, "config", "", "optional YAML config file")
	runCmd.Flags().StringVar(&navDir, "nav-dir", "", "directory for per-satellite subframe cache files")
	runCmd.Flags().StringVar(&priorityFile, "priority-file", "", "acquisition priority file, loaded at startup and rewritten at exit")
	runCmd.Flags().IntVar(&statusPeriodMs, "status-period", 0, "milliseconds between status log lines (0 = config default)")
	runCmd.Flags().IntVar(&bands, "bands", 0, "acquisition frequency bands (0 = config default)")
	runCmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent acquisition slots (0 = config default)")
	runCmd.Flags().IntVar(&maxChannels, "max-channels", 0, "tracking channel pool size (0 = config default)")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "debug, info, warn, or error")

	root.AddCommand(runCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func applyFlagOverrides(cfg *config.Config, navDir, priorityFile string, statusPeriodMs, bands, parallel, maxChannels int, logLevel string) {
	if navDir != "" {
		cfg.NavCacheDir = navDir
	}
	if priorityFile != "" {
		cfg.PriorityFile = priorityFile
	}
	if statusPeriodMs > 0 {
		cfg.StatusPeriodMs = statusPeriodMs
	}
	if bands > 0 {
		cfg.Bands = bands
	}
	if parallel > 0 {
		cfg.Parallel = parallel
	}
	if maxChannels > 0 {
		cfg.MaxChannels = maxChannels
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

func parseLogLevel(s string) log.Level {
	switch s {
	case "debug":
		return log.DebugLevel
	case "warn":
		return log.WarnLevel
	case "error":
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func run(cfg *config.Config) error {
	logger := log.New(os.Stderr)
	logger.SetLevel(parseLogLevel(cfg.LogLevel))

	f, err := os.Open(cfg.SampleFile)
	if err != nil {
		return fmt.Errorf("open sample file: %w", err)
	}
	defer f.Close()

	navCache := collab.NewFileSubframeCache(cfg.NavCacheDir)
	core := receiver.New(receiver.Config{
		Bands:       cfg.Bands,
		Parallel:    cfg.Parallel,
		MaxChannels: cfg.MaxChannels,
		NavCache:    navCache,
		Logger:      logger,
	})

	if pf, err := os.Open(cfg.PriorityFile); err == nil {
		core.LoadPriorities(pf)
		pf.Close()
	}
	core.Startup(cfg.MaxChannels)

	reporter := collab.NewStatusReporter(logger)
	core.OnSnapshot(func(snap receiver.Snapshot) {
		reporter.ReportSnapshot(snap)
	})

	statusPeriod := time.Duration(cfg.StatusPeriodMs) * time.Millisecond
	lastStatus := time.Now()
	var lastFix solve.Fix

	br := bufio.NewReaderSize(f, 1<<20)

	for {
		b, err := br.ReadByte()
		if err != nil {
			break
		}
		// Each byte holds 8 one-bit samples; PackWord folds four
		// consecutive reversed bytes into one 32-sample dispatch word.
		bytes := [4]byte{b, 0, 0, 0}
		ok := true
		for i := 1; i < 4; i++ {
			bytes[i], err = br.ReadByte()
			if err != nil {
				ok = false
				break
			}
		}
		if !ok {
			break
		}
		word := collab.PackWord(
			collab.ReverseBits(bytes[0]),
			collab.ReverseBits(bytes[1]),
			collab.ReverseBits(bytes[2]),
			collab.ReverseBits(bytes[3]),
		)
		core.ProcessWord(word)

		if now := time.Now(); now.Sub(lastStatus) >= statusPeriod {
			lastStatus = now
			core.BuildSnapshot()
			if fix, ok := core.BuildFix(lastFix); ok {
				lastFix = fix
				reporter.ReportFix(fix)
			}
		}
	}

	if pf, err := os.Create(cfg.PriorityFile); err == nil {
		core.SavePriorities(pf)
		pf.Close()
	} else {
		logger.Warn("could not save priority file", "err", err)
	}

	return nil
}
