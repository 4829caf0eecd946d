package main

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/CR1337/string-art/internal/colorart"
	"github.com/CR1337/string-art/internal/debugdump"
	"github.com/CR1337/string-art/internal/shm"
	"github.com/CR1337/string-art/internal/stringart"
	"github.com/CR1337/string-art/internal/workerpool"
	"github.com/spf13/cobra"
)

var (
	workerAmount int
	pinCores     bool
	errorMode    string
	debugDir     string
)

var runCmd = &cobra.Command{
	Use:   "run <shared_memory_key> <shared_memory_size>",
	Short: "Attach a shared-memory region and run the optimizer once",
	Args:  cobra.ExactArgs(2),
	RunE:  runOptimizer,
}

func init() {
	runCmd.Flags().IntVar(&workerAmount, "workers", workerpool.CoreAmount(), "Number of pinned worker goroutines (1..NumCPU)")
	runCmd.Flags().BoolVar(&pinCores, "pin-cores", true, "Pin each worker to a distinct CPU core")
	runCmd.Flags().StringVar(&errorMode, "error-mode", "sum-then-square", "Weighted error formula: sum-then-square, sum-of-squares, abs-then-square")
	runCmd.Flags().StringVar(&debugDir, "debug-dir", "", "Optional directory to periodically dump iteration progress and PNG previews to")
	rootCmd.AddCommand(runCmd)
}

func runOptimizer(cmd *cobra.Command, args []string) error {
	key, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parse shared_memory_key: %w", err)
	}
	size, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parse shared_memory_size: %w", err)
	}

	mode, err := parseErrorMode(errorMode)
	if err != nil {
		return err
	}

	view, detach, err := shm.Attach(key, size)
	if err != nil {
		return fmt.Errorf("attach shared memory: %w", err)
	}
	defer func() {
		if err := detach(); err != nil {
			slog.Error("failed to detach shared memory", "error", err)
		}
	}()

	cfg := stringart.Config{
		WorkerAmount: workerAmount,
		PinCores:     pinCores,
		ErrorMode:    mode,
		Logger:       slog.Default(),
	}

	if debugDir != "" {
		dumper, err := debugdump.New(debugDir, view.Header().ImageWidth)
		if err != nil {
			return fmt.Errorf("set up debug dump: %w", err)
		}
		defer dumper.Close()

		cfg.OnIteration = func(iteration uint64, result stringart.Result, canvas []colorart.Color) {
			if err := dumper.Dump(iteration, result.AbsoluteError, result.NormalizedError, canvas); err != nil {
				slog.Warn("debug dump failed", "iteration", iteration, "error", err)
			}
		}
	}

	opt := stringart.New(view, cfg)

	start := time.Now()
	result := opt.Run()
	elapsed := time.Since(start)

	slog.Info("optimization complete",
		"iterations", result.Iterations,
		"absolute_error", result.AbsoluteError,
		"normalized_error", result.NormalizedError,
		"elapsed", elapsed,
	)

	return nil
}

func parseErrorMode(s string) (colorart.ErrorMode, error) {
	switch s {
	case "sum-then-square":
		return colorart.SumThenSquare, nil
	case "sum-of-squares":
		return colorart.SumOfSquares, nil
	case "abs-then-square":
		return colorart.AbsThenSquare, nil
	default:
		return 0, fmt.Errorf("unknown error-mode %q", s)
	}
}
