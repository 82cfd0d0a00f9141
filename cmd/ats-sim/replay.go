package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ats-sim/internal/config"
	"ats-sim/internal/delivery"
	"ats-sim/internal/sink"
	"ats-sim/internal/telemetry"
)

var (
	replayInput     string
	replaySpeed     float64
	replayPrintOnly bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay an exported telemetry log",
	Long:  "replay republishes records from a JSONL export (optionally zstd compressed) in file order, skipping lines that fail validation.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if replayInput == "" {
			return fmt.Errorf("input file required")
		}
		cfg, err := loadConfig(func(c *config.Config) {
			if replayPrintOnly {
				c.Publisher.PrintOnly = true
			}
		})
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		_, err = runReplay(ctx, cfg, replayInput, replaySpeed, os.Stdout, logger)
		return err
	},
}

func init() {
	replayCmd.Flags().StringVar(&replayInput, "input", "", "Path to telemetry log file")
	replayCmd.Flags().Float64Var(&replaySpeed, "speed", 1.0, "Playback speed multiplier (0 replays without delay)")
	replayCmd.Flags().BoolVar(&replayPrintOnly, "print-only", false, "Print records to STDOUT instead of publishing to Kafka")
	replayCmd.MarkFlagRequired("input")
}

// runReplay republishes the log at path through the configured delivery
// client, waiting for each acknowledgement before sending the next record.
func runReplay(ctx context.Context, cfg *config.Config, path string, speed float64, out io.Writer, logger *slog.Logger) (sink.ReplayStats, error) {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID, "input", path)

	client, err := newDeliveryClient(cfg, runID, out, logger)
	if err != nil {
		return sink.ReplayStats{}, err
	}
	defer client.Close()

	writer := delivery.NewSyncWriter(client, cfg.Publisher.AckTimeout)
	stats, err := sink.ReplayLogFile(ctx, path, writer, sink.ReplayOptions{
		Speed:     speed,
		Validator: telemetry.NewValidator(logger),
		Logger:    logger,
	})
	logger.Info("replay finished", "replayed", stats.Replayed, "skipped", stats.Skipped)
	return stats, err
}
