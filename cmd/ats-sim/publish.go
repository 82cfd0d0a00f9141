package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"ats-sim/internal/admin"
	"ats-sim/internal/config"
	"ats-sim/internal/delivery"
	"ats-sim/internal/logging"
	"ats-sim/internal/publisher"
	"ats-sim/internal/telemetry"
)

var (
	pubInterval  time.Duration
	pubPrintOnly bool
	pubLogFile   string
	pubAdminAddr string
	pubSeed      uint64
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish synthetic train telemetry",
	Long:  "publish generates one telemetry record per interval, validates it and publishes it to Kafka until interrupted or the broker stays unreachable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		cfg, err := loadConfig(func(c *config.Config) {
			if flags.Changed("interval") {
				c.Publisher.Interval = pubInterval
			}
			if flags.Changed("print-only") {
				c.Publisher.PrintOnly = pubPrintOnly
			}
			if flags.Changed("log-file") {
				c.Mirror.File = pubLogFile
			}
			if flags.Changed("admin-addr") {
				c.Admin.Addr = pubAdminAddr
			}
			if flags.Changed("seed") {
				c.Generator.Seed = pubSeed
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
		return runPublish(ctx, cfg, os.Stdout, logger)
	},
}

func init() {
	publishCmd.Flags().DurationVar(&pubInterval, "interval", 30*time.Second, "Publish interval (e.g. 500ms, 30s)")
	publishCmd.Flags().BoolVar(&pubPrintOnly, "print-only", false, "Print records to STDOUT instead of publishing to Kafka")
	publishCmd.Flags().StringVar(&pubLogFile, "log-file", "", "Path to export published records (JSONL, zstd when ending in .zst)")
	publishCmd.Flags().StringVar(&pubAdminAddr, "admin-addr", "", "Address for the admin HTTP server (e.g. :8080)")
	publishCmd.Flags().Uint64Var(&pubSeed, "seed", 0, "Random seed for record generation (0 picks one)")
}

// runPublish wires the publisher from cfg and runs it until ctx is done or
// delivery failures force a shutdown.
func runPublish(ctx context.Context, cfg *config.Config, out io.Writer, logger *slog.Logger) error {
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)
	ctx = logging.NewContext(ctx, logger)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	seed := cfg.Generator.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	b := cfg.Generator.Bounds
	gen := telemetry.NewGenerator(telemetry.RealClock{}, telemetry.NewRand(seed),
		telemetry.WithBounds(telemetry.Bounds{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon}),
		telemetry.WithLocation(loc))

	mirror, closeMirror, err := newMirror(cfg, logger)
	if err != nil {
		return err
	}
	defer closeMirror()

	client, err := newDeliveryClient(cfg, runID, out, logger, delivery.OnDelivery(deliveryReport(logger)))
	if err != nil {
		return err
	}
	defer client.Close()

	logBanner(logger, cfg, seed)
	if p, ok := client.(interface{ Ping(context.Context) error }); ok {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := p.Ping(pingCtx); err != nil {
			logger.Warn("broker not reachable yet, records will be retried", "err", err)
		}
		cancel()
	}

	ctrl := publisher.New(publisher.Deps{
		Generator: gen,
		Validator: telemetry.NewValidator(logger),
		Client:    client,
		Mirror:    mirror,
	}, publisher.Options{
		Interval:               cfg.Publisher.Interval,
		AckTimeout:             cfg.Publisher.AckTimeout,
		FailureBackoff:         cfg.Publisher.FailureBackoff,
		DrainTimeout:           cfg.Publisher.DrainTimeout,
		MaxConsecutiveFailures: cfg.Publisher.MaxConsecutiveFailures,
	}, logger)

	adminCtx, stopAdmin := context.WithCancel(context.Background())
	defer stopAdmin()
	if cfg.Admin.Addr != "" {
		srv := admin.NewServer(ctrl, logger)
		go func() {
			if err := srv.Start(adminCtx, cfg.Admin.Addr); err != nil {
				logger.Error("admin server failed", "err", err)
			}
		}()
	}

	err = ctrl.Run(ctx)
	if errors.Is(err, publisher.ErrTooManyFailures) {
		logger.Error("publisher stopped after repeated delivery failures", "err", err)
	}
	return err
}

// deliveryReport logs every settled record at debug level.
func deliveryReport(logger *slog.Logger) func(delivery.Outcome) {
	return func(o delivery.Outcome) {
		if o.OK() {
			logger.Debug("delivery report", "entity_id", o.EntityID, "topic", o.Topic,
				"partition", o.Partition, "offset", o.Offset)
			return
		}
		logger.Debug("delivery report", "entity_id", o.EntityID, "attempts", o.Attempts, "err", o.Err)
	}
}

func logBanner(logger *slog.Logger, cfg *config.Config, seed uint64) {
	if cfg.Publisher.PrintOnly {
		logger.Info("ATS telemetry publisher starting", "mode", "print-only",
			"interval", cfg.Publisher.Interval, "seed", seed)
		return
	}
	logger.Info("ATS telemetry publisher starting",
		"brokers", strings.Join(cfg.Broker.Brokers, ","),
		"topic", cfg.Broker.Topic,
		"interval", cfg.Publisher.Interval,
		"compression", cfg.Broker.Compression,
		"seed", seed)
}
