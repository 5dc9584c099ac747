/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/ksuid"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/ssargent/drlog/pkg/api"
	"github.com/ssargent/drlog/pkg/config"
	"github.com/ssargent/drlog/pkg/metrics"
	"github.com/ssargent/drlog/pkg/sink"
	"github.com/ssargent/drlog/pkg/stream"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Encode a synthetic transaction workload",
	Long: `Run begin/append/rollback/end cycles against the configured tables and
push the encoded blocks to the configured sink.

With --metrics-addr the status API and Prometheus metrics are served while
the workload runs; --hold keeps them up until interrupted.

Examples:
  drlog generate --txns 1000 --rows 5
  drlog generate --rollback-every 10 --undo-every 7 --metrics-addr :9090 --hold`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, true)
		if err != nil {
			return err
		}
		logger, err := newLogger(cmd, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		w := workload{}
		w.Transactions, _ = cmd.Flags().GetInt("txns")
		w.RowsPerTxn, _ = cmd.Flags().GetInt("rows")
		w.RollbackEvery, _ = cmd.Flags().GetInt("rollback-every")
		w.UndoEvery, _ = cmd.Flags().GetInt("undo-every")
		w.Seed, _ = cmd.Flags().GetInt64("seed")
		addr, _ := cmd.Flags().GetString("metrics-addr")
		if addr == "" {
			addr = cfg.Metrics.Addr
		}
		hold, _ := cmd.Flags().GetBool("hold")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		res, err := generate(ctx, cfg, w, addr, hold, logger)
		if err != nil {
			return err
		}

		cmd.Printf("Committed %d transactions (%d rolled back), %d rows (%d undone), %d bytes\n",
			res.Committed, res.RolledBack, res.Rows, res.Undone, res.Bytes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().Int("txns", 100, "Number of transactions")
	generateCmd.Flags().Int("rows", 3, "Rows per transaction")
	generateCmd.Flags().Int("rollback-every", 0, "Roll back every Nth transaction (0 never)")
	generateCmd.Flags().Int("undo-every", 0, "Undo every Nth statement (0 never)")
	generateCmd.Flags().Int64("seed", 1, "Random seed for row values")
	generateCmd.Flags().String("metrics-addr", "", "Serve the status API and metrics on this address")
	generateCmd.Flags().Bool("hold", false, "Keep serving metrics after the workload until interrupted")
}

// generate runs w on a stream built from cfg
func generate(ctx context.Context, cfg *config.Config, w workload, addr string, hold bool, logger *zap.Logger) (res workloadResult, err error) {
	runID := ksuid.New()
	logger = logger.With(zap.String("run", runID.String()))

	tables, err := cfg.Registry()
	if err != nil {
		return res, err
	}

	reg := prometheus.NewRegistry()
	board := api.NewStatsBoard()
	streamOpts := []stream.Option{
		stream.WithLogger(logger),
		stream.WithMetrics(metrics.NewStreamMetrics(reg)),
	}

	var s *stream.Stream
	var out sink.Sink
	if cfg.Enabled {
		out, err = getContainer().GetSinkFactory().NewSink(cfg.Sink,
			sink.WithLogger(logger),
			sink.WithMetrics(metrics.NewSinkMetrics(reg)),
		)
		if err != nil {
			return res, fmt.Errorf("open sink: %w", err)
		}
		defer func() { err = multierr.Append(err, out.Close()) }()

		s, err = stream.New(cfg.StreamConfig(), out, streamOpts...)
		if err != nil {
			return res, err
		}
	} else {
		logger.Info("dr stream disabled, nothing will be encoded")
		s = stream.NewDisabled(streamOpts...)
	}
	s.Configure(cfg.PartitionID)
	board.Publish(s.Stats())

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	serverDone := make(chan error, 1)
	if addr != "" {
		server := api.NewServer(board, tables, api.ServerConfig{Addr: addr, SegmentDir: segmentDir(cfg)}, reg, logger)
		starter := getContainer().GetServerFactory().CreateServerStarter()
		go func() { serverDone <- starter.StartServer(serverCtx, server) }()
	} else {
		serverDone <- nil
	}

	logger.Info("generating workload",
		zap.Int("transactions", w.Transactions),
		zap.Int("rows_per_txn", w.RowsPerTxn),
		zap.Int32("partition", cfg.PartitionID),
	)
	res, err = w.run(ctx, s, tables.Tables(), board.Publish)
	if err != nil {
		return res, err
	}

	if err = closeStream(s); err != nil {
		return res, err
	}
	board.Publish(s.Stats())
	logger.Info("workload finished",
		zap.Int("committed", res.Committed),
		zap.Int("rolled_back", res.RolledBack),
		zap.Int64("bytes", res.Bytes),
	)

	if addr != "" && hold {
		logger.Info("serving metrics until interrupted", zap.String("addr", addr))
		<-ctx.Done()
	}
	stopServer()
	if serr := <-serverDone; serr != nil {
		return res, fmt.Errorf("status server: %w", serr)
	}
	return res, nil
}

func closeStream(s *stream.Stream) (err error) {
	defer recoverFatal(&err)
	return s.Close()
}

func segmentDir(cfg *config.Config) string {
	if cfg.Sink.Type == sink.TypeFile {
		return cfg.Sink.Dir
	}
	return ""
}
