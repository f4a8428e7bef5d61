package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/nikkitan/dcpcore/config"
	"github.com/nikkitan/dcpcore/internal/dcp"
	"github.com/nikkitan/dcpcore/internal/logger"
	"github.com/nikkitan/dcpcore/internal/observability"
	"github.com/nikkitan/dcpcore/internal/transport"
	"github.com/spf13/cobra"
)

var tailCmd = &cobra.Command{
	Use:   "tail",
	Short: "stream mutation and deletion events for a set of partitions",
	Run: func(cmd *cobra.Command, args []string) {
		config.Load(cmd.Flags())
		slog.SetDefault(logger.New())
		if err := runTail(); err != nil {
			slog.Error("tail failed", slog.Any("error", err))
			os.Exit(1)
		}
	},
}

func parsePartitions(csv string) ([]int32, error) {
	var out []int32
	for _, seg := range strings.Split(csv, ",") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		v, err := strconv.ParseInt(seg, 10, 16)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("invalid partition id %q", seg)
		}
		out = append(out, int32(v))
	}
	if len(out) == 0 {
		return nil, errors.New("no partitions configured")
	}
	return out, nil
}

func runTail() error {
	cfg := config.Config

	partitions, err := parsePartitions(cfg.Partitions)
	if err != nil {
		return err
	}

	name := cfg.ConnectionName
	if name == "" {
		name = "dcp-" + uuid.NewString()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	slog.Info("connecting", slog.String("addr", addr), slog.String("connection", name))
	tr, err := transport.Dial(addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	conn := dcp.NewConn(tr, dcp.Options{
		StreamBufferSize: cfg.StreamBufferSize,
		UnboundedBuffer:  cfg.StreamBufferUnbounded,
	})
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		<-sigs
		slog.Info("shutting down")
		cancel()
		conn.Close()
	}()

	if cfg.MetricsHTTPEnabled {
		mux := http.NewServeMux()
		observability.SetupPrometheus(mux)
		slog.Info("metrics http server starting", slog.String("addr", cfg.MetricsHTTPAddr))
		go func() {
			if err := http.ListenAndServe(cfg.MetricsHTTPAddr, mux); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics http server exited", slog.Any("error", err))
			}
		}()
	}

	runErr := make(chan error, 1)
	go func() { runErr <- conn.Run(ctx) }()

	open, err := conn.OpenConnection(ctx, name, 0, 0)
	if err != nil {
		return fmt.Errorf("open connection: %w", err)
	}
	if open.Status != dcp.ResponseSuccess {
		return fmt.Errorf("open connection rejected with wire status 0x%04x", uint16(open.WireStatus))
	}

	var wg sync.WaitGroup
	for _, p := range partitions {
		resp, err := conn.RequestStream(ctx, cfg.Bucket, p, 0, ^uint64(0), 0, 0, 0)
		if err != nil {
			return fmt.Errorf("stream request for partition %d: %w", p, err)
		}
		if resp.Status != dcp.ResponseSuccess {
			slog.Warn("stream request rejected",
				slog.Int("partition", int(p)),
				slog.Uint64("wire_status", uint64(resp.WireStatus)))
			continue
		}
		slog.Info("stream opened",
			slog.Int("partition", int(p)),
			slog.Uint64("stream_id", uint64(resp.Stream.ID())),
			slog.Int("failover_entries", len(resp.FailoverLog)))

		wg.Add(1)
		go func(p int32, s *dcp.Stream) {
			defer wg.Done()
			consumeStream(p, s)
		}(p, resp.Stream)
	}

	wg.Wait()
	cancel()
	return <-runErr
}

func consumeStream(partition int32, s *dcp.Stream) {
	for ev := range s.Events() {
		switch e := ev.(type) {
		case *dcp.SnapshotMarkerEvent:
			fmt.Printf("[%d] snapshot %d..%d flags=%d\n", partition, e.StartSeqNo, e.EndSeqNo, e.Flags)
		case *dcp.MutationEvent:
			fmt.Printf("[%d] mutation key=%q cas=%d flags=%d bytes=%d\n",
				partition, e.Key, e.Cas, e.Flags, e.Content.Len())
			e.Release()
		case *dcp.RemoveEvent:
			fmt.Printf("[%d] remove key=%q cas=%d\n", partition, e.Key, e.Cas)
		}
	}
	if err := s.Err(); err != nil {
		slog.Error("stream terminated", slog.Int("partition", int(partition)), slog.Any("error", err))
	}
}
