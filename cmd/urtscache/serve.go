package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/uofuseismo/urts-sub000/pkg/ingest"
	"github.com/uofuseismo/urts-sub000/pkg/logging"
	"github.com/uofuseismo/urts-sub000/pkg/metrics"
	"github.com/uofuseismo/urts-sub000/pkg/sanitizer"
	"github.com/uofuseismo/urts-sub000/pkg/service/packetcache"
	"github.com/uofuseismo/urts-sub000/pkg/transport"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/cache"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Args:  cobra.NoArgs,
	Short: "Run the packet cache's ingest pipeline and reply service",
	Long:  `Runs the sanitizer-backed ingest pipeline alongside the cache's reply service until interrupted.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logLevel := logging.Level(cfg.Logging.Level)
	if verbose {
		logLevel = logging.LevelDebug
	}
	logger := logging.New(logging.Config{Level: logLevel, Format: logging.Format(cfg.Logging.Format)})
	logger.Info("urtscache starting", "version", version)

	collection, err := cache.New(cfg.Cache.MaxPacketsPerChannel, cfg.Cache.ChannelBlacklist)
	if err != nil {
		return fmt.Errorf("failed to construct collection: %w", err)
	}

	s := sanitizer.New(sanitizer.Options{
		MaxLatencySeconds:             cfg.Sanitizer.MaximumLatencySeconds,
		MaxFutureTimeSeconds:          cfg.Sanitizer.MaximumFutureTimeSeconds,
		BadDataLoggingIntervalSeconds: cfg.Sanitizer.BadDataLoggingIntervalSeconds,
	}, logger.With("component", "sanitizer"))

	reg := metrics.New()

	broker := transport.NewBroker()
	subscriber := broker.Subscribe(transport.SubscriberConfig{
		Address:        cfg.Subscriber.Address,
		ReceiveTimeout: cfg.Subscriber.ReceiveTimeOut,
		HighWaterMark:  cfg.Subscriber.HighWaterMark,
		ZAP:            transport.ZAPOptions{Mechanism: cfg.Subscriber.ZAPMechanism, Domain: cfg.Subscriber.ZAPDomain},
	})
	pipeline := ingest.New(subscriber, s, collection, logger.With("component", "ingest"), reg, ingest.Options{
		QueueCapacity: cfg.Subscriber.QueueCapacity,
	})

	router := transport.NewRouter(transport.ReplyServerConfig{
		Address:              cfg.Service.Address,
		SendHighWaterMark:    cfg.Service.SendHighWaterMark,
		ReceiveHighWaterMark: cfg.Service.ReceiveHighWaterMark,
		PollingTimeOut:       cfg.Service.PollingTimeOut,
		ZAP:                  transport.ZAPOptions{Mechanism: cfg.Service.ZAPMechanism, Domain: cfg.Service.ZAPDomain},
	})
	svc := packetcache.New(collection, router, logger.With("component", "service"), reg)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	httpServer := &http.Server{Addr: cfg.Service.MetricsAddress, Handler: reg.Handler()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return pipeline.Run(gctx) })
	g.Go(func() error { return svc.Run(gctx) })
	g.Go(func() error {
		logger.Info("metrics endpoint listening", "address", cfg.Service.MetricsAddress)
		errCh := make(chan error, 1)
		go func() { errCh <- httpServer.ListenAndServe() }()
		select {
		case <-gctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(shutdownCtx)
			return nil
		case err := <-errCh:
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		}
	})

	if err := g.Wait(); err != nil {
		logger.Error("urtscache exited with error", "error", err)
		return err
	}
	logger.Info("urtscache shut down cleanly")
	return nil
}
