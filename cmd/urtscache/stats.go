package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/uofuseismo/urts-sub000/pkg/logging"
	"github.com/uofuseismo/urts-sub000/pkg/message"
	"github.com/uofuseismo/urts-sub000/pkg/service/packetcache"
	"github.com/uofuseismo/urts-sub000/pkg/transport"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/cache"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Args:  cobra.NoArgs,
	Short: "Report the set of channels a freshly started cache would track",
	Long: `stats spins up a cache service against an empty collection and issues a
SensorRequest through the in-memory reply transport, exercising the same
request/response path a real client speaks. It is a smoke test for the
configuration, not a client for a separately running process: the real
router/dealer transport a live deployment uses is outside this core's scope.`,
	RunE: runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	collection, err := cache.New(cfg.Cache.MaxPacketsPerChannel, cfg.Cache.ChannelBlacklist)
	if err != nil {
		return err
	}
	router := transport.NewRouter(transport.ReplyServerConfig{Address: cfg.Service.Address})
	svc := packetcache.New(collection, router, logging.Nop(), nil)

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()

	go func() { _ = svc.Run(ctx) }()

	client := router.NewClient(message.PeekType, time.Second)
	defer client.Close()

	requestID := uuid.New()
	req := message.SensorRequest{Identifier: binary.BigEndian.Uint64(requestID[:8])}
	payload, err := (&req).Encode()
	if err != nil {
		return fmt.Errorf("failed to encode sensor request: %w", err)
	}

	respPayload, err := client.Request(ctx, payload)
	if err != nil {
		return fmt.Errorf("sensor request failed: %w", err)
	}

	var resp message.SensorResponse
	if err := resp.Decode(respPayload); err != nil {
		return fmt.Errorf("failed to decode sensor response: %w", err)
	}

	if len(resp.Names) == 0 {
		fmt.Println("no channels tracked")
		return nil
	}
	for _, name := range resp.Names {
		fmt.Println(name)
	}
	return nil
}
