// Package ingest implements the two-thread ingest pipeline: a feeder
// pulls packets from the external pub/sub endpoint into a bounded
// queue, and a drainer pushes them through the sanitizer into the
// capped collection (spec §4.7, component C7).
//
// The bounded queue between feeder and drainer is a buffered Go
// channel rather than a hand-rolled condition-variable FIFO — spec §9
// notes this is sufficient for the single-writer, single-reader case,
// and it is the idiomatic Go shape for it.
package ingest

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/uofuseismo/urts-sub000/pkg/logging"
	"github.com/uofuseismo/urts-sub000/pkg/message"
	"github.com/uofuseismo/urts-sub000/pkg/metrics"
	"github.com/uofuseismo/urts-sub000/pkg/sanitizer"
	"github.com/uofuseismo/urts-sub000/pkg/transport"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/cache"
)

// Options configures a Pipeline.
type Options struct {
	// QueueCapacity bounds the feeder-to-drainer channel. Defaults to
	// 1024 if <= 0.
	QueueCapacity int
}

func (o Options) withDefaults() Options {
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = 1024
	}
	return o
}

// Pipeline runs the feeder and drainer threads against a shared
// capped collection.
type Pipeline struct {
	subscriber transport.Subscriber
	sanitizer  *sanitizer.Sanitizer
	collection *cache.Collection
	logger     *logging.Logger
	metrics    *metrics.Registry
	queue      chan []byte

	// stats are updated only by the drainer goroutine; read via the
	// accessor methods from any goroutine, so they're behind the same
	// channel-close-free lifetime as the pipeline itself and are only
	// meaningful after Run has returned or queried concurrently for
	// monitoring (best-effort, not linearized).
	received  int64
	admitted  int64
	rejected  int64
	malformed int64
}

// New constructs an ingest pipeline. reg may be nil, in which case no
// counters are published.
func New(subscriber transport.Subscriber, s *sanitizer.Sanitizer, collection *cache.Collection, logger *logging.Logger, reg *metrics.Registry, opts Options) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	opts = opts.withDefaults()
	return &Pipeline{
		subscriber: subscriber,
		sanitizer:  s,
		collection: collection,
		logger:     logger,
		metrics:    reg,
		queue:      make(chan []byte, opts.QueueCapacity),
	}
}

// Run starts the feeder and drainer and blocks until ctx is done or
// either one returns an unrecoverable error. A single bad packet never
// stops the pipeline (spec §7); only a transport failure that the
// feeder or drainer cannot recover from propagates here.
func (p *Pipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return p.feed(gctx) })
	g.Go(func() error { return p.drain(gctx) })
	return g.Wait()
}

// feed loops receiving one packet at a time from the pub/sub
// subscriber and pushing it onto the bounded queue, until ctx is done.
func (p *Pipeline) feed(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		payload, err := p.subscriber.Receive(ctx)
		if err != nil {
			if err == transport.ErrTimeout {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("subscriber receive failed", "error", err)
			continue
		}
		select {
		case p.queue <- payload:
		case <-ctx.Done():
			return nil
		}
	}
}

// drain loops popping packets off the bounded queue, running them
// through the sanitizer, and forwarding admitted packets to the
// capped collection.
func (p *Pipeline) drain(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload := <-p.queue:
			p.processOne(payload)
		}
	}
}

func (p *Pipeline) processOne(payload []byte) {
	p.received++
	if p.metrics != nil {
		p.metrics.PacketsReceived.Inc()
	}

	var wire message.DataPacket
	if err := wire.Decode(payload); err != nil {
		p.malformed++
		if p.metrics != nil {
			p.metrics.PacketsMalformed.Inc()
		}
		p.logger.Debug("failed to decode ingested packet", "error", err)
		return
	}

	pkt, err := wire.ToPacket()
	if err != nil {
		p.malformed++
		if p.metrics != nil {
			p.metrics.PacketsMalformed.Inc()
		}
		p.logger.Debug("ingested packet failed validation", "error", err)
		return
	}

	if pkt.NumSamples() < 1 {
		p.rejected++
		if p.metrics != nil {
			p.metrics.PacketsRejected.WithLabelValues("empty").Inc()
		}
		return
	}

	admitted, category, err := p.sanitizer.Admit(pkt)
	if err != nil {
		p.logger.Warn("sanitizer could not classify packet", "error", err, "channel", pkt.Name().String())
		return
	}
	if !admitted {
		p.rejected++
		if p.metrics != nil {
			p.metrics.PacketsRejected.WithLabelValues(string(category)).Inc()
		}
		p.logger.Debug("packet rejected by sanitizer", "category", string(category), "channel", pkt.Name().String())
		return
	}

	if err := p.collection.AddPacket(pkt); err != nil {
		p.logger.Warn("admitted packet rejected by collection", "error", err, "channel", pkt.Name().String())
		return
	}
	p.admitted++
	if p.metrics != nil {
		p.metrics.PacketsAdmitted.Inc()
		p.metrics.ChannelsTracked.Set(float64(p.collection.NumberOfChannels()))
		p.metrics.PacketsCached.Set(float64(p.collection.TotalNumberOfPackets()))
	}
}

// Stats is a point-in-time, best-effort snapshot of pipeline counters.
type Stats struct {
	Received  int64
	Admitted  int64
	Rejected  int64
	Malformed int64
}

// Stats returns a snapshot of the pipeline's running counters.
func (p *Pipeline) Stats() Stats {
	return Stats{Received: p.received, Admitted: p.admitted, Rejected: p.rejected, Malformed: p.malformed}
}
