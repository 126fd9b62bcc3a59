// Package transport declares the contract the core consumes from the
// external zero-copy messaging library (spec §6.2): a pub/sub
// subscriber, a router/dealer reply server, and a router/dealer
// request client. The real transport is out of scope for this core
// (spec §1); this package also supplies an in-memory double
// implementing the same contract, used by the ingest pipeline tests
// and the urtscache command.
package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ErrTimeout is returned by Subscriber.Receive when no message arrives
// before the configured receive timeout elapses.
var ErrTimeout = errors.New("transport: receive timed out")

// ZAPOptions configures the transport's ZAP authentication layer.
// Treated as opaque configuration by the core (spec §6.2).
type ZAPOptions struct {
	Mechanism string // e.g. "grasslands", "strawhouse"
	Domain    string
}

// Subscriber yields one decoded message at a time with a configurable
// receive timeout.
type Subscriber interface {
	// Receive blocks until a message arrives, ctx is done, or the
	// subscriber's receive timeout elapses (in which case it returns
	// ErrTimeout, not ctx.Err()).
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// ReplyHandler answers one decoded request with an encoded response.
type ReplyHandler func(messageType string, payload []byte) []byte

// ReplyServer accepts a callback (message_type, bytes) -> response and
// guarantees one reply per request with automatic client correlation.
type ReplyServer interface {
	// Serve runs until ctx is done, polling for new requests at its
	// configured polling timeout and invoking handler for each.
	Serve(ctx context.Context, handler ReplyHandler) error
	Close() error
}

// RequestClient sends an encoded message and blocks up to a configured
// timeout for a typed response.
type RequestClient interface {
	Request(ctx context.Context, payload []byte) ([]byte, error)
	Close() error
}

// SubscriberConfig configures an in-memory Subscriber.
type SubscriberConfig struct {
	Address           string
	ReceiveTimeout    time.Duration
	HighWaterMark     int // <= 0 selects a 1024-message backlog; never unbounded
	ZAP               ZAPOptions
	// RatePerSecond throttles delivery to simulate a transport's
	// high-water-mark backpressure signal (spec §5 Backpressure).
	// <= 0 disables throttling.
	RatePerSecond float64
}

// Broker is an in-memory pub/sub fan-out standing in for the external
// zero-copy messaging library. Publish is non-blocking to any one
// subscriber past its own backlog limit: a slow subscriber drops
// messages rather than stalling the publisher, matching a pub/sub
// socket's usual semantics.
type Broker struct {
	mu          sync.Mutex
	subscribers map[*inMemorySubscriber]struct{}
}

// NewBroker constructs an empty in-memory broker.
func NewBroker() *Broker {
	return &Broker{subscribers: make(map[*inMemorySubscriber]struct{})}
}

// Publish fans payload out to every currently subscribed Subscriber.
func (b *Broker) Publish(payload []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subscribers {
		select {
		case s.ch <- payload:
		default:
			// Backlog full: drop, matching a bounded pub/sub socket.
		}
	}
}

// Subscribe registers a new Subscriber against the broker.
func (b *Broker) Subscribe(cfg SubscriberConfig) Subscriber {
	backlog := cfg.HighWaterMark
	if backlog <= 0 {
		backlog = 1024
	}
	s := &inMemorySubscriber{
		broker:  b,
		ch:      make(chan []byte, backlog),
		timeout: cfg.ReceiveTimeout,
	}
	if cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1)
	}
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()
	return s
}

type inMemorySubscriber struct {
	broker  *Broker
	ch      chan []byte
	timeout time.Duration
	limiter *rate.Limiter
	closeOnce sync.Once
}

func (s *inMemorySubscriber) Receive(ctx context.Context) ([]byte, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	timeout := s.timeout
	if timeout <= 0 {
		timeout = 200 * time.Millisecond
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case payload := <-s.ch:
		return payload, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (s *inMemorySubscriber) Close() error {
	s.closeOnce.Do(func() {
		s.broker.mu.Lock()
		delete(s.broker.subscribers, s)
		s.broker.mu.Unlock()
	})
	return nil
}

// ReplyServerConfig configures an in-memory ReplyServer.
type ReplyServerConfig struct {
	Address           string
	SendHighWaterMark int
	ReceiveHighWaterMark int
	PollingTimeOut    time.Duration
	ZAP               ZAPOptions
}

// Router is an in-memory router/dealer reply endpoint: requests
// submitted through Client.Request are delivered to whichever handler
// is currently Serve-ing, with automatic correlation via a reply
// channel threaded through the request.
type Router struct {
	requests chan routedRequest
}

type routedRequest struct {
	messageType string
	payload     []byte
	reply       chan []byte
}

// NewRouter constructs an in-memory router/dealer pair.
func NewRouter(cfg ReplyServerConfig) *Router {
	backlog := cfg.ReceiveHighWaterMark
	if backlog <= 0 {
		backlog = 256
	}
	return &Router{requests: make(chan routedRequest, backlog)}
}

// Serve implements ReplyServer.
func (r *Router) Serve(ctx context.Context, handler ReplyHandler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-r.requests:
			resp := handler(req.messageType, req.payload)
			req.reply <- resp
		}
	}
}

func (r *Router) Close() error { return nil }

// NewClient returns a RequestClient bound to this router, with the
// given request-type peek function used purely for in-memory routing
// (a real transport dispatches on the socket, not the payload).
func (r *Router) NewClient(peekType func([]byte) (string, error), timeout time.Duration) RequestClient {
	return &inMemoryClient{router: r, peekType: peekType, timeout: timeout}
}

type inMemoryClient struct {
	router   *Router
	peekType func([]byte) (string, error)
	timeout  time.Duration
}

func (c *inMemoryClient) Request(ctx context.Context, payload []byte) ([]byte, error) {
	mt, err := c.peekType(payload)
	if err != nil {
		return nil, err
	}
	reply := make(chan []byte, 1)
	req := routedRequest{messageType: mt, payload: payload, reply: reply}

	timeout := c.timeout
	if timeout <= 0 {
		timeout = time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case c.router.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *inMemoryClient) Close() error { return nil }
