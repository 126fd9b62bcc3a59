// Package packetcache implements the cache service: a router/dealer
// reply surface dispatching on wire message type and serving from the
// capped collection (spec §4.6, component C6).
package packetcache

import (
	"context"
	"fmt"

	"github.com/rs/xid"

	"github.com/uofuseismo/urts-sub000/pkg/logging"
	"github.com/uofuseismo/urts-sub000/pkg/message"
	"github.com/uofuseismo/urts-sub000/pkg/metrics"
	"github.com/uofuseismo/urts-sub000/pkg/transport"
	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/cache"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

// Service serves DataRequest, BulkDataRequest, and SensorRequest
// messages from a shared capped collection. Every request is answered
// exactly once, even on internal failure or an unrecognized message
// type, to preserve the reply socket's one-request-one-reply
// invariant (spec §4.6).
type Service struct {
	collection *cache.Collection
	logger     *logging.Logger
	server     transport.ReplyServer
	metrics    *metrics.Registry
}

// New constructs a cache service over collection, answering requests
// delivered through server. metrics may be nil, in which case no
// counters are published.
func New(collection *cache.Collection, server transport.ReplyServer, logger *logging.Logger, reg *metrics.Registry) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{collection: collection, logger: logger, server: server, metrics: reg}
}

// Run serves requests until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	return s.server.Serve(ctx, s.handle)
}

func (s *Service) handle(messageType string, payload []byte) []byte {
	traceID := xid.New().String()
	logger := s.logger.With("trace_id", traceID).With("message_type", messageType)
	if s.metrics != nil {
		s.metrics.RequestsServed.WithLabelValues(messageType).Inc()
	}

	switch messageType {
	case message.TypeDataRequest:
		return s.handleDataRequest(payload, logger)
	case message.TypeBulkDataRequest:
		return s.handleBulkDataRequest(payload, logger)
	case message.TypeSensorRequest:
		return s.handleSensorRequest(payload, logger)
	default:
		logger.Warn("unrecognized message type")
		f := message.NewFailure(fmt.Sprintf("unrecognized message type %q", messageType), 0, message.InvalidMessage)
		encoded, _ := f.Encode()
		return encoded
	}
}

func (s *Service) handleDataRequest(payload []byte, logger *logging.Logger) []byte {
	var req message.DataRequest
	if err := req.Decode(payload); err != nil {
		logger.Warn("failed to decode DataRequest", "error", err)
		resp := message.NewDataResponse(packet.Name{}, nil, 0, message.InvalidMessage)
		encoded, _ := (&resp).Encode()
		return encoded
	}

	resp, err := s.serveDataRequest(req)
	if err != nil {
		logger.Error("failed to serve DataRequest", "error", err, "identifier", req.Identifier)
	}
	encoded, _ := (&resp).Encode()
	return encoded
}

// serveDataRequest answers a single DataRequest directly from the
// collection, never returning a Go error to the caller's transport
// boundary — failures are folded into the response's ReturnCode.
func (s *Service) serveDataRequest(req message.DataRequest) (message.DataResponse, error) {
	name := req.Name()
	queryEnd := req.QueryEndTime
	if queryEnd == message.QueryEndNow {
		// "now" only matters for an upper bound; since the collection
		// query requires a finite t1 > t0, substitute the largest
		// representable window instead of wall clock, matching
		// get_packets(t0) semantics for an unbounded upper bound.
		packets, err := s.collection.GetPacketsFrom(name, req.QueryStartTime)
		if urtserrors.Is(err, urtserrors.UnknownSensor) {
			return message.NewDataResponse(name, nil, req.Identifier, message.NoSensor), nil
		}
		if err != nil {
			return message.NewDataResponse(name, nil, req.Identifier, message.AlgorithmicFailure), err
		}
		return message.NewDataResponse(name, packets, req.Identifier, message.Success), nil
	}

	packets, err := s.collection.GetPackets(name, req.QueryStartTime, queryEnd)
	switch {
	case urtserrors.Is(err, urtserrors.UnknownSensor):
		return message.NewDataResponse(name, nil, req.Identifier, message.NoSensor), nil
	case urtserrors.Is(err, urtserrors.InvalidArgument):
		return message.NewDataResponse(name, nil, req.Identifier, message.InvalidMessage), nil
	case err != nil:
		return message.NewDataResponse(name, nil, req.Identifier, message.AlgorithmicFailure), err
	}
	return message.NewDataResponse(name, packets, req.Identifier, message.Success), nil
}

func (s *Service) handleBulkDataRequest(payload []byte, logger *logging.Logger) []byte {
	var req message.BulkDataRequest
	if err := req.Decode(payload); err != nil {
		logger.Warn("failed to decode BulkDataRequest", "error", err)
		resp := message.BulkDataResponse{}
		encoded, _ := (&resp).Encode()
		return encoded
	}

	// Faithful carryover: de-duplicated by Identifier, not content
	// (spec §9) — a repeated identifier within one bulk request is
	// silently skipped, not re-evaluated or errored.
	seen := make(map[uint64]struct{}, len(req.Requests))
	responses := make([]message.DataResponse, 0, len(req.Requests))
	for _, sub := range req.Requests {
		if _, dup := seen[sub.Identifier]; dup {
			continue
		}
		seen[sub.Identifier] = struct{}{}
		resp, err := s.serveDataRequest(sub)
		if err != nil {
			logger.Error("failed to serve bulk sub-request", "error", err, "identifier", sub.Identifier)
		}
		responses = append(responses, resp)
	}

	out := message.BulkDataResponse{Responses: responses}
	encoded, _ := (&out).Encode()
	return encoded
}

func (s *Service) handleSensorRequest(payload []byte, logger *logging.Logger) []byte {
	var req message.SensorRequest
	if err := req.Decode(payload); err != nil {
		logger.Warn("failed to decode SensorRequest", "error", err)
		resp := message.NewSensorResponse(nil, 0, message.InvalidMessage)
		encoded, _ := (&resp).Encode()
		return encoded
	}

	names := s.collection.GetSensorNames()
	resp := message.NewSensorResponse(names, req.Identifier, message.Success)
	encoded, _ := (&resp).Encode()
	return encoded
}
