package packetcache

import (
	"testing"

	"github.com/uofuseismo/urts-sub000/pkg/logging"
	"github.com/uofuseismo/urts-sub000/pkg/message"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/cache"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

func testName() packet.Name {
	return packet.Name{Network: "UU", Station: "NOQ", Channel: "HHZ", LocationCode: "01"}
}

func newTestService(t *testing.T) (*Service, *cache.Collection) {
	t.Helper()
	collection, err := cache.New(10, nil)
	if err != nil {
		t.Fatalf("failed to build collection: %v", err)
	}
	return New(collection, nil, logging.Nop(), nil), collection
}

func TestHandleUnknownMessageTypeRepliesFailure(t *testing.T) {
	svc, _ := newTestService(t)
	resp := svc.handle("NotAType", []byte(`{}`))

	var f message.Failure
	if err := f.Decode(resp); err != nil {
		t.Fatalf("expected a Failure reply, got decode error: %v", err)
	}
	if f.ReturnCode != message.InvalidMessage {
		t.Fatalf("expected InvalidMessage, got %v", f.ReturnCode)
	}
}

func TestHandleDataRequestUnknownSensor(t *testing.T) {
	svc, _ := newTestService(t)
	req := message.DataRequest{Network: "UU", Station: "NOQ", Channel: "HHZ", LocationCode: "01", QueryEndTime: message.QueryEndNow, Identifier: 1}
	payload, err := (&req).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	resp := svc.handle(message.TypeDataRequest, payload)
	var decoded message.DataResponse
	if err := decoded.Decode(resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.ReturnCode != message.NoSensor {
		t.Fatalf("expected NoSensor, got %v", decoded.ReturnCode)
	}
}

func TestHandleDataRequestServesCachedPackets(t *testing.T) {
	svc, collection := newTestService(t)
	p, err := packet.New(testName(), 100, 1000, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("failed to build packet: %v", err)
	}
	if err := collection.AddPacket(p); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}

	req := message.DataRequest{Network: "UU", Station: "NOQ", Channel: "HHZ", LocationCode: "01", QueryEndTime: message.QueryEndNow, Identifier: 9}
	payload, err := (&req).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	resp := svc.handle(message.TypeDataRequest, payload)
	var decoded message.DataResponse
	if err := decoded.Decode(resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.ReturnCode != message.Success || decoded.NumberOfPackets != 1 {
		t.Fatalf("expected one packet served, got %+v", decoded)
	}
}

func TestHandleBulkDataRequestSkipsDuplicateIdentifiers(t *testing.T) {
	svc, collection := newTestService(t)
	p, err := packet.New(testName(), 100, 1000, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("failed to build packet: %v", err)
	}
	if err := collection.AddPacket(p); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}

	sub := message.DataRequest{Network: "UU", Station: "NOQ", Channel: "HHZ", LocationCode: "01", QueryEndTime: message.QueryEndNow, Identifier: 5}
	bulk := message.BulkDataRequest{Requests: []message.DataRequest{sub, sub, sub}}
	payload, err := (&bulk).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	resp := svc.handle(message.TypeBulkDataRequest, payload)
	var decoded message.BulkDataResponse
	if err := decoded.Decode(resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Responses) != 1 {
		t.Fatalf("expected duplicate identifiers collapsed to one response, got %d", len(decoded.Responses))
	}
}

func TestHandleSensorRequestListsChannels(t *testing.T) {
	svc, collection := newTestService(t)
	p, err := packet.New(testName(), 100, 1000, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("failed to build packet: %v", err)
	}
	if err := collection.AddPacket(p); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}

	req := message.SensorRequest{Identifier: 3}
	payload, err := (&req).Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	resp := svc.handle(message.TypeSensorRequest, payload)
	var decoded message.SensorResponse
	if err := decoded.Decode(resp); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(decoded.Names) != 1 || decoded.Names[0] != testName().String() {
		t.Fatalf("expected one tracked channel, got %+v", decoded.Names)
	}
}
