package cache

import (
	"testing"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

func zChannel() packet.Name {
	return packet.Name{Network: "UU", Station: "NOQ", Channel: "HHZ", LocationCode: "01"}
}

func mustPacket(t *testing.T, name packet.Name, startTime int64) packet.Packet {
	t.Helper()
	p, err := packet.New(name, 100, startTime, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("failed to build packet: %v", err)
	}
	return p
}

func TestAddPacketRoutesByChannel(t *testing.T) {
	c, err := New(10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name := zChannel()
	if err := c.AddPacket(mustPacket(t, name, 0)); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}
	if !c.HaveSensor(name) {
		t.Fatalf("expected sensor to be tracked")
	}
	if c.NumberOfChannels() != 1 {
		t.Fatalf("NumberOfChannels() = %d, want 1", c.NumberOfChannels())
	}
	if c.TotalNumberOfPackets() != 1 {
		t.Fatalf("TotalNumberOfPackets() = %d, want 1", c.TotalNumberOfPackets())
	}
}

func TestAddPacketBlacklistedChannelSilentlyDropped(t *testing.T) {
	c, err := New(10, []string{"HH?"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name := zChannel()
	if err := c.AddPacket(mustPacket(t, name, 0)); err != nil {
		t.Fatalf("blacklisted AddPacket should not error: %v", err)
	}
	if c.HaveSensor(name) {
		t.Fatalf("blacklisted channel should never be tracked")
	}
}

func TestGetPacketsUnknownSensor(t *testing.T) {
	c, err := New(10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.GetPackets(zChannel(), 0, 1000); !urtserrors.Is(err, urtserrors.UnknownSensor) {
		t.Fatalf("expected UnknownSensor, got %v", err)
	}
}

func TestGetPacketsInvalidWindow(t *testing.T) {
	c, err := New(10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name := zChannel()
	if err := c.AddPacket(mustPacket(t, name, 0)); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}
	if _, err := c.GetPackets(name, 1000, 500); !urtserrors.Is(err, urtserrors.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for inverted window, got %v", err)
	}
}

func TestGetSensorNamesSorted(t *testing.T) {
	c, err := New(10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	names := []packet.Name{
		{Network: "UU", Station: "ZCHN", Channel: "HHZ", LocationCode: "01"},
		{Network: "UU", Station: "ACHN", Channel: "HHZ", LocationCode: "01"},
	}
	for _, n := range names {
		if err := c.AddPacket(mustPacket(t, n, 0)); err != nil {
			t.Fatalf("AddPacket failed: %v", err)
		}
	}
	got := c.GetSensorNames()
	if len(got) != 2 || got[0].Station != "ACHN" || got[1].Station != "ZCHN" {
		t.Fatalf("expected sorted sensor names, got %v", got)
	}
}

func TestClearResetsCollection(t *testing.T) {
	c, err := New(10, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	name := zChannel()
	if err := c.AddPacket(mustPacket(t, name, 0)); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}
	c.Clear()
	if c.HaveSensor(name) || c.NumberOfChannels() != 0 {
		t.Fatalf("expected empty collection after Clear")
	}
}
