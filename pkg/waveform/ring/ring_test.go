package ring

import (
	"testing"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

func testName() packet.Name {
	return packet.Name{Network: "UU", Station: "NOQ", Channel: "HHZ", LocationCode: "01"}
}

func mustPacket(t *testing.T, startTime int64) packet.Packet {
	t.Helper()
	p, err := packet.New(testName(), 100, startTime, []float64{1, 2, 3})
	if err != nil {
		t.Fatalf("failed to build packet: %v", err)
	}
	return p
}

func TestNewRejectsBadArguments(t *testing.T) {
	if _, err := New(packet.Name{}, 5); !urtserrors.Is(err, urtserrors.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for empty name, got %v", err)
	}
	if _, err := New(testName(), 0); !urtserrors.Is(err, urtserrors.InvalidArgument) {
		t.Fatalf("expected InvalidArgument for zero capacity, got %v", err)
	}
}

func TestAddPacketOrderedAppendEvictsFront(t *testing.T) {
	r, err := New(testName(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := int64(0); i < 5; i++ {
		if err := r.AddPacket(mustPacket(t, i*1000)); err != nil {
			t.Fatalf("AddPacket failed: %v", err)
		}
	}
	got := r.GetPackets()
	if len(got) != 3 {
		t.Fatalf("expected 3 packets retained, got %d", len(got))
	}
	want := []int64{2000, 3000, 4000}
	for i, p := range got {
		if p.StartTime() != want[i] {
			t.Errorf("packet %d start time = %d, want %d", i, p.StartTime(), want[i])
		}
	}
}

func TestAddPacketBackFillInsertsInOrder(t *testing.T) {
	r, err := New(testName(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, st := range []int64{1000, 3000, 5000} {
		if err := r.AddPacket(mustPacket(t, st)); err != nil {
			t.Fatalf("AddPacket failed: %v", err)
		}
	}
	// Back-fill a gap.
	if err := r.AddPacket(mustPacket(t, 2000)); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}
	got := r.GetPackets()
	want := []int64{1000, 2000, 3000, 5000}
	if len(got) != len(want) {
		t.Fatalf("expected %d packets, got %d", len(want), len(got))
	}
	for i, p := range got {
		if p.StartTime() != want[i] {
			t.Errorf("packet %d start time = %d, want %d", i, p.StartTime(), want[i])
		}
	}
}

func TestAddPacketOverwritesDuplicateStartTime(t *testing.T) {
	r, err := New(testName(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AddPacket(mustPacket(t, 1000)); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}
	replacement, err := packet.New(testName(), 100, 1000, []float64{9, 9, 9, 9})
	if err != nil {
		t.Fatalf("failed to build replacement packet: %v", err)
	}
	if err := r.AddPacket(replacement); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}
	got := r.GetPackets()
	if len(got) != 1 {
		t.Fatalf("expected overwrite to keep a single packet, got %d", len(got))
	}
	if got[0].NumSamples() != 4 {
		t.Fatalf("expected overwritten packet's sample count, got %d", got[0].NumSamples())
	}
}

func TestAddPacketDropsTooOldWhenFull(t *testing.T) {
	r, err := New(testName(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.AddPacket(mustPacket(t, 1000)); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}
	if err := r.AddPacket(mustPacket(t, 2000)); err != nil {
		t.Fatalf("AddPacket failed: %v", err)
	}
	// Ring is now full [1000, 2000]; an older packet should be dropped silently.
	if err := r.AddPacket(mustPacket(t, 500)); err != nil {
		t.Fatalf("AddPacket should not error on silent drop: %v", err)
	}
	got := r.GetPackets()
	if len(got) != 2 || got[0].StartTime() != 1000 {
		t.Fatalf("expected ring unchanged at [1000, 2000], got %v", got)
	}
}

func TestGetEarliestStartTimeEmpty(t *testing.T) {
	r, err := New(testName(), 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.GetEarliestStartTime(); !urtserrors.Is(err, urtserrors.Empty) {
		t.Fatalf("expected Empty error, got %v", err)
	}
}

func TestGetPacketsBetweenFiltersByWindow(t *testing.T) {
	r, err := New(testName(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, st := range []int64{0, 1000, 2000, 3000, 4000} {
		if err := r.AddPacket(mustPacket(t, st)); err != nil {
			t.Fatalf("AddPacket failed: %v", err)
		}
	}
	// Each 3-sample packet at 100 Hz spans 20000us, so the packets
	// starting at 0 and 1000 straddle t0 and are included; those
	// starting after t1 are excluded.
	got := r.GetPacketsBetween(1500, 2500)
	if len(got) != 3 || got[0].StartTime() != 0 || got[1].StartTime() != 1000 || got[2].StartTime() != 2000 {
		t.Fatalf("expected the packets starting at 0, 1000 and 2000, got %v", got)
	}
}
