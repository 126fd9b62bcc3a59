package assemble

import (
	"testing"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

func chanName(component string) packet.Name {
	return packet.Name{Network: "UU", Station: "NOQ", Channel: "HH" + component, LocationCode: "01"}
}

func rampPacket(t *testing.T, name packet.Name, startTime int64, startValue float64) packet.Packet {
	t.Helper()
	data := make([]float64, 5)
	for i := range data {
		data[i] = startValue + float64(i)
	}
	p, err := packet.New(name, 100, startTime, data)
	if err != nil {
		t.Fatalf("failed to build packet: %v", err)
	}
	return p
}

func TestOneComponentSetEmptyPackets(t *testing.T) {
	a := NewOneComponent(Options{})
	sig, err := a.Set(nil, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sig.Data) != 0 {
		t.Fatalf("expected empty signal, got %d samples", len(sig.Data))
	}
}

func TestOneComponentSetRejectsMixedChannels(t *testing.T) {
	a := NewOneComponent(Options{})
	p1 := rampPacket(t, chanName("Z"), 0, 0)
	p2 := rampPacket(t, chanName("N"), 0, 0)
	_, err := a.Set([]packet.Packet{p1, p2}, 0, 40_000)
	if !urtserrors.Is(err, urtserrors.InconsistentPackets) {
		t.Fatalf("expected InconsistentPackets, got %v", err)
	}
}

func TestOneComponentSetOutOfRange(t *testing.T) {
	a := NewOneComponent(Options{})
	p := rampPacket(t, chanName("Z"), 0, 0)
	_, err := a.Set([]packet.Packet{p}, 1_000_000, 2_000_000)
	if !urtserrors.Is(err, urtserrors.OutOfRange) {
		t.Fatalf("expected OutOfRange, got %v", err)
	}
}

func TestThreeComponentSetAlignsAllThree(t *testing.T) {
	a := NewThreeComponent(Options{TargetSamplingRate: 100, GapToleranceMicros: 50_000})
	z := rampPacket(t, chanName("Z"), 0, 0)
	n := rampPacket(t, chanName("N"), 0, 100)
	e := rampPacket(t, chanName("E"), 0, 200)

	sig, err := a.Set([]packet.Packet{z}, []packet.Packet{n}, []packet.Packet{e}, 0, 40_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sig.Z) != len(sig.N) || len(sig.N) != len(sig.E) {
		t.Fatalf("expected equal-length components, got Z=%d N=%d E=%d", len(sig.Z), len(sig.N), len(sig.E))
	}
	if len(sig.GapMask) != len(sig.Z) {
		t.Fatalf("gap mask length mismatch: %d vs %d", len(sig.GapMask), len(sig.Z))
	}
	if sig.VerticalChannel != "HHZ" || sig.NorthChannel != "HHN" || sig.EastChannel != "HHE" {
		t.Fatalf("unexpected channel labels: %s %s %s", sig.VerticalChannel, sig.NorthChannel, sig.EastChannel)
	}
}

func TestThreeComponentSetAlignsStaggeredStartTimes(t *testing.T) {
	a := NewThreeComponent(Options{TargetSamplingRate: 100, GapToleranceMicros: 50_000})
	z := rampPacket(t, chanName("Z"), 0, 0)
	n := rampPacket(t, chanName("N"), 20_000, 100)
	e := rampPacket(t, chanName("E"), 10_000, 200)

	sig, err := a.Set([]packet.Packet{z}, []packet.Packet{n}, []packet.Packet{e}, 0, 40_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// commonT0 is N's start time (20_000, the latest of the three), so Z
	// and E must be shifted by 20_000 and 10_000 respectively before
	// their samples line up with N's.
	wantZ := []float64{2, 3, 4}
	wantN := []float64{100, 101, 102}
	wantE := []float64{201, 202, 203}
	if sig.StartTime != 20_000 {
		t.Fatalf("StartTime = %d, want 20000", sig.StartTime)
	}
	if !almostEqual(sig.Z, wantZ) {
		t.Fatalf("Z = %v, want %v", sig.Z, wantZ)
	}
	if !almostEqual(sig.N, wantN) {
		t.Fatalf("N = %v, want %v", sig.N, wantN)
	}
	if !almostEqual(sig.E, wantE) {
		t.Fatalf("E = %v, want %v", sig.E, wantE)
	}
}

func almostEqual(got, want []float64) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		diff := got[i] - want[i]
		if diff < -1e-9 || diff > 1e-9 {
			return false
		}
	}
	return true
}

func TestThreeComponentSetRejectsDifferentStations(t *testing.T) {
	a := NewThreeComponent(Options{})
	z := rampPacket(t, chanName("Z"), 0, 0)
	other := packet.Name{Network: "UU", Station: "OTHER", Channel: "HHN", LocationCode: "01"}
	n := rampPacket(t, other, 0, 0)
	e := rampPacket(t, chanName("E"), 0, 0)

	_, err := a.Set([]packet.Packet{z}, []packet.Packet{n}, []packet.Packet{e}, 0, 40_000)
	if !urtserrors.Is(err, urtserrors.InconsistentPackets) {
		t.Fatalf("expected InconsistentPackets, got %v", err)
	}
}
