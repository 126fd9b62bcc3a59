// Package packet defines the immutable waveform packet value type
// shared by every layer of the core: the channel ring, the capped
// collection, the sanitizer, and the Wiggins interpolator.
package packet

import (
	"fmt"
	"math"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
)

// Name is the four-component channel identity: network, station,
// channel, location code. It is fixed for the lifetime of a Packet.
type Name struct {
	Network      string
	Station      string
	Channel      string
	LocationCode string
}

// String renders the name in wire form, "network.station.channel.location".
func (n Name) String() string {
	return fmt.Sprintf("%s.%s.%s.%s", n.Network, n.Station, n.Channel, n.LocationCode)
}

// Empty reports whether any of the four components is unset.
func (n Name) Empty() bool {
	return n.Network == "" || n.Station == "" || n.Channel == "" || n.LocationCode == ""
}

// Equal reports whether two names denote the same channel.
func (n Name) Equal(o Name) bool {
	return n == o
}

// Packet is one contiguous, regularly sampled block of waveform
// samples for one channel. Values are immutable once constructed;
// Data is never mutated in place by the core, only copied.
type Packet struct {
	name         Name
	samplingRate float64 // Hz
	startTime    int64   // microseconds since epoch
	data         []float64
}

// New validates and constructs a Packet. It fails with
// urtserrors.InvalidArgument if any name component is empty, the
// sampling rate is not positive, or there are no samples — the core
// never carries a packet that couldn't pass admission somewhere
// downstream anyway, so the constructor enforces it eagerly rather
// than deferring to first use.
func New(name Name, samplingRate float64, startTime int64, data []float64) (Packet, error) {
	if name.Empty() {
		return Packet{}, fmt.Errorf("%w: channel name component is empty", urtserrors.InvalidArgument)
	}
	if !(samplingRate > 0) {
		return Packet{}, fmt.Errorf("%w: sampling rate must be positive, got %v", urtserrors.InvalidArgument, samplingRate)
	}
	if len(data) == 0 {
		return Packet{}, fmt.Errorf("%w: packet must have at least one sample", urtserrors.InvalidArgument)
	}
	cp := make([]float64, len(data))
	copy(cp, data)
	return Packet{name: name, samplingRate: samplingRate, startTime: startTime, data: cp}, nil
}

// NewEmpty constructs a zero-sample packet header. Used by the
// sanitizer and by callers that need to represent an empty ingest
// attempt (spec §4.3 step 1, category Empty) without satisfying the
// "at least one sample" rule New enforces; it is never admitted to a
// ring or collection.
func NewEmpty(name Name, samplingRate float64, startTime int64) Packet {
	return Packet{name: name, samplingRate: samplingRate, startTime: startTime}
}

// Name returns the packet's channel name.
func (p Packet) Name() Name { return p.name }

// SamplingRate returns the nominal sampling rate in Hz.
func (p Packet) SamplingRate() float64 { return p.samplingRate }

// StartTime returns the first sample's time, epoch microseconds.
func (p Packet) StartTime() int64 { return p.startTime }

// NumSamples returns the number of samples carried by the packet.
func (p Packet) NumSamples() int { return len(p.data) }

// Data returns an independent copy of the sample vector.
func (p Packet) Data() []float64 {
	cp := make([]float64, len(p.data))
	copy(cp, p.data)
	return cp
}

// EndTime returns the time of the last sample, epoch microseconds.
// Holds only when NumSamples() >= 1 and SamplingRate() > 0; for a
// zero-sample header it returns StartTime().
func (p Packet) EndTime() int64 {
	if len(p.data) <= 1 {
		return p.startTime
	}
	dt := math.Round(float64(len(p.data)-1) * 1e6 / p.samplingRate)
	return p.startTime + int64(dt)
}

// SampleTime returns the absolute time of sample index i, rounded at
// the packet level (not accumulated per-sample) to avoid drift, per
// spec §4.4 step 2.
func (p Packet) SampleTime(i int) int64 {
	return p.startTime + int64(math.Round(float64(i)*1e6/p.samplingRate))
}

// Valid reports whether the packet satisfies the admission
// precondition of spec §4.1: non-empty name, positive sampling rate,
// at least one sample.
func (p Packet) Valid() bool {
	return !p.name.Empty() && p.samplingRate > 0 && len(p.data) >= 1
}

// OverlapsWindow reports whether the packet's [StartTime, EndTime]
// extent overlaps the query window [t0, t1]. A packet whose end time
// is strictly before t0, or whose start time is strictly after t1, is
// excluded; anything straddling either boundary is included (spec
// §4.1 get_packets boundary policy).
func (p Packet) OverlapsWindow(t0, t1 int64) bool {
	if p.EndTime() < t0 {
		return false
	}
	if p.startTime > t1 {
		return false
	}
	return true
}
