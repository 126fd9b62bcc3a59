// Package assemble implements the waveform assembler: it turns a
// channel-correlated set of packets into a gap-aware resampled signal,
// in one-component and three-component flavors (spec §4.5, component
// C5).
package assemble

import (
	"fmt"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/interpolate"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

// Options configures an Assembler. Zero values fall back to the
// spec-mandated defaults (100 Hz, 50ms).
type Options struct {
	TargetSamplingRate float64
	GapToleranceMicros int64
}

func (o Options) interpolatorOptions() interpolate.Options {
	opts := interpolate.Options{TargetSamplingRate: o.TargetSamplingRate, GapToleranceMicros: o.GapToleranceMicros}
	if opts.TargetSamplingRate <= 0 {
		opts.TargetSamplingRate = interpolate.DefaultOptions().TargetSamplingRate
	}
	if opts.GapToleranceMicros == 0 {
		opts.GapToleranceMicros = interpolate.DefaultOptions().GapToleranceMicros
	}
	return opts
}

// Signal is a single-channel resampled waveform.
type Signal struct {
	Name               packet.Name
	TargetSamplingRate float64
	Data               []float64
	GapMask            []byte
	StartTime          int64
	EndTime            int64
	HaveGaps           bool
}

// OneComponent assembles a single channel's packets into a Signal.
type OneComponent struct {
	opts Options
}

// NewOneComponent constructs a one-component assembler.
func NewOneComponent(opts Options) *OneComponent {
	return &OneComponent{opts: opts}
}

// Set resamples packets (all for the same channel) over [t0Req, t1Req].
func (a *OneComponent) Set(packets []packet.Packet, t0Req, t1Req int64) (Signal, error) {
	if len(packets) == 0 {
		return Signal{}, nil
	}

	name := packets[0].Name()
	for _, p := range packets {
		if !p.Name().Equal(name) {
			return Signal{}, fmt.Errorf("%w: packets carry more than one channel name", urtserrors.InconsistentPackets)
		}
		if p.SamplingRate() <= 0 {
			return Signal{}, fmt.Errorf("%w: packet for %s has no sampling rate", urtserrors.InconsistentPackets, name)
		}
	}

	tMin, tMax := extent(packets)
	if t0Req > tMax {
		return Signal{}, fmt.Errorf("%w: request start %d is after all available data (ends %d)", urtserrors.OutOfRange, t0Req, tMax)
	}
	t0 := maxInt64(t0Req, tMin)
	t1 := minInt64(t1Req, tMax)

	w := interpolate.New(a.opts.interpolatorOptions())
	result, err := w.Interpolate(packets, t0, t1)
	if err != nil {
		return Signal{}, err
	}

	return Signal{
		Name:               name,
		TargetSamplingRate: result.TargetSamplingRate,
		Data:               result.Data,
		GapMask:            result.GapMask,
		StartTime:          result.StartTime,
		EndTime:            result.EndTime,
		HaveGaps:           result.HaveGaps,
	}, nil
}

func extent(packets []packet.Packet) (int64, int64) {
	tMin, tMax := packets[0].StartTime(), packets[0].EndTime()
	for _, p := range packets[1:] {
		if p.StartTime() < tMin {
			tMin = p.StartTime()
		}
		if p.EndTime() > tMax {
			tMax = p.EndTime()
		}
	}
	return tMin, tMax
}

// ThreeComponentSignal is the aligned output of the three-component
// assembler: equal sample counts across Z/N/E and one shared gap mask.
type ThreeComponentSignal struct {
	VerticalChannel    string
	NorthChannel       string
	EastChannel        string
	TargetSamplingRate float64
	Z, N, E            []float64
	GapMask            []byte
	StartTime          int64
	EndTime            int64
	HaveGaps           bool
}

// ThreeComponent assembles three independently-channeled packet sets
// (Z, N, E) into one aligned, gap-correlated signal.
type ThreeComponent struct {
	opts Options
}

// NewThreeComponent constructs a three-component assembler.
func NewThreeComponent(opts Options) *ThreeComponent {
	return &ThreeComponent{opts: opts}
}

// Set assembles the vertical, north, and east packet sets over
// [t0Req, t1Req]. Each is validated independently (one-component
// rules); the three must share network/station/location.
func (a *ThreeComponent) Set(zPackets, nPackets, ePackets []packet.Packet, t0Req, t1Req int64) (ThreeComponentSignal, error) {
	one := NewOneComponent(a.opts)

	z, err := one.Set(zPackets, t0Req, t1Req)
	if err != nil {
		return ThreeComponentSignal{}, fmt.Errorf("vertical component: %w", err)
	}
	n, err := one.Set(nPackets, t0Req, t1Req)
	if err != nil {
		return ThreeComponentSignal{}, fmt.Errorf("north component: %w", err)
	}
	e, err := one.Set(ePackets, t0Req, t1Req)
	if err != nil {
		return ThreeComponentSignal{}, fmt.Errorf("east component: %w", err)
	}

	if !sameStation(z.Name, n.Name) || !sameStation(z.Name, e.Name) {
		return ThreeComponentSignal{}, fmt.Errorf("%w: components do not share network/station/location", urtserrors.InconsistentPackets)
	}

	commonT0 := maxInt64(maxInt64(z.StartTime, n.StartTime), e.StartTime)
	commonT1 := minInt64(minInt64(z.EndTime, n.EndTime), e.EndTime)
	if commonT1 < commonT0 {
		return ThreeComponentSignal{}, fmt.Errorf("%w: components do not overlap in time", urtserrors.OutOfRange)
	}

	// Re-interpolate each component's original packets onto the common
	// window rather than index-shifting the already-resampled signals:
	// the three components generally clip to different start times, so
	// a plain index offset would misalign samples in time.
	w := interpolate.New(a.opts.interpolatorOptions())
	zr, err := w.Interpolate(zPackets, commonT0, commonT1)
	if err != nil {
		return ThreeComponentSignal{}, fmt.Errorf("vertical component: %w", err)
	}
	nr, err := w.Interpolate(nPackets, commonT0, commonT1)
	if err != nil {
		return ThreeComponentSignal{}, fmt.Errorf("north component: %w", err)
	}
	er, err := w.Interpolate(ePackets, commonT0, commonT1)
	if err != nil {
		return ThreeComponentSignal{}, fmt.Errorf("east component: %w", err)
	}

	rate := zr.TargetSamplingRate
	n1 := len(zr.Data)
	if len(nr.Data) < n1 {
		n1 = len(nr.Data)
	}
	if len(er.Data) < n1 {
		n1 = len(er.Data)
	}

	mask := make([]byte, n1)
	haveGaps := false
	for i := 0; i < n1; i++ {
		v := zr.GapMask[i] | nr.GapMask[i] | er.GapMask[i]
		mask[i] = v
		if v != 0 {
			haveGaps = true
		}
	}

	return ThreeComponentSignal{
		VerticalChannel:    z.Name.Channel,
		NorthChannel:       n.Name.Channel,
		EastChannel:        e.Name.Channel,
		TargetSamplingRate: rate,
		Z:                  zr.Data[:n1],
		N:                  nr.Data[:n1],
		E:                  er.Data[:n1],
		GapMask:            mask,
		StartTime:          commonT0,
		EndTime:            commonT0 + int64(n1-1)*int64(1e6/rate),
		HaveGaps:           haveGaps,
	}, nil
}

func sameStation(a, b packet.Name) bool {
	return a.Network == b.Network && a.Station == b.Station && a.LocationCode == b.LocationCode
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
