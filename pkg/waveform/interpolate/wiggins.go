// Package interpolate implements the Wiggins (weighted-average-slopes)
// interpolator: it turns an unordered, possibly-gappy,
// variable-sampling-rate packet set for one channel into a regularly
// sampled signal plus a gap mask over a caller-chosen time window
// (spec §4.4, component C4).
//
// A Wiggins value is never shared across goroutines: each request
// handler constructs its own, and every call to Interpolate rebuilds
// its result from scratch (spec §5).
package interpolate

import (
	"fmt"
	"math"
	"sort"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

// Options configures a Wiggins interpolator.
type Options struct {
	// TargetSamplingRate is the output sampling rate in Hz. Must be
	// positive; zero means "use the default of 100 Hz".
	TargetSamplingRate float64
	// GapToleranceMicros is the largest inter-packet gap, in
	// microseconds, that is not flagged in the gap mask. <= 0 disables
	// the concept of a tolerable gap: every inter-packet interpolated
	// sample is then flagged.
	GapToleranceMicros int64
}

// DefaultOptions returns the spec-mandated defaults: 100 Hz, 50ms.
func DefaultOptions() Options {
	return Options{TargetSamplingRate: 100, GapToleranceMicros: 50_000}
}

func (o Options) withDefaults() Options {
	if o.TargetSamplingRate <= 0 {
		o.TargetSamplingRate = DefaultOptions().TargetSamplingRate
	}
	return o
}

// Result is the output of one Interpolate call.
type Result struct {
	TargetSamplingRate float64
	GapTolerance       int64
	Data               []float64
	GapMask            []byte // 0 = inside a source packet's extent, 1 = gap
	StartTime          int64
	EndTime            int64
	HaveGaps           bool
}

// Wiggins is a gap-aware resampler for a single channel's packets.
type Wiggins struct {
	opts Options
}

// New constructs a Wiggins interpolator.
func New(opts Options) *Wiggins {
	return &Wiggins{opts: opts.withDefaults()}
}

type sample struct {
	t       int64
	v       float64
	segment int
}

type segment struct {
	start, end int64
}

// Interpolate resamples packets onto a regular grid covering the
// intersection of the packets' extent and [t0Req, t1Req].
func (w *Wiggins) Interpolate(packets []packet.Packet, t0Req, t1Req int64) (Result, error) {
	if len(packets) == 0 {
		return Result{TargetSamplingRate: w.opts.TargetSamplingRate, GapTolerance: w.opts.GapToleranceMicros}, nil
	}
	for _, p := range packets {
		if p.SamplingRate() <= 0 {
			return Result{}, fmt.Errorf("%w: packet for %s has no sampling rate", urtserrors.InvalidArgument, p.Name())
		}
	}

	sortedInput := isSortedByStart(packets)

	// Flatten samples and record segments in input order, tagging each
	// sample with its source segment so tangent computation never
	// crosses a packet boundary.
	samples := make([]sample, 0)
	segments := make([]segment, len(packets))
	for si, p := range packets {
		segments[si] = segment{start: p.StartTime(), end: p.EndTime()}
		data := p.Data()
		for i := range data {
			samples = append(samples, sample{t: p.SampleTime(i), v: data[i], segment: si})
		}
	}

	sort.SliceStable(samples, func(i, j int) bool { return samples[i].t < samples[j].t })
	samples = collapseDuplicates(samples)

	if len(samples) == 0 {
		return Result{TargetSamplingRate: w.opts.TargetSamplingRate, GapTolerance: w.opts.GapToleranceMicros}, nil
	}

	tMin := samples[0].t
	tMax := samples[len(samples)-1].t

	if !(t0Req < tMax) {
		return Result{TargetSamplingRate: w.opts.TargetSamplingRate, GapTolerance: w.opts.GapToleranceMicros}, nil
	}
	if !(t1Req >= tMin) {
		return Result{TargetSamplingRate: w.opts.TargetSamplingRate, GapTolerance: w.opts.GapToleranceMicros}, nil
	}
	t0 := maxInt64(tMin, t0Req)
	t1 := minInt64(tMax, t1Req)
	if t1 < t0 {
		return Result{TargetSamplingRate: w.opts.TargetSamplingRate, GapTolerance: w.opts.GapToleranceMicros}, nil
	}

	delta := int64(math.Round(1e6 / w.opts.TargetSamplingRate))
	if delta <= 0 {
		delta = 1
	}
	nOut := int((t1-t0)/delta) + 1
	if nOut < 1 {
		nOut = 1
	}
	outTimes := make([]int64, nOut)
	for i := range outTimes {
		outTimes[i] = t0 + int64(i)*delta
	}

	tangents := wigginsTangents(samples)
	data := evaluateHermite(samples, tangents, outTimes)

	var windows []segment
	if sortedInput {
		windows = gapWindowsSorted(segments, w.opts.GapToleranceMicros)
	} else {
		windows = gapWindowsUnsortedON2(segments, w.opts.GapToleranceMicros)
	}
	mask, haveGaps := buildGapMask(outTimes, windows, delta)

	return Result{
		TargetSamplingRate: w.opts.TargetSamplingRate,
		GapTolerance:        w.opts.GapToleranceMicros,
		Data:                data,
		GapMask:             mask,
		StartTime:           outTimes[0],
		EndTime:             outTimes[len(outTimes)-1],
		HaveGaps:            haveGaps,
	}, nil
}

func isSortedByStart(packets []packet.Packet) bool {
	for i := 1; i < len(packets); i++ {
		if packets[i].StartTime() < packets[i-1].StartTime() {
			return false
		}
	}
	return true
}

// collapseDuplicates tolerates duplicate abscissas by keeping the
// first occurrence of each distinct time, per spec §4.4 step 7.
func collapseDuplicates(samples []sample) []sample {
	out := samples[:0:0]
	for i, s := range samples {
		if i > 0 && s.t == samples[i-1].t {
			continue
		}
		out = append(out, s)
	}
	return out
}

// wigginsTangents computes one slope per sample using the
// weighted-average-slopes rule: an interior point's tangent blends the
// two adjacent secants, weighted by the opposite interval's length so
// the slope over the shorter interval dominates. Segment endpoints use a
// one-sided secant so a gap can never pull a spurious slope across it;
// a single-sample segment gets a zero tangent.
func wigginsTangents(samples []sample) []float64 {
	n := len(samples)
	tangents := make([]float64, n)
	for i := 0; i < n; i++ {
		leftOK := i > 0 && samples[i-1].segment == samples[i].segment
		rightOK := i < n-1 && samples[i+1].segment == samples[i].segment

		switch {
		case leftOK && rightOK:
			hLeft := float64(samples[i].t - samples[i-1].t)
			hRight := float64(samples[i+1].t - samples[i].t)
			sLeft := (samples[i].v - samples[i-1].v) / hLeft
			sRight := (samples[i+1].v - samples[i].v) / hRight
			if hLeft+hRight == 0 {
				tangents[i] = 0
				continue
			}
			tangents[i] = (hRight*sLeft + hLeft*sRight) / (hLeft + hRight)
		case leftOK:
			hLeft := float64(samples[i].t - samples[i-1].t)
			tangents[i] = (samples[i].v - samples[i-1].v) / hLeft
		case rightOK:
			hRight := float64(samples[i+1].t - samples[i].t)
			tangents[i] = (samples[i+1].v - samples[i].v) / hRight
		default:
			tangents[i] = 0
		}
	}
	return tangents
}

// evaluateHermite evaluates the cubic Hermite spline defined by
// samples/tangents at each requested output time, clamping to the
// nearest endpoint value outside the sample range.
func evaluateHermite(samples []sample, tangents []float64, outTimes []int64) []float64 {
	out := make([]float64, len(outTimes))
	n := len(samples)
	j := 0
	for oi, t := range outTimes {
		for j < n-2 && samples[j+1].t < t {
			j++
		}
		if t <= samples[0].t {
			out[oi] = samples[0].v
			continue
		}
		if t >= samples[n-1].t {
			out[oi] = samples[n-1].v
			continue
		}
		for j < n-2 && !(samples[j].t <= t && t <= samples[j+1].t) {
			j++
		}
		x0, x1 := samples[j].t, samples[j+1].t
		h := float64(x1 - x0)
		if h <= 0 {
			out[oi] = samples[j].v
			continue
		}
		s := float64(t-x0) / h
		s2 := s * s
		s3 := s2 * s
		h00 := 2*s3 - 3*s2 + 1
		h10 := s3 - 2*s2 + s
		h01 := -2*s3 + 3*s2
		h11 := s3 - s2
		out[oi] = h00*samples[j].v + h10*h*tangents[j] + h01*samples[j+1].v + h11*h*tangents[j+1]
	}
	return out
}

// gapWindowsSorted is the O(N) fast path over already start-time
// sorted segments: adjacency is just the next element in the slice.
func gapWindowsSorted(segments []segment, tolerance int64) []segment {
	sorted := append([]segment(nil), segments...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })
	return adjacentGaps(sorted, tolerance)
}

// gapWindowsUnsortedON2 is the faithful-to-source O(N^2) path: for
// every segment it scans every other segment to find the nearest one
// that starts after its end, without relying on a prior full sort.
func gapWindowsUnsortedON2(segments []segment, tolerance int64) []segment {
	var windows []segment
	for i := range segments {
		best := -1
		for j := range segments {
			if i == j {
				continue
			}
			if segments[j].start > segments[i].end {
				if best == -1 || segments[j].start < segments[best].start {
					best = j
				}
			}
		}
		if best == -1 {
			continue
		}
		gap := segments[best].start - segments[i].end
		if tolerance <= 0 || gap > tolerance {
			windows = append(windows, segment{start: segments[i].end, end: segments[best].start})
		}
	}
	return dedupeWindows(windows)
}

func adjacentGaps(sorted []segment, tolerance int64) []segment {
	var windows []segment
	for i := 1; i < len(sorted); i++ {
		gap := sorted[i].start - sorted[i-1].end
		if tolerance <= 0 || gap > tolerance {
			windows = append(windows, segment{start: sorted[i-1].end, end: sorted[i].start})
		}
	}
	return windows
}

func dedupeWindows(windows []segment) []segment {
	sort.Slice(windows, func(i, j int) bool { return windows[i].start < windows[j].start })
	out := windows[:0:0]
	for i, w := range windows {
		if i > 0 && w == out[len(out)-1] {
			continue
		}
		out = append(out, w)
	}
	return out
}

// buildGapMask flags every output sample whose time falls strictly
// inside a gap window, beyond a half-sample guard at each end so exact
// packet-boundary samples are never false positives.
func buildGapMask(outTimes []int64, windows []segment, delta int64) ([]byte, bool) {
	mask := make([]byte, len(outTimes))
	guard := delta / 2
	haveGaps := false
	for _, win := range windows {
		lo := win.start + guard
		hi := win.end - guard
		if hi <= lo {
			continue
		}
		for i, t := range outTimes {
			if t > lo && t < hi {
				mask[i] = 1
				haveGaps = true
			}
		}
	}
	return mask, haveGaps
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
