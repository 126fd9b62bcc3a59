// Package sanitizer implements the stateful admission filter that
// rejects duplicate, expired, future-dated, and GPS-slipped packets
// before they reach the cache or downstream broadcast (spec §4.3,
// component C3).
package sanitizer

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/uofuseismo/urts-sub000/pkg/logging"
	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

// Category names one of the five rejection buckets the sanitizer
// tracks for periodic bad-data reporting.
type Category string

const (
	CategoryFuture    Category = "future"
	CategoryDuplicate Category = "duplicate"
	CategoryBadTiming Category = "bad_timing"
	CategoryExpired   Category = "expired"
	CategoryEmpty     Category = "empty"
)

var allCategories = []Category{CategoryFuture, CategoryDuplicate, CategoryBadTiming, CategoryExpired, CategoryEmpty}

// Options configures the sanitizer. New replaces a non-positive
// MaxLatencySeconds with its default and clamps a negative
// MaxFutureTimeSeconds to zero; BadDataLoggingIntervalSeconds is used
// as given.
type Options struct {
	// MaxLatencySeconds is the oldest a packet's end time may trail
	// wall clock before it is rejected as Expired. Must be positive.
	MaxLatencySeconds float64
	// MaxFutureTimeSeconds is the furthest a packet's end time may
	// lead wall clock before it is rejected as Future. Must be >= 0.
	MaxFutureTimeSeconds float64
	// BadDataLoggingIntervalSeconds gates the periodic bad-data
	// report. <= 0 disables periodic reporting.
	BadDataLoggingIntervalSeconds float64
}

// DefaultOptions returns the spec-mandated defaults.
func DefaultOptions() Options {
	return Options{
		MaxLatencySeconds:             500,
		MaxFutureTimeSeconds:          0,
		BadDataLoggingIntervalSeconds: 3600,
	}
}

func (o Options) withDefaults() Options {
	if o.MaxLatencySeconds <= 0 {
		o.MaxLatencySeconds = DefaultOptions().MaxLatencySeconds
	}
	if o.MaxFutureTimeSeconds < 0 {
		o.MaxFutureTimeSeconds = 0
	}
	return o
}

// header is the bounded-memory summary the sanitizer keeps per packet
// instead of the full sample vector.
type header struct {
	startTime    int64
	endTime      int64
	samplingRate float64
	nSamples     int
}

func (h header) overlaps(o header) bool {
	return h.startTime <= o.endTime && o.startTime <= h.endTime
}

type channelHistory struct {
	capacity int
	headers  []header
}

// Sanitizer is the per-channel duplicate/timing admission filter.
type Sanitizer struct {
	mu       sync.Mutex
	opts     Options
	logger   *logging.Logger
	clock    func() time.Time
	channels map[packet.Name]*channelHistory
	badData  map[Category]map[packet.Name]struct{}
	lastLog  time.Time
}

// New constructs a Sanitizer. A nil logger disables bad-data logging
// output but the periodic pass still clears the accumulating sets.
func New(opts Options, logger *logging.Logger) *Sanitizer {
	opts = opts.withDefaults()
	badData := make(map[Category]map[packet.Name]struct{}, len(allCategories))
	for _, c := range allCategories {
		badData[c] = make(map[packet.Name]struct{})
	}
	return &Sanitizer{
		opts:     opts,
		logger:   logger,
		clock:    time.Now,
		channels: make(map[packet.Name]*channelHistory),
		badData:  badData,
		lastLog:  time.Time{},
	}
}

// toleranceFor returns the duplicate-start-time tolerance for a
// nominal sampling rate, per the table in spec §4.3. Rates >= 1005 Hz
// are a configuration problem and raise urtserrors.UnknownRate to the
// caller rather than being treated as ordinary bad data.
func toleranceFor(rateHz float64) (int64, error) {
	switch {
	case rateHz < 105:
		return 15_000, nil
	case rateHz < 255:
		return 4_500, nil
	case rateHz < 505:
		return 2_500, nil
	case rateHz < 1005:
		return 1_500, nil
	default:
		return 0, fmt.Errorf("%w: %v Hz", urtserrors.UnknownRate, rateHz)
	}
}

// sanitizerRingCapacity implements spec §9's faithfully-preserved (if
// aggressive for short packets) sizing formula:
// max(1000, max_latency_seconds / packet_duration_seconds) + 1.
func sanitizerRingCapacity(maxLatencySeconds, packetDurationSeconds float64) int {
	if packetDurationSeconds <= 0 {
		return 1001
	}
	n := maxLatencySeconds / packetDurationSeconds
	if n < 1000 {
		n = 1000
	}
	return int(math.Ceil(n)) + 1
}

func packetDurationSeconds(p packet.Packet) float64 {
	return float64(p.EndTime()-p.StartTime()) / 1e6
}

// Admit runs packet p through the admission algorithm at the current
// wall-clock time.
func (s *Sanitizer) Admit(p packet.Packet) (admitted bool, category Category, err error) {
	return s.AdmitAt(p, nowMicros(s.clock()))
}

// AdmitAt runs the admission algorithm with an explicit wall-clock
// time in epoch microseconds, for deterministic testing.
func (s *Sanitizer) AdmitAt(p packet.Packet, now int64) (admitted bool, category Category, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.logPass()

	name := p.Name()

	if p.NumSamples() <= 0 {
		s.mark(CategoryEmpty, name)
		return false, CategoryEmpty, nil
	}

	maxLatencyMicros := int64(s.opts.MaxLatencySeconds * 1e6)
	maxFutureMicros := int64(s.opts.MaxFutureTimeSeconds * 1e6)

	if p.EndTime() < now-maxLatencyMicros {
		s.mark(CategoryExpired, name)
		return false, CategoryExpired, nil
	}
	if p.EndTime() > now+maxFutureMicros {
		s.mark(CategoryFuture, name)
		return false, CategoryFuture, nil
	}

	h := header{startTime: p.StartTime(), endTime: p.EndTime(), samplingRate: p.SamplingRate(), nSamples: p.NumSamples()}

	hist, ok := s.channels[name]
	if !ok {
		cap := sanitizerRingCapacity(s.opts.MaxLatencySeconds, packetDurationSeconds(p))
		hist = &channelHistory{capacity: cap, headers: make([]header, 0, 1)}
		s.channels[name] = hist
		hist.headers = append(hist.headers, h)
		return true, "", nil
	}

	tol, err := toleranceFor(p.SamplingRate())
	if err != nil {
		return false, "", err
	}

	for _, existing := range hist.headers {
		if abs64(h.startTime-existing.startTime) < tol {
			s.mark(CategoryDuplicate, name)
			return false, CategoryDuplicate, nil
		}
	}

	n := len(hist.headers)
	if h.startTime > hist.headers[n-1].startTime {
		hist.headers = append(hist.headers, h)
		if len(hist.headers) > hist.capacity {
			hist.headers = hist.headers[1:]
		}
		return true, "", nil
	}

	for _, existing := range hist.headers {
		if h.overlaps(existing) {
			s.mark(CategoryBadTiming, name)
			return false, CategoryBadTiming, nil
		}
	}

	idx := sort.Search(n, func(i int) bool { return hist.headers[i].startTime >= h.startTime })
	hist.headers = append(hist.headers, header{})
	copy(hist.headers[idx+1:], hist.headers[idx:])
	hist.headers[idx] = h
	if len(hist.headers) > hist.capacity {
		hist.headers = hist.headers[1:]
	}
	return true, "", nil
}

func (s *Sanitizer) mark(category Category, name packet.Name) {
	s.badData[category][name] = struct{}{}
}

// logPass emits one informational record per non-empty category and
// clears it, provided at least the configured interval has elapsed
// since the previous pass. Must be called with s.mu held.
func (s *Sanitizer) logPass() {
	if s.opts.BadDataLoggingIntervalSeconds <= 0 {
		return
	}
	now := s.clock()
	interval := time.Duration(s.opts.BadDataLoggingIntervalSeconds * float64(time.Second))
	if !s.lastLog.IsZero() && now.Sub(s.lastLog) < interval {
		return
	}
	s.lastLog = now

	for _, category := range allCategories {
		set := s.badData[category]
		if len(set) == 0 {
			continue
		}
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name.String())
		}
		sort.Strings(names)
		if s.logger != nil {
			s.logger.Warn("bad data report", "category", string(category), "channels", names)
		}
		s.badData[category] = make(map[packet.Name]struct{})
	}
}

// GetBadChannels returns a snapshot of the channel names currently
// accumulated for category.
func (s *Sanitizer) GetBadChannels(category Category) []packet.Name {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.badData[category]
	out := make([]packet.Name, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func nowMicros(t time.Time) int64 {
	return t.UnixMicro()
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
