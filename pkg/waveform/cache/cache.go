// Package cache implements the capped collection: a dictionary from
// channel name to channel ring, plus a blacklist of glob patterns over
// the channel component (spec §4.2, component C2).
//
// Collection is safe for concurrent use: a single mutex guards the
// channel-name -> ring map and the blacklist, and every ring is
// reached only through the collection (spec §5).
package cache

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/ring"
)

// Collection is the capped, per-channel packet cache.
type Collection struct {
	mu        sync.Mutex
	capacity  int
	blacklist []string
	rings     map[packet.Name]*ring.Ring
}

// New initializes a collection with uniform per-channel capacity cap
// and a set of shell-style glob blacklist patterns matched against the
// channel component only ('*' = any run, '?' = any one character).
func New(cap int, blacklist []string) (*Collection, error) {
	if cap < 1 {
		return nil, fmt.Errorf("%w: capacity must be >= 1, got %d", urtserrors.InvalidArgument, cap)
	}
	bl := make([]string, len(blacklist))
	copy(bl, blacklist)
	return &Collection{
		capacity:  cap,
		blacklist: bl,
		rings:     make(map[packet.Name]*ring.Ring),
	}, nil
}

// isBlacklisted reports whether the channel component matches any
// blacklist pattern. '?' in a shell glob matches exactly one rune,
// which is what filepath.Match already does; filepath.Match also
// treats '/' specially, which never appears in a channel component,
// so no further translation is required.
func (c *Collection) isBlacklisted(channel string) bool {
	for _, pattern := range c.blacklist {
		if ok, err := filepath.Match(pattern, channel); err == nil && ok {
			return true
		}
	}
	return false
}

// AddPacket routes p to the ring for its channel name, creating the
// ring lazily if absent. Evaluated strictly in this order: blacklist
// match (silent drop), validity (InvalidArgument), then admission.
func (c *Collection) AddPacket(p packet.Packet) error {
	if c.isBlacklisted(p.Name().Channel) {
		return nil
	}
	if !p.Valid() {
		return fmt.Errorf("%w: packet is not valid", urtserrors.InvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.rings[p.Name()]
	if !ok {
		var err error
		r, err = ring.New(p.Name(), c.capacity)
		if err != nil {
			return err
		}
		c.rings[p.Name()] = r
	}
	return r.AddPacket(p)
}

// HaveSensor reports whether name has an entry in the collection.
func (c *Collection) HaveSensor(name packet.Name) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rings[name]
	return ok
}

// GetSensorNames enumerates every channel name currently in the
// collection, sorted for deterministic output.
func (c *Collection) GetSensorNames() []packet.Name {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]packet.Name, 0, len(c.rings))
	for name := range c.rings {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// GetPacketsFrom returns every packet for name whose extent overlaps
// [t0, +inf). Fails with urtserrors.UnknownSensor if name is absent.
func (c *Collection) GetPacketsFrom(name packet.Name, t0 int64) ([]packet.Packet, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", urtserrors.UnknownSensor, name)
	}
	return r.GetPacketsFrom(t0), nil
}

// GetPackets returns every packet for name whose extent overlaps
// [t0, t1]. Fails with urtserrors.UnknownSensor if name is absent, or
// urtserrors.InvalidArgument if t1 <= t0.
func (c *Collection) GetPackets(name packet.Name, t0, t1 int64) ([]packet.Packet, error) {
	if t1 <= t0 {
		return nil, fmt.Errorf("%w: t1 (%d) must be > t0 (%d)", urtserrors.InvalidArgument, t1, t0)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rings[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", urtserrors.UnknownSensor, name)
	}
	return r.GetPacketsBetween(t0, t1), nil
}

// EarliestStartTime returns the earliest stored start time for name.
// Fails with urtserrors.UnknownSensor if name is absent, or
// urtserrors.Empty if the ring (which is never left empty by the
// collection's own lifecycle) somehow has no packets.
func (c *Collection) EarliestStartTime(name packet.Name) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.rings[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", urtserrors.UnknownSensor, name)
	}
	return r.GetEarliestStartTime()
}

// TotalNumberOfPackets sums the number of packets across every ring.
func (c *Collection) TotalNumberOfPackets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, r := range c.rings {
		total += r.NumberOfPackets()
	}
	return total
}

// NumberOfChannels returns the number of distinct channels currently
// tracked by the collection.
func (c *Collection) NumberOfChannels() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.rings)
}

// Clear empties the collection of all rings. A subsequent query
// behaves exactly as it would on a freshly constructed collection.
func (c *Collection) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rings = make(map[packet.Name]*ring.Ring)
}
