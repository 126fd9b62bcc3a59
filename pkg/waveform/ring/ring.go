// Package ring implements a fixed-capacity, sorted history of
// waveform packets for a single channel (spec §4.1, component C1).
//
// A Ring is not itself safe for concurrent use; in the core it is
// only ever reached through the capped collection's single mutex
// (spec §5).
package ring

import (
	"fmt"
	"math"
	"sort"

	"github.com/uofuseismo/urts-sub000/pkg/urtserrors"
	"github.com/uofuseismo/urts-sub000/pkg/waveform/packet"
)

// Ring is a bounded, start-time-sorted sequence of packets sharing one
// channel name.
type Ring struct {
	name     packet.Name
	capacity int
	packets  []packet.Packet
}

// New constructs a ring for the given channel name with capacity cap.
// It fails with urtserrors.InvalidArgument if any name component is
// empty or cap < 1.
func New(name packet.Name, cap int) (*Ring, error) {
	if name.Empty() {
		return nil, fmt.Errorf("%w: channel name component is empty", urtserrors.InvalidArgument)
	}
	if cap < 1 {
		return nil, fmt.Errorf("%w: capacity must be >= 1, got %d", urtserrors.InvalidArgument, cap)
	}
	return &Ring{
		name:     name,
		capacity: cap,
		packets:  make([]packet.Packet, 0, cap),
	}, nil
}

// Name returns the ring's fixed channel name.
func (r *Ring) Name() packet.Name { return r.name }

// Capacity returns the ring's fixed capacity K.
func (r *Ring) Capacity() int { return r.capacity }

// NumberOfPackets returns the current number of stored packets.
func (r *Ring) NumberOfPackets() int { return len(r.packets) }

// Clear empties the ring, leaving capacity and name untouched.
func (r *Ring) Clear() {
	r.packets = r.packets[:0]
}

// AddPacket inserts p into sorted position, applying spec §4.1's
// insertion algorithm. p's channel name must equal the ring's name and
// p must be a valid packet.
func (r *Ring) AddPacket(p packet.Packet) error {
	if !p.Name().Equal(r.name) {
		return fmt.Errorf("%w: packet channel %s does not match ring channel %s", urtserrors.InvalidArgument, p.Name(), r.name)
	}
	if !p.Valid() {
		return fmt.Errorf("%w: packet is not valid", urtserrors.InvalidArgument)
	}

	n := len(r.packets)
	switch {
	case n == 0:
		r.packets = append(r.packets, p)
		return nil
	case p.StartTime() > r.packets[n-1].StartTime():
		// Hot path: new data arriving in order.
		r.packets = append(r.packets, p)
		if len(r.packets) > r.capacity {
			r.packets = r.packets[1:]
		}
		return nil
	case p.StartTime() < r.packets[0].StartTime() && n >= r.capacity:
		// Too old and the ring has no room: drop silently.
		return nil
	}

	idx := sort.Search(n, func(i int) bool {
		return r.packets[i].StartTime() >= p.StartTime()
	})
	if idx < n && r.packets[idx].StartTime() == p.StartTime() {
		// Duplicate-by-start-time: overwrite.
		r.packets[idx] = p
		return nil
	}

	// Legitimate back-fill: insert before idx, maintaining sort order.
	r.packets = append(r.packets, packet.Packet{})
	copy(r.packets[idx+1:], r.packets[idx:])
	r.packets[idx] = p
	if len(r.packets) > r.capacity {
		r.packets = r.packets[1:]
	}
	return nil
}

// GetPackets returns an independent copy of every stored packet,
// sorted ascending by start time.
func (r *Ring) GetPackets() []packet.Packet {
	return r.snapshot(func(packet.Packet) bool { return true })
}

// GetPacketsFrom returns every packet whose extent overlaps [t0, +inf).
func (r *Ring) GetPacketsFrom(t0 int64) []packet.Packet {
	return r.snapshot(func(p packet.Packet) bool {
		return p.OverlapsWindow(t0, math.MaxInt64)
	})
}

// GetPacketsBetween returns every packet whose extent overlaps [t0, t1].
func (r *Ring) GetPacketsBetween(t0, t1 int64) []packet.Packet {
	return r.snapshot(func(p packet.Packet) bool {
		return p.OverlapsWindow(t0, t1)
	})
}

func (r *Ring) snapshot(keep func(packet.Packet) bool) []packet.Packet {
	out := make([]packet.Packet, 0, len(r.packets))
	for _, p := range r.packets {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

// GetEarliestStartTime returns the start time of the oldest stored
// packet. It fails with urtserrors.Empty if the ring has no packets.
func (r *Ring) GetEarliestStartTime() (int64, error) {
	if len(r.packets) == 0 {
		return 0, fmt.Errorf("%w: ring has no packets", urtserrors.Empty)
	}
	return r.packets[0].StartTime(), nil
}
