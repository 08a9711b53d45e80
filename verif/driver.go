// Package verif provides reusable testbench modules: a stream driver
// that plays a list of packets onto a handshake channel and a scoreboard
// that collects and checks the packets arriving on one.
package verif

import (
	"github.com/pulp-platform/hwpe-stream/stream"
)

type driverItem struct {
	data []byte
	strb stream.Strobe
}

// A StreamDriver plays queued packets onto a handshake channel. A valid
// pattern can inject idle cycles between packets; once a packet is
// presented it stays presented until the handshake, so the driver never
// violates the channel contract.
type StreamDriver struct {
	name string
	ch   *stream.Channel

	queue []driverItem
	cur   driverItem
	busy  bool

	validPattern []bool
	patIdx       int

	sent int
}

// NewStreamDriver creates a driver for the given channel.
func NewStreamDriver(name string, ch *stream.Channel) *StreamDriver {
	return &StreamDriver{name: name, ch: ch}
}

// WithValidPattern makes the driver present a new packet only in cycles
// where pattern[i mod len] is true. An empty pattern presents packets
// back to back.
func (d *StreamDriver) WithValidPattern(pattern []bool) *StreamDriver {
	d.validPattern = pattern
	return d
}

// Name returns the name of the driver.
func (d *StreamDriver) Name() string {
	return d.name
}

// Enqueue appends a packet with a full strobe.
func (d *StreamDriver) Enqueue(data []byte) {
	d.EnqueueStrobed(data, stream.FullStrobe(d.ch.WidthBytes()))
}

// EnqueueStrobed appends a packet with an explicit strobe.
func (d *StreamDriver) EnqueueStrobed(data []byte, strb stream.Strobe) {
	item := driverItem{data: make([]byte, len(data)), strb: strb}
	copy(item.data, data)
	d.queue = append(d.queue, item)
}

// EnqueueWords appends one packet per 32-bit word, little endian. The
// channel must be 4 bytes wide.
func (d *StreamDriver) EnqueueWords(words ...uint32) {
	for _, w := range words {
		d.Enqueue([]byte{
			byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24),
		})
	}
}

// Sent returns the number of completed handshakes.
func (d *StreamDriver) Sent() int {
	return d.sent
}

// Pending returns the number of packets not yet handed over.
func (d *StreamDriver) Pending() int {
	n := len(d.queue)
	if d.busy {
		n++
	}

	return n
}

func (d *StreamDriver) allow() bool {
	if len(d.validPattern) == 0 {
		return true
	}

	return d.validPattern[d.patIdx]
}

// Comb drives the channel from the registered presentation state.
func (d *StreamDriver) Comb() bool {
	changed := d.ch.DriveValid(d.busy)
	if d.busy {
		changed = d.ch.DriveData(d.cur.data) || changed
		changed = d.ch.DriveStrb(d.cur.strb) || changed
	}

	return changed
}

// Edge retires a completed handshake and presents the next packet.
func (d *StreamDriver) Edge() {
	if d.busy && d.ch.Fire() {
		d.busy = false
		d.sent++
	}

	if !d.busy && len(d.queue) > 0 && d.allow() {
		d.cur = d.queue[0]
		d.queue = d.queue[1:]
		d.busy = true
	}

	if len(d.validPattern) > 0 {
		d.patIdx = (d.patIdx + 1) % len(d.validPattern)
	}
}
