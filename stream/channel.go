// Package stream models the HWPE streaming fabric at signal level: valid/
// ready handshake channels, request/grant memory transaction channels, and
// the synchronous modules that move word-oriented data between them.
package stream

import (
	"bytes"
	"fmt"
	"math/bits"

	"github.com/pulp-platform/hwpe-stream/sim"
)

// A Strobe is a byte-enable bitmask. Bit i marks byte i of the associated
// payload as valid.
type Strobe uint64

// FullStrobe returns a strobe with the low n bits set.
func FullStrobe(n int) Strobe {
	if n <= 0 || n > 64 {
		panic(fmt.Sprintf("unsupported strobe width %d", n))
	}

	if n == 64 {
		return ^Strobe(0)
	}

	return Strobe(1)<<n - 1
}

// FirstStrobe returns the mask that marks the bytes at and above the
// misalignment offset as valid. It is the strobe of the first transaction
// of a misaligned line.
func FirstStrobe(n, offset int) Strobe {
	return (FullStrobe(n) << offset) & FullStrobe(n)
}

// LastStrobe returns the complement of FirstStrobe within the strobe width.
// It is the strobe of the compensation transaction at the end of a
// misaligned line.
func LastStrobe(n, offset int) Strobe {
	return ^(FullStrobe(n) << offset) & FullStrobe(n)
}

// PopCount returns the number of valid bytes marked by the strobe.
func (s Strobe) PopCount() int {
	return bits.OnesCount64(uint64(s))
}

// None returns true if the strobe marks no byte valid.
func (s Strobe) None() bool {
	return s == 0
}

// A Channel is a unidirectional valid/ready handshake channel with a payload
// and an optional byte strobe.
//
// The producer drives Valid, Data and Strb; the consumer drives Ready. A
// handshake happens in any cycle where both Valid and Ready are high. Once
// Valid is asserted, the payload must be held stable until the cycle after
// the handshake, and Valid may only deassert in the cycle after a
// handshake. ChannelMonitor enforces these rules.
type Channel struct {
	name       string
	widthBytes int

	Valid bool
	Ready bool
	Data  []byte
	Strb  Strobe
}

// NewChannel creates a channel that carries widthBytes bytes per packet.
func NewChannel(name string, widthBytes int) *Channel {
	sim.NameMustBeValid(name)

	if widthBytes <= 0 || widthBytes > 64 {
		panic(fmt.Sprintf("unsupported channel width %d", widthBytes))
	}

	return &Channel{
		name:       name,
		widthBytes: widthBytes,
		Data:       make([]byte, widthBytes),
		Strb:       FullStrobe(widthBytes),
	}
}

// Name returns the name of the channel.
func (c *Channel) Name() string {
	return c.name
}

// WidthBytes returns the payload width in bytes.
func (c *Channel) WidthBytes() int {
	return c.widthBytes
}

// Fire reports whether a handshake completes in the current cycle.
func (c *Channel) Fire() bool {
	return c.Valid && c.Ready
}

// DriveValid sets the valid signal and reports whether it changed.
func (c *Channel) DriveValid(v bool) bool {
	changed := c.Valid != v
	c.Valid = v

	return changed
}

// DriveReady sets the ready signal and reports whether it changed.
func (c *Channel) DriveReady(v bool) bool {
	changed := c.Ready != v
	c.Ready = v

	return changed
}

// DriveData sets the payload and reports whether it changed.
func (c *Channel) DriveData(d []byte) bool {
	if len(d) != c.widthBytes {
		panic(fmt.Sprintf("channel %s: payload width mismatch", c.name))
	}

	if bytes.Equal(c.Data, d) {
		return false
	}

	copy(c.Data, d)

	return true
}

// DriveStrb sets the strobe and reports whether it changed.
func (c *Channel) DriveStrb(s Strobe) bool {
	changed := c.Strb != s
	c.Strb = s

	return changed
}
