package verif

import (
	"bytes"
	"fmt"

	"github.com/pulp-platform/hwpe-stream/stream"
)

// A StreamScoreboard consumes packets from a handshake channel, records
// them, and optionally checks them against an expected sequence. A ready
// pattern injects back-pressure cycles.
type StreamScoreboard struct {
	name string
	ch   *stream.Channel

	readyPattern []bool
	patIdx       int

	received [][]byte
	strobes  []stream.Strobe

	expected [][]byte
	errors   []string
}

// NewStreamScoreboard creates a scoreboard for the given channel.
func NewStreamScoreboard(
	name string,
	ch *stream.Channel,
) *StreamScoreboard {
	return &StreamScoreboard{name: name, ch: ch}
}

// WithReadyPattern makes the scoreboard assert ready only in cycles where
// pattern[i mod len] is true. An empty pattern is always ready.
func (s *StreamScoreboard) WithReadyPattern(
	pattern []bool,
) *StreamScoreboard {
	s.readyPattern = pattern
	return s
}

// Name returns the name of the scoreboard.
func (s *StreamScoreboard) Name() string {
	return s.name
}

// Expect appends a packet to the expected sequence.
func (s *StreamScoreboard) Expect(data []byte) {
	d := make([]byte, len(data))
	copy(d, data)
	s.expected = append(s.expected, d)
}

// ExpectWords appends one expected packet per 32-bit word, little endian.
func (s *StreamScoreboard) ExpectWords(words ...uint32) {
	for _, w := range words {
		s.Expect([]byte{
			byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24),
		})
	}
}

// Received returns the packets collected so far.
func (s *StreamScoreboard) Received() [][]byte {
	return s.received
}

// Strobes returns the strobes of the packets collected so far.
func (s *StreamScoreboard) Strobes() []stream.Strobe {
	return s.strobes
}

// Errors returns the mismatches found against the expected sequence.
func (s *StreamScoreboard) Errors() []string {
	return s.errors
}

// Complete reports that every expected packet arrived and matched.
func (s *StreamScoreboard) Complete() bool {
	return len(s.received) >= len(s.expected) && len(s.errors) == 0
}

func (s *StreamScoreboard) allow() bool {
	if len(s.readyPattern) == 0 {
		return true
	}

	return s.readyPattern[s.patIdx]
}

// Comb drives the ready signal.
func (s *StreamScoreboard) Comb() bool {
	return s.ch.DriveReady(s.allow())
}

// Edge records a completed handshake.
func (s *StreamScoreboard) Edge() {
	if s.ch.Fire() {
		d := make([]byte, s.ch.WidthBytes())
		copy(d, s.ch.Data)

		idx := len(s.received)
		s.received = append(s.received, d)
		s.strobes = append(s.strobes, s.ch.Strb)

		if idx < len(s.expected) &&
			!bytes.Equal(d, s.expected[idx]) {
			s.errors = append(s.errors, fmt.Sprintf(
				"packet %d: got %x, want %x",
				idx, d, s.expected[idx]))
		}

		if idx >= len(s.expected) && len(s.expected) > 0 {
			s.errors = append(s.errors, fmt.Sprintf(
				"packet %d: unexpected extra packet %x", idx, d))
		}
	}

	if len(s.readyPattern) > 0 {
		s.patIdx = (s.patIdx + 1) % len(s.readyPattern)
	}
}
