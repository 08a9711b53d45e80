package stream

import (
	"github.com/pulp-platform/hwpe-stream/sim"
)

type lastStrbEntry struct {
	strb       Strobe
	lastPacket bool
}

// A SourceRealign converts the word-aligned packets recovered by a burst
// of misaligned reads into a contiguous, strobe-free stream. Each output
// payload concatenates the tail of packet N with the head of packet N+1,
// rotated so that byte 0 always holds the first valid byte of the
// misaligned region.
//
// The rotation amount is latched on the first packet of every line from
// the popcount of the first strobe and held until the next first packet.
// The first packet contributes no output of its own, so it is absorbed
// without stalling the pipe.
//
// In decoupled mode the arriving packets are not synchronized to the
// generator flags, so first/last are reconstructed locally by counting
// packets against the line length, and the per-line strobes travel
// through two small queues pushed at request time.
type SourceRealign struct {
	name  string
	in    *Channel
	out   *Channel
	ctrl  func() RealignFlags
	width int

	rot    int
	held   []byte
	outBuf []byte

	decoupled bool
	pktIdx    int
	firstQ    sim.Buffer
	lastQ     sim.Buffer
	depth     int
}

// NewSourceRealign creates a realigner between in and out. ctrl supplies
// the per-cycle realign flags; in tight mode the in channel's strobe
// side-band carries the per-packet strobe.
func NewSourceRealign(
	name string,
	in, out *Channel,
	ctrl func() RealignFlags,
) *SourceRealign {
	if in.WidthBytes() != out.WidthBytes() {
		panic("realigner ports must have the same width")
	}

	return &SourceRealign{
		name:   name,
		in:     in,
		out:    out,
		ctrl:   ctrl,
		width:  in.WidthBytes(),
		held:   make([]byte, in.WidthBytes()),
		outBuf: make([]byte, in.WidthBytes()),
	}
}

// NewDecoupledSourceRealign creates a realigner whose control information
// travels through internal queues of the given depth instead of the in
// channel's strobe side-band.
func NewDecoupledSourceRealign(
	name string,
	in, out *Channel,
	ctrl func() RealignFlags,
	strbFifoDepth int,
) *SourceRealign {
	r := NewSourceRealign(name, in, out, ctrl)
	r.decoupled = true
	r.depth = strbFifoDepth
	r.firstQ = sim.NewBuffer(name+".FirstStrbFifo", strbFifoDepth)
	r.lastQ = sim.NewBuffer(name+".LastStrbFifo", strbFifoDepth)

	return r
}

// Name returns the name of the realigner.
func (r *SourceRealign) Name() string {
	return r.name
}

// PushFirstStrb records the first-packet strobe of one line. Called at
// request time in decoupled mode.
func (r *SourceRealign) PushFirstStrb(s Strobe) {
	r.firstQ.Push(s)
}

// PushLastStrb records the last-packet strobe of one line and whether
// that line closes the transfer. Called at request time in decoupled
// mode.
func (r *SourceRealign) PushLastStrb(s Strobe, lastPacket bool) {
	r.lastQ.Push(lastStrbEntry{strb: s, lastPacket: lastPacket})
}

// DecoupledStall reports that the control-queue backlog is close to the
// queue depth and the request side must be throttled.
func (r *SourceRealign) DecoupledStall() bool {
	if !r.decoupled {
		return false
	}

	return r.firstQ.Size() > r.depth-4 || r.lastQ.Size() > r.depth-4
}

// Clear synchronously resets all state back to idle.
func (r *SourceRealign) Clear() {
	r.rot = 0
	r.pktIdx = 0
	for i := range r.held {
		r.held[i] = 0
	}

	if r.decoupled {
		r.firstQ.Clear()
		r.lastQ.Clear()
	}
}

// lineWords returns the number of packets per realigned line, including
// the compensating one.
func (r *SourceRealign) lineWords(f RealignFlags) int {
	return int(f.LineLength) + 1
}

func (r *SourceRealign) phase(f RealignFlags) (first, last bool) {
	if r.decoupled {
		return r.pktIdx == 0, r.pktIdx == r.lineWords(f)-1
	}

	return f.First, f.Last
}

// firstBlocked reports that the first packet cannot be absorbed yet
// because its strobe has not arrived through the control queue.
func (r *SourceRealign) firstBlocked() bool {
	return r.decoupled && r.firstQ.Size() == 0
}

func (r *SourceRealign) lastBlocked() bool {
	return r.decoupled && r.lastQ.Size() == 0
}

func (r *SourceRealign) compose(cur []byte) []byte {
	inv := r.width - r.rot
	for i := 0; i < r.width; i++ {
		if i >= r.rot {
			r.outBuf[i] = cur[i-r.rot]
		} else {
			r.outBuf[i] = r.held[i+inv]
		}
	}

	return r.outBuf
}

// Comb drives the output stream and the upstream ready.
func (r *SourceRealign) Comb() bool {
	f := r.ctrl()

	if !f.Realign {
		changed := r.out.DriveValid(r.in.Valid)
		changed = r.out.DriveData(r.in.Data) || changed
		changed = r.out.DriveStrb(r.in.Strb) || changed
		changed = r.in.DriveReady(r.out.Ready) || changed

		return changed
	}

	first, last := r.phase(f)

	if first {
		// The first packet of a line is absorbed without producing
		// output.
		changed := r.out.DriveValid(false)
		changed = r.in.DriveReady(!r.firstBlocked()) || changed

		return changed
	}

	blocked := last && r.lastBlocked()

	changed := r.out.DriveValid(r.in.Valid && !blocked)
	changed = r.out.DriveData(r.compose(r.in.Data)) || changed
	changed = r.out.DriveStrb(FullStrobe(r.width)) || changed
	changed = r.in.DriveReady(r.out.Ready && !blocked) || changed

	return changed
}

// Edge commits the handshakes of the cycle.
func (r *SourceRealign) Edge() {
	f := r.ctrl()
	if !f.Realign {
		return
	}

	if !r.in.Fire() {
		return
	}

	first, last := r.phase(f)

	switch {
	case first:
		strb := r.in.Strb
		if r.decoupled {
			strb = r.firstQ.Pop().(Strobe)
		}

		r.rot = strb.PopCount()
		copy(r.held, r.in.Data)

	case last:
		lastPacket := f.LastPacket
		if r.decoupled {
			lastPacket = r.lastQ.Pop().(lastStrbEntry).lastPacket
		}

		// The closing payload stays latched so it can be consumed
		// lazily after the generator has moved on.
		if !lastPacket {
			copy(r.held, r.in.Data)
		}

	default:
		copy(r.held, r.in.Data)
	}

	if r.decoupled {
		r.pktIdx++
		if r.pktIdx == r.lineWords(f) {
			r.pktIdx = 0
		}
	}
}
