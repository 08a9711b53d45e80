package stream

import (
	"github.com/pulp-platform/hwpe-stream/sim"
)

type fifoEntry struct {
	data []byte
	strb Strobe
}

// A Fifo is an elastic queue between two handshake channels. It decouples
// the producer from the consumer: the input is ready while slots remain,
// the output is valid while entries remain, and an entry pushed in cycle t
// is visible at the output in cycle t+1 at the earliest.
type Fifo struct {
	name string
	in   *Channel
	out  *Channel
	buf  sim.Buffer
}

// NewFifo creates a queue of the given depth between in and out. The two
// channels must have the same width.
func NewFifo(name string, depth int, in, out *Channel) *Fifo {
	if in.WidthBytes() != out.WidthBytes() {
		panic("fifo ports must have the same width")
	}

	return &Fifo{
		name: name,
		in:   in,
		out:  out,
		buf:  sim.NewBuffer(name+".Buf", depth),
	}
}

// Name returns the name of the queue.
func (f *Fifo) Name() string {
	return f.name
}

// Count returns the number of entries currently held.
func (f *Fifo) Count() int {
	return f.buf.Size()
}

// Free returns the number of empty slots.
func (f *Fifo) Free() int {
	return f.buf.Capacity() - f.buf.Size()
}

// Comb drives the handshake signals from the registered occupancy.
func (f *Fifo) Comb() bool {
	changed := f.in.DriveReady(f.buf.CanPush())

	if f.buf.Size() > 0 {
		head := f.buf.Peek().(fifoEntry)
		changed = f.out.DriveValid(true) || changed
		changed = f.out.DriveData(head.data) || changed
		changed = f.out.DriveStrb(head.strb) || changed
	} else {
		changed = f.out.DriveValid(false) || changed
	}

	return changed
}

// Edge commits the handshakes of the cycle.
func (f *Fifo) Edge() {
	if f.out.Fire() {
		f.buf.Pop()
	}

	if f.in.Fire() {
		e := fifoEntry{
			data: make([]byte, f.in.WidthBytes()),
			strb: f.in.Strb,
		}
		copy(e.data, f.in.Data)
		f.buf.Push(e)
	}
}
