package stream

// A SinkRealign is the mirror of SourceRealign: it consumes a contiguous
// stream and produces the rotated, strobed packets a burst of misaligned
// writes needs. The rotation amount is derived on the first phase from the
// current control strobe, not a held one, and the closing packet of a line
// is assembled from held bytes alone, so it fires without consuming input.
type SinkRealign struct {
	name  string
	in    *Channel
	out   *Channel
	ctrl  func() RealignFlags
	strb  func() Strobe
	width int

	rot      int
	held     []byte
	heldStrb Strobe
	outBuf   []byte

	// stickyFirst keeps a stalled first-phase packet classified as
	// first until it is accepted.
	stickyFirst bool
}

// NewSinkRealign creates a realigner between in and out. ctrl supplies
// the per-cycle realign flags and strb the per-packet control strobe.
func NewSinkRealign(
	name string,
	in, out *Channel,
	ctrl func() RealignFlags,
	strb func() Strobe,
) *SinkRealign {
	if in.WidthBytes() != out.WidthBytes() {
		panic("realigner ports must have the same width")
	}

	return &SinkRealign{
		name:   name,
		in:     in,
		out:    out,
		ctrl:   ctrl,
		strb:   strb,
		width:  in.WidthBytes(),
		held:   make([]byte, in.WidthBytes()),
		outBuf: make([]byte, in.WidthBytes()),
	}
}

// Name returns the name of the realigner.
func (r *SinkRealign) Name() string {
	return r.name
}

// Clear synchronously resets all state back to idle.
func (r *SinkRealign) Clear() {
	r.rot = 0
	r.heldStrb = 0
	r.stickyFirst = false
	for i := range r.held {
		r.held[i] = 0
	}
}

// composeFirst shifts the incoming payload up into the misaligned byte
// lanes of the opening memory word.
func (r *SinkRealign) composeFirst(cur []byte, rot int) []byte {
	inv := r.width - rot
	for i := 0; i < r.width; i++ {
		if i >= inv {
			r.outBuf[i] = cur[i-inv]
		} else {
			r.outBuf[i] = 0
		}
	}

	return r.outBuf
}

// composeMid merges the tail of the previous payload with the head of the
// current one.
func (r *SinkRealign) composeMid(cur []byte) []byte {
	inv := r.width - r.rot
	for i := 0; i < r.width; i++ {
		if i < inv {
			r.outBuf[i] = r.held[i+r.rot]
		} else {
			r.outBuf[i] = cur[i-inv]
		}
	}

	return r.outBuf
}

// composeLast drains the remaining held bytes into the closing memory
// word.
func (r *SinkRealign) composeLast() []byte {
	for i := 0; i < r.width; i++ {
		if i+r.rot < r.width {
			r.outBuf[i] = r.held[i+r.rot]
		} else {
			r.outBuf[i] = 0
		}
	}

	return r.outBuf
}

// Comb drives the output stream and the upstream ready.
func (r *SinkRealign) Comb() bool {
	f := r.ctrl()

	if !f.Realign {
		changed := r.out.DriveValid(r.in.Valid)
		changed = r.out.DriveData(r.in.Data) || changed
		changed = r.out.DriveStrb(r.in.Strb) || changed
		changed = r.in.DriveReady(r.out.Ready) || changed

		return changed
	}

	first := f.First || r.stickyFirst
	ctrlStrb := r.strb()

	switch {
	case first:
		rot := ctrlStrb.PopCount()
		changed := r.out.DriveValid(r.in.Valid)
		changed = r.out.DriveData(r.composeFirst(r.in.Data, rot)) || changed
		changed = r.out.DriveStrb(ctrlStrb) || changed
		changed = r.in.DriveReady(r.out.Ready) || changed

		return changed

	case f.Last:
		// The closing word is held bytes only. The latched strobe is
		// narrowed by the latest control strobe because the word spans
		// two source packets.
		strb := ctrlStrb & (r.heldStrb >> uint(r.rot))
		changed := r.out.DriveValid(true)
		changed = r.out.DriveData(r.composeLast()) || changed
		changed = r.out.DriveStrb(strb) || changed
		changed = r.in.DriveReady(false) || changed

		return changed

	default:
		changed := r.out.DriveValid(r.in.Valid)
		changed = r.out.DriveData(r.composeMid(r.in.Data)) || changed
		changed = r.out.DriveStrb(FullStrobe(r.width)) || changed
		changed = r.in.DriveReady(r.out.Ready) || changed

		return changed
	}
}

// Edge commits the handshakes of the cycle.
func (r *SinkRealign) Edge() {
	f := r.ctrl()
	if !f.Realign {
		return
	}

	first := f.First || r.stickyFirst

	if f.First && r.in.Valid && !r.in.Fire() {
		r.stickyFirst = true
	}

	if !r.in.Fire() {
		return
	}

	if first {
		r.rot = r.strb().PopCount()
		r.stickyFirst = false
	}

	copy(r.held, r.in.Data)
	r.heldStrb = r.in.Strb
}
