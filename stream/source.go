package stream

import (
	"encoding/binary"
	"fmt"

	"github.com/pulp-platform/hwpe-stream/sim"
)

// StreamerCtrl is the control-plane request consumed by a streamer.
type StreamerCtrl struct {
	RequestStart bool
	Config       AddressGenConfig
}

// StreamerStatus is the per-cycle status produced by a streamer. Done
// pulses for exactly one cycle per completed transfer.
type StreamerStatus struct {
	ReadyToStart bool
	Done         bool
	Flags        AddressGenFlags
}

type streamerState int

const (
	streamerIdle streamerState = iota
	streamerWorking
	streamerDraining
)

// A SourceStreamer reads a strided pattern from memory and emits it as a
// realigned handshake stream. It drives one memory transaction channel
// per port; the ports of one wide word form a group, and a per-port fence
// bit records which ports have been granted so that the group's data is
// not forwarded until every port has responded. The address generator
// advances once per fully granted group.
//
// In decoupled mode responses may return with arbitrary latency, so each
// port drains into its own response queue and several groups may be in
// flight; the realigner reconstructs line phases locally from strobes
// pushed at request time.
type SourceStreamer struct {
	name      string
	nbPorts   int
	wordBytes int
	decoupled bool
	fifoDepth int

	ag      AddressStream
	tcdm    []*TCDM
	mid     *Channel
	out     *Channel
	realign *SourceRealign

	state streamerState
	done  bool

	// one request group in flight
	groupOpen  bool
	granted    []bool
	groupAddr  uint32
	groupStrb  Strobe
	groupFlags RealignFlags

	// tight mode response collection
	collecting bool
	collected  []bool
	lanes      []uint32

	// decoupled mode response collection
	respFifos      []sim.Buffer
	inflightGroups int

	wordReady bool
	word      []byte
	wordStrb  Strobe
	wordFlags RealignFlags

	staticFlags RealignFlags
}

// SourceStreamerBuilder builds source streamers.
type SourceStreamerBuilder struct {
	nbPorts   int
	decoupled bool
	fifoDepth int
	tmr       bool
	agMode    AddressGenMode
}

// MakeSourceStreamerBuilder returns a builder with a single tightly
// coupled memory port.
func MakeSourceStreamerBuilder() SourceStreamerBuilder {
	return SourceStreamerBuilder{nbPorts: 1, fifoDepth: 8}
}

// WithPorts sets the number of parallel memory ports. The stream width
// is 4 bytes per port.
func (b SourceStreamerBuilder) WithPorts(n int) SourceStreamerBuilder {
	b.nbPorts = n
	return b
}

// WithDecoupledPorts switches the memory side to decoupled transaction
// channels with per-port response queues of the given depth.
func (b SourceStreamerBuilder) WithDecoupledPorts(
	fifoDepth int,
) SourceStreamerBuilder {
	b.decoupled = true
	b.fifoDepth = fifoDepth
	return b
}

// WithTMRAddressGen triplicates the address generator.
func (b SourceStreamerBuilder) WithTMRAddressGen() SourceStreamerBuilder {
	b.tmr = true
	return b
}

// WithAddressGenMode selects the iteration algorithm.
func (b SourceStreamerBuilder) WithAddressGenMode(
	m AddressGenMode,
) SourceStreamerBuilder {
	b.agMode = m
	return b
}

// Build creates the streamer together with its channels.
func (b SourceStreamerBuilder) Build(name string) *SourceStreamer {
	if b.nbPorts <= 0 {
		panic("a streamer needs at least one memory port")
	}

	wordBytes := b.nbPorts * 4

	s := &SourceStreamer{
		name:      name,
		nbPorts:   b.nbPorts,
		wordBytes: wordBytes,
		decoupled: b.decoupled,
		fifoDepth: b.fifoDepth,
		granted:   make([]bool, b.nbPorts),
		collected: make([]bool, b.nbPorts),
		lanes:     make([]uint32, b.nbPorts),
		word:      make([]byte, wordBytes),
	}

	agBuilder := MakeAddressGenBuilder().
		WithWordWidth(wordBytes).
		WithMode(b.agMode)
	if b.tmr {
		s.ag = NewTMRAddressGen(name+".AddressGen", agBuilder)
	} else {
		s.ag = agBuilder.Build(name + ".AddressGen")
	}

	s.tcdm = make([]*TCDM, b.nbPorts)
	for i := range s.tcdm {
		portName := fmt.Sprintf("%s.TCDM[%d]", name, i)
		if b.decoupled {
			s.tcdm[i] = NewDecoupledTCDM(portName)
		} else {
			s.tcdm[i] = NewTCDM(portName)
		}
	}

	s.mid = NewChannel(name+".Mid", wordBytes)
	s.out = NewChannel(name+".Out", wordBytes)

	if b.decoupled {
		s.realign = NewDecoupledSourceRealign(
			name+".Realign", s.mid, s.out,
			func() RealignFlags { return s.realignCtrl() },
			b.fifoDepth)
		s.respFifos = make([]sim.Buffer, b.nbPorts)
		for i := range s.respFifos {
			s.respFifos[i] = sim.NewBuffer(
				fmt.Sprintf("%s.RespFifo[%d]", name, i), b.fifoDepth)
		}
	} else {
		s.realign = NewSourceRealign(
			name+".Realign", s.mid, s.out,
			func() RealignFlags { return s.realignCtrl() })
	}

	return s
}

// Name returns the name of the streamer.
func (s *SourceStreamer) Name() string {
	return s.name
}

// TCDM returns the memory transaction channel of port i.
func (s *SourceStreamer) TCDM(i int) *TCDM {
	return s.tcdm[i]
}

// Out returns the realigned output stream.
func (s *SourceStreamer) Out() *Channel {
	return s.out
}

// Status returns the per-cycle status output.
func (s *SourceStreamer) Status() StreamerStatus {
	return StreamerStatus{
		ReadyToStart: s.state == streamerIdle,
		Done:         s.done,
		Flags:        s.ag.Flags(),
	}
}

// Ctrl applies a control-plane request. A start request is ignored while
// the streamer is busy, so the requester can hold it until ReadyToStart.
func (s *SourceStreamer) Ctrl(c StreamerCtrl) {
	if c.RequestStart && s.state == streamerIdle {
		s.Start(c.Config)
	}
}

// Start loads a transfer request. Must only be called while the streamer
// is idle.
func (s *SourceStreamer) Start(cfg AddressGenConfig) {
	if s.state != streamerIdle {
		panic(s.name + ": start while a transfer is in progress")
	}

	s.ag.Start(cfg)
	s.staticFlags = RealignFlags{
		Realign:    s.ag.Flags().Realign.Realign,
		LineLength: cfg.LineLength,
	}

	if cfg.TransSize == 0 {
		// No transactions at all: pulse done on the next edge.
		s.state = streamerDraining
		return
	}

	s.state = streamerWorking
}

// Clear synchronously resets the streamer and everything under it.
func (s *SourceStreamer) Clear() {
	s.ag.Clear()
	s.realign.Clear()
	s.state = streamerIdle
	s.done = false
	s.groupOpen = false
	s.collecting = false
	s.wordReady = false
	s.inflightGroups = 0
	s.staticFlags = RealignFlags{}
	for i := range s.granted {
		s.granted[i] = false
		s.collected[i] = false
		s.lanes[i] = 0
	}
	for _, f := range s.respFifos {
		f.Clear()
	}
}

// realignCtrl supplies the flags of the packet currently presented to the
// realigner. In decoupled mode only the static part is meaningful; the
// phase is reconstructed inside the realigner.
func (s *SourceStreamer) realignCtrl() RealignFlags {
	if s.decoupled {
		return s.staticFlags
	}

	return s.wordFlags
}

func (s *SourceStreamer) allGranted() bool {
	for _, g := range s.granted {
		if !g {
			return false
		}
	}

	return true
}

func (s *SourceStreamer) allCollected() bool {
	for _, c := range s.collected {
		if !c {
			return false
		}
	}

	return true
}

func (s *SourceStreamer) allFifosReady() bool {
	for _, f := range s.respFifos {
		if f.Size() == 0 {
			return false
		}
	}

	return true
}

// Comb drives the memory requests and the word presented to the
// realigner, then lets the realigner drive the output side.
func (s *SourceStreamer) Comb() bool {
	changed := false

	for i, ch := range s.tcdm {
		req := s.groupOpen && !s.granted[i]
		changed = ch.DriveRequest(req,
			s.groupAddr+uint32(4*i), true, 0xF, 0) || changed
	}

	changed = s.mid.DriveValid(s.wordReady) || changed
	if s.wordReady {
		changed = s.mid.DriveData(s.word) || changed
		changed = s.mid.DriveStrb(s.wordStrb) || changed
	}

	changed = s.realign.Comb() || changed

	return changed
}

// Edge commits one cycle.
func (s *SourceStreamer) Edge() {
	s.realign.Edge()
	s.done = false

	if s.mid.Fire() {
		s.wordReady = false
	}

	s.collectResponses()

	advance := s.commitGrants()
	s.ag.Edge(advance)

	s.assembleWord()
	s.openGroup()

	if s.state == streamerWorking && !s.ag.Flags().InProgress {
		s.state = streamerDraining
	}

	if s.state == streamerDraining && s.drained() {
		s.done = true
		s.state = streamerIdle
	}
}

// commitGrants updates the fence bits and reports whether the current
// group completed, feeding first/last strobes to the decoupled realigner
// at request time.
func (s *SourceStreamer) commitGrants() bool {
	if !s.groupOpen {
		return false
	}

	for i, ch := range s.tcdm {
		if !s.granted[i] && ch.Fire() {
			s.granted[i] = true
		}
	}

	if !s.allGranted() {
		return false
	}

	s.groupOpen = false

	if s.decoupled {
		s.inflightGroups++
		f := s.groupFlags
		if f.First {
			s.realign.PushFirstStrb(s.groupStrb)
		}
		if f.Last {
			s.realign.PushLastStrb(s.groupStrb, f.LastPacket)
		}
	} else {
		// Lanes of this group may already be arriving; collected bits
		// are cleared at assembly, not here.
		s.collecting = true
	}

	return true
}

// collectResponses gathers the read data returning on each port.
func (s *SourceStreamer) collectResponses() {
	for i, ch := range s.tcdm {
		if !ch.RValid {
			continue
		}

		if s.decoupled {
			s.respFifos[i].Push(ch.RData)
		} else {
			s.lanes[i] = ch.RData
			s.collected[i] = true
		}
	}
}

// assembleWord merges the per-port lanes into one wide word once every
// port has responded and the previous word has been consumed.
func (s *SourceStreamer) assembleWord() {
	if s.wordReady {
		return
	}

	if s.decoupled {
		if !s.allFifosReady() {
			return
		}

		for i, f := range s.respFifos {
			lane := f.Pop().(uint32)
			binary.LittleEndian.PutUint32(s.word[4*i:], lane)
		}

		s.inflightGroups--
		s.wordStrb = FullStrobe(s.wordBytes)
		s.wordReady = true
		return
	}

	if !s.collecting || !s.allCollected() {
		return
	}

	for i, lane := range s.lanes {
		binary.LittleEndian.PutUint32(s.word[4*i:], lane)
		s.collected[i] = false
	}

	s.collecting = false
	s.wordStrb = s.groupStrb
	s.wordFlags = s.groupFlags
	s.wordReady = true
}

// openGroup issues the next wide request group when the pipeline has
// room for its response.
func (s *SourceStreamer) openGroup() {
	if s.state != streamerWorking || s.groupOpen {
		return
	}

	if !s.ag.Flags().InProgress {
		return
	}

	if s.decoupled {
		if s.inflightGroups >= s.fifoDepth || s.realign.DecoupledStall() {
			return
		}
	} else if s.collecting || s.wordReady {
		return
	}

	s.groupAddr = s.ag.Addr()
	s.groupStrb = s.ag.Strb()
	s.groupFlags = s.ag.Flags().Realign
	for i := range s.granted {
		s.granted[i] = false
	}
	s.groupOpen = true
}

func (s *SourceStreamer) drained() bool {
	if s.groupOpen || s.wordReady {
		return false
	}

	if s.decoupled {
		return s.inflightGroups == 0
	}

	return !s.collecting
}
