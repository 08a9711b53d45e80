package stream

import (
	"encoding/binary"
	"fmt"
)

// A SinkStreamer consumes a contiguous handshake stream and writes it to
// memory as a strided pattern. The sink realigner rotates and re-strobes
// each incoming word into memory write lanes; the streamer then splits the
// wide word across its memory ports, one write transaction per 4-byte
// lane, with the byte enables sliced from the realigned strobe.
//
// Ports of one wide word form a group. A per-port fence bit records which
// ports have been granted, a lane with an all-zero byte enable is skipped,
// and the address generator advances only when the whole group is done.
type SinkStreamer struct {
	name      string
	nbPorts   int
	wordBytes int

	ag      AddressStream
	tcdm    []*TCDM
	in      *Channel
	mid     *Channel
	realign *SinkRealign

	state   streamerState
	done    bool
	granted []bool
}

// SinkStreamerBuilder builds sink streamers.
type SinkStreamerBuilder struct {
	nbPorts   int
	decoupled bool
	tmr       bool
	agMode    AddressGenMode
}

// MakeSinkStreamerBuilder returns a builder with a single tightly
// coupled memory port.
func MakeSinkStreamerBuilder() SinkStreamerBuilder {
	return SinkStreamerBuilder{nbPorts: 1}
}

// WithPorts sets the number of parallel memory ports. The stream width
// is 4 bytes per port.
func (b SinkStreamerBuilder) WithPorts(n int) SinkStreamerBuilder {
	b.nbPorts = n
	return b
}

// WithDecoupledPorts switches the memory side to decoupled transaction
// channels. Writes need no response, so only the channel contract
// changes.
func (b SinkStreamerBuilder) WithDecoupledPorts() SinkStreamerBuilder {
	b.decoupled = true
	return b
}

// WithTMRAddressGen triplicates the address generator.
func (b SinkStreamerBuilder) WithTMRAddressGen() SinkStreamerBuilder {
	b.tmr = true
	return b
}

// WithAddressGenMode selects the iteration algorithm.
func (b SinkStreamerBuilder) WithAddressGenMode(
	m AddressGenMode,
) SinkStreamerBuilder {
	b.agMode = m
	return b
}

// Build creates the streamer together with its channels.
func (b SinkStreamerBuilder) Build(name string) *SinkStreamer {
	if b.nbPorts <= 0 {
		panic("a streamer needs at least one memory port")
	}

	wordBytes := b.nbPorts * 4

	s := &SinkStreamer{
		name:      name,
		nbPorts:   b.nbPorts,
		wordBytes: wordBytes,
		granted:   make([]bool, b.nbPorts),
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

	s.in = NewChannel(name+".In", wordBytes)
	s.mid = NewChannel(name+".Mid", wordBytes)
	s.realign = NewSinkRealign(
		name+".Realign", s.in, s.mid,
		func() RealignFlags { return s.ag.Flags().Realign },
		func() Strobe { return s.ag.Strb() })

	return s
}

// Name returns the name of the streamer.
func (s *SinkStreamer) Name() string {
	return s.name
}

// TCDM returns the memory transaction channel of port i.
func (s *SinkStreamer) TCDM(i int) *TCDM {
	return s.tcdm[i]
}

// In returns the contiguous input stream.
func (s *SinkStreamer) In() *Channel {
	return s.in
}

// Status returns the per-cycle status output.
func (s *SinkStreamer) Status() StreamerStatus {
	return StreamerStatus{
		ReadyToStart: s.state == streamerIdle,
		Done:         s.done,
		Flags:        s.ag.Flags(),
	}
}

// Ctrl applies a control-plane request. A start request is ignored while
// the streamer is busy, so the requester can hold it until ReadyToStart.
func (s *SinkStreamer) Ctrl(c StreamerCtrl) {
	if c.RequestStart && s.state == streamerIdle {
		s.Start(c.Config)
	}
}

// Start loads a transfer request. Must only be called while the streamer
// is idle.
func (s *SinkStreamer) Start(cfg AddressGenConfig) {
	if s.state != streamerIdle {
		panic(s.name + ": start while a transfer is in progress")
	}

	s.ag.Start(cfg)

	if cfg.TransSize == 0 {
		s.state = streamerDraining
		return
	}

	s.state = streamerWorking
}

// Clear synchronously resets the streamer and everything under it.
func (s *SinkStreamer) Clear() {
	s.ag.Clear()
	s.realign.Clear()
	s.state = streamerIdle
	s.done = false
	for i := range s.granted {
		s.granted[i] = false
	}
}

// laneBE slices the byte enables of port i out of the realigned strobe.
func (s *SinkStreamer) laneBE(i int) uint8 {
	return uint8((s.mid.Strb >> uint(4*i)) & 0xF)
}

// portDone reports that port i needs no further action for the current
// word.
func (s *SinkStreamer) portDone(i int) bool {
	return s.granted[i] || s.laneBE(i) == 0 || s.tcdm[i].Fire()
}

func (s *SinkStreamer) groupDone() bool {
	for i := range s.tcdm {
		if !s.portDone(i) {
			return false
		}
	}

	return true
}

// Comb lets the realigner produce the memory-side word, then drives one
// write request per pending lane. The word is consumed exactly when the
// whole group is done.
func (s *SinkStreamer) Comb() bool {
	changed := s.realign.Comb()

	active := s.state == streamerWorking && s.mid.Valid

	for i, ch := range s.tcdm {
		req := active && !s.granted[i] && s.laneBE(i) != 0
		lane := binary.LittleEndian.Uint32(s.mid.Data[4*i:])
		changed = ch.DriveRequest(req,
			s.ag.Addr()+uint32(4*i), false, s.laneBE(i), lane) || changed
	}

	changed = s.mid.DriveReady(active && s.groupDone()) || changed

	return changed
}

// Edge commits one cycle.
func (s *SinkStreamer) Edge() {
	s.done = false

	advance := false
	if s.state == streamerWorking && s.mid.Valid {
		for i, ch := range s.tcdm {
			if !s.granted[i] && ch.Fire() {
				s.granted[i] = true
			}
		}

		if s.groupCommitted() {
			advance = true
			for i := range s.granted {
				s.granted[i] = false
			}
		}
	}

	s.realign.Edge()
	s.ag.Edge(advance)

	if s.state == streamerWorking && !s.ag.Flags().InProgress {
		s.state = streamerDraining
	}

	if s.state == streamerDraining {
		s.done = true
		s.state = streamerIdle
	}
}

// groupCommitted reports that every lane of the current word has been
// granted or carries no enabled byte.
func (s *SinkStreamer) groupCommitted() bool {
	for i := range s.tcdm {
		if !s.granted[i] && s.laneBE(i) != 0 {
			return false
		}
	}

	return true
}
