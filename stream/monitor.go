package stream

import (
	"bytes"
	"fmt"
)

// A ChannelMonitor watches a handshake channel and fails fatally on any
// protocol violation. It mirrors assertion-based verification: violations
// are bugs in the design, not runtime errors, so there is no recovery path.
//
// Checked rules, for every cycle t:
//   - valid[t] ∧ ¬ready[t] ⟹ valid[t+1] ∧ data[t+1]=data[t] ∧
//     strb[t+1]=strb[t]
//   - valid[t] ∧ ¬valid[t+1] ⟹ ready[t]
type ChannelMonitor struct {
	name string
	ch   *Channel

	sampled   bool
	prevValid bool
	prevReady bool
	prevData  []byte
	prevStrb  Strobe

	handshakes uint64
}

// NewChannelMonitor creates a monitor for the given channel.
func NewChannelMonitor(name string, ch *Channel) *ChannelMonitor {
	return &ChannelMonitor{
		name:     name,
		ch:       ch,
		prevData: make([]byte, ch.WidthBytes()),
	}
}

// Name returns the name of the monitor.
func (m *ChannelMonitor) Name() string {
	return m.name
}

// Handshakes returns the number of completed handshakes observed.
func (m *ChannelMonitor) Handshakes() uint64 {
	return m.handshakes
}

// Comb does nothing. The monitor drives no signal.
func (m *ChannelMonitor) Comb() bool {
	return false
}

// Edge checks the settled signals of the cycle against the previous cycle.
func (m *ChannelMonitor) Edge() {
	ch := m.ch

	if m.sampled && m.prevValid && !m.prevReady {
		if !ch.Valid {
			panic(fmt.Sprintf(
				"%s: valid deasserted without a handshake on %s",
				m.name, ch.Name()))
		}

		if !bytes.Equal(ch.Data, m.prevData) || ch.Strb != m.prevStrb {
			panic(fmt.Sprintf(
				"%s: payload changed while stalled on %s",
				m.name, ch.Name()))
		}
	}

	if ch.Fire() {
		m.handshakes++
	}

	m.sampled = true
	m.prevValid = ch.Valid
	m.prevReady = ch.Ready
	copy(m.prevData, ch.Data)
	m.prevStrb = ch.Strb
}

// A TCDMMonitor watches a memory transaction channel. It checks request
// stability under back-pressure, the one-cycle response timing of the
// tightly-coupled variant, and the reads-only/writes-only restriction of
// the decoupled variant.
type TCDMMonitor struct {
	name string
	ch   *TCDM

	sampled   bool
	prevReq   bool
	prevGnt   bool
	prevAdd   uint32
	prevWen   bool
	prevBE    uint8
	prevWData uint32

	prevReadFire bool

	dirKnown bool
	dirRead  bool

	grants uint64
}

// NewTCDMMonitor creates a monitor for the given transaction channel.
func NewTCDMMonitor(name string, ch *TCDM) *TCDMMonitor {
	return &TCDMMonitor{name: name, ch: ch}
}

// Name returns the name of the monitor.
func (m *TCDMMonitor) Name() string {
	return m.name
}

// Grants returns the number of granted transactions observed.
func (m *TCDMMonitor) Grants() uint64 {
	return m.grants
}

// Comb does nothing. The monitor drives no signal.
func (m *TCDMMonitor) Comb() bool {
	return false
}

// Edge checks the settled signals of the cycle against the previous cycle.
func (m *TCDMMonitor) Edge() {
	ch := m.ch

	if m.sampled && m.prevReq && !m.prevGnt {
		if !ch.Req {
			panic(fmt.Sprintf(
				"%s: req deasserted without a grant on %s",
				m.name, ch.Name()))
		}

		stable := ch.Add == m.prevAdd && ch.Wen == m.prevWen &&
			ch.BE == m.prevBE && ch.WData == m.prevWData
		if !stable {
			panic(fmt.Sprintf(
				"%s: transaction changed while stalled on %s",
				m.name, ch.Name()))
		}
	}

	if m.sampled && !ch.Decoupled() {
		if ch.RValid != m.prevReadFire {
			panic(fmt.Sprintf(
				"%s: r_valid not one cycle after the granted read on %s",
				m.name, ch.Name()))
		}
	}

	if ch.Fire() {
		m.grants++

		if ch.Decoupled() {
			if m.dirKnown && m.dirRead != ch.Wen {
				panic(fmt.Sprintf(
					"%s: decoupled channel %s mixes reads and writes",
					m.name, ch.Name()))
			}

			m.dirKnown = true
			m.dirRead = ch.Wen
		}
	}

	m.sampled = true
	m.prevReq = ch.Req
	m.prevGnt = ch.Gnt
	m.prevAdd = ch.Add
	m.prevWen = ch.Wen
	m.prevBE = ch.BE
	m.prevWData = ch.WData
	m.prevReadFire = ch.Fire() && ch.Wen
}
