package mem

import (
	"fmt"

	"github.com/pulp-platform/hwpe-stream/sim"
	"github.com/pulp-platform/hwpe-stream/stream"
)

// A TCDMEndpoint serves one tightly-coupled memory transaction channel
// from a storage. Grants combinationally follow requests, optionally
// throttled by a grant pattern, and read data returns exactly one cycle
// after the grant.
type TCDMEndpoint struct {
	name    string
	ch      *stream.TCDM
	storage *Storage

	grantPattern []bool
	patIdx       int

	respValid bool
	respData  uint32
}

// NewTCDMEndpoint creates an endpoint serving ch from storage.
func NewTCDMEndpoint(
	name string,
	ch *stream.TCDM,
	storage *Storage,
) *TCDMEndpoint {
	return &TCDMEndpoint{name: name, ch: ch, storage: storage}
}

// WithGrantPattern throttles the endpoint: in cycle i it grants only if
// pattern[i mod len] is true. An empty pattern always grants.
func (e *TCDMEndpoint) WithGrantPattern(pattern []bool) *TCDMEndpoint {
	e.grantPattern = pattern
	return e
}

// Name returns the name of the endpoint.
func (e *TCDMEndpoint) Name() string {
	return e.name
}

func (e *TCDMEndpoint) allow() bool {
	if len(e.grantPattern) == 0 {
		return true
	}

	return e.grantPattern[e.patIdx]
}

// Comb drives the grant and the registered response.
func (e *TCDMEndpoint) Comb() bool {
	changed := e.ch.DriveGnt(e.ch.Req && e.allow())
	changed = e.ch.DriveResponse(e.respValid, e.respData) || changed

	return changed
}

// Edge commits the granted transaction of the cycle.
func (e *TCDMEndpoint) Edge() {
	e.respValid = false

	if e.ch.Fire() {
		if e.ch.Wen {
			data, err := e.storage.ReadWord(e.ch.Add)
			if err != nil {
				panic(fmt.Sprintf("%s: %v", e.name, err))
			}

			e.respValid = true
			e.respData = data
		} else {
			err := e.storage.WriteWord(e.ch.Add, e.ch.WData, e.ch.BE)
			if err != nil {
				panic(fmt.Sprintf("%s: %v", e.name, err))
			}
		}
	}

	if len(e.grantPattern) > 0 {
		e.patIdx = (e.patIdx + 1) % len(e.grantPattern)
	}
}

type pendingResp struct {
	data    uint32
	readyAt uint64
}

// A DecoupledEndpoint serves one decoupled memory transaction channel
// from a storage. Responses return after a configurable latency, in
// request order, at most one per cycle. The channel contract restricts a
// decoupled channel to reads only or writes only; the endpoint relies on
// a TCDMMonitor to enforce that.
type DecoupledEndpoint struct {
	name    string
	ch      *stream.TCDM
	storage *Storage

	latency    uint64
	latencyPat []uint64
	latIdx     int

	grantPattern []bool
	patIdx       int

	pending sim.Buffer
	cycle   uint64

	respValid bool
	respData  uint32
}

// NewDecoupledEndpoint creates an endpoint serving ch from storage with
// the given base response latency in cycles.
func NewDecoupledEndpoint(
	name string,
	ch *stream.TCDM,
	storage *Storage,
	latency uint64,
) *DecoupledEndpoint {
	return &DecoupledEndpoint{
		name:    name,
		ch:      ch,
		storage: storage,
		latency: latency,
		pending: sim.NewBuffer(name+".Pending", 16),
	}
}

// WithLatencyPattern adds a per-transaction extra latency, cycled over
// the pattern. It makes response timing deliberately uneven.
func (e *DecoupledEndpoint) WithLatencyPattern(
	pattern []uint64,
) *DecoupledEndpoint {
	e.latencyPat = pattern
	return e
}

// WithGrantPattern throttles the endpoint: in cycle i it grants only if
// pattern[i mod len] is true. An empty pattern always grants.
func (e *DecoupledEndpoint) WithGrantPattern(
	pattern []bool,
) *DecoupledEndpoint {
	e.grantPattern = pattern
	return e
}

// Name returns the name of the endpoint.
func (e *DecoupledEndpoint) Name() string {
	return e.name
}

func (e *DecoupledEndpoint) allow() bool {
	if len(e.grantPattern) == 0 {
		return true
	}

	return e.grantPattern[e.patIdx]
}

func (e *DecoupledEndpoint) nextLatency() uint64 {
	lat := e.latency
	if len(e.latencyPat) > 0 {
		lat += e.latencyPat[e.latIdx]
		e.latIdx = (e.latIdx + 1) % len(e.latencyPat)
	}

	return lat
}

// Comb drives the grant and the registered response.
func (e *DecoupledEndpoint) Comb() bool {
	gnt := e.ch.Req && e.allow() && e.pending.CanPush()
	changed := e.ch.DriveGnt(gnt)
	changed = e.ch.DriveResponse(e.respValid, e.respData) || changed

	return changed
}

// Edge commits the granted transaction and retires at most one matured
// response.
func (e *DecoupledEndpoint) Edge() {
	e.respValid = false
	e.cycle++

	if e.pending.Size() > 0 {
		head := e.pending.Peek().(pendingResp)
		if head.readyAt <= e.cycle {
			e.pending.Pop()
			e.respValid = true
			e.respData = head.data
		}
	}

	if e.ch.Fire() {
		if e.ch.Wen {
			data, err := e.storage.ReadWord(e.ch.Add)
			if err != nil {
				panic(fmt.Sprintf("%s: %v", e.name, err))
			}

			e.pending.Push(pendingResp{
				data:    data,
				readyAt: e.cycle + e.nextLatency(),
			})
		} else {
			err := e.storage.WriteWord(e.ch.Add, e.ch.WData, e.ch.BE)
			if err != nil {
				panic(fmt.Sprintf("%s: %v", e.name, err))
			}
		}
	}

	if len(e.grantPattern) > 0 {
		e.patIdx = (e.patIdx + 1) % len(e.grantPattern)
	}
}
