package stream

import "github.com/pulp-platform/hwpe-stream/sim"

// A TCDM is a request/grant memory transaction channel towards one
// word-wide memory port.
//
// The master drives Req, Add, Wen, BE and WData; the slave drives Gnt,
// RData and RValid. Req must not combinationally depend on Gnt; Gnt may
// combinationally depend on Req. In the tightly-coupled variant, RValid and
// RData appear exactly one cycle after a granted read. In the decoupled
// variant, the response may be delayed arbitrarily but preserves request
// order, and a channel must carry only reads or only writes.
type TCDM struct {
	name      string
	decoupled bool

	Req   bool
	Gnt   bool
	Add   uint32
	Wen   bool // 1 = read, 0 = write
	BE    uint8
	WData uint32

	RData  uint32
	RValid bool
}

// NewTCDM creates a tightly-coupled memory transaction channel.
func NewTCDM(name string) *TCDM {
	sim.NameMustBeValid(name)

	return &TCDM{name: name}
}

// NewDecoupledTCDM creates a memory transaction channel with relaxed
// response timing.
func NewDecoupledTCDM(name string) *TCDM {
	sim.NameMustBeValid(name)

	return &TCDM{name: name, decoupled: true}
}

// Name returns the name of the channel.
func (t *TCDM) Name() string {
	return t.name
}

// Decoupled reports whether the channel uses relaxed response timing.
func (t *TCDM) Decoupled() bool {
	return t.decoupled
}

// Fire reports whether a transaction is granted in the current cycle.
func (t *TCDM) Fire() bool {
	return t.Req && t.Gnt
}

// DriveReq sets the request signal and reports whether it changed.
func (t *TCDM) DriveReq(v bool) bool {
	changed := t.Req != v
	t.Req = v

	return changed
}

// DriveGnt sets the grant signal and reports whether it changed.
func (t *TCDM) DriveGnt(v bool) bool {
	changed := t.Gnt != v
	t.Gnt = v

	return changed
}

// DriveAddr sets the transaction address and reports whether it changed.
func (t *TCDM) DriveAddr(a uint32) bool {
	changed := t.Add != a
	t.Add = a

	return changed
}

// DriveRequest drives the whole master-side request bundle and reports
// whether any signal changed.
func (t *TCDM) DriveRequest(req bool, add uint32, wen bool, be uint8,
	wdata uint32,
) bool {
	changed := t.Req != req || t.Add != add || t.Wen != wen ||
		t.BE != be || t.WData != wdata

	t.Req = req
	t.Add = add
	t.Wen = wen
	t.BE = be
	t.WData = wdata

	return changed
}

// DriveResponse drives the slave-side response bundle and reports whether
// any signal changed.
func (t *TCDM) DriveResponse(rvalid bool, rdata uint32) bool {
	changed := t.RValid != rvalid || t.RData != rdata

	t.RValid = rvalid
	t.RData = rdata

	return changed
}
