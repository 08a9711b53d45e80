package stream

import "fmt"

// vote returns the majority of three values. When no two values agree
// there is no majority and the fault is unrecoverable.
func vote[T comparable](a, b, c T) T {
	if a == b || a == c {
		return a
	}

	if b == c {
		return b
	}

	panic(fmt.Sprintf("no majority among replicas: %v, %v, %v", a, b, c))
}

// A TMRAddressGen triplicates an address generator for fault tolerance.
// Three independent replicas each hold a full register bank and advance
// in lockstep; every output is the majority vote over the three replica
// outputs, so a single corrupted replica cannot steer the transfer.
type TMRAddressGen struct {
	name     string
	replicas [3]*AddressGen
}

// NewTMRAddressGen creates a triplicated generator. The builder
// configures each replica identically.
func NewTMRAddressGen(name string, b AddressGenBuilder) *TMRAddressGen {
	t := &TMRAddressGen{name: name}
	for i := range t.replicas {
		t.replicas[i] = b.Build(fmt.Sprintf("%s.Replica[%d]", name, i))
	}

	return t
}

// Name returns the name of the generator.
func (t *TMRAddressGen) Name() string {
	return t.name
}

// Inject overwrites the state of one replica with another configuration,
// modeling a fault. The majority vote must mask it.
func (t *TMRAddressGen) Inject(replica int, cfg AddressGenConfig) {
	t.replicas[replica].Clear()
	t.replicas[replica].Start(cfg)
}

// Start loads a transfer request into all replicas.
func (t *TMRAddressGen) Start(cfg AddressGenConfig) {
	for _, r := range t.replicas {
		r.Start(cfg)
	}
}

// Clear synchronously resets all replicas back to idle.
func (t *TMRAddressGen) Clear() {
	for _, r := range t.replicas {
		r.Clear()
	}
}

// Edge clocks all replicas.
func (t *TMRAddressGen) Edge(granted bool) {
	for _, r := range t.replicas {
		r.Edge(granted)
	}
}

// Addr returns the voted word-aligned address of the current transaction.
func (t *TMRAddressGen) Addr() uint32 {
	return vote(t.replicas[0].Addr(), t.replicas[1].Addr(),
		t.replicas[2].Addr())
}

// Strb returns the voted byte strobe of the current transaction.
func (t *TMRAddressGen) Strb() Strobe {
	return vote(t.replicas[0].Strb(), t.replicas[1].Strb(),
		t.replicas[2].Strb())
}

// Flags returns the voted per-cycle status output.
func (t *TMRAddressGen) Flags() AddressGenFlags {
	return vote(t.replicas[0].Flags(), t.replicas[1].Flags(),
		t.replicas[2].Flags())
}

// Done returns the voted completion pulse.
func (t *TMRAddressGen) Done() bool {
	return vote(t.replicas[0].Done(), t.replicas[1].Done(),
		t.replicas[2].Done())
}

// ReadyToStart returns the voted idle status.
func (t *TMRAddressGen) ReadyToStart() bool {
	return vote(t.replicas[0].ReadyToStart(), t.replicas[1].ReadyToStart(),
		t.replicas[2].ReadyToStart())
}
