package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pulp-platform/hwpe-stream/sim"
	"github.com/pulp-platform/hwpe-stream/stream"
)

type testModule struct {
	name     string
	combFn   func() bool
	edgeFn   func()
	combRuns int
	edgeRuns int
}

func (m *testModule) Name() string { return m.name }

func (m *testModule) Comb() bool {
	m.combRuns++
	if m.combFn != nil {
		return m.combFn()
	}

	return false
}

func (m *testModule) Edge() {
	m.edgeRuns++
	if m.edgeFn != nil {
		m.edgeFn()
	}
}

type edgeRecorder struct {
	cycles []uint64
}

func (r *edgeRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != stream.HookPosClockEdge {
		return
	}

	r.cycles = append(r.cycles, ctx.Item.(uint64))
}

var _ = Describe("Clock", func() {
	var clk *stream.Clock

	BeforeEach(func() {
		clk = stream.NewClock("Clk")
	})

	It("should settle and fire every edge once per cycle", func() {
		m := &testModule{name: "M"}
		clk.Add(m)

		clk.Step()

		Expect(m.edgeRuns).To(Equal(1))
		Expect(m.combRuns).To(BeNumerically(">=", 1))
		Expect(clk.Cycle()).To(Equal(uint64(1)))
	})

	It("should sweep until signals stop changing", func() {
		// a three-stage combinational chain settles regardless of the
		// module registration order
		chain := []int{0, 0, 0}
		input := 7

		m0 := &testModule{name: "M0", combFn: func() bool {
			changed := chain[2] != chain[1]
			chain[2] = chain[1]
			return changed
		}}
		m1 := &testModule{name: "M1", combFn: func() bool {
			changed := chain[1] != chain[0]
			chain[1] = chain[0]
			return changed
		}}
		m2 := &testModule{name: "M2", combFn: func() bool {
			changed := chain[0] != input
			chain[0] = input
			return changed
		}}
		clk.Add(m0, m1, m2)

		clk.Step()

		Expect(chain).To(Equal([]int{7, 7, 7}))
	})

	It("should detect a combinational loop", func() {
		toggle := false
		m := &testModule{name: "M", combFn: func() bool {
			toggle = !toggle
			return true
		}}
		clk.Add(m)

		Expect(func() { clk.Step() }).To(Panic())
	})

	It("should invoke the edge hook with settled signals", func() {
		rec := &edgeRecorder{}
		clk.AcceptHook(rec)

		clk.StepN(3)

		Expect(rec.cycles).To(Equal([]uint64{0, 1, 2}))
	})

	It("should stop ticking after Stop", func() {
		clk.Stop()

		Expect(clk.Tick()).To(BeFalse())
		Expect(clk.Cycle()).To(Equal(uint64(0)))
	})

	It("should fail when the deadline is reached", func() {
		clk.WithDeadline(2)

		clk.StepN(2)
		Expect(func() { clk.Step() }).To(Panic())
	})
})
