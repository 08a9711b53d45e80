package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pulp-platform/hwpe-stream/stream"
	"github.com/pulp-platform/hwpe-stream/verif"
)

var _ = Describe("Fifo", func() {
	var (
		clk  *stream.Clock
		in   *stream.Channel
		out  *stream.Channel
		fifo *stream.Fifo
		drv  *verif.StreamDriver
		scb  *verif.StreamScoreboard
	)

	BeforeEach(func() {
		clk = stream.NewClock("Clk").WithDeadline(1000)
		in = stream.NewChannel("In", 4)
		out = stream.NewChannel("Out", 4)
		fifo = stream.NewFifo("Fifo", 2, in, out)
		drv = verif.NewStreamDriver("Drv", in)
		scb = verif.NewStreamScoreboard("Scb", out)
	})

	It("should forward packets in order", func() {
		clk.Add(drv, fifo, scb,
			stream.NewChannelMonitor("MonIn", in),
			stream.NewChannelMonitor("MonOut", out))

		drv.EnqueueWords(1, 2, 3, 4, 5, 6, 7, 8)
		scb.ExpectWords(1, 2, 3, 4, 5, 6, 7, 8)

		for !scb.Complete() {
			clk.Step()
		}

		Expect(scb.Errors()).To(BeEmpty())
	})

	It("should survive back-pressure and idle cycles", func() {
		clk.Add(drv, fifo, scb,
			stream.NewChannelMonitor("MonIn", in),
			stream.NewChannelMonitor("MonOut", out))

		drv.WithValidPattern([]bool{true, false, true, true, false})
		scb.WithReadyPattern([]bool{false, false, true})

		drv.EnqueueWords(10, 20, 30, 40, 50)
		scb.ExpectWords(10, 20, 30, 40, 50)

		for !scb.Complete() {
			clk.Step()
		}

		Expect(scb.Errors()).To(BeEmpty())
	})

	It("should stall the producer when full", func() {
		clk.Add(drv, fifo)

		drv.EnqueueWords(1, 2, 3, 4)

		// the consumer never asserts ready
		clk.StepN(20)

		Expect(fifo.Count()).To(Equal(2))
		Expect(fifo.Free()).To(Equal(0))
		Expect(drv.Pending()).To(Equal(2))
	})

	It("should refuse ports of different widths", func() {
		wide := stream.NewChannel("Wide", 8)
		Expect(func() {
			stream.NewFifo("Bad", 2, in, wide)
		}).To(Panic())
	})
})
