package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pulp-platform/hwpe-stream/stream"
)

// drain advances the generator with an always-granting consumer and
// returns the emitted address/strobe sequence.
func drain(g stream.AddressStream, max int) ([]uint32, []stream.Strobe) {
	var addrs []uint32
	var strbs []stream.Strobe

	for i := 0; g.Flags().InProgress; i++ {
		if i >= max {
			Fail("address generator did not finish")
		}

		addrs = append(addrs, g.Addr())
		strbs = append(strbs, g.Strb())
		g.Edge(true)
	}

	return addrs, strbs
}

var _ = Describe("AddressGen", func() {
	It("should compensate a misaligned single line", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0x1003,
			TransSize:  4,
			LineStride: 0,
			LineLength: 4,
			FeatLength: 1,
		})

		Expect(g.Flags().Realign.Realign).To(BeTrue())

		addrs, strbs := drain(g, 100)

		Expect(addrs).To(Equal([]uint32{
			0x1000, 0x1004, 0x1008, 0x100C, 0x1010,
		}))
		Expect(strbs).To(Equal([]stream.Strobe{
			0b1000, 0b1111, 0b1111, 0b1111, 0b0111,
		}))
		Expect(g.Done()).To(BeTrue())
		Expect(g.ReadyToStart()).To(BeTrue())

		g.Edge(false)
		Expect(g.Done()).To(BeFalse())
	})

	It("should emit full strobes when everything is aligned", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0x1000,
			TransSize:  4,
			LineLength: 4,
			FeatLength: 1,
		})

		Expect(g.Flags().Realign.Realign).To(BeFalse())

		addrs, strbs := drain(g, 100)

		Expect(addrs).To(Equal([]uint32{0x1000, 0x1004, 0x1008, 0x100C}))
		for _, s := range strbs {
			Expect(s).To(Equal(stream.FullStrobe(4)))
		}
	})

	It("should pulse done immediately for an empty transfer", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{TransSize: 0})

		Expect(g.Flags().InProgress).To(BeFalse())
		Expect(g.Done()).To(BeTrue())
		Expect(g.ReadyToStart()).To(BeTrue())

		g.Edge(false)
		Expect(g.Done()).To(BeFalse())
	})

	It("should recompute the strobes of every misaligned line", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0x1001,
			TransSize:  5,
			LineStride: 16,
			LineLength: 2,
			FeatLength: 2,
		})

		addrs, strbs := drain(g, 100)

		Expect(addrs).To(Equal([]uint32{
			0x1000, 0x1004, 0x1008,
			0x1010, 0x1014, 0x1018,
		}))
		Expect(strbs).To(Equal([]stream.Strobe{
			0b1110, 0b1111, 0b0001,
			0b1110, 0b1111, 0b0001,
		}))
	})

	It("should mark word, line and feature boundaries", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0x1000,
			TransSize:  8,
			LineStride: 16,
			LineLength: 2,
			FeatStride: 64,
			FeatLength: 2,
		})

		var lineUpdates, featUpdates int
		for g.Flags().InProgress {
			f := g.Flags()
			if f.LineUpdate {
				lineUpdates++
			}
			if f.FeatUpdate {
				featUpdates++
			}
			g.Edge(true)
		}

		Expect(lineUpdates).To(Equal(3))
		Expect(featUpdates).To(Equal(1))
	})

	It("should roll the feature loop inside the line in outer mode", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0,
			TransSize:  4,
			LineStride: 8,
			LineLength: 1,
			FeatStride: 4,
			FeatLength: 2,
			FeatRoll:   2,
			LoopOuter:  true,
		})

		addrs, _ := drain(g, 100)

		Expect(addrs).To(Equal([]uint32{0, 4, 8, 12}))
	})

	It("should treat an all-ones transaction count as endless", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0x1000,
			TransSize:  0xFFFFFFFE,
			LineLength: 4,
			FeatLength: 1,
		})

		for i := 0; i < 100; i++ {
			Expect(g.Flags().InProgress).To(BeTrue())
			Expect(g.Done()).To(BeFalse())
			g.Edge(true)
		}

		Expect(g.Flags().InProgress).To(BeTrue())
	})

	It("should delay the outputs by one cycle when configured", func() {
		g := stream.MakeAddressGenBuilder().WithDelayedFlags().Build("AG")
		ref := stream.MakeAddressGenBuilder().Build("Ref")

		cfg := stream.AddressGenConfig{
			BaseAddr:   0x1003,
			TransSize:  4,
			LineLength: 4,
			FeatLength: 1,
		}
		g.Start(cfg)
		ref.Start(cfg)

		for i := 0; i < 5; i++ {
			refAddr := ref.Addr()
			refStrb := ref.Strb()

			g.Edge(true)
			ref.Edge(true)

			Expect(g.Addr()).To(Equal(refAddr))
			Expect(g.Strb()).To(Equal(refStrb))
		}
	})

	It("should emit raw strided addresses in strided mode", func() {
		g := stream.MakeAddressGenBuilder().
			WithMode(stream.ModeStrided).
			Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0x1003,
			TransSize:  4,
			LineLength: 4,
			FeatLength: 1,
		})

		Expect(g.Flags().Realign.Realign).To(BeFalse())

		addrs, strbs := drain(g, 100)

		Expect(addrs).To(Equal([]uint32{0x1003, 0x1007, 0x100B, 0x100F}))
		for _, s := range strbs {
			Expect(s).To(Equal(stream.FullStrobe(4)))
		}
	})

	It("should reset completely on clear", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0x1003,
			TransSize:  4,
			LineLength: 4,
			FeatLength: 1,
		})

		g.Edge(true)
		g.Edge(true)
		g.Clear()

		Expect(g.ReadyToStart()).To(BeTrue())
		Expect(g.Flags().InProgress).To(BeFalse())
		Expect(g.Done()).To(BeFalse())
	})

	It("should refuse a second start while running", func() {
		g := stream.MakeAddressGenBuilder().Build("AG")
		g.Start(stream.AddressGenConfig{
			BaseAddr:   0x1000,
			TransSize:  4,
			LineLength: 4,
			FeatLength: 1,
		})

		Expect(func() {
			g.Start(stream.AddressGenConfig{TransSize: 1})
		}).To(Panic())
	})
})
