package stream_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pulp-platform/hwpe-stream/stream"
)

var _ = Describe("Strobe", func() {
	It("should build full strobes", func() {
		Expect(stream.FullStrobe(4)).To(Equal(stream.Strobe(0xF)))
		Expect(stream.FullStrobe(8)).To(Equal(stream.Strobe(0xFF)))
	})

	It("should build first and last strobes from the offset", func() {
		Expect(stream.FirstStrobe(4, 3)).To(Equal(stream.Strobe(0b1000)))
		Expect(stream.LastStrobe(4, 3)).To(Equal(stream.Strobe(0b0111)))

		Expect(stream.FirstStrobe(4, 1)).To(Equal(stream.Strobe(0b1110)))
		Expect(stream.LastStrobe(4, 1)).To(Equal(stream.Strobe(0b0001)))
	})

	It("should keep first and last complementary", func() {
		for off := 0; off < 4; off++ {
			first := stream.FirstStrobe(4, off)
			last := stream.LastStrobe(4, off)

			Expect(first | last).To(Equal(stream.FullStrobe(4)))
			Expect(first & last).To(Equal(stream.Strobe(0)))
		}
	})

	It("should count valid bytes", func() {
		Expect(stream.Strobe(0b1000).PopCount()).To(Equal(1))
		Expect(stream.Strobe(0b1110).PopCount()).To(Equal(3))
		Expect(stream.Strobe(0).None()).To(BeTrue())
	})
})

var _ = Describe("Channel", func() {
	var ch *stream.Channel

	BeforeEach(func() {
		ch = stream.NewChannel("Ch", 4)
	})

	It("should fire only when valid and ready overlap", func() {
		Expect(ch.Fire()).To(BeFalse())

		ch.DriveValid(true)
		Expect(ch.Fire()).To(BeFalse())

		ch.DriveReady(true)
		Expect(ch.Fire()).To(BeTrue())
	})

	It("should report signal changes", func() {
		Expect(ch.DriveValid(true)).To(BeTrue())
		Expect(ch.DriveValid(true)).To(BeFalse())

		Expect(ch.DriveData([]byte{1, 2, 3, 4})).To(BeTrue())
		Expect(ch.DriveData([]byte{1, 2, 3, 4})).To(BeFalse())

		Expect(ch.DriveStrb(0b0111)).To(BeTrue())
		Expect(ch.DriveStrb(0b0111)).To(BeFalse())
	})

	It("should refuse a payload of the wrong width", func() {
		Expect(func() {
			ch.DriveData([]byte{1, 2})
		}).To(Panic())
	})
})

var _ = Describe("ChannelMonitor", func() {
	var (
		ch  *stream.Channel
		mon *stream.ChannelMonitor
	)

	BeforeEach(func() {
		ch = stream.NewChannel("Ch", 4)
		mon = stream.NewChannelMonitor("Mon", ch)
	})

	It("should count handshakes", func() {
		ch.DriveValid(true)
		ch.DriveReady(true)
		mon.Edge()

		ch.DriveValid(false)
		ch.DriveReady(false)
		mon.Edge()

		Expect(mon.Handshakes()).To(Equal(uint64(1)))
	})

	It("should pass a stalled but stable packet", func() {
		ch.DriveValid(true)
		ch.DriveData([]byte{1, 2, 3, 4})
		mon.Edge()

		Expect(func() { mon.Edge() }).NotTo(Panic())
	})

	It("should fail when valid drops without a handshake", func() {
		ch.DriveValid(true)
		mon.Edge()

		ch.DriveValid(false)
		Expect(func() { mon.Edge() }).To(Panic())
	})

	It("should fail when the payload changes while stalled", func() {
		ch.DriveValid(true)
		ch.DriveData([]byte{1, 2, 3, 4})
		mon.Edge()

		ch.DriveData([]byte{5, 6, 7, 8})
		Expect(func() { mon.Edge() }).To(Panic())
	})

	It("should allow a new payload after a handshake", func() {
		ch.DriveValid(true)
		ch.DriveReady(true)
		ch.DriveData([]byte{1, 2, 3, 4})
		mon.Edge()

		ch.DriveData([]byte{5, 6, 7, 8})
		Expect(func() { mon.Edge() }).NotTo(Panic())
	})
})

var _ = Describe("TCDMMonitor", func() {
	var (
		ch  *stream.TCDM
		mon *stream.TCDMMonitor
	)

	BeforeEach(func() {
		ch = stream.NewTCDM("Mem")
		mon = stream.NewTCDMMonitor("Mon", ch)
	})

	It("should fail when req drops without a grant", func() {
		ch.DriveRequest(true, 0x1000, true, 0xF, 0)
		mon.Edge()

		ch.DriveReq(false)
		Expect(func() { mon.Edge() }).To(Panic())
	})

	It("should fail when the transaction changes while stalled", func() {
		ch.DriveRequest(true, 0x1000, true, 0xF, 0)
		mon.Edge()

		ch.DriveAddr(0x2000)
		Expect(func() { mon.Edge() }).To(Panic())
	})

	It("should require r_valid one cycle after a granted read", func() {
		ch.DriveRequest(true, 0x1000, true, 0xF, 0)
		ch.DriveGnt(true)
		mon.Edge()

		ch.DriveReq(false)
		ch.DriveGnt(false)
		Expect(func() { mon.Edge() }).To(Panic())
	})

	It("should accept a well-timed read response", func() {
		ch.DriveRequest(true, 0x1000, true, 0xF, 0)
		ch.DriveGnt(true)
		mon.Edge()

		ch.DriveReq(false)
		ch.DriveGnt(false)
		ch.DriveResponse(true, 42)
		Expect(func() { mon.Edge() }).NotTo(Panic())
		Expect(mon.Grants()).To(Equal(uint64(1)))
	})

	It("should fail when a decoupled channel mixes directions", func() {
		dch := stream.NewDecoupledTCDM("DMem")
		dmon := stream.NewTCDMMonitor("DMon", dch)

		dch.DriveRequest(true, 0x1000, true, 0xF, 0)
		dch.DriveGnt(true)
		dmon.Edge()

		dch.DriveRequest(true, 0x1004, false, 0xF, 7)
		Expect(func() { dmon.Edge() }).To(Panic())
	})
})
