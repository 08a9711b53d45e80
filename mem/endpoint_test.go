package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pulp-platform/hwpe-stream/mem"
	"github.com/pulp-platform/hwpe-stream/stream"
)

var _ = Describe("TCDMEndpoint", func() {
	var (
		ch      *stream.TCDM
		storage *mem.Storage
		ep      *mem.TCDMEndpoint
	)

	BeforeEach(func() {
		ch = stream.NewTCDM("Mem")
		storage = mem.NewStorage(0x10000)
		ep = mem.NewTCDMEndpoint("EP", ch, storage)
	})

	step := func() {
		for ep.Comb() {
		}
		ep.Edge()
	}

	It("should grant combinationally and respond one cycle later", func() {
		Expect(storage.WriteWord(0x100, 0xDEADBEEF, 0xF)).To(Succeed())

		ch.DriveRequest(true, 0x100, true, 0xF, 0)
		ep.Comb()
		Expect(ch.Gnt).To(BeTrue())
		Expect(ch.RValid).To(BeFalse())

		ep.Edge()
		ch.DriveReq(false)
		ep.Comb()
		Expect(ch.RValid).To(BeTrue())
		Expect(ch.RData).To(Equal(uint32(0xDEADBEEF)))

		ep.Edge()
		ep.Comb()
		Expect(ch.RValid).To(BeFalse())
	})

	It("should apply writes under byte enables", func() {
		ch.DriveRequest(true, 0x200, false, 0b0011, 0x04030201)
		step()

		ch.DriveReq(false)
		step()

		w, err := storage.ReadWord(0x200)
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(uint32(0x0201)))
	})

	It("should withhold grants per the grant pattern", func() {
		ep.WithGrantPattern([]bool{false, false, true})

		ch.DriveRequest(true, 0x100, true, 0xF, 0)

		ep.Comb()
		Expect(ch.Gnt).To(BeFalse())
		ep.Edge()

		ep.Comb()
		Expect(ch.Gnt).To(BeFalse())
		ep.Edge()

		ep.Comb()
		Expect(ch.Gnt).To(BeTrue())
	})
})

var _ = Describe("DecoupledEndpoint", func() {
	var (
		ch      *stream.TCDM
		storage *mem.Storage
	)

	BeforeEach(func() {
		ch = stream.NewDecoupledTCDM("Mem")
		storage = mem.NewStorage(0x10000)
	})

	It("should return read responses after the configured latency", func() {
		ep := mem.NewDecoupledEndpoint("EP", ch, storage, 3)
		Expect(storage.WriteWord(0x40, 42, 0xF)).To(Succeed())

		ch.DriveRequest(true, 0x40, true, 0xF, 0)
		ep.Comb()
		Expect(ch.Gnt).To(BeTrue())
		ep.Edge()
		ch.DriveReq(false)

		cycles := 0
		for {
			ep.Comb()
			if ch.RValid {
				break
			}
			ep.Edge()
			cycles++
			Expect(cycles).To(BeNumerically("<", 20))
		}

		Expect(ch.RData).To(Equal(uint32(42)))
		Expect(cycles).To(BeNumerically(">=", 3))
	})

	It("should keep responses in request order under uneven latency", func() {
		ep := mem.NewDecoupledEndpoint("EP", ch, storage, 1).
			WithLatencyPattern([]uint64{5, 0, 2})

		for i := uint32(0); i < 3; i++ {
			Expect(storage.WriteWord(0x80+4*i, 100+i, 0xF)).To(Succeed())
		}

		for i := uint32(0); i < 3; i++ {
			ch.DriveRequest(true, 0x80+4*i, true, 0xF, 0)
			ep.Comb()
			Expect(ch.Gnt).To(BeTrue())
			ep.Edge()
		}
		ch.DriveReq(false)

		var got []uint32
		for steps := 0; len(got) < 3; steps++ {
			Expect(steps).To(BeNumerically("<", 50))
			ep.Comb()
			if ch.RValid {
				got = append(got, ch.RData)
			}
			ep.Edge()
		}

		Expect(got).To(Equal([]uint32{100, 101, 102}))
	})
})
