package monitoring

import (
	"encoding/json"
	"net/http/httptest"

	"github.com/pulp-platform/hwpe-stream/sim"
	"github.com/pulp-platform/hwpe-stream/stream"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Monitor", func() {
	var (
		m *Monitor
	)

	BeforeEach(func() {
		m = NewMonitor()
	})

	It("should register clocks, channels, and buffers", func() {
		clk := stream.NewClock("Clk")
		ch := stream.NewChannel("Ch", 4)
		buf := sim.NewBuffer("Buf", 8)

		m.RegisterClock(clk)
		m.RegisterChannel(ch)
		m.RegisterBuffer(buf)

		Expect(m.clocks).To(HaveLen(1))
		Expect(m.channels).To(HaveLen(1))
		Expect(m.buffers).To(HaveLen(1))
	})

	It("should report clock cycles", func() {
		clk := stream.NewClock("Clk")
		clk.StepN(3)
		m.RegisterClock(clk)

		w := httptest.NewRecorder()
		m.listClocks(w, nil)

		var rsp []clockRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("Clk"))
		Expect(rsp[0].Cycle).To(Equal(uint64(3)))
	})

	It("should report channel state", func() {
		ch := stream.NewChannel("Ch", 4)
		ch.DriveValid(true)
		ch.DriveData([]byte{0x78, 0x56, 0x34, 0x12})
		ch.DriveStrb(0b1111)
		m.RegisterChannel(ch)

		w := httptest.NewRecorder()
		m.listChannels(w, nil)

		var rsp []channelRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Valid).To(BeTrue())
		Expect(rsp[0].Ready).To(BeFalse())
		Expect(rsp[0].Data).To(Equal("78563412"))
		Expect(rsp[0].Strb).To(Equal(uint64(0b1111)))
	})

	It("should report memory channel state", func() {
		ch := stream.NewTCDM("Mem")
		ch.DriveRequest(true, 0x1000, true, 0xF, 0)
		m.RegisterTCDM(ch)

		w := httptest.NewRecorder()
		m.listTCDMs(w, nil)

		var rsp []tcdmRsp
		Expect(json.Unmarshal(w.Body.Bytes(), &rsp)).To(Succeed())
		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Req).To(BeTrue())
		Expect(rsp[0].Add).To(Equal(uint32(0x1000)))
		Expect(rsp[0].Wen).To(BeTrue())
	})

	It("should report buffer levels", func() {
		buf := sim.NewBuffer("Buf", 4)
		buf.Push(1)
		buf.Push(2)
		m.RegisterBuffer(buf)

		w := httptest.NewRecorder()
		m.listBuffers(w, nil)

		Expect(w.Body.String()).To(
			Equal(`[{"buffer":"Buf","level":2,"cap":4}]`))
	})

	It("should manage progress bars", func() {
		bar := m.CreateProgressBar("Transfer", 100)
		bar.IncrementFinished(10)

		Expect(m.progressBars).To(HaveLen(1))
		Expect(bar.Finished).To(Equal(uint64(10)))

		m.CompleteProgressBar(bar)

		Expect(m.progressBars).To(BeEmpty())
	})
})
