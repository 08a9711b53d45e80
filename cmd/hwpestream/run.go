package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/pulp-platform/hwpe-stream/datarecording"
	"github.com/pulp-platform/hwpe-stream/mem"
	"github.com/pulp-platform/hwpe-stream/monitoring"
	"github.com/pulp-platform/hwpe-stream/sim"
	"github.com/pulp-platform/hwpe-stream/stream"
)

var runFlags = struct {
	lineLength uint16
	lines      uint16
	lineStride int16
	srcBase    uint32
	dstBase    uint32
	ports      int
	decoupled  bool
	tmr        bool
	fifoDepth  int
	latency    uint64
	maxCycles  uint64

	tracePath   string
	monitor     bool
	monitorPort int
	browser     bool
}{}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Move a block of memory through a source and a sink streamer",
	Long: `Run preloads a memory region, streams it out through a source ` +
		`streamer, passes it through a FIFO, and writes it back to a second ` +
		`region through a sink streamer. Source and destination may both be ` +
		`misaligned. The transfer is verified byte by byte at the end.`,
	Run: func(_ *cobra.Command, _ []string) {
		runTransfer()
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().Uint16Var(&runFlags.lineLength, "line-length", 64,
		"number of 32-bit words per line")
	runCmd.Flags().Uint16Var(&runFlags.lines, "lines", 1,
		"number of lines to transfer")
	runCmd.Flags().Int16Var(&runFlags.lineStride, "line-stride", 0,
		"byte stride between lines, 0 for contiguous lines")
	runCmd.Flags().Uint32Var(&runFlags.srcBase, "src-base", 0x1003,
		"source base address, may be misaligned")
	runCmd.Flags().Uint32Var(&runFlags.dstBase, "dst-base", 0x8001,
		"destination base address, may be misaligned")
	runCmd.Flags().IntVar(&runFlags.ports, "ports", 1,
		"number of memory ports per streamer")
	runCmd.Flags().BoolVar(&runFlags.decoupled, "decoupled", false,
		"use decoupled memory ports with response FIFOs")
	runCmd.Flags().BoolVar(&runFlags.tmr, "tmr", false,
		"triplicate the address generator registers")
	runCmd.Flags().IntVar(&runFlags.fifoDepth, "fifo-depth", 4,
		"depth of the FIFO between the streamers")
	runCmd.Flags().Uint64Var(&runFlags.latency, "latency", 2,
		"response latency of decoupled memory ports, in cycles")
	runCmd.Flags().Uint64Var(&runFlags.maxCycles, "max-cycles", 1000000,
		"fail when the transfer does not finish within this many cycles")
	runCmd.Flags().StringVar(&runFlags.tracePath, "trace",
		envOr("HWPESTREAM_TRACE", ""),
		"record handshakes and transactions into this SQLite database")
	runCmd.Flags().BoolVar(&runFlags.monitor, "monitor", false,
		"start the monitoring web server")
	runCmd.Flags().IntVar(&runFlags.monitorPort, "monitor-port",
		envOrInt("HWPESTREAM_MONITOR_PORT", 0),
		"port of the monitoring web server, 0 for a random port")
	runCmd.Flags().BoolVar(&runFlags.browser, "browser", false,
		"open the monitoring page in the default browser")
}

// loopback drives one complete transfer and stops the clock when both
// streamers have returned to idle.
type loopback struct {
	clk *stream.Clock
	src *stream.SourceStreamer
	snk *stream.SinkStreamer

	srcCfg stream.AddressGenConfig
	snkCfg stream.AddressGenConfig

	started bool
}

func (l *loopback) Tick() bool {
	if !l.started {
		l.src.Start(l.srcCfg)
		l.snk.Start(l.snkCfg)
		l.started = true
	}

	l.clk.Step()

	if l.src.Status().ReadyToStart && l.snk.Status().ReadyToStart {
		l.clk.Stop()
		return false
	}

	return true
}

func runTransfer() {
	sim.UseSequentialIDGenerator()

	if runFlags.lineStride == 0 {
		runFlags.lineStride = int16(4 * runFlags.lineLength)
	}

	srcMem := mem.NewStorage(1 << 24)
	dstMem := mem.NewStorage(1 << 24)
	preload(srcMem)

	src, snk, fifo := buildStreamers()

	clk := stream.NewClock("Clk").WithDeadline(runFlags.maxCycles)
	clk.Add(src, fifo, snk)
	clk.Add(
		stream.NewChannelMonitor("Clk.SrcOutMon", src.Out()),
		stream.NewChannelMonitor("Clk.SnkInMon", snk.In()),
	)

	for i := 0; i < runFlags.ports; i++ {
		connectPort(clk, src.TCDM(i), srcMem,
			fmt.Sprintf("Clk.SrcMem%d", i))
		connectPort(clk, snk.TCDM(i), dstMem,
			fmt.Sprintf("Clk.DstMem%d", i))
	}

	if runFlags.tracePath != "" {
		attachTracers(clk, src, snk)
	}

	engine := sim.NewSerialEngine()

	if runFlags.monitor {
		startMonitor(engine, clk, src, snk)
	}

	driver := &loopback{
		clk:    clk,
		src:    src,
		snk:    snk,
		srcCfg: transferConfig(runFlags.srcBase),
		snkCfg: transferConfig(runFlags.dstBase),
	}
	sim.NewTickingComponent("Clk.Driver", engine, 1*sim.GHz, driver).
		TickLater()

	dieOnErr(engine.Run())
	engine.Finished()

	verifyTransfer(srcMem, dstMem)

	fmt.Printf("Transferred %d bytes in %d cycles.\n",
		4*uint64(runFlags.lineLength)*uint64(runFlags.lines), clk.Cycle())
	atexit.Exit(0)
}

// transferConfig programs one generator. The generator iterates in wide
// words of 4 bytes per port, so the line length is converted from 32-bit
// words. The transaction count already includes the per-line compensation
// accesses for misaligned bases, minus the one the generator adds itself.
func transferConfig(base uint32) stream.AddressGenConfig {
	if int(runFlags.lineLength)%runFlags.ports != 0 {
		fmt.Fprintf(os.Stderr,
			"line length %d is not a multiple of %d ports\n",
			runFlags.lineLength, runFlags.ports)
		atexit.Exit(1)
	}

	wideWords := uint32(runFlags.lineLength) / uint32(runFlags.ports)

	extra := uint32(0)
	if base%4 != 0 || runFlags.lineStride%4 != 0 {
		extra = 1
	}

	accesses := uint32(runFlags.lines)*(wideWords+extra) - extra

	return stream.AddressGenConfig{
		BaseAddr:   base,
		TransSize:  accesses,
		LineStride: runFlags.lineStride,
		LineLength: uint16(wideWords),
		FeatLength: runFlags.lines,
	}
}

func buildStreamers() (
	*stream.SourceStreamer,
	*stream.SinkStreamer,
	*stream.Fifo,
) {
	srcBuilder := stream.MakeSourceStreamerBuilder().
		WithPorts(runFlags.ports)
	snkBuilder := stream.MakeSinkStreamerBuilder().
		WithPorts(runFlags.ports)

	if runFlags.decoupled {
		srcBuilder = srcBuilder.WithDecoupledPorts(8)
		snkBuilder = snkBuilder.WithDecoupledPorts()
	}

	if runFlags.tmr {
		srcBuilder = srcBuilder.WithTMRAddressGen()
		snkBuilder = snkBuilder.WithTMRAddressGen()
	}

	src := srcBuilder.Build("Clk.Source")
	snk := snkBuilder.Build("Clk.Sink")
	fifo := stream.NewFifo("Clk.Fifo", runFlags.fifoDepth,
		src.Out(), snk.In())

	return src, snk, fifo
}

func connectPort(
	clk *stream.Clock,
	ch *stream.TCDM,
	storage *mem.Storage,
	name string,
) {
	if runFlags.decoupled {
		clk.Add(mem.NewDecoupledEndpoint(
			name, ch, storage, runFlags.latency))
	} else {
		clk.Add(mem.NewTCDMEndpoint(name, ch, storage))
	}

	clk.Add(stream.NewTCDMMonitor(name+"Mon", ch))
}

func attachTracers(
	clk *stream.Clock,
	src *stream.SourceStreamer,
	snk *stream.SinkStreamer,
) {
	recorder := datarecording.New(runFlags.tracePath)

	clk.AcceptHook(datarecording.NewChannelTracer(
		recorder, src.Out(), snk.In()))

	memChannels := make([]*stream.TCDM, 0, 2*runFlags.ports)
	for i := 0; i < runFlags.ports; i++ {
		memChannels = append(memChannels, src.TCDM(i), snk.TCDM(i))
	}

	clk.AcceptHook(datarecording.NewTCDMTracer(recorder, memChannels...))
}

func startMonitor(
	engine sim.Engine,
	clk *stream.Clock,
	src *stream.SourceStreamer,
	snk *stream.SinkStreamer,
) {
	monitor := monitoring.NewMonitor()
	if runFlags.monitorPort > 0 {
		monitor = monitor.WithPortNumber(runFlags.monitorPort)
	}
	if runFlags.browser {
		monitor = monitor.WithBrowser()
	}

	monitor.RegisterEngine(engine)
	monitor.RegisterClock(clk)
	monitor.RegisterChannel(src.Out())
	monitor.RegisterChannel(snk.In())
	for i := 0; i < runFlags.ports; i++ {
		monitor.RegisterTCDM(src.TCDM(i))
		monitor.RegisterTCDM(snk.TCDM(i))
	}

	monitor.StartServer()
}

func lineBase(base uint32, line uint16) uint64 {
	return uint64(int64(base) +
		int64(line)*int64(runFlags.lineStride))
}

func preload(srcMem *mem.Storage) {
	lineBytes := 4 * uint(runFlags.lineLength)

	v := byte(1)
	for l := uint16(0); l < runFlags.lines; l++ {
		data := make([]byte, lineBytes)
		for i := range data {
			data[i] = v
			v++
		}

		dieOnErr(srcMem.Write(lineBase(runFlags.srcBase, l), data))
	}
}

func verifyTransfer(srcMem, dstMem *mem.Storage) {
	lineBytes := uint64(4 * runFlags.lineLength)

	for l := uint16(0); l < runFlags.lines; l++ {
		want, err := srcMem.Read(lineBase(runFlags.srcBase, l), lineBytes)
		dieOnErr(err)

		got, err := dstMem.Read(lineBase(runFlags.dstBase, l), lineBytes)
		dieOnErr(err)

		if !bytes.Equal(got, want) {
			for i := range want {
				if got[i] != want[i] {
					fmt.Fprintf(os.Stderr, "verification failed at "+
						"line %d byte %d: got 0x%02x, want 0x%02x\n",
						l, i, got[i], want[i])
					atexit.Exit(1)
				}
			}
		}
	}

	fmt.Println("Verification passed.")
}

func dieOnErr(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
}
