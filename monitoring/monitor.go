// Package monitoring turns a running simulation into a small web server
// so the simulation state can be inspected and controlled from outside.
package monitoring

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strconv"
	"sync"
	"time"

	// Enable profiling endpoints.
	_ "net/http/pprof"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/pulp-platform/hwpe-stream/sim"
	"github.com/pulp-platform/hwpe-stream/stream"
)

// Monitor exposes a simulation as a web server for external inspection
// and control.
type Monitor struct {
	engine     sim.Engine
	clocks     []*stream.Clock
	channels   []*stream.Channel
	tcdms      []*stream.TCDM
	buffers    []sim.Buffer
	portNumber int
	useBrowser bool

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the server. Ports below 1000
// are rejected and replaced with a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is not allowed for the monitoring server, "+
				"using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor page in the default
// browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.useBrowser = true
	return m
}

// RegisterEngine registers the engine that drives the simulation.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterClock registers a clock domain to be monitored.
func (m *Monitor) RegisterClock(c *stream.Clock) {
	m.clocks = append(m.clocks, c)
}

// RegisterChannel registers a handshake channel to be monitored.
func (m *Monitor) RegisterChannel(c *stream.Channel) {
	m.channels = append(m.channels, c)
}

// RegisterTCDM registers a memory transaction channel to be monitored.
func (m *Monitor) RegisterTCDM(c *stream.TCDM) {
	m.tcdms = append(m.tcdms, c)
}

// RegisterBuffer registers a buffer whose fill level is to be monitored.
func (m *Monitor) RegisterBuffer(b sim.Buffer) {
	m.buffers = append(m.buffers, b)
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a finished progress bar.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// StartServer starts the web server.
func (m *Monitor) StartServer() {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/run", m.run)
	r.HandleFunc("/api/clocks", m.listClocks)
	r.HandleFunc("/api/channels", m.listChannels)
	r.HandleFunc("/api/tcdm", m.listTCDMs)
	r.HandleFunc("/api/channel/{name}", m.channelDetails)
	r.HandleFunc("/api/buffers", m.listBuffers)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	http.Handle("/", r)

	actualPort := ":0"
	if m.portNumber > 1000 {
		actualPort = ":" + strconv.Itoa(m.portNumber)
	}

	listener, err := net.Listen("tcp", actualPort)
	dieOnErr(err)

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	if m.useBrowser {
		err := browser.OpenURL(url)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot open browser: %v\n", err)
		}
	}

	go func() {
		err = http.Serve(listener, nil)
		dieOnErr(err)
	}()
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprintf(w, "{\"now\":%.10f}", m.engine.CurrentTime())
}

func (m *Monitor) run(_ http.ResponseWriter, _ *http.Request) {
	go func() {
		err := m.engine.Run()
		if err != nil {
			panic(err)
		}
	}()
}

type clockRsp struct {
	Name  string `json:"name"`
	Cycle uint64 `json:"cycle"`
}

func (m *Monitor) listClocks(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]clockRsp, 0, len(m.clocks))
	for _, c := range m.clocks {
		rsp = append(rsp, clockRsp{Name: c.Name(), Cycle: c.Cycle()})
	}

	writeJSON(w, rsp)
}

type channelRsp struct {
	Name  string `json:"name"`
	Valid bool   `json:"valid"`
	Ready bool   `json:"ready"`
	Data  string `json:"data"`
	Strb  uint64 `json:"strb"`
}

func (m *Monitor) listChannels(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]channelRsp, 0, len(m.channels))
	for _, c := range m.channels {
		rsp = append(rsp, channelRsp{
			Name:  c.Name(),
			Valid: c.Valid,
			Ready: c.Ready,
			Data:  hex.EncodeToString(c.Data),
			Strb:  uint64(c.Strb),
		})
	}

	writeJSON(w, rsp)
}

type tcdmRsp struct {
	Name string `json:"name"`
	Req  bool   `json:"req"`
	Gnt  bool   `json:"gnt"`
	Add  uint32 `json:"add"`
	Wen  bool   `json:"wen"`
}

func (m *Monitor) listTCDMs(w http.ResponseWriter, _ *http.Request) {
	rsp := make([]tcdmRsp, 0, len(m.tcdms))
	for _, c := range m.tcdms {
		rsp = append(rsp, tcdmRsp{
			Name: c.Name(),
			Req:  c.Req,
			Gnt:  c.Gnt,
			Add:  c.Add,
			Wen:  c.Wen,
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) channelDetails(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	for _, c := range m.channels {
		if c.Name() != name {
			continue
		}

		serializer := goseth.NewSerializer()
		serializer.SetRoot(c)
		serializer.SetMaxDepth(1)
		dieOnErr(serializer.Serialize(w))

		return
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Channel not found"))
	dieOnErr(err)
}

func (m *Monitor) listBuffers(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "[")
	for i, b := range m.buffers {
		if i > 0 {
			fmt.Fprint(w, ",")
		}

		fmt.Fprintf(w, "{\"buffer\":\"%s\",\"level\":%d,\"cap\":%d}",
			b.Name(), b.Size(), b.Capacity())
	}
	fmt.Fprint(w, "]")
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	writeJSON(w, m.progressBars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	dieOnErr(err)

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := json.Marshal(v)
	dieOnErr(err)

	_, err = w.Write(b)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
