package stream

// sentinelTransSize marks an indefinitely repeating stream. A transfer
// configured with a transaction count at or above this value never
// completes.
const sentinelTransSize = 0xFFFFFFFE

// AddressGenMode selects the iteration algorithm of an address generator.
type AddressGenMode int

const (
	// ModeClassic iterates the word/line/feature loop nest with
	// misalignment compensation.
	ModeClassic AddressGenMode = iota

	// ModeStrided iterates the same loop nest with raw byte strides and
	// no misalignment handling. Every transaction carries a full strobe.
	ModeStrided
)

// AddressGenConfig carries one transfer request from the control plane.
type AddressGenConfig struct {
	BaseAddr   uint32
	TransSize  uint32
	LineStride int16
	LineLength uint16
	FeatStride int16
	FeatLength uint16
	LoopOuter  bool
	FeatRoll   uint16
}

// RealignFlags tell a realigner which phase of a line is active.
type RealignFlags struct {
	Enable     bool
	Realign    bool
	First      bool
	Last       bool
	LastPacket bool
	LineLength uint16
	StrbValid  bool
}

// AddressGenFlags is the per-cycle status output of an address generator.
type AddressGenFlags struct {
	WordUpdate bool
	LineUpdate bool
	FeatUpdate bool
	InProgress bool
	Realign    RealignFlags
}

// An AddressStream produces the (address, strobe, flags) sequence of one
// strided transfer. It is advanced by its owning streamer, one step per
// granted transaction.
type AddressStream interface {
	// Start loads a transfer request. Must only be called when
	// ReadyToStart is true.
	Start(cfg AddressGenConfig)

	// Clear synchronously resets all state back to idle.
	Clear()

	// Edge clocks the generator. When granted is true the iteration
	// advances by one word step.
	Edge(granted bool)

	// Addr returns the word-aligned address of the current transaction.
	Addr() uint32

	// Strb returns the byte strobe of the current transaction.
	Strb() Strobe

	// Flags returns the per-cycle status output.
	Flags() AddressGenFlags

	// Done is high for exactly one cycle when the transfer completes.
	Done() bool

	// ReadyToStart reports whether a new transfer may be loaded.
	ReadyToStart() bool
}

type agSample struct {
	addr  uint32
	strb  Strobe
	flags AddressGenFlags
	done  bool
}

// An AddressGen iterates a three-level strided loop nest over a byte
// addressable memory. The innermost loop walks words within a line, the
// middle loop walks lines within a feature, the outermost loop walks
// features. When the base address or one of the strides is not word
// aligned, every line is stretched by one compensating transaction and
// the first and last transactions of the line carry partial strobes so
// that the misaligned region is smeared across aligned memory words.
type AddressGen struct {
	name       string
	wordBytes  int
	mode       AddressGenMode
	delayFlags bool

	cfg     AddressGenConfig
	running bool

	misaligned bool
	infinite   bool
	lineWords  uint32
	transLimit uint64

	wordCnt uint32
	lineCnt uint32
	featCnt uint32
	overall uint64

	wordOff uint32
	lineOff uint32
	featOff uint32

	lineFirst  bool
	lineUpdate bool
	featUpdate bool
	done       bool

	delayed agSample
}

// AddressGenBuilder builds address generators.
type AddressGenBuilder struct {
	wordBytes  int
	mode       AddressGenMode
	delayFlags bool
}

// MakeAddressGenBuilder returns a builder with a 4-byte word width and
// the classic iteration mode.
func MakeAddressGenBuilder() AddressGenBuilder {
	return AddressGenBuilder{wordBytes: 4}
}

// WithWordWidth sets the byte width of one word step. It must be a
// multiple of 4.
func (b AddressGenBuilder) WithWordWidth(n int) AddressGenBuilder {
	b.wordBytes = n
	return b
}

// WithMode selects the iteration algorithm.
func (b AddressGenBuilder) WithMode(m AddressGenMode) AddressGenBuilder {
	b.mode = m
	return b
}

// WithDelayedFlags inserts a one-cycle register on the address, strobe
// and flag outputs, aligning them with a one-cycle-delayed response
// phase instead of the request phase.
func (b AddressGenBuilder) WithDelayedFlags() AddressGenBuilder {
	b.delayFlags = true
	return b
}

// Build creates the address generator.
func (b AddressGenBuilder) Build(name string) *AddressGen {
	if b.wordBytes <= 0 || b.wordBytes%4 != 0 {
		panic("word width must be a positive multiple of 4 bytes")
	}

	return &AddressGen{
		name:       name,
		wordBytes:  b.wordBytes,
		mode:       b.mode,
		delayFlags: b.delayFlags,
	}
}

// Name returns the name of the generator.
func (g *AddressGen) Name() string {
	return g.name
}

// WordBytes returns the byte width of one word step.
func (g *AddressGen) WordBytes() int {
	return g.wordBytes
}

// ReadyToStart reports whether a new transfer may be loaded.
func (g *AddressGen) ReadyToStart() bool {
	return !g.running
}

// Start loads a transfer request.
func (g *AddressGen) Start(cfg AddressGenConfig) {
	if g.running {
		panic(g.name + ": start while a transfer is in progress")
	}

	g.cfg = cfg
	g.wordCnt = 0
	g.lineCnt = 0
	g.featCnt = 0
	g.overall = 0
	g.wordOff = 0
	g.lineOff = 0
	g.featOff = 0
	g.lineFirst = true
	g.lineUpdate = false
	g.featUpdate = false
	g.done = false

	g.misaligned = g.mode == ModeClassic &&
		(cfg.BaseAddr&3 != 0 ||
			uint16(cfg.LineStride)&3 != 0 ||
			uint16(cfg.FeatStride)&3 != 0)

	g.lineWords = uint32(cfg.LineLength)
	g.transLimit = uint64(cfg.TransSize)
	if g.misaligned {
		g.lineWords++
		g.transLimit++
	}

	g.infinite = cfg.TransSize >= sentinelTransSize

	if cfg.TransSize == 0 {
		// Nothing to transfer. The done pulse fires on the next edge
		// without issuing a single transaction.
		g.running = false
		g.done = true
		return
	}

	g.running = true
}

// Clear synchronously resets all state back to idle.
func (g *AddressGen) Clear() {
	g.cfg = AddressGenConfig{}
	g.running = false
	g.misaligned = false
	g.infinite = false
	g.lineWords = 0
	g.transLimit = 0
	g.wordCnt = 0
	g.lineCnt = 0
	g.featCnt = 0
	g.overall = 0
	g.wordOff = 0
	g.lineOff = 0
	g.featOff = 0
	g.lineFirst = false
	g.lineUpdate = false
	g.featUpdate = false
	g.done = false
	g.delayed = agSample{}
}

func (g *AddressGen) rawAddr() uint32 {
	return g.cfg.BaseAddr + g.featOff + g.lineOff + g.wordOff
}

func (g *AddressGen) lineOffset() uint32 {
	if !g.misaligned {
		return 0
	}

	return (g.cfg.BaseAddr + g.featOff + g.lineOff) & 3
}

func (g *AddressGen) combAddr() uint32 {
	if g.mode == ModeStrided {
		return g.rawAddr()
	}

	return g.rawAddr() &^ 3
}

func (g *AddressGen) combStrb() Strobe {
	full := FullStrobe(g.wordBytes)
	if !g.misaligned {
		return full
	}

	off := g.lineOffset()
	switch {
	case g.wordCnt == 0:
		return (full << off) & full
	case g.wordCnt == g.lineWords-1:
		return full >> (uint32(g.wordBytes) - off)
	default:
		return full
	}
}

func (g *AddressGen) combFlags() AddressGenFlags {
	f := AddressGenFlags{
		WordUpdate: g.running,
		LineUpdate: g.lineUpdate,
		FeatUpdate: g.featUpdate,
		InProgress: g.running,
	}

	f.Realign = RealignFlags{
		Enable:     g.misaligned && g.running,
		Realign:    g.misaligned,
		First:      g.misaligned && g.running && g.wordCnt == 0,
		Last:       g.misaligned && g.running && g.wordCnt == g.lineWords-1,
		LastPacket: g.running && !g.infinite && g.overall == g.transLimit-1,
		LineLength: g.cfg.LineLength,
		StrbValid:  g.misaligned && g.running,
	}

	return f
}

func (g *AddressGen) sample() agSample {
	return agSample{
		addr:  g.combAddr(),
		strb:  g.combStrb(),
		flags: g.combFlags(),
		done:  g.done,
	}
}

// Addr returns the word-aligned address of the current transaction.
func (g *AddressGen) Addr() uint32 {
	if g.delayFlags {
		return g.delayed.addr
	}

	return g.combAddr()
}

// Strb returns the byte strobe of the current transaction.
func (g *AddressGen) Strb() Strobe {
	if g.delayFlags {
		return g.delayed.strb
	}

	return g.combStrb()
}

// Flags returns the per-cycle status output.
func (g *AddressGen) Flags() AddressGenFlags {
	if g.delayFlags {
		return g.delayed.flags
	}

	return g.combFlags()
}

// Done is high for exactly one cycle when the transfer completes.
func (g *AddressGen) Done() bool {
	if g.delayFlags {
		return g.delayed.done
	}

	return g.done
}

// Edge clocks the generator. When granted is true the iteration
// advances by one word step.
func (g *AddressGen) Edge(granted bool) {
	if g.delayFlags {
		g.delayed = g.sample()
	}

	g.done = false

	if !g.running || !granted {
		g.lineUpdate = false
		g.featUpdate = false
		return
	}

	g.overall++
	if !g.infinite && g.overall >= g.transLimit {
		g.running = false
		g.done = true
	}

	g.advance()
}

func (g *AddressGen) advance() {
	g.lineUpdate = false
	g.featUpdate = false

	g.wordCnt++
	if g.wordCnt < g.lineWords {
		g.wordOff += uint32(g.wordBytes)
		return
	}

	g.wordCnt = 0
	g.wordOff = 0
	g.lineUpdate = true

	if g.cfg.LoopOuter {
		g.advanceFeatureFirst()
	} else {
		g.advanceLineFirst()
	}
}

// advanceLineFirst rolls the line loop inside the feature loop: lines
// advance feat_length times, then the feature stride is applied.
func (g *AddressGen) advanceLineFirst() {
	g.lineCnt++
	if g.lineCnt < uint32(g.cfg.FeatLength) {
		g.lineOff += uint32(int32(g.cfg.LineStride))
		return
	}

	g.lineCnt = 0
	g.lineOff = 0
	g.featUpdate = true

	g.featCnt++
	g.featOff += uint32(int32(g.cfg.FeatStride))
	if g.cfg.FeatRoll != 0 && g.featCnt >= uint32(g.cfg.FeatRoll) {
		g.featCnt = 0
		g.featOff = 0
	}
}

// advanceFeatureFirst rolls the feature loop inside the line loop: the
// feature stride is applied feat_roll times per line.
func (g *AddressGen) advanceFeatureFirst() {
	g.featCnt++
	g.featUpdate = true
	if g.cfg.FeatRoll == 0 || g.featCnt < uint32(g.cfg.FeatRoll) {
		g.featOff += uint32(int32(g.cfg.FeatStride))
		return
	}

	g.featCnt = 0
	g.featOff = 0

	g.lineCnt++
	g.lineOff += uint32(int32(g.cfg.LineStride))
	if g.lineCnt >= uint32(g.cfg.FeatLength) {
		g.lineCnt = 0
		g.lineOff = 0
	}
}
