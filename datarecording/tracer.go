package datarecording

import (
	"encoding/hex"

	"github.com/pulp-platform/hwpe-stream/sim"
	"github.com/pulp-platform/hwpe-stream/stream"
)

// HandshakeRecord is one completed handshake on a stream channel.
type HandshakeRecord struct {
	Cycle   uint64
	Channel string
	Data    string
	Strb    uint64
}

// TransactionRecord is one granted transaction on a memory channel.
type TransactionRecord struct {
	Cycle   uint64
	Channel string
	Addr    uint32
	IsRead  bool
	BE      uint8
	WData   uint32
}

// A ChannelTracer records every completed handshake of the channels it
// watches. Attach it to a clock; it samples at the clock edge, when all
// signals are settled.
type ChannelTracer struct {
	recorder DataRecorder
	channels []*stream.Channel
}

// NewChannelTracer creates a tracer recording the given channels into
// the recorder.
func NewChannelTracer(
	recorder DataRecorder,
	channels ...*stream.Channel,
) *ChannelTracer {
	recorder.CreateTable("handshakes", HandshakeRecord{})

	return &ChannelTracer{recorder: recorder, channels: channels}
}

// Func implements sim.Hook.
func (t *ChannelTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != stream.HookPosClockEdge {
		return
	}

	cycle := ctx.Item.(uint64)
	for _, ch := range t.channels {
		if !ch.Fire() {
			continue
		}

		t.recorder.InsertData("handshakes", HandshakeRecord{
			Cycle:   cycle,
			Channel: ch.Name(),
			Data:    hex.EncodeToString(ch.Data),
			Strb:    uint64(ch.Strb),
		})
	}
}

// A TCDMTracer records every granted transaction of the memory channels
// it watches.
type TCDMTracer struct {
	recorder DataRecorder
	channels []*stream.TCDM
}

// NewTCDMTracer creates a tracer recording the given memory channels
// into the recorder.
func NewTCDMTracer(
	recorder DataRecorder,
	channels ...*stream.TCDM,
) *TCDMTracer {
	recorder.CreateTable("transactions", TransactionRecord{})

	return &TCDMTracer{recorder: recorder, channels: channels}
}

// Func implements sim.Hook.
func (t *TCDMTracer) Func(ctx sim.HookCtx) {
	if ctx.Pos != stream.HookPosClockEdge {
		return
	}

	cycle := ctx.Item.(uint64)
	for _, ch := range t.channels {
		if !ch.Fire() {
			continue
		}

		t.recorder.InsertData("transactions", TransactionRecord{
			Cycle:   cycle,
			Channel: ch.Name(),
			Addr:    ch.Add,
			IsRead:  ch.Wen,
			BE:      ch.BE,
			WData:   ch.WData,
		})
	}
}
