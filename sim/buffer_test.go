package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type bufferHookRecorder struct {
	positions []*HookPos
	items     []interface{}
}

func (r *bufferHookRecorder) Func(ctx HookCtx) {
	r.positions = append(r.positions, ctx.Pos)
	r.items = append(r.items, ctx.Item)
}

var _ = Describe("Buffer", func() {
	var (
		buf Buffer
	)

	BeforeEach(func() {
		buf = NewBuffer("Buf", 2)
	})

	It("should report capacity and fill level", func() {
		Expect(buf.Capacity()).To(Equal(2))
		Expect(buf.Size()).To(Equal(0))
		Expect(buf.CanPush()).To(BeTrue())

		buf.Push(1)
		buf.Push(2)

		Expect(buf.Size()).To(Equal(2))
		Expect(buf.CanPush()).To(BeFalse())
	})

	It("should pop in push order", func() {
		buf.Push(1)
		buf.Push(2)

		Expect(buf.Peek()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(1))
		Expect(buf.Pop()).To(Equal(2))
		Expect(buf.Peek()).To(BeNil())
		Expect(buf.Pop()).To(BeNil())
	})

	It("should panic on overflow", func() {
		buf.Push(1)
		buf.Push(2)

		Expect(func() { buf.Push(3) }).To(Panic())
	})

	It("should clear", func() {
		buf.Push(2)

		buf.Clear()

		Expect(buf.Size()).To(Equal(0))
		Expect(buf.Peek()).To(BeNil())
	})

	It("should invoke the matching hook position on push and pop", func() {
		recorder := &bufferHookRecorder{}
		buf.AcceptHook(recorder)

		buf.Push(42)
		buf.Pop()

		Expect(recorder.positions).To(Equal(
			[]*HookPos{HookPosBufPush, HookPosBufPop}))
		Expect(recorder.items).To(Equal([]interface{}{42, 42}))
	})
})
