package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pulp-platform/hwpe-stream/mem"
)

var _ = Describe("Storage", func() {
	It("should read and write within a single unit", func() {
		s := mem.NewStorage(4096)
		Expect(s.Write(0, []byte{1, 2, 3, 4})).To(Succeed())

		res, err := s.Read(0, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{1, 2}))

		res, err = s.Read(1, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{2, 3}))
	})

	It("should read and write across units", func() {
		s := mem.NewStorage(8192)
		Expect(s.Write(4094, []byte{1, 2, 3, 4})).To(Succeed())

		res, err := s.Read(4094, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{1, 2, 3, 4}))
	})

	It("should read untouched memory as zero", func() {
		s := mem.NewStorage(4096)

		res, err := s.Read(100, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(res).To(Equal([]byte{0, 0, 0, 0}))
	})

	It("should refuse accesses beyond the capacity", func() {
		s := mem.NewStorage(4096)

		Expect(s.Write(4097, []byte{1})).To(MatchError(mem.ErrOutOfCapacity))

		_, err := s.Read(4097, 1)
		Expect(err).To(MatchError(mem.ErrOutOfCapacity))
	})

	It("should access words little endian", func() {
		s := mem.NewStorage(4096)
		Expect(s.WriteWord(0x10, 0x04030201, 0xF)).To(Succeed())

		b, err := s.Read(0x10, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal([]byte{1, 2, 3, 4}))

		w, err := s.ReadWord(0x10)
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(uint32(0x04030201)))
	})

	It("should honor byte enables on word writes", func() {
		s := mem.NewStorage(4096)
		Expect(s.WriteWord(0x10, 0xFFFFFFFF, 0xF)).To(Succeed())
		Expect(s.WriteWord(0x10, 0x04030201, 0b0110)).To(Succeed())

		w, err := s.ReadWord(0x10)
		Expect(err).NotTo(HaveOccurred())
		Expect(w).To(Equal(uint32(0xFF0302FF)))
	})
})
