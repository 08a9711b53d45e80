// Package mem provides the memory-side endpoints of the streaming fabric:
// a sparse byte-addressable storage and the modules that serve memory
// transaction channels from it.
package mem

import "errors"

// ErrOutOfCapacity is returned when an access goes beyond the configured
// storage capacity.
var ErrOutOfCapacity = errors.New("access beyond the storage capacity")

// A Storage keeps the data of the simulated memory.
//
// The storage is managed in units similar to pages. Units that are never
// touched by a read or a write allocate no memory, so a small test can
// address a large, mostly empty region.
type Storage struct {
	unitSize uint64
	capacity uint64
	data     map[uint64][]byte
}

// NewStorage creates a storage object with the specified capacity in
// bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		unitSize: 4096,
		capacity: capacity,
		data:     make(map[uint64][]byte),
	}
}

// Capacity returns the storage capacity in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

func (s *Storage) unit(addr uint64) ([]byte, error) {
	if addr >= s.capacity {
		return nil, ErrOutOfCapacity
	}

	base := addr - addr%s.unitSize
	u, ok := s.data[base]
	if !ok {
		u = make([]byte, s.unitSize)
		s.data[base] = u
	}

	return u, nil
}

// Read copies n bytes starting at address.
func (s *Storage) Read(address, n uint64) ([]byte, error) {
	res := make([]byte, n)

	addr := address
	offset := uint64(0)
	for offset < n {
		u, err := s.unit(addr)
		if err != nil {
			return nil, err
		}

		inUnit := addr % s.unitSize
		chunk := s.unitSize - inUnit
		if left := n - offset; left < chunk {
			chunk = left
		}

		copy(res[offset:offset+chunk], u[inUnit:inUnit+chunk])
		offset += chunk
		addr += chunk
	}

	return res, nil
}

// Write copies data to the storage starting at address.
func (s *Storage) Write(address uint64, data []byte) error {
	addr := address
	offset := uint64(0)
	for offset < uint64(len(data)) {
		u, err := s.unit(addr)
		if err != nil {
			return err
		}

		inUnit := addr % s.unitSize
		chunk := s.unitSize - inUnit
		if left := uint64(len(data)) - offset; left < chunk {
			chunk = left
		}

		copy(u[inUnit:inUnit+chunk], data[offset:offset+chunk])
		offset += chunk
		addr += chunk
	}

	return nil
}

// ReadWord reads the 32-bit little-endian word at a word-aligned address.
func (s *Storage) ReadWord(address uint32) (uint32, error) {
	b, err := s.Read(uint64(address), 4)
	if err != nil {
		return 0, err
	}

	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 |
		uint32(b[3])<<24, nil
}

// WriteWord writes the 32-bit little-endian word at a word-aligned
// address, updating only the byte lanes enabled in be.
func (s *Storage) WriteWord(address, data uint32, be uint8) error {
	for i := 0; i < 4; i++ {
		if be&(1<<i) == 0 {
			continue
		}

		b := byte(data >> (8 * i))
		err := s.Write(uint64(address)+uint64(i), []byte{b})
		if err != nil {
			return err
		}
	}

	return nil
}
