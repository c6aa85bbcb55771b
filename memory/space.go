package memory

import (
	"encoding/binary"
	"fmt"
	"sort"

	armruntime "github.com/wippyai/arm-runtime"
	"github.com/wippyai/arm-runtime/errors"
)

var _ armruntime.Memory = (*Space)(nil)

// Region is a mapped range of the address space.
type Region struct {
	Name string
	Base uint32
	Size uint32
}

// End returns the first address past the region.
func (r Region) End() uint64 {
	return uint64(r.Base) + uint64(r.Size)
}

// Space is the guest address space.
type Space struct {
	buf     []byte
	regions []Region
}

// New creates an address space of capacity bytes.
func New(capacity uint32) *Space {
	return &Space{buf: make([]byte, capacity)}
}

// Size returns the capacity in bytes.
func (s *Space) Size() uint32 {
	return uint32(len(s.buf))
}

// Map reserves and zero-fills [base, base+size).
func (s *Space) Map(base, size uint32) error {
	return s.MapNamed("", base, size)
}

// MapNamed is Map with a label shown in region listings.
func (s *Space) MapNamed(name string, base, size uint32) error {
	if size == 0 {
		return errors.InvalidInput(errors.PhaseMemory, "map of empty region")
	}
	if err := s.check(base, size); err != nil {
		return err
	}
	end := uint64(base) + uint64(size)
	for _, r := range s.regions {
		if uint64(base) < r.End() && end > uint64(r.Base) {
			return errors.New(errors.PhaseMemory, errors.KindInvalidInput).
				Value(base).
				Detail("map [%#x, %#x) overlaps %s", base, end, r).
				Build()
		}
	}

	clear(s.buf[base:end])

	s.regions = append(s.regions, Region{Name: name, Base: base, Size: size})
	sort.Slice(s.regions, func(i, j int) bool { return s.regions[i].Base < s.regions[j].Base })
	return nil
}

// Regions returns the mapped regions in address order.
func (s *Space) Regions() []Region {
	out := make([]Region, len(s.regions))
	copy(out, s.regions)
	return out
}

// RegionAt returns the mapped region containing addr.
func (s *Space) RegionAt(addr uint32) (Region, bool) {
	i := sort.Search(len(s.regions), func(i int) bool {
		return s.regions[i].End() > uint64(addr)
	})
	if i < len(s.regions) && s.regions[i].Base <= addr {
		return s.regions[i], true
	}
	return Region{}, false
}

func (s *Space) check(addr, size uint32) error {
	if uint64(addr)+uint64(size) > uint64(len(s.buf)) {
		return errors.OutOfBounds(errors.PhaseMemory, addr, size, uint64(len(s.buf)))
	}
	return nil
}

// Read returns a copy of length bytes at offset.
func (s *Space) Read(offset uint32, length uint32) ([]byte, error) {
	if err := s.check(offset, length); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, s.buf[offset:])
	return out, nil
}

// ReadInto fills dst from offset without allocating.
func (s *Space) ReadInto(offset uint32, dst []byte) error {
	if err := s.check(offset, uint32(len(dst))); err != nil {
		return err
	}
	copy(dst, s.buf[offset:])
	return nil
}

// Write copies data to offset.
func (s *Space) Write(offset uint32, data []byte) error {
	if uint64(len(data)) > uint64(^uint32(0)) {
		return errors.OutOfBounds(errors.PhaseMemory, offset, ^uint32(0), uint64(len(s.buf)))
	}
	if err := s.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(s.buf[offset:], data)
	return nil
}

// ReadU8 reads an unsigned 8-bit value.
func (s *Space) ReadU8(offset uint32) (uint8, error) {
	if err := s.check(offset, 1); err != nil {
		return 0, err
	}
	return s.buf[offset], nil
}

// ReadU16 reads an unsigned 16-bit little-endian value.
func (s *Space) ReadU16(offset uint32) (uint16, error) {
	if err := s.check(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(s.buf[offset:]), nil
}

// ReadU32 reads an unsigned 32-bit little-endian value.
func (s *Space) ReadU32(offset uint32) (uint32, error) {
	if err := s.check(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(s.buf[offset:]), nil
}

// ReadU64 reads an unsigned 64-bit little-endian value.
func (s *Space) ReadU64(offset uint32) (uint64, error) {
	if err := s.check(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(s.buf[offset:]), nil
}

// WriteU8 writes an unsigned 8-bit value.
func (s *Space) WriteU8(offset uint32, value uint8) error {
	if err := s.check(offset, 1); err != nil {
		return err
	}
	s.buf[offset] = value
	return nil
}

// WriteU16 writes an unsigned 16-bit little-endian value.
func (s *Space) WriteU16(offset uint32, value uint16) error {
	if err := s.check(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(s.buf[offset:], value)
	return nil
}

// WriteU32 writes an unsigned 32-bit little-endian value.
func (s *Space) WriteU32(offset uint32, value uint32) error {
	if err := s.check(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(s.buf[offset:], value)
	return nil
}

// WriteU64 writes an unsigned 64-bit little-endian value.
func (s *Space) WriteU64(offset uint32, value uint64) error {
	if err := s.check(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(s.buf[offset:], value)
	return nil
}

// ReadCString reads a NUL-terminated string of at most max bytes.
func (s *Space) ReadCString(offset uint32, max uint32) (string, error) {
	if err := s.check(offset, 1); err != nil {
		return "", err
	}
	end := uint64(offset) + uint64(max)
	if end > uint64(len(s.buf)) {
		end = uint64(len(s.buf))
	}
	for i := uint64(offset); i < end; i++ {
		if s.buf[i] == 0 {
			return string(s.buf[offset:i]), nil
		}
	}
	return "", errors.New(errors.PhaseMemory, errors.KindOutOfBounds).
		Value(offset).
		Detail("unterminated string at %#x (limit %d bytes)", offset, max).
		Build()
}

// WriteCString writes str followed by a NUL terminator.
func (s *Space) WriteCString(offset uint32, str string) error {
	b := make([]byte, len(str)+1)
	copy(b, str)
	return s.Write(offset, b)
}

func (r Region) String() string {
	if r.Name != "" {
		return fmt.Sprintf("%s[%#x, %#x)", r.Name, r.Base, r.End())
	}
	return fmt.Sprintf("[%#x, %#x)", r.Base, r.End())
}
