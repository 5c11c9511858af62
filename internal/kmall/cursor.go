package kmall

import (
	"bytes"
	"fmt"
	"io"
	"math"

	kaitai "github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// checksumSize is the width of the size echo closing every record.
const checksumSize = 4

// cursor walks the bytes of one record. The first failure sticks so that a
// structure decoder can read all of its fields and check err once.
type cursor struct {
	stream *kaitai.Stream
	data   []byte
	end    int // first byte of the checksum trailer
	base   int64
	tag    string
	err    error
}

func newCursor(data []byte, base int64, tag string) *cursor {
	end := len(data) - checksumSize
	if end < 0 {
		end = 0
	}
	return &cursor{
		stream: kaitai.NewStream(bytes.NewReader(data)),
		data:   data,
		end:    end,
		base:   base,
		tag:    tag,
	}
}

func (c *cursor) pos() int {
	p, err := c.stream.Pos()
	if err != nil {
		c.fail(err)
		return c.end
	}
	return int(p)
}

func (c *cursor) fail(err error) {
	if c.err == nil {
		c.err = err
	}
}

func (c *cursor) corrupt(at int, format string, args ...interface{}) {
	c.fail(recordErr(c.tag, c.base+int64(at), ErrCorruptRecord, format, args...))
}

func (c *cursor) unsupported(at int, format string, args ...interface{}) {
	c.fail(recordErr(c.tag, c.base+int64(at), ErrUnsupportedEncoding, format, args...))
}

// need reports whether n more content bytes are available before the
// checksum trailer.
func (c *cursor) need(n int, what string) bool {
	if c.err != nil {
		return false
	}
	p := c.pos()
	if n < 0 || p+n > c.end {
		c.corrupt(p, "%s needs %d bytes, %d left before checksum", what, n, c.end-p)
		return false
	}
	return true
}

// seek moves to an absolute position within the record. Positions past the
// checksum trailer are corrupt.
func (c *cursor) seek(p int, what string) {
	if c.err != nil {
		return
	}
	if p < 0 || p > c.end {
		c.corrupt(c.pos(), "%s moves to %d, record content ends at %d", what, p, c.end)
		return
	}
	if _, err := c.stream.Seek(int64(p), io.SeekStart); err != nil {
		c.fail(err)
	}
}

func (c *cursor) u8() uint8 {
	if c.err != nil {
		return 0
	}
	v, err := c.stream.ReadU1()
	if err != nil {
		c.corrupt(c.pos(), "read u8: %v", err)
	}
	return v
}

func (c *cursor) i8() int8 {
	if c.err != nil {
		return 0
	}
	v, err := c.stream.ReadS1()
	if err != nil {
		c.corrupt(c.pos(), "read s8: %v", err)
	}
	return v
}

func (c *cursor) u16() uint16 {
	if c.err != nil {
		return 0
	}
	v, err := c.stream.ReadU2le()
	if err != nil {
		c.corrupt(c.pos(), "read u16: %v", err)
	}
	return v
}

func (c *cursor) i16() int16 {
	if c.err != nil {
		return 0
	}
	v, err := c.stream.ReadS2le()
	if err != nil {
		c.corrupt(c.pos(), "read s16: %v", err)
	}
	return v
}

func (c *cursor) u32() uint32 {
	if c.err != nil {
		return 0
	}
	v, err := c.stream.ReadU4le()
	if err != nil {
		c.corrupt(c.pos(), "read u32: %v", err)
	}
	return v
}

func (c *cursor) f32() float32 {
	if c.err != nil {
		return float32(math.NaN())
	}
	v, err := c.stream.ReadF4le()
	if err != nil {
		c.corrupt(c.pos(), "read f32: %v", err)
	}
	return v
}

func (c *cursor) f64() float64 {
	if c.err != nil {
		return math.NaN()
	}
	v, err := c.stream.ReadF8le()
	if err != nil {
		c.corrupt(c.pos(), "read f64: %v", err)
	}
	return v
}

func (c *cursor) bytes(n int, what string) []byte {
	if !c.need(n, what) {
		return nil
	}
	v, err := c.stream.ReadBytes(n)
	if err != nil {
		c.corrupt(c.pos(), "read %s: %v", what, err)
		return nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

func (c *cursor) skip(n int, what string) {
	if !c.need(n, what) {
		return
	}
	c.seek(c.pos()+n, what)
}

// skipSelfSized16 advances past a structure whose leading uint16 holds its
// own byte count.
func (c *cursor) skipSelfSized16(what string) {
	start := c.pos()
	if !c.need(2, what) {
		return
	}
	size := int(c.u16())
	if size < 2 {
		c.corrupt(start, "%s declares size %d", what, size)
		return
	}
	c.seek(start+size, what)
}

// rest returns the content bytes between the cursor and the checksum.
func (c *cursor) rest(what string) []byte {
	if c.err != nil {
		return nil
	}
	return c.bytes(c.end-c.pos(), what)
}

// verifyChecksum reads the trailer at the current position and checks it
// echoes the header size and closes the record.
func (c *cursor) verifyChecksum(size uint32) {
	if c.err != nil {
		return
	}
	p := c.pos()
	if p != c.end {
		c.corrupt(p, "content ends at %d, checksum expected at %d", p, c.end)
		return
	}
	if err := VerifyChecksum(c.data, p, size); err != nil {
		c.fail(recordErr(c.tag, c.base+int64(p), ErrCorruptRecord, "%v", err))
	}
}

// VerifyChecksum checks that the uint32 at trailerOffset equals size.
func VerifyChecksum(data []byte, trailerOffset int, size uint32) error {
	if trailerOffset < 0 || trailerOffset+checksumSize > len(data) {
		return &checksumError{offset: trailerOffset, expected: size, missing: true}
	}
	got := uint32(data[trailerOffset]) | uint32(data[trailerOffset+1])<<8 |
		uint32(data[trailerOffset+2])<<16 | uint32(data[trailerOffset+3])<<24
	if got != size {
		return &checksumError{offset: trailerOffset, expected: size, actual: got}
	}
	return nil
}

type checksumError struct {
	offset   int
	expected uint32
	actual   uint32
	missing  bool
}

func (e *checksumError) Error() string {
	if e.missing {
		return fmt.Sprintf("checksum trailer missing at %d", e.offset)
	}
	return fmt.Sprintf("checksum at %d is %d, want %d", e.offset, e.actual, e.expected)
}

func (e *checksumError) Is(target error) bool {
	return target == ErrCorruptRecord
}
