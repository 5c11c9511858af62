// Package kmalltest builds synthetic records for tests and sample files.
package kmalltest

import (
	"bytes"
	"os"
	"time"

	kaitai "github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

const (
	headerSize   = 20
	checksumSize = 4
)

// enc is a little endian writer with a sticky error.
type enc struct {
	buf bytes.Buffer
	w   *kaitai.Writer
	err error
}

func newEnc() *enc {
	e := &enc{}
	e.w = kaitai.NewWriter(&e.buf)
	return e
}

func (e *enc) keep(err error) {
	if e.err == nil && err != nil {
		e.err = err
	}
}

func (e *enc) u8(v uint8) { e.keep(e.w.WriteU1(v)) }
func (e *enc) i8(v int8) { e.keep(e.w.WriteS1(v)) }
func (e *enc) u16(v uint16) { e.keep(e.w.WriteU2le(v)) }
func (e *enc) i16(v int16) { e.keep(e.w.WriteS2le(v)) }
func (e *enc) u32(v uint32) { e.keep(e.w.WriteU4le(v)) }
func (e *enc) f32(v float32) { e.keep(e.w.WriteF4le(v)) }
func (e *enc) f64(v float64) { e.keep(e.w.WriteF8le(v)) }
func (e *enc) raw(b []byte) { e.keep(e.w.WriteBytes(b)) }
func (e *enc) zeros(n int) { e.raw(make([]byte, n)) }
func (e *enc) text(s string) { e.raw([]byte(s)) }
func (e *enc) size() int { return e.buf.Len() }

// padTo appends zero bytes until the buffer holds n bytes past start.
func (e *enc) padTo(start, n int) {
	if fill := start + n - e.size(); fill > 0 {
		e.zeros(fill)
	}
}

func (e *enc) bytes() []byte {
	if e.err != nil {
		panic("kmalltest: " + e.err.Error())
	}
	return e.buf.Bytes()
}

// Record wraps body in a header and checksum trailer.
func Record(tag string, version uint8, t time.Time, body []byte) []byte {
	size := uint32(headerSize + len(body) + checksumSize)
	e := newEnc()
	e.u32(size)
	e.text(fixedTag(tag))
	e.u8(version)
	e.u8(0)
	e.u16(0)
	e.u32(uint32(t.Unix()))
	e.u32(uint32(t.Nanosecond()))
	e.raw(body)
	e.u32(size)
	return e.bytes()
}

func fixedTag(tag string) string {
	b := []byte("    ")
	copy(b, tag)
	return string(b)
}

// WithSize returns a copy of rec whose header and checksum declare size.
func WithSize(rec []byte, size uint32) []byte {
	out := append([]byte(nil), rec...)
	putU32(out[0:4], size)
	putU32(out[len(out)-4:], size)
	return out
}

// Truncate cuts rec to keep content bytes after the header and appends a
// consistent checksum.
func Truncate(rec []byte, keep int) []byte {
	body := append([]byte(nil), rec[headerSize:headerSize+keep]...)
	size := uint32(headerSize + keep + checksumSize)
	out := append(append([]byte(nil), rec[:headerSize]...), body...)
	out = append(out, 0, 0, 0, 0)
	putU32(out[0:4], size)
	putU32(out[len(out)-4:], size)
	return out
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// Concat joins records into file contents.
func Concat(records ...[]byte) []byte {
	var out []byte
	for _, r := range records {
		out = append(out, r...)
	}
	return out
}

// WriteFile writes the records to path.
func WriteFile(path string, records ...[]byte) error {
	return os.WriteFile(path, Concat(records...), 0o644)
}

// text records

func textBody(info func(e *enc, size uint16), text string) []byte {
	e := newEnc()
	info(e, uint16(6+len(text)))
	e.text(text)
	if len(text)%2 == 1 {
		e.u8(0)
	}
	return e.bytes()
}

// IIP builds an installation parameter record.
func IIP(t time.Time, text string) []byte {
	return Record("#IIP", 0, t, textBody(func(e *enc, size uint16) {
		e.u16(size)
		e.u16(0)
		e.u16(1)
	}, text))
}

// IOP builds a runtime parameter record.
func IOP(t time.Time, text string) []byte {
	return Record("#IOP", 0, t, textBody(func(e *enc, size uint16) {
		e.u16(size)
		e.u16(0)
		e.u16(1)
	}, text))
}

// IBE builds a built in test error report.
func IBE(t time.Time, number uint8, status int8, text string) []byte {
	return Record("#IBE", 0, t, textBody(func(e *enc, size uint16) {
		e.u16(size)
		e.u8(0)
		e.u8(0)
		e.u8(number)
		e.i8(status)
	}, text))
}

// Bare builds a record with an arbitrary body, for kinds without a
// dedicated builder.
func Bare(tag string, t time.Time, body []byte) []byte {
	return Record(tag, 0, t, body)
}

// SampleInstallText is a well formed installation parameter text.
const SampleInstallText = "OSCV:Empty,EMXV:EM2040P,PU_0,SN=53011,IP=157.237.20.40:0xffff0000,UDP=1997,TYPE=CPU2,DCL_VERSION:1.2,CPU:1.4.1,VXW:6.9 SMP,FILTER:1.0,CBMF:1.11,TX:1.9,RX:1.12,VERSIONS-END,SERIALno:TX:20252,RX:20252,SERIALno-END,DCL:1.2,KMALL:Rev I,TRAI_TX1:N=20252;X=0.034;Y=-0.000;Z=0.181;R=0.000;P=0.000;H=0.000;S=0.4;V=Rev I;W=EM2040P,TRAI_RX1:N=20252;X=0.034;Y=-0.000;Z=0.181;R=0.000;P=0.000;H=0.000;G=0.0;S=1.3;IRX=0.002;IRY=0.000;IRZ=0.006,POSI_1:X=0.000;Y=0.000;Z=0.000;D=0.000;G=WGS84;T=PU;C=ON;F=GGA;Q=ON;I=COM1;U=ACTIVE,ATTI_1:X=0.000;Y=0.000;Z=0.000;R=0.000;P=0.000;H=0.000;D=0.000;M=RP;F=KM;I=NET1;U=ACTIVE_RP,CLCK:F=ZDA;S=1PPS;A=RISING;I=COM3;Q=OFF,SVPI:F=AML;I=COM4;U=ACTIVE,EMXI:SSNL=NORMAL;SWLZ=-0.100,"
