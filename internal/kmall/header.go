package kmall

import (
	"encoding/binary"
	"io"
	"time"
)

// HeaderSize is the fixed size of the header opening every record.
const HeaderSize = 20

// MinRecordSize is the smallest well-formed record: a header and the
// checksum trailer.
const MinRecordSize = HeaderSize + checksumSize

type Header struct {
	Size          uint32    `json:"size"`
	Tag           string    `json:"tag"`
	Version       uint8     `json:"version"`
	SystemID      uint8     `json:"systemId"`
	EchoSounderID uint16    `json:"echoSounderId"`
	TimeSec       uint32    `json:"-"`
	TimeNanosec   uint32    `json:"-"`
	Time          time.Time `json:"time"`
}

func ParseHeader(buf []byte) (Header, error) {
	var hdr Header
	if len(buf) < HeaderSize {
		return hdr, io.ErrUnexpectedEOF
	}
	hdr.Size = binary.LittleEndian.Uint32(buf[0:4])
	hdr.Tag = string(buf[4:8])
	hdr.Version = buf[8]
	hdr.SystemID = buf[9]
	hdr.EchoSounderID = binary.LittleEndian.Uint16(buf[10:12])
	hdr.TimeSec = binary.LittleEndian.Uint32(buf[12:16])
	hdr.TimeNanosec = binary.LittleEndian.Uint32(buf[16:20])
	hdr.Time = Timestamp(hdr.TimeSec, hdr.TimeNanosec)
	return hdr, nil
}

// Timestamp converts a seconds/nanoseconds pair to a UTC instant.
func Timestamp(sec, nanosec uint32) time.Time {
	return time.Unix(int64(sec), int64(nanosec)).UTC()
}

func (c *cursor) header() Header {
	start := c.pos()
	if c.err != nil {
		return Header{}
	}
	if start+HeaderSize > len(c.data) {
		c.corrupt(start, "header needs %d bytes, record has %d", HeaderSize, len(c.data)-start)
		return Header{}
	}
	hdr, err := ParseHeader(c.data[start : start+HeaderSize])
	if err != nil {
		c.corrupt(start, "header: %v", err)
		return Header{}
	}
	c.seek(start+HeaderSize, "header")
	return hdr
}
