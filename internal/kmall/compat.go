package kmall

import (
	kaitai "github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

// CHE is a compatibility heave record.
type CHE struct {
	Header Header  `json:"header"`
	Body   MBody   `json:"body"`
	Heave  float32 `json:"heave"`
}

func (r *CHE) Kind() Kind             { return KindCHE }
func (r *CHE) DatagramHeader() Header { return r.Header }

func decodeCHE(data []byte, offset int64) (*CHE, error) {
	c := newCursor(data, offset, KindCHE.Tag())
	r := &CHE{Header: c.header()}
	r.Body = c.mbody()
	if c.need(4, "heave") {
		r.Heave = c.f32()
	}
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}

var fileStatuses = map[int8]string{
	-1: "File not found",
	0:  "OK",
	1:  "File too large (cropped)",
}

const (
	fcfInfoSize      = 72
	fcfFileNameBytes = 64
)

type FCFInfo struct {
	Size     uint16 `json:"size"`
	Status   string `json:"status"`
	FileSize uint32 `json:"fileSize"`
	FileName string `json:"fileName"`
}

// FCF carries a backscatter calibration file.
type FCF struct {
	Header    Header     `json:"header"`
	Partition MPartition `json:"partition"`
	Info      FCFInfo    `json:"info"`
	Content   string     `json:"content"`
}

func (r *FCF) Kind() Kind             { return KindFCF }
func (r *FCF) DatagramHeader() Header { return r.Header }

func decodeFCF(data []byte, offset int64) (*FCF, error) {
	c := newCursor(data, offset, KindFCF.Tag())
	r := &FCF{Header: c.header()}
	r.Partition = c.mpartition()
	start := c.pos()
	if c.need(fcfInfoSize, "file info") {
		r.Info.Size = c.u16()
		r.Info.Status = lookup(c, fileStatuses, c.i8(), start+2, "file status")
		c.u8()
		r.Info.FileSize = c.u32()
		name := c.bytes(fcfFileNameBytes, "file name")
		r.Info.FileName = decodeText(kaitai.BytesTerminate(name, 0, false))
		c.endSelfSized(start, int(r.Info.Size), fcfInfoSize, "file info")
	}
	if c.err == nil {
		r.Content = decodeText(c.bytes(int(r.Info.FileSize), "calibration file"))
	}
	c.verifyChecksum(r.Header.Size)
	if c.err != nil {
		return nil, c.err
	}
	return r, nil
}
