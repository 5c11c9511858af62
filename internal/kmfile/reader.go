package kmfile

import (
	"errors"
	"io"

	"example.com/kmgate/internal/kmall"
)

// Reader decodes the records of a file one after another. It owns its file
// handle and keeps its position across calls.
type Reader struct {
	path   string
	source dataSource
	offset int64
	eof    bool
}

// NewReader returns a reader positioned at the start of path. The file is
// opened on the first call to Next.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Offset is the file position of the next record.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next decodes the record at the current position. At the end of the file
// it returns io.EOF, and keeps doing so until Reset. A record that frames
// correctly but fails to decode is skipped past; a framing defect leaves
// the position unchanged.
func (r *Reader) Next() (kmall.Record, error) {
	if r.eof {
		return nil, io.EOF
	}
	if r.source == nil {
		src, err := openSource(r.path)
		if err != nil {
			return nil, err
		}
		r.source = src
	}
	if r.offset >= r.source.Size() {
		r.eof = true
		return nil, io.EOF
	}
	buf, err := r.source.Slice(r.offset, kmall.HeaderSize)
	if len(buf) < kmall.HeaderSize {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, kmall.Corrupt("header", r.offset, "partial header of %d bytes at end of file", len(buf))
	}
	hdr, err := kmall.ParseHeader(buf)
	if err != nil {
		return nil, kmall.Corrupt("header", r.offset, "%v", err)
	}
	if hdr.Size < kmall.MinRecordSize {
		return nil, kmall.Corrupt(hdr.Tag, r.offset, "record size %d below %d", hdr.Size, kmall.MinRecordSize)
	}
	if r.offset+int64(hdr.Size) > r.source.Size() {
		return nil, kmall.Corrupt(hdr.Tag, r.offset, "record size %d runs past end of file", hdr.Size)
	}
	data, err := sliceExact(r.source, r.offset, int(hdr.Size))
	if err != nil {
		return nil, kmall.Corrupt(hdr.Tag, r.offset, "record size %d runs past end of file", hdr.Size)
	}
	at := r.offset
	r.offset += int64(hdr.Size)
	return kmall.Decode(data, at)
}

// Reset moves back to the start of the file.
func (r *Reader) Reset() {
	r.offset = 0
	r.eof = false
}

// Close releases the file handle. The position is kept and a later Next
// reopens the file.
func (r *Reader) Close() error {
	if r.source == nil {
		return nil
	}
	err := r.source.Close()
	r.source = nil
	return err
}
