package kmfile

import (
	"errors"
	"io"
	"os"
)

const minBlockSize = 1 << 20

type dataSource interface {
	Size() int64
	Slice(offset int64, length int) ([]byte, error)
	Close() error
}

// blockSource serves byte ranges from a file through one reusable read
// buffer. Slices stay valid until the next call.
type blockSource struct {
	file      *os.File
	size      int64
	blockSize int
	buf       []byte
	bufStart  int64
	bufLen    int
}

func openSource(path string) (*blockSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return newBlockSource(f, info.Size(), minBlockSize), nil
}

func newBlockSource(f *os.File, size int64, blockSize int) *blockSource {
	if blockSize < minBlockSize {
		blockSize = minBlockSize
	}
	return &blockSource{file: f, size: size, blockSize: blockSize}
}

func (bs *blockSource) Size() int64 {
	return bs.size
}

func (bs *blockSource) Close() error {
	if bs.file == nil {
		return nil
	}
	err := bs.file.Close()
	bs.file = nil
	bs.buf = nil
	bs.bufLen = 0
	return err
}

func (bs *blockSource) grow(need int) {
	size := bs.blockSize
	for size < need {
		size *= 2
	}
	bs.blockSize = size
	bs.buf = make([]byte, size)
	bs.bufLen = 0
	bs.bufStart = 0
}

// fill makes [offset, offset+length) resident when the file holds it.
// Callers keep the range inside the file, so the buffer never outgrows it.
func (bs *blockSource) fill(offset int64, length int) error {
	if bs.file == nil {
		return os.ErrClosed
	}
	if length > bs.blockSize {
		bs.grow(length)
	}
	if bs.buf == nil {
		bs.buf = make([]byte, bs.blockSize)
	}
	if offset >= bs.bufStart && offset+int64(length) <= bs.bufStart+int64(bs.bufLen) {
		return nil
	}
	if offset >= bs.size {
		bs.bufLen = 0
		return io.EOF
	}
	toRead := bs.blockSize
	if remain := bs.size - offset; int64(toRead) > remain {
		toRead = int(remain)
	}
	n, err := bs.file.ReadAt(bs.buf[:toRead], offset)
	bs.bufStart = offset
	bs.bufLen = n
	if err != nil && !errors.Is(err, io.EOF) {
		bs.bufLen = 0
		return err
	}
	if n == 0 {
		return io.EOF
	}
	return nil
}

// Slice returns up to length bytes at offset. A short view comes with
// io.EOF.
func (bs *blockSource) Slice(offset int64, length int) ([]byte, error) {
	if length <= 0 {
		return []byte{}, nil
	}
	if offset < 0 {
		return nil, io.ErrUnexpectedEOF
	}
	if offset >= bs.size {
		return nil, io.EOF
	}
	want := length
	if remain := bs.size - offset; int64(length) > remain {
		length = int(remain)
	}
	if err := bs.fill(offset, length); err != nil {
		return nil, err
	}
	start := int(offset - bs.bufStart)
	end := start + length
	if end > bs.bufLen {
		end = bs.bufLen
	}
	view := bs.buf[start:end]
	if len(view) < want {
		return view, io.EOF
	}
	return view, nil
}

func sliceExact(src dataSource, offset int64, length int) ([]byte, error) {
	view, err := src.Slice(offset, length)
	if len(view) < length {
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		return nil, io.ErrUnexpectedEOF
	}
	return view[:length], nil
}
