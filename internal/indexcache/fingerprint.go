package indexcache

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// probeSize is how much of each end of the file feeds the fingerprint.
const probeSize = 64 << 10

// Fingerprint identifies a file version by its size, modification time and
// the bytes at both ends. It does not read the whole file.
func Fingerprint(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	h := xxhash.New()
	var meta [16]byte
	binary.LittleEndian.PutUint64(meta[0:8], uint64(info.Size()))
	binary.LittleEndian.PutUint64(meta[8:16], uint64(info.ModTime().UnixNano()))
	h.Write(meta[:])

	head := int64(probeSize)
	if head > info.Size() {
		head = info.Size()
	}
	if _, err := io.Copy(h, io.NewSectionReader(f, 0, head)); err != nil {
		return 0, err
	}
	if tail := info.Size() - probeSize; tail > head {
		if _, err := io.Copy(h, io.NewSectionReader(f, tail, probeSize)); err != nil {
			return 0, err
		}
	}
	return h.Sum64(), nil
}
