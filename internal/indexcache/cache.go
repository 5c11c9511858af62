// Package indexcache stores file indexes in compressed sidecar files so
// that reopening a large file skips the scan.
package indexcache

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
	kaitai "github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
)

var (
	ErrMiss    = errors.New("no cached index")
	ErrStale   = errors.New("cached index is stale")
	ErrCorrupt = errors.New("cached index is corrupt")
)

const (
	magic      = "KMIX"
	formatV1   = 1
	headerSize = 28
	sidecarExt = ".idx"
	maxPayload = 1 << 30
)

type Options struct {
	// Codec is "zstd", "s2", "lz4" or "none". Empty means zstd.
	Codec string `yaml:"codec"`
	// Dir holds the sidecars. Empty places each one next to its file.
	Dir string `yaml:"dir"`
}

// SidecarPath returns where the cache for path lives.
func SidecarPath(path string, opts Options) string {
	if opts.Dir == "" {
		return path + sidecarExt
	}
	return filepath.Join(opts.Dir, filepath.Base(path)+sidecarExt)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort: cbor.SortCoreDeterministic,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{MaxArrayElements: 1 << 27, MaxMapPairs: 1 << 20}.DecMode()
	if err != nil {
		panic(err)
	}
}

// header precedes the payload in every sidecar.
type header struct {
	Version     uint8
	Codec       uint8
	Fingerprint uint64
	Digest      uint64
	Length      uint32
}

func (h header) marshal() ([]byte, error) {
	var buf bytes.Buffer
	w := kaitai.NewWriter(&buf)
	for _, err := range []error{
		w.WriteBytes([]byte(magic)),
		w.WriteU1(h.Version),
		w.WriteU1(h.Codec),
		w.WriteU2le(0),
		w.WriteU8le(h.Fingerprint),
		w.WriteU8le(h.Digest),
		w.WriteU4le(h.Length),
	} {
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func parseHeader(data []byte) (header, error) {
	var h header
	if len(data) < headerSize {
		return h, fmt.Errorf("%w: %d bytes, header needs %d", ErrCorrupt, len(data), headerSize)
	}
	s := kaitai.NewStream(bytes.NewReader(data[:headerSize]))
	m, err := s.ReadBytes(len(magic))
	if err != nil || string(m) != magic {
		return h, fmt.Errorf("%w: bad magic", ErrCorrupt)
	}
	if h.Version, err = s.ReadU1(); err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if h.Codec, err = s.ReadU1(); err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if _, err = s.ReadU2le(); err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if h.Fingerprint, err = s.ReadU8le(); err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if h.Digest, err = s.ReadU8le(); err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if h.Length, err = s.ReadU4le(); err != nil {
		return h, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if h.Version != formatV1 {
		return h, fmt.Errorf("%w: format version %d", ErrCorrupt, h.Version)
	}
	return h, nil
}

// Save encodes v and writes it as the sidecar of the file at path. The
// sidecar is replaced atomically.
func Save(path string, v any, opts Options) error {
	id, codec, err := CodecByName(opts.Codec)
	if err != nil {
		return err
	}
	fp, err := Fingerprint(path)
	if err != nil {
		return err
	}
	raw, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	payload, err := codec.Compress(raw)
	if err != nil {
		return fmt.Errorf("%s compress: %w", codec.Name(), err)
	}
	hdr, err := header{
		Version:     formatV1,
		Codec:       id,
		Fingerprint: fp,
		Digest:      xxhash.Sum64(payload),
		Length:      uint32(len(payload)),
	}.marshal()
	if err != nil {
		return err
	}

	target := SidecarPath(path, opts)
	if opts.Dir != "" {
		if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
			return err
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(append(hdr, payload...)); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}

// Load decodes the sidecar of path into v. It fails with ErrMiss when no
// sidecar exists, ErrStale when the file changed since Save, and
// ErrCorrupt when the sidecar cannot be trusted.
func Load(path string, v any, opts Options) error {
	data, err := os.ReadFile(SidecarPath(path, opts))
	if errors.Is(err, os.ErrNotExist) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	hdr, err := parseHeader(data)
	if err != nil {
		return err
	}
	fp, err := Fingerprint(path)
	if err != nil {
		return err
	}
	if fp != hdr.Fingerprint {
		return ErrStale
	}
	payload := data[headerSize:]
	if hdr.Length > maxPayload || int(hdr.Length) != len(payload) {
		return fmt.Errorf("%w: payload is %d bytes, header says %d", ErrCorrupt, len(payload), hdr.Length)
	}
	if xxhash.Sum64(payload) != hdr.Digest {
		return fmt.Errorf("%w: payload digest mismatch", ErrCorrupt)
	}
	codec, ok := codecs[hdr.Codec]
	if !ok {
		return fmt.Errorf("%w: codec id %d", ErrCorrupt, hdr.Codec)
	}
	raw, err := codec.Decompress(payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := decMode.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return nil
}
