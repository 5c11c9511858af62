package indexcache

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec compresses the cache payload.
type Codec interface {
	Name() string
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

const (
	codecNone uint8 = iota
	codecZstd
	codecS2
	codecLZ4
)

// DefaultCodec is used when Options.Codec is empty.
const DefaultCodec = "zstd"

var codecs = map[uint8]Codec{
	codecNone: noneCodec{},
	codecZstd: zstdCodec{},
	codecS2:   s2Codec{},
	codecLZ4:  lz4Codec{},
}

// CodecByName resolves "none", "zstd", "s2" or "lz4".
func CodecByName(name string) (uint8, Codec, error) {
	if name == "" {
		name = DefaultCodec
	}
	for id, c := range codecs {
		if c.Name() == name {
			return id, c, nil
		}
	}
	return 0, nil, fmt.Errorf("unknown cache codec %q", name)
}

type noneCodec struct{}

func (noneCodec) Name() string                           { return "none" }
func (noneCodec) Compress(data []byte) ([]byte, error)   { return data, nil }
func (noneCodec) Decompress(data []byte) ([]byte, error) { return data, nil }

var zstdDecoderPool = sync.Pool{
	New: func() any {
		d, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic(fmt.Sprintf("indexcache: zstd decoder: %v", err))
		}
		return d
	},
}

var zstdEncoderPool = sync.Pool{
	New: func() any {
		e, err := zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.SpeedDefault),
			zstd.WithEncoderCRC(false),
		)
		if err != nil {
			panic(fmt.Sprintf("indexcache: zstd encoder: %v", err))
		}
		return e
	},
}

type zstdCodec struct{}

func (zstdCodec) Name() string { return "zstd" }

func (zstdCodec) Compress(data []byte) ([]byte, error) {
	enc := zstdEncoderPool.Get().(*zstd.Encoder)
	defer zstdEncoderPool.Put(enc)
	return enc.EncodeAll(data, nil), nil
}

func (zstdCodec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := zstdDecoderPool.Get().(*zstd.Decoder)
	defer zstdDecoderPool.Put(dec)
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return out, nil
}

type s2Codec struct{}

func (s2Codec) Name() string { return "s2" }

func (s2Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return s2.Encode(nil, data), nil
}

func (s2Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	return s2.Decode(nil, data)
}

var lz4CompressorPool = sync.Pool{
	New: func() any { return &lz4.Compressor{} },
}

type lz4Codec struct{}

func (lz4Codec) Name() string { return "lz4" }

func (lz4Codec) Compress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dst := make([]byte, 1+lz4.CompressBlockBound(len(data)))
	c := lz4CompressorPool.Get().(*lz4.Compressor)
	defer lz4CompressorPool.Put(c)
	n, err := c.CompressBlock(data, dst[1:])
	if err != nil {
		return nil, err
	}
	if n == 0 {
		// incompressible: stored as is
		dst[0] = lz4Stored
		return append(dst[:1], data...), nil
	}
	dst[0] = lz4Block
	return dst[:1+n], nil
}

// lz4MaxSize caps the buffer grown while decompressing a block of unknown
// size.
const lz4MaxSize = 128 << 20

// First byte of an lz4 payload.
const (
	lz4Stored byte = iota
	lz4Block
)

// Decompress grows its buffer from four times the input until the block
// fits.
func (lz4Codec) Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, nil
	}
	switch data[0] {
	case lz4Stored:
		return append([]byte(nil), data[1:]...), nil
	case lz4Block:
		data = data[1:]
	default:
		return nil, fmt.Errorf("lz4: unknown block flag %d", data[0])
	}
	if len(data) == 0 {
		return nil, lz4.ErrInvalidSourceShortBuffer
	}
	for size := len(data) * 4; size <= lz4MaxSize; size *= 2 {
		buf := make([]byte, size)
		n, err := lz4.UncompressBlock(data, buf)
		if err == nil {
			return buf[:n], nil
		}
		if !errors.Is(err, lz4.ErrInvalidSourceShortBuffer) {
			return nil, err
		}
	}
	return nil, lz4.ErrInvalidSourceShortBuffer
}
