package kmall

import (
	"errors"
	"fmt"

	"example.com/kmgate/internal/nmea"
)

var (
	ErrCorruptRecord             = errors.New("corrupt record")
	ErrUnsupportedEncoding       = errors.New("unsupported encoding")
	ErrMalformedInstallationText = errors.New("malformed installation text")
	ErrNotImplemented            = errors.New("record kind not implemented")
	ErrUnsupportedSplitPing      = errors.New("split pings are not supported")
	ErrInvalidArgument           = errors.New("invalid argument")

	ErrMalformedSentence = nmea.ErrMalformedSentence
)

// RecordError ties a decode failure to the record it happened in.
type RecordError struct {
	Tag    string
	Offset int64
	Err    error
	Detail string
}

func (e *RecordError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s at offset %d: %v", e.Tag, e.Offset, e.Err)
	}
	return fmt.Sprintf("%s at offset %d: %v: %s", e.Tag, e.Offset, e.Err, e.Detail)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

func recordErr(tag string, offset int64, err error, format string, args ...interface{}) error {
	return &RecordError{Tag: tag, Offset: offset, Err: err, Detail: fmt.Sprintf(format, args...)}
}

// Corrupt builds a CorruptRecord error for callers outside the codec, such
// as the file indexer.
func Corrupt(tag string, offset int64, format string, args ...interface{}) error {
	return recordErr(tag, offset, ErrCorruptRecord, format, args...)
}
