package server

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
)

// NDJSONWriter streams one JSON document per line. It is not safe for
// concurrent use; a handler owns its writer.
type NDJSONWriter struct {
	buf   *bufio.Writer
	enc   *json.Encoder
	flush func()
	lines int
}

// NewNDJSONWriter wraps w. When w is an http.Flusher each line is pushed to
// the client as soon as it is complete.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	buf := bufio.NewWriter(w)
	nw := &NDJSONWriter{buf: buf, enc: json.NewEncoder(buf), flush: func() {}}
	if f, ok := w.(http.Flusher); ok {
		nw.flush = f.Flush
	}
	return nw
}

// WriteObject encodes v as a single line.
func (w *NDJSONWriter) WriteObject(v any) error {
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	if err := w.buf.Flush(); err != nil {
		return err
	}
	w.flush()
	w.lines++
	return nil
}

// Lines reports how many documents were written.
func (w *NDJSONWriter) Lines() int { return w.lines }
