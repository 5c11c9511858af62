package kmfile

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/btree"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/kmall"
)

// MapEntry locates one record in a file.
type MapEntry struct {
	Tag     string    `json:"tag" cbor:"1,keyasint"`
	Offset  int64     `json:"offset" cbor:"2,keyasint"`
	Time    time.Time `json:"time" cbor:"3,keyasint"`
	Size    uint32    `json:"size" cbor:"4,keyasint"`
	Version uint8     `json:"version" cbor:"5,keyasint"`
}

// Index is the record map of a file plus the ping statistics gathered from
// its primary records.
type Index struct {
	Path            string                `json:"path" cbor:"1,keyasint"`
	FileKind        string                `json:"fileKind" cbor:"2,keyasint"`
	PrimaryTag      string                `json:"primaryTag" cbor:"3,keyasint"`
	FileSize        int64                 `json:"fileSize" cbor:"4,keyasint"`
	Entries         map[string][]MapEntry `json:"entries" cbor:"5,keyasint"`
	NumberOfRecords int                   `json:"numberOfRecords" cbor:"6,keyasint"`
	NumberOfPings   int                   `json:"numberOfPings" cbor:"7,keyasint"`
	MaxBeams        int                   `json:"maxBeams" cbor:"8,keyasint"`
	MaxTxSectors    int                   `json:"maxTxSectors" cbor:"9,keyasint"`
	HasSplitPings   bool                  `json:"hasSplitPings" cbor:"10,keyasint"`
	// SplitStartIndex holds, for split files, the primary entry index where
	// each ping starts. SplitNumParts holds the declared part count.
	SplitStartIndex []int    `json:"splitStartIndex,omitempty" cbor:"11,keyasint,omitempty"`
	SplitNumParts   []int    `json:"splitNumParts,omitempty" cbor:"12,keyasint,omitempty"`
	Reordered       []string `json:"reordered,omitempty" cbor:"13,keyasint,omitempty"`
}

// Tags returns the tags present in the file, sorted.
func (idx *Index) Tags() []string {
	out := make([]string, 0, len(idx.Entries))
	for tag := range idx.Entries {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Primary returns the entries of the file's ping record kind.
func (idx *Index) Primary() []MapEntry {
	return idx.Entries[idx.PrimaryTag]
}

func entryLess(a, b MapEntry) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.Before(b.Time)
	}
	return a.Offset < b.Offset
}

// Timeline merges the entries of every kind into one time ordered list.
// Records sharing a timestamp keep file order.
func (idx *Index) Timeline() []MapEntry {
	tree := btree.NewG[MapEntry](32, entryLess)
	for _, entries := range idx.Entries {
		for _, e := range entries {
			tree.ReplaceOrInsert(e)
		}
	}
	out := make([]MapEntry, 0, tree.Len())
	tree.Ascend(func(e MapEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}

type options struct {
	metrics *common.Metrics
	quiet   bool
}

// Option tunes index building.
type Option func(*options)

// WithMetrics reports scan progress to m.
func WithMetrics(m *common.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// Quiet suppresses the summary log line.
func Quiet() Option {
	return func(o *options) { o.quiet = true }
}

// PrimaryTagFor returns the ping record tag of a file by its extension.
func PrimaryTagFor(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kmall":
		return kmall.KindMRZ.Tag(), nil
	case ".kmwcd":
		return kmall.KindMWC.Tag(), nil
	}
	return "", fmt.Errorf("%w: %s is neither .kmall nor .kmwcd", kmall.ErrInvalidArgument, path)
}

// Map scans path and builds its record index. Any framing defect aborts
// the scan.
func Map(path string, opts ...Option) (*Index, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	primary, err := PrimaryTagFor(path)
	if err != nil {
		return nil, err
	}
	src, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	started := time.Now()
	if o.metrics != nil {
		o.metrics.SetTotalBytes(src.Size())
		o.metrics.Start()
		defer o.metrics.Stop()
	}

	idx := &Index{
		Path:       path,
		FileKind:   strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		PrimaryTag: primary,
		FileSize:   src.Size(),
		Entries:    make(map[string][]MapEntry),
	}
	if err := scanHeaders(src, idx, o.metrics); err != nil {
		return nil, err
	}
	sortEntries(idx, o.metrics)
	if err := pingStats(src, idx); err != nil {
		return nil, err
	}

	if !o.quiet {
		common.Logf("indexed %s: %d records, %d pings, %d beams max, %d sectors max in %s",
			filepath.Base(path), idx.NumberOfRecords, idx.NumberOfPings, idx.MaxBeams, idx.MaxTxSectors,
			time.Since(started).Round(time.Millisecond))
		if idx.HasSplitPings {
			common.Logf("%s: %d %s records form %d split pings", filepath.Base(path),
				len(idx.Primary()), primary, idx.NumberOfPings)
		}
	}
	return idx, nil
}

func scanHeaders(src dataSource, idx *Index, m *common.Metrics) error {
	size := src.Size()
	var offset int64
	for offset < size {
		buf, err := src.Slice(offset, kmall.HeaderSize)
		if len(buf) < kmall.HeaderSize {
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			return kmall.Corrupt("header", offset, "partial header of %d bytes at end of file", len(buf))
		}
		hdr, err := kmall.ParseHeader(buf)
		if err != nil {
			return kmall.Corrupt("header", offset, "%v", err)
		}
		if hdr.Size < kmall.MinRecordSize {
			return kmall.Corrupt(hdr.Tag, offset, "record size %d below %d", hdr.Size, kmall.MinRecordSize)
		}
		if offset+int64(hdr.Size) > size {
			return kmall.Corrupt(hdr.Tag, offset, "record size %d runs past end of file at %d", hdr.Size, size)
		}
		trailer, err := sliceExact(src, offset+int64(hdr.Size)-4, 4)
		if err != nil {
			return err
		}
		if err := kmall.VerifyChecksum(trailer, 0, hdr.Size); err != nil {
			return kmall.Corrupt(hdr.Tag, offset, "%v", err)
		}
		idx.Entries[hdr.Tag] = append(idx.Entries[hdr.Tag], MapEntry{
			Tag:     hdr.Tag,
			Offset:  offset,
			Time:    hdr.Time,
			Size:    hdr.Size,
			Version: hdr.Version,
		})
		idx.NumberOfRecords++
		if m != nil {
			m.AddRecord(int64(hdr.Size))
		}
		offset += int64(hdr.Size)
	}
	return nil
}

// sortEntries restores time order for kinds written out of order.
func sortEntries(idx *Index, m *common.Metrics) {
	for _, tag := range idx.Tags() {
		entries := idx.Entries[tag]
		ordered := sort.SliceIsSorted(entries, func(i, j int) bool {
			return entries[i].Time.Before(entries[j].Time)
		})
		if ordered {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool {
			return entries[i].Time.Before(entries[j].Time)
		})
		idx.Reordered = append(idx.Reordered, tag)
		if m != nil {
			m.IncReorder()
		}
	}
}

func pingStats(src dataSource, idx *Index) error {
	kind := kmall.KindOf(idx.PrimaryTag)
	entries := idx.Primary()
	var starts, parts []int
	for i, e := range entries {
		data, err := sliceExact(src, e.Offset, int(e.Size))
		if err != nil {
			return err
		}
		st, err := kmall.ReadStats(kind, data, e.Offset)
		if err != nil {
			return err
		}
		if st.Start {
			starts = append(starts, i)
			parts = append(parts, st.NumOfDgms)
		}
		if st.NumBeams > idx.MaxBeams {
			idx.MaxBeams = st.NumBeams
		}
		if st.NumTxSectors > idx.MaxTxSectors {
			idx.MaxTxSectors = st.NumTxSectors
		}
	}
	idx.NumberOfPings = len(starts)
	if idx.NumberOfPings != len(entries) {
		idx.HasSplitPings = true
		idx.SplitStartIndex = starts
		idx.SplitNumParts = parts
	}
	return nil
}
