// Package report summarizes indexed survey files as JSON or PDF.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jinzhu/copier"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/kmfile"
)

// KindSummary describes the records of one tag.
type KindSummary struct {
	Tag   string    `json:"tag"`
	Count int       `json:"count"`
	Bytes int64     `json:"bytes"`
	First time.Time `json:"first"`
	Last  time.Time `json:"last"`
}

// Summary is the report of one survey file.
type Summary struct {
	Path            string        `json:"path"`
	FileKind        string        `json:"fileKind"`
	PrimaryTag      string        `json:"primaryTag"`
	FileSize        int64         `json:"fileSize"`
	SHA256          string        `json:"sha256,omitempty"`
	NumberOfRecords int           `json:"numberOfRecords"`
	NumberOfPings   int           `json:"numberOfPings"`
	MaxBeams        int           `json:"maxBeams"`
	MaxTxSectors    int           `json:"maxTxSectors"`
	HasSplitPings   bool          `json:"hasSplitPings"`
	Reordered       []string      `json:"reordered,omitempty"`
	Start           time.Time     `json:"start"`
	End             time.Time     `json:"end"`
	Kinds           []KindSummary `json:"kinds"`
	GeneratedAt     time.Time     `json:"generatedAt"`
}

// Duration is the time covered by the file's records.
func (s Summary) Duration() time.Duration {
	if s.Start.IsZero() || s.End.IsZero() {
		return 0
	}
	return s.End.Sub(s.Start)
}

// Summarize builds the summary of idx. The file digest is computed when
// the indexed file is still readable.
func Summarize(idx *kmfile.Index) (Summary, error) {
	var s Summary
	if idx == nil {
		return s, fmt.Errorf("summarize: nil index")
	}
	if err := copier.Copy(&s, idx); err != nil {
		return s, fmt.Errorf("summarize %s: %w", idx.Path, err)
	}
	s.GeneratedAt = time.Now().UTC()
	for _, tag := range idx.Tags() {
		entries := idx.Entries[tag]
		if len(entries) == 0 {
			continue
		}
		k := KindSummary{Tag: tag, Count: len(entries), First: entries[0].Time, Last: entries[0].Time}
		for _, e := range entries {
			k.Bytes += int64(e.Size)
			if e.Time.Before(k.First) {
				k.First = e.Time
			}
			if e.Time.After(k.Last) {
				k.Last = e.Time
			}
		}
		if s.Start.IsZero() || k.First.Before(s.Start) {
			s.Start = k.First
		}
		if k.Last.After(s.End) {
			s.End = k.Last
		}
		s.Kinds = append(s.Kinds, k)
	}
	if idx.Path != "" {
		if d, err := common.DigestFile(idx.Path); err == nil {
			s.SHA256 = d.SHA256
		}
	}
	return s, nil
}

func SaveSummaryJSON(s Summary, out string) error {
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(out, b, 0644)
}

func LoadSummaryJSON(path string) (Summary, error) {
	var s Summary
	b, err := os.ReadFile(path)
	if err != nil {
		return s, err
	}
	err = json.Unmarshal(b, &s)
	return s, err
}

// WriteText prints s as a plain text table.
func WriteText(w io.Writer, s Summary) error {
	fmt.Fprintf(w, "%s (%s, %s)\n", s.Path, s.FileKind, common.FormatBytes(s.FileSize))
	fmt.Fprintf(w, "records %d  pings %d  max beams %d  max tx sectors %d  split %s\n",
		s.NumberOfRecords, s.NumberOfPings, s.MaxBeams, s.MaxTxSectors, yesNo(s.HasSplitPings))
	if len(s.Reordered) > 0 {
		fmt.Fprintf(w, "re-sorted: %s\n", strings.Join(s.Reordered, ", "))
	}
	for _, k := range s.Kinds {
		if _, err := fmt.Fprintln(w, kindLine(k)); err != nil {
			return err
		}
	}
	return nil
}

func kindLine(k KindSummary) string {
	return fmt.Sprintf("%-5s %8d %12s  %s .. %s", k.Tag, k.Count, common.FormatBytes(k.Bytes), timeLabel(k.First), timeLabel(k.Last))
}
