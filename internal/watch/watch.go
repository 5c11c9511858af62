// Package watch indexes the survey files that appear or change in a
// directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/indexcache"
	"example.com/kmgate/internal/kmfile"
	"example.com/kmgate/internal/report"
)

type Options struct {
	Dir      string
	Interval time.Duration
	// Settle is how long a file must stay unmodified before it is indexed,
	// so files still being recorded are left alone.
	Settle time.Duration
	Cache  indexcache.Options
	// Journal records every indexing attempt. Required.
	Journal *common.Journal
	// SummaryDir receives one JSON summary per indexed file. Empty
	// disables summaries.
	SummaryDir string
	Now        func() time.Time
}

type fileState struct {
	size int64
	mod  time.Time
}

type Watcher struct {
	opts Options
	seen map[string]fileState
}

func New(opts Options) (*Watcher, error) {
	if opts.Dir == "" {
		return nil, errors.New("watch directory is required")
	}
	if opts.Journal == nil {
		return nil, errors.New("journal is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	w := &Watcher{opts: opts, seen: make(map[string]fileState)}
	entries, err := common.ReadJournal(opts.Journal.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	for path, e := range common.LastByPath(entries) {
		w.seen[path] = fileState{size: e.Size, mod: e.ModTime}
	}
	return w, nil
}

// Run scans until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()
	for {
		if _, err := w.Scan(ctx); err != nil && !errors.Is(err, context.Canceled) {
			common.Logf("scan %s: %v", w.opts.Dir, err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Scan indexes every settled file that is new or changed since it was last
// seen and returns how many were processed.
func (w *Watcher) Scan(ctx context.Context) (int, error) {
	files, err := common.SurveyFiles(w.opts.Dir)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		st := fileState{size: info.Size(), mod: info.ModTime()}
		if prev, ok := w.seen[path]; ok && prev.size == st.size && prev.mod.Equal(st.mod) {
			continue
		}
		if w.opts.Now().Sub(st.mod) < w.opts.Settle {
			continue
		}
		if err := w.process(path, st); err != nil {
			return processed, err
		}
		w.seen[path] = st
		processed++
	}
	return processed, nil
}

// process indexes one file. Indexing failures are journaled, not returned;
// only a journal write failure stops the scan.
func (w *Watcher) process(path string, st fileState) error {
	started := time.Now()
	entry := common.JournalEntry{Path: path, Size: st.size, ModTime: st.mod}
	f, cached, err := kmfile.OpenCached(path, w.opts.Cache, kmfile.Quiet())
	if err == nil {
		idx := f.Index()
		entry.Records = idx.NumberOfRecords
		entry.Pings = idx.NumberOfPings
		entry.Cached = cached
		err = w.writeSummary(idx)
	}
	if err != nil {
		entry.Error = err.Error()
		common.Logf("index %s: %v", filepath.Base(path), err)
	} else {
		common.Logf("indexed %s: %d records, %d pings (cached=%v)", filepath.Base(path), entry.Records, entry.Pings, cached)
	}
	entry.Duration = time.Since(started).String()
	return w.opts.Journal.Append(entry)
}

func (w *Watcher) writeSummary(idx *kmfile.Index) error {
	if w.opts.SummaryDir == "" {
		return nil
	}
	if err := os.MkdirAll(w.opts.SummaryDir, 0o755); err != nil {
		return err
	}
	sum, err := report.Summarize(idx)
	if err != nil {
		return err
	}
	return report.SaveSummaryJSON(sum, SummaryPath(w.opts.SummaryDir, idx.Path))
}

// SummaryPath is where the JSON summary of path is written.
func SummaryPath(dir, path string) string {
	return filepath.Join(dir, filepath.Base(path)+".summary.json")
}
