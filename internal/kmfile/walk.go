package kmfile

import (
	"context"
	"errors"
	"io"

	"example.com/kmgate/internal/kmall"
)

// ErrStopWalk ends a walk early without error when returned by the
// callback.
var ErrStopWalk = errors.New("stop walk")

// WalkOptions selects and orders the records handed out by Walk.
type WalkOptions struct {
	// Filter drops entries it does not match. Nil keeps everything.
	Filter *EntryFilter
	// Sorted merges all kinds by time instead of following file order.
	Sorted bool
	// Limit caps the number of records delivered. Zero means no cap.
	Limit int
	// OnSkip is told about records that frame correctly but do not decode.
	// They are skipped either way.
	OnSkip func(e MapEntry, err error)
}

// Walk decodes the records of the file and hands the selected ones to fn.
// In file order the sequential reader is used; sorted walks read through
// the index timeline.
func (f *File) Walk(ctx context.Context, opts WalkOptions, fn func(MapEntry, kmall.Record) error) error {
	var err error
	if opts.Sorted {
		err = f.walkTimeline(ctx, opts, fn)
	} else {
		err = f.walkSequential(ctx, opts, fn)
	}
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func (f *File) walkSequential(ctx context.Context, opts WalkOptions, fn func(MapEntry, kmall.Record) error) error {
	r := f.NewReader()
	defer r.Close()
	delivered := 0
	for opts.Limit <= 0 || delivered < opts.Limit {
		if err := ctx.Err(); err != nil {
			return err
		}
		pos := r.Offset()
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if r.Offset() == pos {
				return err
			}
			skipped(opts, f.entryAt(pos), err)
			continue
		}
		hdr := rec.DatagramHeader()
		e := MapEntry{Tag: hdr.Tag, Offset: pos, Time: hdr.Time, Size: hdr.Size, Version: hdr.Version}
		ok, err := matches(opts.Filter, e)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := fn(e, rec); err != nil {
			return err
		}
		delivered++
	}
	return nil
}

func (f *File) walkTimeline(ctx context.Context, opts WalkOptions, fn func(MapEntry, kmall.Record) error) error {
	entries := f.index.Timeline()
	if opts.Filter != nil {
		var err error
		if entries, err = opts.Filter.Apply(entries); err != nil {
			return err
		}
	}
	src, err := openSource(f.path)
	if err != nil {
		return err
	}
	defer src.Close()
	delivered := 0
	for _, e := range entries {
		if opts.Limit > 0 && delivered >= opts.Limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := sliceExact(src, e.Offset, int(e.Size))
		if err != nil {
			return kmall.Corrupt(e.Tag, e.Offset, "read %d bytes: %v", e.Size, err)
		}
		rec, err := kmall.Decode(data, e.Offset)
		if err != nil {
			skipped(opts, e, err)
			continue
		}
		if err := fn(e, rec); err != nil {
			return err
		}
		delivered++
	}
	return nil
}

// entryAt finds the index entry at offset, or a bare entry when the index
// does not know it.
func (f *File) entryAt(offset int64) MapEntry {
	for _, entries := range f.index.Entries {
		for _, e := range entries {
			if e.Offset == offset {
				return e
			}
		}
	}
	return MapEntry{Offset: offset}
}

func matches(filter *EntryFilter, e MapEntry) (bool, error) {
	if filter == nil {
		return true, nil
	}
	return filter.Match(e)
}

func skipped(opts WalkOptions, e MapEntry, err error) {
	if opts.OnSkip != nil {
		opts.OnSkip(e, err)
	}
}
