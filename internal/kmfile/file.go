package kmfile

import (
	"fmt"

	"example.com/kmgate/internal/kmall"
)

// File gives random access to the records of an indexed file. Every query
// opens its own handle, so a File holds no open descriptor.
type File struct {
	path  string
	index *Index
}

// Open indexes path and returns a handle for queries.
func Open(path string, opts ...Option) (*File, error) {
	idx, err := Map(path, opts...)
	if err != nil {
		return nil, err
	}
	return &File{path: path, index: idx}, nil
}

// FromIndex wraps an index built earlier, such as one loaded from a cache.
func FromIndex(idx *Index) *File {
	return &File{path: idx.Path, index: idx}
}

func (f *File) Path() string {
	return f.path
}

func (f *File) Index() *Index {
	return f.index
}

// NewReader returns a sequential reader over the same file.
func (f *File) NewReader() *Reader {
	return NewReader(f.path)
}

// RecordsFromEntries decodes the given entries in input order.
func (f *File) RecordsFromEntries(entries ...MapEntry) ([]kmall.Record, error) {
	src, err := openSource(f.path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	out := make([]kmall.Record, 0, len(entries))
	for _, e := range entries {
		rec, err := readEntry(src, e)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// AllRecordsOfType decodes every record with the given tag. A known tag
// absent from the file yields no records.
func (f *File) AllRecordsOfType(tag string) ([]kmall.Record, error) {
	if kmall.KindOf(tag) == kmall.KindUnknown {
		return nil, fmt.Errorf("%w: unknown record tag %q", kmall.ErrInvalidArgument, tag)
	}
	return f.RecordsFromEntries(f.index.Entries[tag]...)
}

func readEntry(src dataSource, e MapEntry) (kmall.Record, error) {
	data, err := sliceExact(src, e.Offset, int(e.Size))
	if err != nil {
		return nil, kmall.Corrupt(e.Tag, e.Offset, "read %d bytes: %v", e.Size, err)
	}
	return kmall.Decode(data, e.Offset)
}

// each decodes the entries of tag in index order and hands each record,
// asserted to T, to fn.
func each[T kmall.Record](f *File, tag string, fn func(i int, rec T) error) error {
	src, err := openSource(f.path)
	if err != nil {
		return err
	}
	defer src.Close()
	for i, e := range f.index.Entries[tag] {
		rec, err := readEntry(src, e)
		if err != nil {
			return err
		}
		typed, ok := rec.(T)
		if !ok {
			return kmall.Corrupt(e.Tag, e.Offset, "decoded as %v", rec.Kind())
		}
		if err := fn(i, typed); err != nil {
			return err
		}
	}
	return nil
}
