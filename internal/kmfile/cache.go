package kmfile

import (
	"errors"

	"example.com/kmgate/internal/common"
	"example.com/kmgate/internal/indexcache"
)

// OpenCached opens path using its sidecar index when one matches the file,
// and indexes and saves a new sidecar otherwise. The bool reports a cache
// hit. A sidecar that cannot be written is logged and does not fail the
// open.
func OpenCached(path string, cache indexcache.Options, opts ...Option) (*File, bool, error) {
	if _, err := PrimaryTagFor(path); err != nil {
		return nil, false, err
	}
	var idx Index
	err := indexcache.Load(path, &idx, cache)
	if err == nil {
		idx.Path = path
		return FromIndex(&idx), true, nil
	}
	switch {
	case errors.Is(err, indexcache.ErrMiss):
	case errors.Is(err, indexcache.ErrStale), errors.Is(err, indexcache.ErrCorrupt):
		common.Logf("rebuilding index of %s: %v", path, err)
	default:
		return nil, false, err
	}
	f, err := Open(path, opts...)
	if err != nil {
		return nil, false, err
	}
	if err := indexcache.Save(path, f.Index(), cache); err != nil {
		common.Logf("index cache for %s not written: %v", path, err)
	}
	return f, false, nil
}
