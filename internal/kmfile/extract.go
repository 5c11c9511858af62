package kmfile

import (
	"fmt"
	"sort"

	"example.com/kmgate/internal/kmall"
)

type extractor func(f *File, source string) (any, error)

var extractors = map[string]extractor{
	"position":     func(f *File, src string) (any, error) { return f.Position(src) },
	"attitude":     func(f *File, _ string) (any, error) { return f.Attitude() },
	"settings":     func(f *File, _ string) (any, error) { return f.SonarSettings() },
	"source-level": func(f *File, _ string) (any, error) { return f.SourceLevel() },
	"calibration":  func(f *File, _ string) (any, error) { return f.CalibrationGains() },
	"tvg":          func(f *File, _ string) (any, error) { return f.TVGPerSounding() },
	"tvg-gain":     func(f *File, _ string) (any, error) { return f.TVGGainSettings() },
	"raw-range":    func(f *File, _ string) (any, error) { return f.RawRange() },
	"xyz":          func(f *File, _ string) (any, error) { return f.XYZ() },
	"backscatter":  func(f *File, src string) (any, error) { return f.Backscatter(src) },
	"snippets":     func(f *File, _ string) (any, error) { return f.Snippets() },
	"svp":          func(f *File, _ string) (any, error) { return f.SVP() },
	"installation": func(f *File, _ string) (any, error) { return f.Installation() },
}

// Extractions lists the names accepted by Extract.
func Extractions() []string {
	out := make([]string, 0, len(extractors))
	for name := range extractors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Extract runs the aggregation called what. source selects the position
// record kind or the backscatter field and is ignored otherwise.
func (f *File) Extract(what, source string) (any, error) {
	fn, ok := extractors[what]
	if !ok {
		return nil, fmt.Errorf("%w: unknown extraction %q", kmall.ErrInvalidArgument, what)
	}
	return fn(f, source)
}
