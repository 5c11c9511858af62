package kmfile

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"example.com/kmgate/internal/kmall"
)

// EntryFilter selects map entries with a CEL expression. The expression
// sees tag, kind, offset, size, version and time, and must yield a bool:
//
//	tag == "#MRZ" && time > timestamp("2023-11-14T22:13:20Z")
type EntryFilter struct {
	expr    string
	program cel.Program
}

// NewEntryFilter compiles expr.
func NewEntryFilter(expr string) (*EntryFilter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: empty filter expression", kmall.ErrInvalidArgument)
	}
	env, err := cel.NewEnv(
		cel.Variable("tag", cel.StringType),
		cel.Variable("kind", cel.StringType),
		cel.Variable("offset", cel.IntType),
		cel.Variable("size", cel.IntType),
		cel.Variable("version", cel.IntType),
		cel.Variable("time", cel.TimestampType),
	)
	if err != nil {
		return nil, fmt.Errorf("filter environment: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("%w: filter %q: %v", kmall.ErrInvalidArgument, expr, issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("%w: filter %q yields %v, want bool", kmall.ErrInvalidArgument, expr, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: filter %q: %v", kmall.ErrInvalidArgument, expr, err)
	}
	return &EntryFilter{expr: expr, program: prg}, nil
}

func (f *EntryFilter) String() string {
	return f.expr
}

// Match evaluates the filter for one entry.
func (f *EntryFilter) Match(e MapEntry) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"tag":     e.Tag,
		"kind":    kmall.KindOf(e.Tag).Description(),
		"offset":  e.Offset,
		"size":    int64(e.Size),
		"version": int64(e.Version),
		"time":    e.Time,
	})
	if err != nil {
		return false, fmt.Errorf("filter %q at offset %d: %w", f.expr, e.Offset, err)
	}
	ok, isBool := out.Value().(bool)
	if !isBool {
		return false, fmt.Errorf("filter %q at offset %d yields %T", f.expr, e.Offset, out.Value())
	}
	return ok, nil
}

// Apply returns the matching entries in input order.
func (f *EntryFilter) Apply(entries []MapEntry) ([]MapEntry, error) {
	var out []MapEntry
	for _, e := range entries {
		ok, err := f.Match(e)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}
