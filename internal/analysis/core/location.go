package core

import (
	"slices"
	"sort"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/syntax"
)

// LineResolver maps byte offsets of one method to source lines. It is owned
// by a single method unit and is not safe for concurrent use.
type LineResolver struct {
	table syntax.LineTable
	// sorted is built lazily on the first lookup.
	sorted syntax.LineTable
	cache  map[int]int
}

// NewLineResolver creates a resolver over an optional line table.
func NewLineResolver(table syntax.LineTable) *LineResolver {
	return &LineResolver{table: table}
}

// Resolve returns the source line of the instruction at offset, or
// schemas.UnknownLine when there is no table or no entry covers the offset.
func (r *LineResolver) Resolve(offset int) int {
	if len(r.table) == 0 || offset < 0 {
		return schemas.UnknownLine
	}
	if line, ok := r.cache[offset]; ok {
		return line
	}
	if r.sorted == nil {
		r.sorted = slices.Clone(r.table)
		sort.SliceStable(r.sorted, func(i, j int) bool { return r.sorted[i].Offset < r.sorted[j].Offset })
		r.cache = make(map[int]int)
	}
	// Index of the first entry starting after offset.
	i := sort.Search(len(r.sorted), func(i int) bool { return r.sorted[i].Offset > offset })
	line := schemas.UnknownLine
	if i > 0 {
		line = r.sorted[i-1].Line
	}
	r.cache[offset] = line
	return line
}

// Location builds a Location for offset, or nil for syntax.NoOffset.
func (r *LineResolver) Location(offset int) *schemas.Location {
	if offset == syntax.NoOffset {
		return nil
	}
	return &schemas.Location{Offset: offset, Line: r.Resolve(offset)}
}
