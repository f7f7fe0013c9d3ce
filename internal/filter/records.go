// Package filter provides content record discovery and content-type filtering.
// It turns the operator's post type option into a filter, verifies the named
// types against the host, and collects the working set of records.
package filter

import (
	"context"
	"strings"

	"authormigrate/internal/errors"
)

// AnyType selects records of every content type.
const AnyType = "any"

// Record is a content record carrying an author reference.
type Record struct {
	ID       int64  `json:"id" bson:"_id"`
	AuthorID int64  `json:"author_id" bson:"post_author"`
	Type     string `json:"type" bson:"post_type"`
}

// TypeFilter selects records by content type name.
type TypeFilter struct {
	any   bool
	types []string
}

// ParseTypes parses a comma-separated type list. An empty list, or one that
// names "any" anywhere, selects every type.
func ParseTypes(raw string) TypeFilter {
	var types []string
	seen := make(map[string]bool)

	for _, name := range strings.Split(raw, ",") {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		if name == AnyType {
			return TypeFilter{any: true}
		}
		seen[name] = true
		types = append(types, name)
	}

	if len(types) == 0 {
		return TypeFilter{any: true}
	}
	return TypeFilter{types: types}
}

// Any reports whether the filter selects every type.
func (f TypeFilter) Any() bool {
	return f.any
}

// Types returns the selected type names; empty when Any is true.
func (f TypeFilter) Types() []string {
	return f.types
}

// Matches reports whether a record of the given type is selected.
func (f TypeFilter) Matches(recordType string) bool {
	if f.any {
		return true
	}
	for _, t := range f.types {
		if t == recordType {
			return true
		}
	}
	return false
}

func (f TypeFilter) String() string {
	if f.any {
		return AnyType
	}
	return strings.Join(f.types, ",")
}

// TypeChecker reports whether the host recognizes a content type name.
type TypeChecker interface {
	TypeExists(ctx context.Context, name string) (bool, error)
}

// Source returns every record matching a type filter.
type Source interface {
	Records(ctx context.Context, filter TypeFilter) ([]Record, error)
}

// Verify rejects type names the host does not know. The error names every
// unknown type, not just the first one.
func Verify(ctx context.Context, f TypeFilter, checker TypeChecker) error {
	if f.any {
		return nil
	}

	var invalid []string
	for _, name := range f.types {
		ok, err := checker.TypeExists(ctx, name)
		if err != nil {
			return err
		}
		if !ok {
			invalid = append(invalid, name)
		}
	}

	if len(invalid) > 0 {
		return errors.NewContentTypeError(invalid)
	}
	return nil
}

// RecordPredicate decides whether a discovered record joins the working set.
type RecordPredicate func(Record) bool

// RecordDiscovery collects the working set of records from a Source.
type RecordDiscovery struct {
	source     Source
	filter     TypeFilter
	predicates []RecordPredicate
}

// NewRecordDiscovery creates a RecordDiscovery for the given filter.
func NewRecordDiscovery(source Source, f TypeFilter) *RecordDiscovery {
	return &RecordDiscovery{
		source:     source,
		filter:     f,
		predicates: []RecordPredicate{typePredicate(f)},
	}
}

// Discover loads every record selected by the filter. Records a source
// returns outside the filter are dropped.
func (rd *RecordDiscovery) Discover(ctx context.Context) ([]Record, error) {
	records, err := rd.source.Records(ctx, rd.filter)
	if err != nil {
		return nil, err
	}

	selected := records[:0]
	for _, record := range records {
		if rd.shouldProcess(record) {
			selected = append(selected, record)
		}
	}

	return selected, nil
}

func (rd *RecordDiscovery) shouldProcess(record Record) bool {
	for _, predicate := range rd.predicates {
		if !predicate(record) {
			return false
		}
	}
	return true
}

func typePredicate(f TypeFilter) RecordPredicate {
	return func(record Record) bool {
		return f.Matches(record.Type)
	}
}
