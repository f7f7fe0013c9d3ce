package author

import (
	"context"
	"fmt"
)

// Table holds the old-ID to MatchedAuthor mapping built from a full export,
// plus the exported users no local account matched, in export order.
type Table struct {
	mapped       map[int64]MatchedAuthor
	unmapped     []ExportedUser
	destinations map[int64]struct{}
}

// BuildTable matches every exported user in order. A repeated old ID keeps
// the last match.
func BuildTable(ctx context.Context, users []ExportedUser, lookup AccountLookup) (*Table, error) {
	table := &Table{
		mapped:       make(map[int64]MatchedAuthor, len(users)),
		destinations: make(map[int64]struct{}, len(users)),
	}

	for _, user := range users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		matched, err := Match(ctx, user, lookup)
		if err != nil {
			return nil, fmt.Errorf("match user %q: %w", user.Login, err)
		}

		if matched.Mapped {
			table.mapped[matched.OldID] = matched
			table.destinations[matched.NewID] = struct{}{}
		} else {
			table.unmapped = append(table.unmapped, user)
		}
	}

	return table, nil
}

// Lookup returns the mapping for a current author ID.
func (t *Table) Lookup(oldID int64) (MatchedAuthor, bool) {
	matched, ok := t.mapped[oldID]
	return matched, ok
}

// IsDestination reports whether id is the local account of some mapped
// user, meaning a record carrying it has already been migrated.
func (t *Table) IsDestination(id int64) bool {
	_, ok := t.destinations[id]
	return ok
}

// Unmapped returns the exported users without a local account.
func (t *Table) Unmapped() []ExportedUser {
	return t.unmapped
}

// MappedCount returns the number of distinct mapped old IDs.
func (t *Table) MappedCount() int {
	return len(t.mapped)
}

// UnmappedCount returns the number of unmapped export entries.
func (t *Table) UnmappedCount() int {
	return len(t.unmapped)
}

// Size returns the number of authors in the export as counted by the table.
func (t *Table) Size() int {
	return t.MappedCount() + t.UnmappedCount()
}
