package log

import (
	"fmt"
	"io"
	"strings"

	"authormigrate/internal/author"
	"authormigrate/internal/migrate"
)

// NoDefault is shown in the report when no default author was configured.
const NoDefault = "No default set"

// FormatReport renders the end-of-run summary printed to the operator.
func FormatReport(stats *migrate.Stats, table *author.Table, def *author.MatchedAuthor) string {
	defaultAuthor := NoDefault
	if def != nil {
		defaultAuthor = def.Login
	}

	var mapped, unmapped int
	if table != nil {
		mapped = table.MappedCount()
		unmapped = table.UnmappedCount()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nFinished updating post authors.\n\n")
	fmt.Fprintf(&b, "Default Author   : %s\n\n", defaultAuthor)
	fmt.Fprintf(&b, "Authors Found    : %d\n", stats.AuthorsFound())
	fmt.Fprintf(&b, "Authors in File  : %d\n", mapped+unmapped)
	fmt.Fprintf(&b, "Authors Mapped   : %d\n", mapped)
	fmt.Fprintf(&b, "Authors Unmapped : %d\n\n", unmapped)
	fmt.Fprintf(&b, "Total Processed  : %d\n\n", stats.Total())
	fmt.Fprintf(&b, "Posts Updated    : %d\n", stats.Updated())
	fmt.Fprintf(&b, "Posts Skipped    : %d\n", stats.NotUpdated())
	fmt.Fprintf(&b, "Unable to Update : %d\n", stats.CannotUpdate())

	return b.String()
}

// WriteReport writes FormatReport's output to w.
func WriteReport(w io.Writer, stats *migrate.Stats, table *author.Table, def *author.MatchedAuthor) error {
	_, err := io.WriteString(w, FormatReport(stats, table, def))
	return err
}
