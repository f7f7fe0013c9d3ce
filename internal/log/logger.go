// Package log renders the operator report and writes the per-record entry
// log of a run. The entry log is the input of --revert and --apply.
package log

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"authormigrate/internal/author"
	"authormigrate/internal/config"
	"authormigrate/internal/migrate"
)

// CSVHeader is the first row of a CSV entry log.
var CSVHeader = []string{
	"record_id", "record_type", "old_author", "new_author", "outcome", "default", "error",
}

// Summary holds the aggregate counters of a run.
type Summary struct {
	RunID           string        `json:"run_id,omitempty"`
	DefaultAuthor   string        `json:"default_author,omitempty"`
	TotalRecords    int64         `json:"total_records"`
	Updated         int64         `json:"updated"`
	Skipped         int64         `json:"skipped"`
	Unable          int64         `json:"unable"`
	AuthorsFound    int           `json:"authors_found"`
	AuthorsMapped   int           `json:"authors_mapped"`
	AuthorsUnmapped int           `json:"authors_unmapped"`
	ProcessingTime  time.Duration `json:"processing_time"`
	DryRun          bool          `json:"dry_run"`
}

// Report is the JSON entry log document.
type Report struct {
	Summary Summary         `json:"summary"`
	Entries []migrate.Entry `json:"entries"`
}

// Logger collects the entries of a run and writes them in the configured format.
type Logger struct {
	format  config.LogFormat
	writer  io.Writer
	entries []migrate.Entry
	summary Summary
}

// NewLogger creates a Logger writing to cfg.LogFile. Without a log file the
// entries are collected and discarded.
func NewLogger(cfg *config.Config, runID string) (*Logger, error) {
	var writer io.Writer = io.Discard

	if cfg.LogFile != "" {
		file, err := os.Create(cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file %s: %w", cfg.LogFile, err)
		}
		writer = file
	}

	return newLogger(writer, cfg.LogFormat, runID, cfg.DryRun), nil
}

func newLogger(writer io.Writer, format config.LogFormat, runID string, dryRun bool) *Logger {
	if format == "" {
		format = config.LogFormatJSON
	}

	return &Logger{
		format:  format,
		writer:  writer,
		entries: []migrate.Entry{},
		summary: Summary{
			RunID:  runID,
			DryRun: dryRun,
		},
	}
}

// LogResult records the outcome of a run.
func (l *Logger) LogResult(result *migrate.Result, table *author.Table, def *author.MatchedAuthor) {
	l.entries = append(l.entries, result.Entries...)

	stats := result.Stats
	l.summary.TotalRecords = stats.Total()
	l.summary.Updated = stats.Updated()
	l.summary.Skipped = stats.NotUpdated()
	l.summary.Unable = stats.CannotUpdate()
	l.summary.AuthorsFound = stats.AuthorsFound()
	l.summary.ProcessingTime = result.Duration
	l.summary.DryRun = result.DryRun

	if table != nil {
		l.summary.AuthorsMapped = table.MappedCount()
		l.summary.AuthorsUnmapped = table.UnmappedCount()
	}
	if def != nil {
		l.summary.DefaultAuthor = def.Login
	}
}

// Summary returns the counters collected so far.
func (l *Logger) Summary() Summary {
	return l.summary
}

// Entries returns the entries collected so far.
func (l *Logger) Entries() []migrate.Entry {
	return l.entries
}

// WriteLog writes the entry log in the configured format.
func (l *Logger) WriteLog() error {
	switch l.format {
	case config.LogFormatCSV:
		return l.writeCSVLog()
	default:
		return l.writeJSONLog()
	}
}

func (l *Logger) writeJSONLog() error {
	encoder := json.NewEncoder(l.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(Report{Summary: l.summary, Entries: l.entries})
}

func (l *Logger) writeCSVLog() error {
	mode := "production"
	if l.summary.DryRun {
		mode = "dry-run"
	}

	writer := csv.NewWriter(l.writer)
	if err := writer.Write(CSVHeader); err != nil {
		return err
	}

	for _, entry := range l.entries {
		if err := writer.Write(entryRow(entry)); err != nil {
			return err
		}
	}

	// Rows must be flushed before the comment trailer.
	writer.Flush()
	if err := writer.Error(); err != nil {
		return err
	}

	fmt.Fprintf(l.writer, "# authormigrate CSV log (%s)\n", mode)
	if l.summary.RunID != "" {
		fmt.Fprintf(l.writer, "# Run: %s\n", l.summary.RunID)
	}
	fmt.Fprintf(l.writer, "# Total processed: %d\n", l.summary.TotalRecords)
	fmt.Fprintf(l.writer, "# Updated: %d\n", l.summary.Updated)
	fmt.Fprintf(l.writer, "# Skipped: %d\n", l.summary.Skipped)
	fmt.Fprintf(l.writer, "# Unable to update: %d\n", l.summary.Unable)
	fmt.Fprintf(l.writer, "# Processing time: %v\n", l.summary.ProcessingTime)
	fmt.Fprintf(l.writer, "#\n")

	return nil
}

func entryRow(entry migrate.Entry) []string {
	newAuthor := ""
	if entry.NewAuthor != 0 {
		newAuthor = strconv.FormatInt(entry.NewAuthor, 10)
	}

	return []string{
		strconv.FormatInt(entry.RecordID, 10),
		entry.RecordType,
		strconv.FormatInt(entry.OldAuthor, 10),
		newAuthor,
		string(entry.Outcome),
		strconv.FormatBool(entry.Default),
		entry.Error,
	}
}

// Close releases the log file. os.Stdout is never closed.
func (l *Logger) Close() error {
	if closer, ok := l.writer.(io.Closer); ok && l.writer != os.Stdout {
		return closer.Close()
	}
	return nil
}
