// Package revert undoes or replays a migration from its entry log.
// RevertManager puts the old author back on every record the run changed;
// ApplyManager writes the new author of every updated or dry-run entry.
package revert

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"authormigrate/internal/concurrent"
	"authormigrate/internal/config"
	"authormigrate/internal/errors"
	"authormigrate/internal/filter"
	"authormigrate/internal/logging"
	"authormigrate/internal/migrate"
)

// Summary counts the writes of a revert or apply.
type Summary struct {
	Applied int
	Skipped int
	Failed  int
}

// RevertManager restores old authors from an entry log.
type RevertManager struct {
	processor *concurrent.Processor
	logger    logging.Logger
}

// NewRevertManager creates a RevertManager writing through updater.
func NewRevertManager(updater concurrent.Updater, opts concurrent.Options, logger logging.Logger) *RevertManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RevertManager{
		processor: concurrent.NewProcessor(updater, opts),
		logger:    logger,
	}
}

// RevertFromLog reverts every updated entry of the log at logFilePath. The
// format is guessed from the file extension.
func (rm *RevertManager) RevertFromLog(ctx context.Context, logFilePath string) (Summary, error) {
	return rm.RevertFromLogWithFormat(ctx, logFilePath, FormatFromPath(logFilePath))
}

// RevertFromLogWithFormat reverts every updated entry of the log.
func (rm *RevertManager) RevertFromLogWithFormat(ctx context.Context, logFilePath string, logFormat config.LogFormat) (Summary, error) {
	entries, err := ParseLogFile(logFilePath, logFormat)
	if err != nil {
		return Summary{}, err
	}

	var jobs []concurrent.UpdateJob
	var summary Summary
	for _, entry := range entries {
		if entry.Outcome != migrate.OutcomeUpdated {
			summary.Skipped++
			continue
		}
		jobs = append(jobs, concurrent.UpdateJob{
			Record:      filter.Record{ID: entry.RecordID, AuthorID: entry.NewAuthor, Type: entry.RecordType},
			NewAuthorID: entry.OldAuthor,
		})
	}

	return run(ctx, rm.processor, rm.logger, logFilePath, "revert", jobs, summary)
}

// ApplyManager replays new authors from an entry log.
type ApplyManager struct {
	processor *concurrent.Processor
	logger    logging.Logger
}

// NewApplyManager creates an ApplyManager writing through updater.
func NewApplyManager(updater concurrent.Updater, opts concurrent.Options, logger logging.Logger) *ApplyManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ApplyManager{
		processor: concurrent.NewProcessor(updater, opts),
		logger:    logger,
	}
}

// ApplyFromLog applies the log at logFilePath, guessing its format from the
// file extension.
func (am *ApplyManager) ApplyFromLog(ctx context.Context, logFilePath string) (Summary, error) {
	return am.ApplyFromLogWithFormat(ctx, logFilePath, FormatFromPath(logFilePath))
}

// ApplyFromLogWithFormat writes the new author of every updated or dry-run
// entry. A dry-run log applied this way performs the run it previewed.
func (am *ApplyManager) ApplyFromLogWithFormat(ctx context.Context, logFilePath string, logFormat config.LogFormat) (Summary, error) {
	entries, err := ParseLogFile(logFilePath, logFormat)
	if err != nil {
		return Summary{}, err
	}

	var jobs []concurrent.UpdateJob
	var summary Summary
	for _, entry := range entries {
		if entry.Outcome != migrate.OutcomeUpdated && entry.Outcome != migrate.OutcomeDryRun {
			summary.Skipped++
			continue
		}
		if entry.NewAuthor == 0 {
			summary.Skipped++
			continue
		}
		jobs = append(jobs, concurrent.UpdateJob{
			Record:      filter.Record{ID: entry.RecordID, AuthorID: entry.OldAuthor, Type: entry.RecordType},
			NewAuthorID: entry.NewAuthor,
		})
	}

	return run(ctx, am.processor, am.logger, logFilePath, "apply", jobs, summary)
}

func run(ctx context.Context, processor *concurrent.Processor, logger logging.Logger, logFilePath, operation string, jobs []concurrent.UpdateJob, summary Summary) (Summary, error) {
	var firstErr error

	for result := range processor.ApplyUpdates(ctx, jobs) {
		if result.Error != nil {
			summary.Failed++
			if firstErr == nil {
				firstErr = result.Error
			}
			logger.Warn(operation+" failed", "record", result.Job.Record.ID, "error", result.Error.Error())
			continue
		}
		summary.Applied++
		logger.Debug(operation+" applied", "record", result.Job.Record.ID, "author", result.Job.NewAuthorID)
	}

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	logger.Info(operation+" finished", "applied", summary.Applied, "skipped", summary.Skipped, "failed", summary.Failed)

	if summary.Failed > 0 {
		return summary, errors.NewStoreError(logFilePath,
			fmt.Sprintf("%s completed with %d successes and %d errors", operation, summary.Applied, summary.Failed),
			firstErr)
	}

	return summary, nil
}

// FormatFromPath picks CSV for .csv files and JSON otherwise.
func FormatFromPath(path string) config.LogFormat {
	if strings.HasSuffix(strings.ToLower(path), ".csv") {
		return config.LogFormatCSV
	}
	return config.LogFormatJSON
}

// ParseLogFile reads the entries of an entry log.
func ParseLogFile(logFilePath string, logFormat config.LogFormat) ([]migrate.Entry, error) {
	file, err := os.Open(logFilePath)
	if err != nil {
		return nil, errors.WrapFileError(logFilePath, err)
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return nil, errors.WrapFileError(logFilePath, err)
	}

	switch logFormat {
	case config.LogFormatJSON:
		jsonStart := bytes.IndexByte(content, '{')
		if jsonStart == -1 {
			return nil, errors.NewParsingError(logFilePath, "no JSON content found in log file", nil)
		}
		return parseJSONLog(logFilePath, content[jsonStart:])
	case config.LogFormatCSV:
		return parseCSVLog(logFilePath, string(content))
	default:
		return nil, errors.NewParsingError(logFilePath, fmt.Sprintf("unsupported log format: %s", logFormat), nil)
	}
}

func parseJSONLog(path string, content []byte) ([]migrate.Entry, error) {
	var report struct {
		Entries []migrate.Entry `json:"entries"`
	}

	if err := json.Unmarshal(content, &report); err != nil {
		return nil, errors.NewParsingError(path, "invalid JSON log", err)
	}

	return report.Entries, nil
}

func parseCSVLog(path, content string) ([]migrate.Entry, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.Comment = '#'
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewParsingError(path, "invalid CSV log", err)
	}

	var entries []migrate.Entry
	for i, record := range records {
		if i == 0 && len(record) > 0 && record[0] == "record_id" {
			continue
		}
		if len(record) < 5 {
			return nil, errors.NewParsingError(path, fmt.Sprintf("line %d: expected at least 5 columns, got %d", i+1, len(record)), nil)
		}

		entry, err := parseCSVRow(record)
		if err != nil {
			return nil, errors.NewParsingError(path, fmt.Sprintf("line %d", i+1), err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

func parseCSVRow(record []string) (migrate.Entry, error) {
	recordID, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return migrate.Entry{}, fmt.Errorf("record_id: %w", err)
	}

	oldAuthor, err := strconv.ParseInt(record[2], 10, 64)
	if err != nil {
		return migrate.Entry{}, fmt.Errorf("old_author: %w", err)
	}

	var newAuthor int64
	if record[3] != "" {
		newAuthor, err = strconv.ParseInt(record[3], 10, 64)
		if err != nil {
			return migrate.Entry{}, fmt.Errorf("new_author: %w", err)
		}
	}

	entry := migrate.Entry{
		RecordID:   recordID,
		RecordType: record[1],
		OldAuthor:  oldAuthor,
		NewAuthor:  newAuthor,
		Outcome:    migrate.Outcome(record[4]),
	}

	if len(record) > 5 {
		entry.Default, _ = strconv.ParseBool(record[5])
	}
	if len(record) > 6 {
		entry.Error = record[6]
	}

	return entry, nil
}
