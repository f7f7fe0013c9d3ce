package log

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authormigrate/internal/author"
	"authormigrate/internal/config"
	"authormigrate/internal/filter"
	"authormigrate/internal/migrate"
	"authormigrate/internal/store/memory"
)

func runFixture(t *testing.T, withDefault bool) (*migrate.Result, *author.Table, *author.MatchedAuthor) {
	t.Helper()

	store := memory.New()
	store.AddAccount(author.Account{ID: 1, Login: "admin", Email: "admin@x.com"})
	store.AddAccount(author.Account{ID: 7, Login: "alice", Email: "alice@x.com"})
	store.AddRecord(filter.Record{ID: 10, AuthorID: 2, Type: "post"})
	store.AddRecord(filter.Record{ID: 11, AuthorID: 1, Type: "post"})
	store.AddRecord(filter.Record{ID: 12, AuthorID: 55, Type: "page"})

	users := []author.ExportedUser{
		{ID: 2, Login: "alice", Email: "alice@x.com"},
		{ID: 1, Login: "admin", Email: "admin@x.com"},
		{ID: 30, Login: "dave", Email: "dave@x.com"},
	}
	table, err := author.BuildTable(context.Background(), users, store)
	require.NoError(t, err)

	var def *author.MatchedAuthor
	if withDefault {
		resolved, err := author.ResolveDefault(context.Background(), "admin", store)
		require.NoError(t, err)
		def = &resolved
	}

	records, err := store.Records(context.Background(), filter.ParseTypes("any"))
	require.NoError(t, err)

	result, err := migrate.NewEngine(table, store, migrate.Options{Default: def}, nil).Run(context.Background(), records)
	require.NoError(t, err)

	return result, table, def
}

func TestFormatReport(t *testing.T) {
	result, table, _ := runFixture(t, false)

	expected := "\nFinished updating post authors.\n\n" +
		"Default Author   : No default set\n\n" +
		"Authors Found    : 3\n" +
		"Authors in File  : 3\n" +
		"Authors Mapped   : 2\n" +
		"Authors Unmapped : 1\n\n" +
		"Total Processed  : 3\n\n" +
		"Posts Updated    : 1\n" +
		"Posts Skipped    : 1\n" +
		"Unable to Update : 1\n"

	assert.Equal(t, expected, FormatReport(result.Stats, table, nil))
}

func TestFormatReportWithDefault(t *testing.T) {
	result, table, def := runFixture(t, true)

	report := FormatReport(result.Stats, table, def)
	assert.Contains(t, report, "Default Author   : admin\n")
	assert.Contains(t, report, "Posts Updated    : 2\n")
	assert.Contains(t, report, "Unable to Update : 0\n")
}

func TestWriteReport(t *testing.T) {
	result, table, _ := runFixture(t, false)

	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, result.Stats, table, nil))
	assert.True(t, strings.HasPrefix(buf.String(), "\nFinished updating post authors."))
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name        string
		config      *config.Config
		expectError bool
	}{
		{
			name:   "logger without file",
			config: &config.Config{},
		},
		{
			name: "logger with file",
			config: &config.Config{
				LogFile: filepath.Join(t.TempDir(), "run.json"),
				DryRun:  true,
			},
		},
		{
			name: "logger with invalid file path",
			config: &config.Config{
				LogFile: "/invalid/path/that/does/not/exist/run.json",
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config, "run-1")
			if tt.expectError {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.config.DryRun, logger.Summary().DryRun)
			assert.Equal(t, "run-1", logger.Summary().RunID)
			assert.NotNil(t, logger.Entries())
			assert.NoError(t, logger.Close())
		})
	}
}

func TestLogResult(t *testing.T) {
	result, table, def := runFixture(t, true)

	logger := newLogger(&bytes.Buffer{}, config.LogFormatJSON, "run-1", false)
	logger.LogResult(result, table, def)

	summary := logger.Summary()
	assert.Equal(t, int64(3), summary.TotalRecords)
	assert.Equal(t, int64(2), summary.Updated)
	assert.Equal(t, int64(1), summary.Skipped)
	assert.Equal(t, int64(0), summary.Unable)
	assert.Equal(t, 2, summary.AuthorsMapped)
	assert.Equal(t, 1, summary.AuthorsUnmapped)
	assert.Equal(t, "admin", summary.DefaultAuthor)
	assert.Len(t, logger.Entries(), 3)
}

func TestWriteJSONLog(t *testing.T) {
	result, table, _ := runFixture(t, false)

	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogFormatJSON, "run-1", false)
	logger.LogResult(result, table, nil)
	require.NoError(t, logger.WriteLog())

	var report Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))

	assert.Equal(t, "run-1", report.Summary.RunID)
	assert.Equal(t, int64(1), report.Summary.Updated)
	require.Len(t, report.Entries, 3)
	assert.Equal(t, int64(10), report.Entries[0].RecordID)
	assert.Equal(t, migrate.OutcomeUpdated, report.Entries[0].Outcome)
	assert.Equal(t, int64(2), report.Entries[0].OldAuthor)
	assert.Equal(t, int64(7), report.Entries[0].NewAuthor)
}

func TestWriteCSVLog(t *testing.T) {
	result, table, _ := runFixture(t, false)

	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogFormatCSV, "run-1", true)
	logger.LogResult(result, table, nil)
	require.NoError(t, logger.WriteLog())

	output := buf.String()
	body, trailer, found := strings.Cut(output, "#")
	require.True(t, found, "CSV log must end with a comment trailer")

	rows, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, CSVHeader, rows[0])
	assert.Equal(t, []string{"10", "post", "2", "7", "updated", "false", ""}, rows[1])
	assert.Equal(t, []string{"12", "page", "55", "", "unmapped", "false", ""}, rows[3])

	assert.Contains(t, trailer, "authormigrate CSV log (production)")
	assert.Contains(t, output, "# Updated: 1\n")
	assert.Contains(t, output, "# Unable to update: 1\n")
}

func TestWriteCSVLogDryRun(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogFormatCSV, "", true)
	require.NoError(t, logger.WriteLog())

	assert.True(t, strings.HasPrefix(buf.String(), strings.Join(CSVHeader, ",")+"\n"))
	assert.Contains(t, buf.String(), "(dry-run)")
	assert.NotContains(t, buf.String(), "# Run:")
}
