// Package migrate rewrites the author of content records from a user
// mapping table. Each record is classified by a small middleware pipeline,
// updates are handed to the worker pool, and every outcome is counted.
package migrate

import (
	"context"
	"sort"
	"time"

	"authormigrate/internal/author"
	"authormigrate/internal/concurrent"
	"authormigrate/internal/filter"
	"authormigrate/internal/logging"
)

// Action is what the engine decided to do with a record.
type Action int

// Actions a classification can end in.
const (
	ActionNone Action = iota
	ActionUpdate
	ActionSkip
	ActionUnable
)

func (a Action) String() string {
	switch a {
	case ActionUpdate:
		return "update"
	case ActionSkip:
		return "skip"
	case ActionUnable:
		return "unable"
	default:
		return "none"
	}
}

// Outcome is the final state of a processed record, as written to the entry log.
type Outcome string

// Record outcomes.
const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeDryRun   Outcome = "dry-run"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeUnmapped Outcome = "unmapped"
	OutcomeUnable   Outcome = "unable"
	OutcomeFailed   Outcome = "failed"
)

// Entry records what happened to one content record.
type Entry struct {
	RecordID   int64   `json:"record_id"`
	RecordType string  `json:"record_type"`
	OldAuthor  int64   `json:"old_author"`
	NewAuthor  int64   `json:"new_author,omitempty"`
	Outcome    Outcome `json:"outcome"`
	Default    bool    `json:"default,omitempty"`
	Error      string  `json:"error,omitempty"`
}

// Result is the output of a run.
type Result struct {
	Stats    *Stats
	Entries  []Entry
	Duration time.Duration
	DryRun   bool
}

// Middleware is one classification step.
type Middleware func(ClassifyContext) ClassifyContext

// ClassifyContext carries a record through the classification pipeline.
type ClassifyContext struct {
	Record      filter.Record
	Table       *author.Table
	Default     *author.MatchedAuthor
	Author      *author.MatchedAuthor
	UsedDefault bool
	Action      Action
	Outcome     Outcome
}

// Options configures an Engine.
type Options struct {
	// Default is the fallback author for records whose current author has
	// no mapping. Nil leaves such records untouched.
	Default *author.MatchedAuthor
	DryRun  bool
	Workers int
	Rate    float64
}

// Engine runs a migration over a working set of records.
type Engine struct {
	table      *author.Table
	opts       Options
	processor  *concurrent.Processor
	logger     logging.Logger
	middleware []Middleware
}

// NewEngine creates an Engine with the standard classification pipeline.
func NewEngine(table *author.Table, updater concurrent.Updater, opts Options, logger logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Nop()
	}

	engine := &Engine{
		table: table,
		opts:  opts,
		processor: concurrent.NewProcessor(updater, concurrent.Options{
			Workers: opts.Workers,
			Rate:    opts.Rate,
			DryRun:  opts.DryRun,
		}),
		logger: logger,
	}

	engine.Use(resolveAuthorMiddleware)
	engine.Use(classifyMiddleware)

	return engine
}

// Use appends a classification step.
func (e *Engine) Use(middleware Middleware) {
	e.middleware = append(e.middleware, middleware)
}

// Classify decides what to do with a record without touching the store.
func (e *Engine) Classify(record filter.Record) ClassifyContext {
	ctx := ClassifyContext{
		Record:  record,
		Table:   e.table,
		Default: e.opts.Default,
	}

	for _, mw := range e.middleware {
		ctx = mw(ctx)
		if ctx.Action != ActionNone {
			break
		}
	}

	if ctx.Action == ActionNone {
		ctx.Action = ActionUnable
		ctx.Outcome = OutcomeUnable
	}

	return ctx
}

// Run classifies every record, applies the required updates and returns the
// counters plus one entry per record. A cancelled context stops the run and
// is returned alongside the partial result.
func (e *Engine) Run(ctx context.Context, records []filter.Record) (*Result, error) {
	start := time.Now()
	stats := NewStats()
	entries := make([]Entry, 0, len(records))

	var jobs []concurrent.UpdateJob
	defaults := make(map[int64]bool)

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return e.finish(stats, entries, start), err
		}

		stats.observeAuthor(record.AuthorID)
		decision := e.Classify(record)

		e.logger.Debug("classified record",
			"record", record.ID,
			"type", record.Type,
			"author", record.AuthorID,
			"action", decision.Action.String(),
		)

		if decision.Action == ActionUpdate {
			jobs = append(jobs, concurrent.UpdateJob{Record: record, NewAuthorID: decision.Author.NewID})
			defaults[record.ID] = decision.UsedDefault
			continue
		}

		entry := Entry{
			RecordID:   record.ID,
			RecordType: record.Type,
			OldAuthor:  record.AuthorID,
			Outcome:    decision.Outcome,
			Default:    decision.UsedDefault,
		}
		if decision.Author != nil {
			entry.NewAuthor = decision.Author.NewID
		}

		stats.record(entry.Outcome)
		entries = append(entries, entry)
	}

	for result := range e.processor.ApplyUpdates(ctx, jobs) {
		entry := Entry{
			RecordID:   result.Job.Record.ID,
			RecordType: result.Job.Record.Type,
			OldAuthor:  result.Job.Record.AuthorID,
			NewAuthor:  result.Job.NewAuthorID,
			Default:    defaults[result.Job.Record.ID],
		}

		switch {
		case result.Error != nil:
			entry.Outcome = OutcomeFailed
			entry.Error = result.Error.Error()
			e.logger.Warn("author update failed", "record", entry.RecordID, "author", entry.NewAuthor, "error", entry.Error)
		case result.Applied:
			entry.Outcome = OutcomeUpdated
			if result.CacheError != nil {
				e.logger.Warn("cache invalidation failed", "record", entry.RecordID, "error", result.CacheError.Error())
			}
		default:
			entry.Outcome = OutcomeDryRun
		}

		stats.record(entry.Outcome)
		entries = append(entries, entry)
	}

	res := e.finish(stats, entries, start)
	if err := ctx.Err(); err != nil {
		return res, err
	}

	e.logger.Info("migration finished",
		"total", stats.Total(),
		"updated", stats.Updated(),
		"skipped", stats.NotUpdated(),
		"unable", stats.CannotUpdate(),
		"duration", res.Duration.String(),
	)

	return res, nil
}

func (e *Engine) finish(stats *Stats, entries []Entry, start time.Time) *Result {
	sort.Slice(entries, func(i, j int) bool { return entries[i].RecordID < entries[j].RecordID })

	return &Result{
		Stats:    stats,
		Entries:  entries,
		Duration: time.Since(start),
		DryRun:   e.opts.DryRun,
	}
}

func resolveAuthorMiddleware(ctx ClassifyContext) ClassifyContext {
	if ctx.Table != nil {
		if matched, ok := ctx.Table.Lookup(ctx.Record.AuthorID); ok {
			ctx.Author = &matched
			return ctx
		}
	}

	if ctx.Default != nil {
		// Records already owned by a migrated account keep it; otherwise a
		// second run would hand them all to the default author.
		if ctx.Table != nil && ctx.Table.IsDestination(ctx.Record.AuthorID) {
			ctx.Action = ActionSkip
			ctx.Outcome = OutcomeSkipped
			return ctx
		}
		ctx.Author = ctx.Default
		ctx.UsedDefault = true
		return ctx
	}

	ctx.Action = ActionUnable
	ctx.Outcome = OutcomeUnmapped
	return ctx
}

func classifyMiddleware(ctx ClassifyContext) ClassifyContext {
	if ctx.Author == nil {
		return ctx
	}

	switch {
	case ctx.Author.NeedsUpdate && ctx.Record.AuthorID != ctx.Author.NewID:
		ctx.Action = ActionUpdate
	case !ctx.Author.NeedsUpdate:
		ctx.Action = ActionSkip
		ctx.Outcome = OutcomeSkipped
	default:
		// Only the default author can land here: it already owns the record.
		ctx.Action = ActionUnable
		ctx.Outcome = OutcomeUnable
	}

	return ctx
}
