// Package sqlstore reads accounts and content records from a WordPress-style
// SQL schema and writes post authors back. It speaks to PostgreSQL through
// lib/pq or pgx and to SQLite through go-sqlite3.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"authormigrate/internal/author"
	"authormigrate/internal/errors"
	"authormigrate/internal/filter"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections.
	DefaultMaxOpenConns = 10
	// DefaultMaxIdleConns is the default maximum number of idle connections.
	DefaultMaxIdleConns = 5
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused.
	DefaultConnMaxLifetime = 30 * time.Second
)

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_]*$`)

// Options configures a Store.
type Options struct {
	Driver      string
	DSN         string
	TablePrefix string
	// ValidPostTypes overrides the known content types. When empty the
	// types present in the posts table are used.
	ValidPostTypes  []string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store implements the account lookup, record source and author updater on
// top of database/sql.
type Store struct {
	db         *sql.DB
	dollar     bool
	users      string
	posts      string
	validTypes map[string]bool
}

// Open connects to the database described by opts and checks it with a ping.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.MaxOpenConns == 0 {
		opts.MaxOpenConns = DefaultMaxOpenConns
	}
	if opts.MaxIdleConns == 0 {
		opts.MaxIdleConns = DefaultMaxIdleConns
	}
	if opts.ConnMaxLifetime == 0 {
		opts.ConnMaxLifetime = DefaultConnMaxLifetime
	}

	db, err := sql.Open(opts.Driver, opts.DSN)
	if err != nil {
		return nil, errors.NewStoreError(opts.Driver, "failed to open database", err)
	}

	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)
	db.SetConnMaxLifetime(opts.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.NewStoreError(opts.Driver, "failed to connect to database", err)
	}

	store, err := New(db, opts.Driver, opts.TablePrefix, opts.ValidPostTypes)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// New wraps an open database handle.
func New(db *sql.DB, driver, tablePrefix string, validPostTypes []string) (*Store, error) {
	if !prefixPattern.MatchString(tablePrefix) {
		return nil, errors.NewConfigError(fmt.Sprintf("invalid table prefix %q", tablePrefix), nil)
	}

	store := &Store{
		db:     db,
		dollar: driver != "sqlite3",
		users:  tablePrefix + "users",
		posts:  tablePrefix + "posts",
	}

	if len(validPostTypes) > 0 {
		store.validTypes = make(map[string]bool, len(validPostTypes))
		for _, name := range validPostTypes {
			store.validTypes[name] = true
		}
	}

	return store, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for PostgreSQL drivers.
func (s *Store) rebind(query string) string {
	if !s.dollar {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) AccountByID(ctx context.Context, id int64) (author.Account, bool, error) {
	return s.findAccount(ctx, "ID = ?", id)
}

func (s *Store) AccountByLogin(ctx context.Context, login string) (author.Account, bool, error) {
	return s.findAccount(ctx, "user_login = ?", login)
}

func (s *Store) AccountByEmail(ctx context.Context, email string) (author.Account, bool, error) {
	if email == "" {
		return author.Account{}, false, nil
	}
	return s.findAccount(ctx, "LOWER(user_email) = LOWER(?)", email)
}

func (s *Store) findAccount(ctx context.Context, where string, arg interface{}) (author.Account, bool, error) {
	// Table names come from a validated prefix, never from user data.
	query := s.rebind(fmt.Sprintf(
		"SELECT ID, user_login, display_name, user_email FROM %s WHERE %s ORDER BY ID LIMIT 1",
		s.users, where,
	)) // #nosec G201

	var account author.Account
	var displayName sql.NullString
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&account.ID, &account.Login, &displayName, &account.Email)
	if err == sql.ErrNoRows {
		return author.Account{}, false, nil
	}
	if err != nil {
		return author.Account{}, false, errors.NewStoreError(s.users, "account lookup failed", err)
	}

	account.DisplayName = displayName.String
	return account, true, nil
}

// Records returns the posts matching f ordered by ID.
func (s *Store) Records(ctx context.Context, f filter.TypeFilter) ([]filter.Record, error) {
	query := fmt.Sprintf("SELECT ID, post_author, post_type FROM %s", s.posts) // #nosec G201
	var args []interface{}

	if !f.Any() {
		placeholders := make([]string, 0, len(f.Types()))
		for _, name := range f.Types() {
			placeholders = append(placeholders, "?")
			args = append(args, name)
		}
		query += " WHERE post_type IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY ID"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, errors.NewStoreError(s.posts, "record query failed", err)
	}
	defer rows.Close()

	var records []filter.Record
	for rows.Next() {
		var record filter.Record
		if err := rows.Scan(&record.ID, &record.AuthorID, &record.Type); err != nil {
			return nil, errors.NewStoreError(s.posts, "record scan failed", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewStoreError(s.posts, "record query failed", err)
	}

	return records, nil
}

// TypeExists checks the configured type list, or the posts table when none
// was configured.
func (s *Store) TypeExists(ctx context.Context, name string) (bool, error) {
	if s.validTypes != nil {
		return s.validTypes[name], nil
	}

	query := s.rebind(fmt.Sprintf("SELECT 1 FROM %s WHERE post_type = ? LIMIT 1", s.posts)) // #nosec G201

	var one int
	err := s.db.QueryRowContext(ctx, query, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewStoreError(s.posts, "content type lookup failed", err)
	}
	return true, nil
}

// UpdateAuthor sets post_author on one post. Touching no row is a failure.
func (s *Store) UpdateAuthor(ctx context.Context, recordID, authorID int64) error {
	query := s.rebind(fmt.Sprintf("UPDATE %s SET post_author = ? WHERE ID = ?", s.posts)) // #nosec G201
	ref := fmt.Sprintf("%s record %d", s.posts, recordID)

	res, err := s.db.ExecContext(ctx, query, authorID, recordID)
	if err != nil {
		return errors.NewStoreError(ref, "update failed", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return errors.NewStoreError(ref, "update failed", err)
	}
	if affected == 0 {
		return errors.NewStoreError(ref, "record not found", nil)
	}
	return nil
}
