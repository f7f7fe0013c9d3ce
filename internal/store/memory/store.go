// Package memory provides an in-memory host store. It backs tests and
// previews where no destination database is available.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"authormigrate/internal/author"
	"authormigrate/internal/errors"
	"authormigrate/internal/filter"
)

// Store keeps accounts and content records in maps guarded by a mutex.
type Store struct {
	mu          sync.RWMutex
	accounts    map[int64]author.Account
	records     map[int64]filter.Record
	types       map[string]bool
	failUpdates map[int64]error
	invalidated []int64
	updates     int
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts:    make(map[int64]author.Account),
		records:     make(map[int64]filter.Record),
		types:       make(map[string]bool),
		failUpdates: make(map[int64]error),
	}
}

// AddAccount adds or replaces an account.
func (s *Store) AddAccount(account author.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.ID] = account
}

// AddRecord adds or replaces a content record and registers its type.
func (s *Store) AddRecord(record filter.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.ID] = record
	s.types[record.Type] = true
}

// RegisterType marks a content type as known even without records.
func (s *Store) RegisterType(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[name] = true
}

// FailUpdate makes every update of recordID fail with err.
func (s *Store) FailUpdate(recordID int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUpdates[recordID] = err
}

// Record returns a stored record.
func (s *Store) Record(id int64) (filter.Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	return record, ok
}

// Invalidated returns the record IDs whose cache was invalidated, sorted.
func (s *Store) Invalidated() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := append([]int64(nil), s.invalidated...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Updates returns the number of successful author writes.
func (s *Store) Updates() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updates
}

func (s *Store) AccountByID(_ context.Context, id int64) (author.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[id]
	return account, ok, nil
}

func (s *Store) AccountByLogin(_ context.Context, login string) (author.Account, bool, error) {
	return s.find(func(a author.Account) bool { return a.Login == login })
}

// AccountByEmail matches case-insensitively, like the host's email lookup.
func (s *Store) AccountByEmail(_ context.Context, email string) (author.Account, bool, error) {
	return s.find(func(a author.Account) bool { return email != "" && strings.EqualFold(a.Email, email) })
}

func (s *Store) find(match func(author.Account) bool) (author.Account, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, account := range s.accounts {
		if match(account) {
			return account, true, nil
		}
	}
	return author.Account{}, false, nil
}

// Records returns matching records ordered by ID.
func (s *Store) Records(_ context.Context, f filter.TypeFilter) ([]filter.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]filter.Record, 0, len(s.records))
	for _, record := range s.records {
		if f.Matches(record.Type) {
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records, nil
}

func (s *Store) TypeExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.types[name], nil
}

func (s *Store) UpdateAuthor(_ context.Context, recordID, authorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err, ok := s.failUpdates[recordID]; ok {
		return errors.NewStoreError(fmt.Sprintf("record %d", recordID), "update rejected", err)
	}

	record, ok := s.records[recordID]
	if !ok {
		return errors.NewStoreError(fmt.Sprintf("record %d", recordID), "record not found", nil)
	}

	record.AuthorID = authorID
	s.records[recordID] = record
	s.updates++
	return nil
}

func (s *Store) InvalidateRecord(_ context.Context, recordID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, recordID)
	return nil
}
