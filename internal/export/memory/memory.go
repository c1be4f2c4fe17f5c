package memory

import (
	"context"
	"fmt"
	"sync"

	"tally/internal/export"
)

// Store is an in-memory export target used in tests and local development.
type Store struct {
	mu   sync.Mutex
	rows []export.Row
	fail error
}

func New() *Store {
	return &Store{}
}

// FailWith makes every subsequent append return err. Passing nil clears it.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

// AppendExpense stores the row and returns a synthetic row reference.
func (s *Store) AppendExpense(_ context.Context, row export.Row) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything appended so far.
func (s *Store) Rows() []export.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.Row(nil), s.rows...)
}

var _ export.Target = (*Store)(nil)
