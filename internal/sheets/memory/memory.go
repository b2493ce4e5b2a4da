package memory

import (
	"context"
	"fmt"
	"sync"

	ports "budget/internal/sheets"
)

// Store is an in-process ledger, used when no spreadsheet is configured.
type Store struct {
	mu   sync.Mutex
	rows []ports.LedgerRow
}

var _ ports.Ledger = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// AppendRow stores the row and returns a synthetic row reference.
func (s *Store) AppendRow(_ context.Context, row ports.LedgerRow) (string, error) {
	if row.TransactionID <= 0 {
		return "", fmt.Errorf("ledger row without transaction id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) ListRows(_ context.Context) ([]ports.LedgerRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.LedgerRow(nil), s.rows...), nil
}
