package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"budget/internal/core"
	ports "budget/internal/sheets"
)

// parseRow converts one values row (as returned by the Sheets API) back into
// a ledger row.
func parseRow(values []any) (ports.LedgerRow, error) {
	cols := toStrings(values)
	at, err := time.Parse(time.RFC3339, safeGet(cols, 0))
	if err != nil {
		return ports.LedgerRow{}, fmt.Errorf("timestamp %q: %w", safeGet(cols, 0), err)
	}
	op := core.Operation(strings.ToLower(safeGet(cols, 1)))
	switch op {
	case core.OpCreate, core.OpUpdate, core.OpDelete:
	default:
		return ports.LedgerRow{}, fmt.Errorf("unknown operation %q", safeGet(cols, 1))
	}
	id, err := strconv.ParseInt(safeGet(cols, 2), 10, 64)
	if err != nil {
		return ports.LedgerRow{}, fmt.Errorf("transaction id %q: %w", safeGet(cols, 2), err)
	}

	row := ports.LedgerRow{At: at, Operation: op, TransactionID: id}
	if op == core.OpDelete {
		return row, nil
	}

	if row.Date, err = core.ParseDate(safeGet(cols, 3)); err != nil {
		return ports.LedgerRow{}, fmt.Errorf("date %q: %w", safeGet(cols, 3), err)
	}
	if row.Type, err = core.ParseTransactionType(safeGet(cols, 4)); err != nil {
		return ports.LedgerRow{}, err
	}
	row.Category = safeGet(cols, 5)
	if row.Amount, err = core.ParseAmount(safeGet(cols, 6)); err != nil {
		return ports.LedgerRow{}, fmt.Errorf("amount %q: %w", safeGet(cols, 6), err)
	}
	row.Note = safeGet(cols, 7)
	return row, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func safeGet(arr []string, idx int) string {
	if idx < 0 || idx >= len(arr) {
		return ""
	}
	return arr[idx]
}
