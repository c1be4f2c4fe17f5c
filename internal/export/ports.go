package export

import (
	"context"

	"tally/internal/core"
)

// Row is one exported expense record, flattened for a spreadsheet-like target.
type Row struct {
	OwnerEmail  string
	Title       string
	Amount      float64
	Date        core.Date
	Description string
	Action      string
}

// Target is an outbound adapter that receives exported expense rows.
type Target interface {
	AppendExpense(ctx context.Context, row Row) (rowRef string, err error)
}
