package export

import (
	"context"

	"gastos/internal/core"
)

// StatementWriter publishes a closed statement to an external surface
// (a spreadsheet, in production). The returned reference identifies where
// the statement landed, for logging.
type StatementWriter interface {
	WriteStatement(ctx context.Context, account core.Account, stmt core.Statement, outstanding core.Money) (string, error)
}
