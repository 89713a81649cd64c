package export

import (
	"context"
	"fmt"
	"sync"

	"gastos/internal/core"
)

// MemoryWriter keeps exported statements in memory, keyed by statement
// key. Used in tests and when no spreadsheet is configured.
type MemoryWriter struct {
	mu         sync.Mutex
	statements map[string]ExportedStatement
}

type ExportedStatement struct {
	Account     core.Account
	Statement   core.Statement
	Outstanding core.Money
}

var _ StatementWriter = (*MemoryWriter)(nil)

func NewMemoryWriter() *MemoryWriter {
	return &MemoryWriter{statements: make(map[string]ExportedStatement)}
}

func (w *MemoryWriter) WriteStatement(_ context.Context, account core.Account, stmt core.Statement, outstanding core.Money) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	key := stmt.Period.Key(account.ID)
	w.statements[key] = ExportedStatement{Account: account, Statement: stmt, Outstanding: outstanding}
	return fmt.Sprintf("memory:%s", key), nil
}

// Get returns the last export for a statement key.
func (w *MemoryWriter) Get(key string) (ExportedStatement, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s, ok := w.statements[key]
	return s, ok
}

// Size returns the number of exported statements.
func (w *MemoryWriter) Size() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.statements)
}
