package source

import (
	"context"
	"sync"
)

// Memory is an in-process Source, used by tests and for small fixtures.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]Chunk
}

func NewMemory() *Memory {
	return &Memory{tables: map[string]Chunk{}}
}

// Put replaces a table. Rows are stored as given.
func (m *Memory) Put(table string, columns []string, rows ...[]any) *Memory {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables[table] = Chunk{Columns: columns, Rows: rows}
	return m
}

func (m *Memory) Columns(_ context.Context, table string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[table]
	if !ok {
		return nil, &TableNotFoundError{Table: table}
	}
	return t.Columns, nil
}

func (m *Memory) Scan(ctx context.Context, table string, chunkSize int, fn ScanFunc) error {
	if chunkSize < 1 {
		chunkSize = 1
	}
	m.mu.RLock()
	t, ok := m.tables[table]
	m.mu.RUnlock()
	if !ok {
		return &TableNotFoundError{Table: table}
	}
	for start := 0; start < len(t.Rows); start += chunkSize {
		end := start + chunkSize
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, Chunk{Columns: t.Columns, Rows: t.Rows[start:end]}); err != nil {
			return err
		}
	}
	return nil
}
