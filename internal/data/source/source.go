// Package source exposes the read-only upstream record sets as chunked scans.
package source

import (
	"context"
	"fmt"
)

// Chunk is a bounded batch of rows. Rows[i][c] is the value of Columns[c];
// nil marks SQL NULL or an empty CSV cell.
type Chunk struct {
	Columns []string
	Rows    [][]any
}

func (c Chunk) Index(name string) int {
	for i, col := range c.Columns {
		if col == name {
			return i
		}
	}
	return -1
}

type ScanFunc func(ctx context.Context, chunk Chunk) error

// Source is a read-only table store. table is the physical table name.
type Source interface {
	Columns(ctx context.Context, table string) ([]string, error)
	Scan(ctx context.Context, table string, chunkSize int, fn ScanFunc) error
}

type TableNotFoundError struct {
	Table string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("source table %q not found", e.Table)
}

// ReadAll collects a whole table. Only for the small reference tables.
func ReadAll(ctx context.Context, src Source, table string, chunkSize int) (Chunk, error) {
	var out Chunk
	err := src.Scan(ctx, table, chunkSize, func(_ context.Context, c Chunk) error {
		if out.Columns == nil {
			out.Columns = c.Columns
		}
		out.Rows = append(out.Rows, c.Rows...)
		return nil
	})
	if err != nil {
		return Chunk{}, err
	}
	if out.Columns == nil {
		cols, err := src.Columns(ctx, table)
		if err != nil {
			return Chunk{}, err
		}
		out.Columns = cols
	}
	return out, nil
}
