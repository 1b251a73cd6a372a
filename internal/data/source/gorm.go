package source

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type gormSource struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewGormSource reads tables through any gorm dialector (postgres, sqlite).
// Scans are ordered by all columns in table order.
func NewGormSource(db *gorm.DB, baseLog *logger.Logger) Source {
	return &gormSource{db: db, log: baseLog.With("source", "gorm")}
}

func (s *gormSource) Columns(ctx context.Context, table string) ([]string, error) {
	m := s.db.WithContext(ctx).Migrator()
	if !m.HasTable(table) {
		return nil, &TableNotFoundError{Table: table}
	}
	types, err := m.ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("column types %s: %w", table, err)
	}
	cols := make([]string, 0, len(types))
	for _, ct := range types {
		cols = append(cols, ct.Name())
	}
	return cols, nil
}

func (s *gormSource) Scan(ctx context.Context, table string, chunkSize int, fn ScanFunc) error {
	if chunkSize < 1 {
		chunkSize = 1
	}
	order, err := s.Columns(ctx, table)
	if err != nil {
		return err
	}
	// every column, in table order, so reruns see identical row order even
	// for rows sharing a (machine_id, timestamp) key
	q := s.db.WithContext(ctx).Table(table)
	for _, c := range order {
		q = q.Order(clause.OrderByColumn{Column: clause.Column{Name: c}})
	}
	rows, err := q.Rows()
	if err != nil {
		return fmt.Errorf("scan %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("scan %s columns: %w", table, err)
	}
	chunk := Chunk{Columns: cols, Rows: make([][]any, 0, chunkSize)}
	total := 0
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return fmt.Errorf("scan %s row %d: %w", table, total, err)
		}
		chunk.Rows = append(chunk.Rows, vals)
		total++
		if len(chunk.Rows) == chunkSize {
			if err := fn(ctx, chunk); err != nil {
				return err
			}
			chunk = Chunk{Columns: cols, Rows: make([][]any, 0, chunkSize)}
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", table, err)
	}
	if len(chunk.Rows) > 0 {
		if err := fn(ctx, chunk); err != nil {
			return err
		}
	}
	s.log.Debug("Scanned table", "table", table, "rows", total)
	return nil
}
