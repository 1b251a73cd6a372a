package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

type csvSource struct {
	dir string
}

// NewCSVSource reads <dir>/<table>.csv files with a header row.
func NewCSVSource(dir string) Source {
	return &csvSource{dir: dir}
}

func (s *csvSource) open(table string) (*os.File, *csv.Reader, []string, error) {
	f, err := os.Open(filepath.Join(s.dir, table+".csv"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil, &TableNotFoundError{Table: table}
		}
		return nil, nil, nil, err
	}
	r := csv.NewReader(f)
	r.ReuseRecord = false
	header, err := r.Read()
	if err != nil {
		f.Close()
		if errors.Is(err, io.EOF) {
			return nil, nil, nil, fmt.Errorf("csv %s: empty file", table)
		}
		return nil, nil, nil, fmt.Errorf("csv %s header: %w", table, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	r.FieldsPerRecord = len(header)
	return f, r, header, nil
}

func (s *csvSource) Columns(_ context.Context, table string) ([]string, error) {
	f, _, header, err := s.open(table)
	if err != nil {
		return nil, err
	}
	f.Close()
	return header, nil
}

func (s *csvSource) Scan(ctx context.Context, table string, chunkSize int, fn ScanFunc) error {
	if chunkSize < 1 {
		chunkSize = 1
	}
	f, r, header, err := s.open(table)
	if err != nil {
		return err
	}
	defer f.Close()

	chunk := Chunk{Columns: header, Rows: make([][]any, 0, chunkSize)}
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("csv %s line %d: %w", table, line, err)
		}
		row := make([]any, len(rec))
		for i, v := range rec {
			if v = strings.TrimSpace(v); v != "" {
				row[i] = v
			}
		}
		chunk.Rows = append(chunk.Rows, row)
		if len(chunk.Rows) == chunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(ctx, chunk); err != nil {
				return err
			}
			chunk = Chunk{Columns: header, Rows: make([][]any, 0, chunkSize)}
		}
	}
	if len(chunk.Rows) > 0 {
		return fn(ctx, chunk)
	}
	return nil
}
