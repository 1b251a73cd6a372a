package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/machine-maintenance-backend/internal/data/db"
	"github.com/yungbote/machine-maintenance-backend/internal/data/source"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/envutil"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

const (
	SourcePostgres = "postgres"
	SourceSQLite   = "sqlite"
	SourceCSV      = "csv"
)

// resolveSource opens the upstream record sets named by SOURCE_DRIVER. The
// returned func releases the connection.
func resolveSource(log *logger.Logger) (source.Source, func() error, error) {
	noop := func() error { return nil }
	driver := strings.ToLower(envutil.String("SOURCE_DRIVER", SourcePostgres))
	log.Info("Selecting source driver", "driver", driver)
	switch driver {
	case SourcePostgres:
		pg, err := db.NewPostgresService(log)
		if err != nil {
			return nil, noop, fmt.Errorf("init postgres: %w", err)
		}
		sqlDB, err := pg.DB().DB()
		if err != nil {
			return nil, noop, err
		}
		return source.NewGormSource(pg.DB(), log), sqlDB.Close, nil
	case SourceSQLite:
		path := envutil.String("SQLITE_PATH", "")
		if path == "" {
			return nil, noop, fmt.Errorf("SOURCE_DRIVER=sqlite requires SQLITE_PATH")
		}
		gdb, err := db.OpenSQLite(path, log)
		if err != nil {
			return nil, noop, err
		}
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, noop, err
		}
		return source.NewGormSource(gdb, log), sqlDB.Close, nil
	case SourceCSV:
		dir := envutil.String("SOURCE_CSV_DIR", "")
		if dir == "" {
			return nil, noop, fmt.Errorf("SOURCE_DRIVER=csv requires SOURCE_CSV_DIR")
		}
		return source.NewCSVSource(dir), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown SOURCE_DRIVER %q (want postgres, sqlite or csv)", driver)
	}
}
