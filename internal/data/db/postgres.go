package db

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/machine-maintenance-backend/internal/platform/envutil"
	"github.com/yungbote/machine-maintenance-backend/internal/platform/logger"
)

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

// PostgresDSN builds the DSN from DATABASE_URL or the POSTGRES_* variables
// and validates it with pgconn before any connection is attempted.
func PostgresDSN() (string, error) {
	dsn := envutil.String("DATABASE_URL", "")
	if dsn == "" {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(envutil.String("POSTGRES_USER", "postgres"), envutil.String("POSTGRES_PASSWORD", "")),
			Host:     envutil.String("POSTGRES_HOST", "localhost") + ":" + envutil.String("POSTGRES_PORT", "5432"),
			Path:     "/" + envutil.String("POSTGRES_NAME", "maintenance"),
			RawQuery: "sslmode=" + envutil.String("POSTGRES_SSLMODE", "disable"),
		}
		dsn = u.String()
	}
	if _, err := pgconn.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("invalid postgres dsn: %w", err)
	}
	return dsn, nil
}

func NewPostgresService(logg *logger.Logger) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	dsn, err := PostgresDSN()
	if err != nil {
		return nil, err
	}
	cfg, _ := pgconn.ParseConfig(dsn)
	serviceLog.Info("Connecting to Postgres", "host", cfg.Host, "port", cfg.Port, "database", cfg.Database)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog()})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}
	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

// OpenSQLite opens a local snapshot database, e.g. an export of the source tables.
func OpenSQLite(path string, logg *logger.Logger) (*gorm.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLog()})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %q: %w", path, err)
	}
	if logg != nil {
		logg.Info("Opened SQLite source", "path", path)
	}
	return db, nil
}

func gormLog() gormLogger.Interface {
	return gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             5 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
}
