package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Store is a question bank kept in a SQL database. It serves as a
// quiz.Source for deployments that do not use the hosted backend.
type Store struct {
	db     *sql.DB
	driver string
}

// Open connects to driver ("sqlite3" or "postgres") and creates the schema
// when it is missing.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	driver = strings.ToLower(strings.TrimSpace(driver))

	var (
		db  *sql.DB
		err error
	)
	switch driver {
	case "", DriverSQLite, "sqlite":
		driver = DriverSQLite
		if strings.TrimSpace(dsn) == "" {
			dsn = "quiz.db"
		}
		db, err = sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
			_ = db.Close()
			return nil, err
		}
	case DriverPostgres, "pgx", "postgresql":
		driver = DriverPostgres
		db, err = sql.Open("pgx", dsn)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	store := &Store{db: db, driver: driver}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Driver() string {
	return s.driver
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
