package store

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	_ "modernc.org/sqlite"             // sqlite driver
)

// Dialect selects placeholder syntax and DDL.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Open connects to DSN. postgres:// and postgresql:// go through pgx;
// sqlite:<path> and file:<path> go through modernc sqlite.
func Open(ctx context.Context, dsn string) (*sql.DB, Dialect, error) {
	driver, source, dialect, err := resolveDriver(dsn)
	if err != nil {
		return nil, 0, err
	}
	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, 0, fmt.Errorf("sql.Open: %w", err)
	}
	if dialect == SQLite {
		// one writer avoids SQLITE_BUSY between concurrent commits
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(1 * time.Hour)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, 0, fmt.Errorf("db.Ping: %w", err)
	}
	return db, dialect, nil
}

func resolveDriver(dsn string) (driver, source string, d Dialect, err error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "pgx", dsn, Postgres, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		return "sqlite", strings.TrimPrefix(dsn, "sqlite:"), SQLite, nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", dsn, SQLite, nil
	case dsn == "":
		return "", "", 0, fmt.Errorf("database DSN is empty")
	default:
		return "", "", 0, fmt.Errorf("unsupported DSN scheme: %s", SafeDSNSummary(dsn))
	}
}

// rebind turns ? placeholders into $n for Postgres.
func rebind(d Dialect, q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SafeDSNSummary describes a DSN without its password.
func SafeDSNSummary(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Host == "" {
		if i := strings.IndexByte(dsn, ':'); i > 0 {
			return "scheme=" + dsn[:i]
		}
		return "dsn: parse error"
	}
	user := u.User.Username()
	host := u.Host
	port := ""
	if h, p, err := net.SplitHostPort(u.Host); err == nil {
		host, port = h, p
	}
	db := strings.TrimPrefix(u.Path, "/")
	if port == "" {
		return fmt.Sprintf("host=%s db=%s user=%s", host, db, user)
	}
	return fmt.Sprintf("host=%s port=%s db=%s user=%s", host, port, db, user)
}
