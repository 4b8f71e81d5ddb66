// Package sqlite implements storage.Provider on a single-file SQLite database
// with embedded, versioned schema migrations.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	applog "github.com/amanthanvi/journal/internal/log"
	"github.com/amanthanvi/journal/internal/storage"
)

const (
	driverName = "sqlite"
	urlScheme  = "sqlite://"

	defaultMaxOpenConns = 16
	defaultBusyTimeout  = 5 * time.Second
)

var _ storage.Provider = (*Store)(nil)

// Store owns the connection pool for one database file. It is safe for
// concurrent use; the pool queues callers beyond its open-connection limit.
type Store struct {
	db     *sqlx.DB
	url    string
	path   string
	logger *slog.Logger
}

type Option func(*options)

type options struct {
	logger       *slog.Logger
	migrations   []Migration
	maxOpenConns int
	busyTimeout  time.Duration
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMigrations replaces the embedded migration set.
func WithMigrations(migrations []Migration) Option {
	return func(o *options) {
		o.migrations = migrations
	}
}

func WithMaxOpenConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxOpenConns = n
		}
	}
}

func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) {
		if d >= 0 {
			o.busyTimeout = d
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger:       applog.Discard(),
		migrations:   DefaultMigrations(),
		maxOpenConns: defaultMaxOpenConns,
		busyTimeout:  defaultBusyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// OpenFile opens the database at path, creating the file and any missing
// parent directories. The path is resolved to an absolute, symlink-free form
// first, so the resulting URL does not depend on the working directory.
func OpenFile(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, &storage.BootstrapError{Stage: storage.StageResolvePath, Err: errors.New("empty path")}
	}

	fullPath, err := resolveFilePath(path)
	if err != nil {
		return nil, err
	}
	return Open(ctx, urlScheme+fullPath, opts...)
}

// Open opens the database addressed by rawURL. Accepted forms are
// sqlite://<path>, sqlite:<path>, file:<path> and a bare path, each optionally
// followed by ?<driver params>. The database file is created when missing but
// its directory must already exist.
func Open(ctx context.Context, rawURL string, opts ...Option) (*Store, error) {
	o := applyOptions(opts)

	path, params, err := parseURL(rawURL)
	if err != nil {
		return nil, &storage.BootstrapError{Stage: storage.StageResolvePath, URL: rawURL, Err: err}
	}

	if err := ensureDatabase(ctx, o.logger, rawURL, path); err != nil {
		return nil, &storage.BootstrapError{Stage: storage.StageCreateDatabase, URL: rawURL, Err: err}
	}

	db, err := sqlx.Open(driverName, driverDSN(path, params, o.busyTimeout))
	if err != nil {
		return nil, &storage.BootstrapError{Stage: storage.StageConnect, URL: rawURL, Err: err}
	}
	db.SetMaxOpenConns(o.maxOpenConns)
	db.SetMaxIdleConns(max(1, o.maxOpenConns/2))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &storage.BootstrapError{Stage: storage.StageConnect, URL: rawURL, Err: err}
	}

	applied, err := RunMigrations(ctx, db.DB, o.migrations)
	if err != nil {
		_ = db.Close()
		return nil, &storage.BootstrapError{Stage: storage.StageMigrate, URL: rawURL, Err: err}
	}
	if applied > 0 {
		o.logger.DebugContext(ctx, "migrations applied", "url", rawURL, "count", applied)
	}

	return &Store{
		db:     db,
		url:    rawURL,
		path:   path,
		logger: o.logger,
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the pool for components that share it with the store. The store
// keeps ownership; callers must not close it.
func (s *Store) DB() *sqlx.DB {
	if s == nil {
		return nil
	}
	return s.db
}

func (s *Store) URL() string {
	if s == nil {
		return ""
	}
	return s.url
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	return readSchemaVersion(ctx, s.db.DB)
}

// The driver splits its DSN at the first '?', so such a file name would
// silently address a different file.
var errQueryInPath = errors.New("path must not contain '?'")

func resolveFilePath(path string) (string, error) {
	if strings.ContainsRune(path, '?') {
		return "", &storage.BootstrapError{Stage: storage.StageResolvePath, URL: path, Err: errQueryInPath}
	}
	if _, err := os.Stat(path); err == nil {
		full, err := canonicalPath(path)
		if err != nil {
			return "", &storage.BootstrapError{Stage: storage.StageResolvePath, URL: path, Err: err}
		}
		return full, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", &storage.BootstrapError{Stage: storage.StageResolvePath, URL: path, Err: err}
	}

	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0o700); err != nil {
		return "", &storage.BootstrapError{Stage: storage.StageCreateDir, URL: path, Err: err}
	}
	fullParent, err := canonicalPath(parent)
	if err != nil {
		return "", &storage.BootstrapError{Stage: storage.StageResolvePath, URL: path, Err: err}
	}
	return filepath.Join(fullParent, filepath.Base(path)), nil
}

func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("absolute path %q: %w", path, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", abs, err)
	}
	return resolved, nil
}

func parseURL(rawURL string) (string, url.Values, error) {
	rest := strings.TrimSpace(rawURL)
	switch {
	case strings.HasPrefix(rest, urlScheme):
		rest = strings.TrimPrefix(rest, urlScheme)
	case strings.HasPrefix(rest, "sqlite:"):
		rest = strings.TrimPrefix(rest, "sqlite:")
	case strings.HasPrefix(rest, "file:"):
		rest = strings.TrimPrefix(rest, "file:")
	}

	params := url.Values{}
	if idx := strings.IndexByte(rest, '?'); idx >= 0 {
		parsed, err := url.ParseQuery(rest[idx+1:])
		if err != nil {
			return "", nil, fmt.Errorf("parse query: %w", err)
		}
		params = parsed
		rest = rest[:idx]
	}

	if rest == "" {
		return "", nil, errors.New("missing database path")
	}
	if rest == ":memory:" || params.Get("mode") == "memory" {
		return "", nil, errors.New("in-memory databases are not supported")
	}
	return filepath.Clean(rest), params, nil
}

// driverDSN renders the modernc DSN. Pragmas given as _pragma parameters are
// applied to every pooled connection, not only the first one. Transactions
// default to BEGIN IMMEDIATE so they wait on busy_timeout for the write lock
// instead of failing on a lock upgrade.
func driverDSN(path string, params url.Values, busyTimeout time.Duration) string {
	query := url.Values{}
	for key, values := range params {
		query[key] = append([]string(nil), values...)
	}
	pragmas := []string{
		"busy_timeout(" + strconv.FormatInt(busyTimeout.Milliseconds(), 10) + ")",
		"foreign_keys(1)",
		"journal_mode(WAL)",
	}
	query["_pragma"] = append(pragmas, query["_pragma"]...)
	if query.Get("_txlock") == "" {
		query.Set("_txlock", "immediate")
	}
	return path + "?" + query.Encode()
}

func ensureDatabase(ctx context.Context, logger *slog.Logger, rawURL, path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat database: %w", err)
	}

	applog.Trace(ctx, logger, "creating database", "url", rawURL)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create database file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("create database file: %w", err)
	}
	return nil
}
