package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/amanthanvi/journal/internal/storage"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var migrationFileName = regexp.MustCompile(`^(\d+)_([A-Za-z0-9_]+)\.sql$`)

// Migration is one ordered schema change. Up runs inside a transaction that
// also records the version, so a migration is applied completely or not at
// all.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

var defaultMigrations = mustLoadMigrations(migrationFS, "migrations")

func DefaultMigrations() []Migration {
	out := make([]Migration, len(defaultMigrations))
	copy(out, defaultMigrations)
	return out
}

func CurrentSchemaVersion() int {
	return maxMigrationVersion(defaultMigrations)
}

// LoadMigrations reads every NNNN_description.sql file in dir. Each file
// becomes one migration whose body is executed as a single unit.
func LoadMigrations(fsys fs.FS, dir string) ([]Migration, error) {
	files, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("load migrations: read %s: %w", dir, err)
	}

	seen := map[int]string{}
	out := make([]Migration, 0, len(files))
	for _, file := range files {
		if file.IsDir() || path.Ext(file.Name()) != ".sql" {
			continue
		}
		match := migrationFileName.FindStringSubmatch(file.Name())
		if match == nil {
			return nil, fmt.Errorf("load migrations: malformed file name %q", file.Name())
		}
		version, err := strconv.Atoi(match[1])
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("load migrations: invalid version in %q", file.Name())
		}
		if prev, ok := seen[version]; ok {
			return nil, fmt.Errorf("load migrations: version %d declared by %q and %q", version, prev, file.Name())
		}
		seen[version] = file.Name()

		body, err := fs.ReadFile(fsys, path.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("load migrations: read %s: %w", file.Name(), err)
		}
		out = append(out, sqlMigration(version, strings.ReplaceAll(match[2], "_", " "), string(body)))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

func mustLoadMigrations(fsys fs.FS, dir string) []Migration {
	migrations, err := LoadMigrations(fsys, dir)
	if err != nil {
		panic(err)
	}
	return migrations
}

func sqlMigration(version int, description, script string) Migration {
	return Migration{
		Version:     version,
		Description: description,
		Up: func(tx *sql.Tx) error {
			if strings.TrimSpace(script) == "" {
				return nil
			}
			if _, err := tx.Exec(script); err != nil {
				return fmt.Errorf("exec script: %w", err)
			}
			return nil
		},
	}
}

// RunMigrations applies every migration newer than the recorded schema
// version, in version order. Running it against an up-to-date database does
// nothing. It returns the number of migrations applied.
func RunMigrations(ctx context.Context, db *sql.DB, migrations []Migration) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("run migrations: db is nil")
	}

	if err := ensureMigrationTable(ctx, db); err != nil {
		return 0, err
	}

	ordered := make([]Migration, len(migrations))
	copy(ordered, migrations)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Version < ordered[j].Version })

	current, err := readSchemaVersion(ctx, db)
	if err != nil {
		return 0, err
	}

	maxVersion := maxMigrationVersion(ordered)
	if current > maxVersion {
		return 0, fmt.Errorf("%w: db=%d code=%d", storage.ErrSchemaTooNew, current, maxVersion)
	}

	applied := 0
	for _, migration := range ordered {
		if migration.Version <= current {
			continue
		}
		if migration.Up == nil {
			return applied, fmt.Errorf("migration v%d (%s): no up step", migration.Version, migration.Description)
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("begin migration v%d: %w", migration.Version, err)
		}

		// Another process may have applied this version since the read
		// above. Store DSNs begin transactions IMMEDIATE, so the check
		// and the apply happen under one write lock.
		recorded, err := readSchemaVersion(ctx, tx)
		if err != nil {
			_ = tx.Rollback()
			return applied, err
		}
		if recorded >= migration.Version {
			if err := tx.Rollback(); err != nil {
				return applied, fmt.Errorf("release migration v%d: %w", migration.Version, err)
			}
			continue
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("migration v%d (%s): %w", migration.Version, migration.Description, err)
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations(version, description, applied_at) VALUES (?, ?, ?)`,
			migration.Version, migration.Description, nowUTCString()); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record schema migration v%d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration v%d: %w", migration.Version, err)
		}
		applied++
	}

	return applied, nil
}

func ensureMigrationTable(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	_, err = tx.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		applied_at TEXT NOT NULL
	)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("ensure migration table: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func readSchemaVersion(ctx context.Context, db rowQuerier) (int, error) {
	var version sql.NullInt64
	if err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}

func maxMigrationVersion(migrations []Migration) int {
	max := 0
	for _, migration := range migrations {
		if migration.Version > max {
			max = migration.Version
		}
	}
	return max
}

func nowUTCString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
