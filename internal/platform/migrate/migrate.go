// Package migrate applies the embedded, versioned SQL schema.
package migrate

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/Palpita209/Palpita209-sub001/internal/platform/db"
)

//go:embed migrations/*.sql
var embedded embed.FS

// lockID serialises concurrent migrators through pg_advisory_xact_lock.
const lockID int64 = 0x61737365747472

// Migration is one versioned SQL file.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// Load reads every `NNNN_name.sql` file in fsys, sorted by version.
func Load(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("migrate: read dir: %w", err)
	}
	var out []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), ".sql")
		prefix, name, ok := strings.Cut(base, "_")
		if !ok || name == "" {
			return nil, fmt.Errorf("migrate: %s: expected NNNN_name.sql", entry.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil || version <= 0 {
			return nil, fmt.Errorf("migrate: %s: invalid version %q", entry.Name(), prefix)
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrate: version %d used by %s and %s", version, other, entry.Name())
		}
		seen[version] = entry.Name()
		body, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("migrate: read %s: %w", entry.Name(), err)
		}
		out = append(out, Migration{Version: version, Name: name, SQL: string(body)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// Embedded returns the migrations compiled into the binary.
func Embedded() ([]Migration, error) {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// Migrator applies pending migrations, one transaction per version.
type Migrator struct {
	conn   db.Beginner
	logger *slog.Logger
}

// New constructs a Migrator.
func New(conn db.Beginner, logger *slog.Logger) *Migrator {
	return &Migrator{conn: conn, logger: logger}
}

// Up applies every migration not yet recorded in schema_migrations and returns the applied versions.
func (m *Migrator) Up(ctx context.Context, migrations []Migration) ([]int, error) {
	if m == nil || m.conn == nil {
		return nil, errors.New("migrate: connection not configured")
	}
	err := db.WithTx(ctx, m.conn, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INT PRIMARY KEY,
	name       TEXT NOT NULL,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("migrate: ensure schema_migrations: %w", err)
	}

	var applied []int
	for _, mig := range migrations {
		ran := false
		err := db.WithTx(ctx, m.conn, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockID); err != nil {
				return err
			}
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)`, mig.Version).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return nil
			}
			if _, err := tx.Exec(ctx, mig.SQL); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`, mig.Version, mig.Name); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("migrate: %04d_%s: %w", mig.Version, mig.Name, err)
		}
		if ran {
			applied = append(applied, mig.Version)
			if m.logger != nil {
				m.logger.Info("migration applied", slog.Int("version", mig.Version), slog.String("name", mig.Name))
			}
		}
	}
	return applied, nil
}
