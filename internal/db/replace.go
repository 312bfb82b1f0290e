package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// ReplaceConfig describes a partition of a table to swap out atomically.
type ReplaceConfig struct {
	Table   string   // schema-qualified target, e.g. "geo.tr_boundaries"
	Columns []string // columns being copied
	KeyCol  string   // partition column, e.g. "level"
	KeyVal  any      // partition value; rows with this key are deleted first
}

// ReplacePartition deletes every row whose KeyCol equals KeyVal and COPYs rows
// in, inside one transaction. Readers see either the old or the new partition.
func ReplacePartition(ctx context.Context, pool Pool, cfg ReplaceConfig, rows [][]any) (int64, error) {
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: replace: no columns specified")
	}
	if cfg.KeyCol == "" {
		return 0, eris.New("db: replace: no key column specified")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "db: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE %s = $1",
		sanitizeTable(cfg.Table), pgx.Identifier{cfg.KeyCol}.Sanitize())
	if _, err := tx.Exec(ctx, deleteSQL, cfg.KeyVal); err != nil {
		return 0, eris.Wrapf(err, "db: replace: delete from %s", cfg.Table)
	}

	var n int64
	if len(rows) > 0 {
		n, err = tx.CopyFrom(ctx, identifier(cfg.Table), cfg.Columns, pgx.CopyFromRows(rows))
		if err != nil {
			return 0, eris.Wrapf(err, "db: replace: COPY INTO %s", cfg.Table)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "db: replace: commit tx")
	}
	return n, nil
}

// identifier splits "schema.table" into a pgx.Identifier.
func identifier(table string) pgx.Identifier {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}
	}
	return pgx.Identifier{table}
}

// sanitizeTable handles schema-qualified table names like "geo.tr_boundaries".
func sanitizeTable(table string) string {
	return identifier(table).Sanitize()
}
