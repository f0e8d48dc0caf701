// Package store exports trace tables to PostgreSQL and reads them back.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/tracesynth/internal/config"
	"github.com/JonMunkholm/tracesynth/internal/core"
)

// ErrNotConfigured is returned when no database URL is set.
var ErrNotConfigured = errors.New("database not configured")

// Store wraps a pgx connection pool.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// Open connects to the database described by cfg and verifies the
// connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		logger.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		logger.Info("connected to database")
	}

	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Export replaces table name with the contents of t and returns the number
// of rows copied. The drop, create and copy run in one transaction.
func (s *Store) Export(ctx context.Context, name string, t *core.Table) (int64, error) {
	if err := validateTableName(name); err != nil {
		return 0, err
	}
	if t == nil || len(t.Columns()) == 0 {
		return 0, fmt.Errorf("%w: table has no columns", core.ErrInvalidTable)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // No-op if already committed

	if _, err := tx.Exec(ctx, dropTableSQL(name)); err != nil {
		return 0, fmt.Errorf("drop table %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, createTableSQL(name, t.Columns())); err != nil {
		return 0, fmt.Errorf("create table %s: %w", name, err)
	}

	n, err := tx.CopyFrom(ctx, pgx.Identifier{name}, t.ColumnNames(), pgx.CopyFromSlice(t.Len(), func(i int) ([]any, error) {
		row := t.Row(i)
		values := make([]any, 0, len(row))
		for _, c := range t.Columns() {
			values = append(values, row[c.Name])
		}
		return values, nil
	}))
	if err != nil {
		return 0, fmt.Errorf("copy rows into %s: %w", name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit export: %w", err)
	}

	s.logger.Info("table exported", "table", name, "rows", n)
	return n, nil
}

// Import reads every row of table name into a core.Table. Column kinds
// follow the PostgreSQL column types.
func (s *Store) Import(ctx context.Context, name string) (*core.Table, error) {
	if err := validateTableName(name); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, selectAllSQL(name))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]core.Column, len(fields))
	for i, fd := range fields {
		columns[i] = core.Column{Name: fd.Name, Kind: kindFromOID(fd.DataTypeOID)}
	}
	t, err := core.NewTable(columns...)
	if err != nil {
		return nil, err
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read row values: %w", err)
		}
		row := make(core.Row, len(columns))
		for i, c := range columns {
			row[c.Name] = fromPG(values[i])
		}
		if err := t.Append(row); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	s.logger.Debug("table imported", "table", name, "rows", t.Len())
	return t, nil
}

// validateTableName rejects empty names and names PostgreSQL would truncate.
func validateTableName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty table name", core.ErrInvalidTable)
	}
	if len(name) > 63 {
		return fmt.Errorf("%w: table name longer than 63 bytes", core.ErrInvalidTable)
	}
	return nil
}

func dropTableSQL(name string) string {
	return "DROP TABLE IF EXISTS " + pgx.Identifier{name}.Sanitize()
}

func selectAllSQL(name string) string {
	return "SELECT * FROM " + pgx.Identifier{name}.Sanitize()
}

func createTableSQL(name string, columns []core.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + pgType(c.Kind)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", pgx.Identifier{name}.Sanitize(), strings.Join(defs, ", "))
}

// pgType maps a column kind to a PostgreSQL type.
func pgType(k core.Kind) string {
	switch k {
	case core.KindInt:
		return "bigint"
	case core.KindFloat:
		return "double precision"
	case core.KindBool:
		return "boolean"
	default:
		return "text"
	}
}

// kindFromOID maps a PostgreSQL type OID back to a column kind.
func kindFromOID(oid uint32) core.Kind {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID:
		return core.KindInt
	case pgtype.Float4OID, pgtype.Float8OID, pgtype.NumericOID:
		return core.KindFloat
	case pgtype.BoolOID:
		return core.KindBool
	default:
		return core.KindString
	}
}

// fromPG converts a decoded PostgreSQL value to a table value.
func fromPG(v any) any {
	switch x := v.(type) {
	case nil, int64, float64, bool, string:
		return v
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case float32:
		return float64(x)
	case pgtype.Numeric:
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
