package store

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/tracesynth/internal/config"
	"github.com/JonMunkholm/tracesynth/internal/core"
)

func TestCreateTableSQL(t *testing.T) {
	columns := []core.Column{
		{Name: "span_id", Kind: core.KindInt},
		{Name: "duration", Kind: core.KindFloat},
		{Name: "error", Kind: core.KindBool},
		{Name: `service "name"`, Kind: core.KindString},
	}

	got := createTableSQL("traces", columns)
	want := `CREATE TABLE "traces" ("span_id" bigint, "duration" double precision, "error" boolean, "service ""name""" text)`
	require.Equal(t, want, got)
}

func TestDropTableSQL(t *testing.T) {
	require.Equal(t, `DROP TABLE IF EXISTS "trace.v2"`, dropTableSQL("trace.v2"))
}

func TestSelectAllSQL(t *testing.T) {
	require.Equal(t, `SELECT * FROM "spans; DROP TABLE x"`, selectAllSQL("spans; DROP TABLE x"))
}

func TestKindRoundTrip(t *testing.T) {
	oids := map[core.Kind]uint32{
		core.KindInt:    pgtype.Int8OID,
		core.KindFloat:  pgtype.Float8OID,
		core.KindBool:   pgtype.BoolOID,
		core.KindString: pgtype.TextOID,
	}
	for kind, oid := range oids {
		require.Equal(t, kind, kindFromOID(oid), "oid %d", oid)
	}
	require.Equal(t, core.KindInt, kindFromOID(pgtype.Int4OID))
	require.Equal(t, core.KindFloat, kindFromOID(pgtype.NumericOID))
	require.Equal(t, core.KindString, kindFromOID(pgtype.TimestamptzOID))
}

func TestPGType(t *testing.T) {
	require.Equal(t, "bigint", pgType(core.KindInt))
	require.Equal(t, "double precision", pgType(core.KindFloat))
	require.Equal(t, "boolean", pgType(core.KindBool))
	require.Equal(t, "text", pgType(core.KindString))
}

func TestFromPG(t *testing.T) {
	require.Nil(t, fromPG(nil))
	require.Equal(t, int64(7), fromPG(int32(7)))
	require.Equal(t, int64(3), fromPG(int16(3)))
	require.Equal(t, float64(0.5), fromPG(float32(0.5)))
	require.Equal(t, "abc", fromPG([]byte("abc")))
	require.Equal(t, true, fromPG(true))

	num := pgtype.Numeric{Int: big.NewInt(125), Exp: -2, Valid: true}
	require.InDelta(t, 1.25, fromPG(num), 1e-9)
	require.Nil(t, fromPG(pgtype.Numeric{}))

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.Equal(t, ts.String(), fromPG(ts))
}

func TestValidateTableName(t *testing.T) {
	require.NoError(t, validateTableName("traces"))

	err := validateTableName("  ")
	require.True(t, errors.Is(err, core.ErrInvalidTable))

	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	require.ErrorIs(t, validateTableName(string(long)), core.ErrInvalidTable)
}

func TestOpen_NotConfigured(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{}, nil)
	require.ErrorIs(t, err, ErrNotConfigured)
	require.Equal(t, "DB003", core.MapError(err).Code)
}

func TestOpen_BadURL(t *testing.T) {
	_, err := Open(context.Background(), config.DatabaseConfig{URL: "postgres://%zz", MaxConns: 1}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse database URL")
}

func TestClose_Nil(t *testing.T) {
	var s *Store
	s.Close()
}
