package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store/postgres"
)

// Needs a disposable database; the table is truncated.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("RFIDGATE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("RFIDGATE_TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Open(ctx, dsn)
	require.NoError(t, err)
	defer pool.Close()

	st := postgres.NewStore(pool)
	require.NoError(t, st.Migrate(ctx))
	_, err = pool.Exec(ctx, `TRUNCATE uid_records`)
	require.NoError(t, err)

	_, ok, err := st.Lookup(ctx, "AA:BB:CC:DD")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.Insert(ctx, model.UidRecord{UID: "aa:bb:cc:dd", Name: "Alice", Role: "a"}))
	require.NoError(t, st.Insert(ctx, model.UidRecord{UID: "AA:BB:CC:DD", Name: "Again", Role: "u"}))

	rec, ok, err := st.Lookup(ctx, " aa:bb:cc:dd ")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.UidRecord{UID: "AA:BB:CC:DD", Name: "Alice", Role: model.RoleAdmin}, rec)

	var n int
	require.NoError(t, st.Stream(ctx, func(*model.UidRecord) error { n++; return nil }))
	require.Equal(t, 2, n)
}
