package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/collapsinghierarchy/rfidgate/model"
	"github.com/collapsinghierarchy/rfidgate/store/sqlite"
)

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "uids.db"))
	require.NoError(t, err)
	defer st.Close()

	_, ok, err := st.Lookup(ctx, "AA:BB:CC:DD")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, st.Insert(ctx, model.UidRecord{UID: "aa:bb:cc:dd", Name: "Alice", Role: "a"}))
	require.NoError(t, st.Insert(ctx, model.UidRecord{UID: "aa:bb:cc:dd", Name: "Shadow", Role: "u"}))

	rec, ok, err := st.Lookup(ctx, "AA:bb:CC:dd ")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.UidRecord{UID: "AA:BB:CC:DD", Name: "Alice", Role: model.RoleAdmin}, rec)

	var names []string
	require.NoError(t, st.Stream(ctx, func(r *model.UidRecord) error {
		names = append(names, r.Name)
		return nil
	}))
	require.Equal(t, []string{"Alice", "Shadow"}, names)
}
