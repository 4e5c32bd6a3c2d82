package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOffsetsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	offsets, err := s.LoadOffsets(ctx)
	require.NoError(t, err)
	assert.Empty(t, offsets)

	require.NoError(t, s.SaveOffset(ctx, "/broker/order_updates.dbf", 42))
	require.NoError(t, s.SaveOffset(ctx, "/broker/order_updates.dbf", 99))
	require.NoError(t, s.SaveOffset(ctx, "/broker/asset.dbf", 7))

	offsets, err = s.LoadOffsets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(99), offsets["/broker/order_updates.dbf"], "save upserts")
	assert.Equal(t, int64(7), offsets["/broker/asset.dbf"])
}

func TestAuditAppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendAudit(ctx, "command", "100001", "cmd|100001", []byte(`{"action":"io"}`)))
	require.NoError(t, s.AppendAudit(ctx, "order_update", "100001", "snap|100001", []byte(`{"prefix":"OrderUpdate"}`)))

	recs, err := s.RecentAudit(ctx, "command", 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "100001", recs[0].Account)
	assert.NotEmpty(t, recs[0].ID)

	recs, err = s.RecentAudit(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}
