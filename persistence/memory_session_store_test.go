package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()
	runStoreContract(t, store)
}

func TestMemorySessionStore_IsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()

	snap := testSnapshot("iso", baseTime)
	require.NoError(t, store.Save(ctx, snap))
	snap.State.Artifacts[0].Data["count"] = float64(99)
	snap.Ledger[0] = "mutated"

	got, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, float64(3), got.State.Artifacts[0].Data["count"])
	assert.Equal(t, "wbs-m1", got.Ledger[0])

	got.State.Artifacts[0].Title = "changed"
	again, err := store.Load(ctx, "iso")
	require.NoError(t, err)
	assert.Equal(t, "Work Breakdown Structure", again.State.Artifacts[0].Title)
}

func TestMemorySessionStore_Closed(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore()
	require.NoError(t, store.Close())

	assert.ErrorIs(t, store.Ping(ctx), ErrStoreClosed)
	assert.ErrorIs(t, store.Save(ctx, testSnapshot("x", baseTime)), ErrStoreClosed)
	_, err := store.Load(ctx, "x")
	assert.ErrorIs(t, err, ErrStoreClosed)
	_, err = store.List(ctx)
	assert.ErrorIs(t, err, ErrStoreClosed)
}
