package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/malirobot/musiclinks/internal/store"
)

func TestSaveAndGetArtist(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	_, ok, err := s.GetArtist(ctx, "a-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SaveArtist(ctx, store.ArtistRecord{ID: "a-1", Name: "Fela Kuti"}))

	rec, ok, err := s.GetArtist(ctx, "a-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Fela Kuti", rec.Name)
}

func TestSaveReleaseIsIdempotent(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveRelease(ctx, store.ReleaseRecord{ID: "r-1", Title: "Zombie"}))
	require.NoError(t, s.SaveRelease(ctx, store.ReleaseRecord{ID: "r-1", Title: "Zombie"}))

	ok, err := s.ReleaseExists(ctx, "r-1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, s.ReleaseCount())
}

func TestSaveEdgeDeduplicatesByRoleAndCredit(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	require.NoError(t, s.SaveEdge(ctx, store.Edge{ArtistID: "a-1", ReleaseID: "r-1", Role: "main"}))
	require.NoError(t, s.SaveEdge(ctx, store.Edge{ArtistID: "a-1", ReleaseID: "r-1", Role: "main"}))
	require.NoError(t, s.SaveEdge(ctx, store.Edge{ArtistID: "a-1", ReleaseID: "r-1", Role: "credit", CreditType: "Producer"}))

	require.Len(t, s.Edges(), 2)
}
