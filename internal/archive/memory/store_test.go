package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPutObjectStoresCopy(t *testing.T) {
	t.Parallel()

	store := New()
	payload := []byte(`{"id":"r-1"}`)

	uri, err := store.PutObject(context.Background(), "releases/r-1.json", "application/json", payload)
	require.NoError(t, err)
	require.Equal(t, "memory://releases/r-1.json", uri)

	payload[0] = 'X'
	stored, ok := store.Get("releases/r-1.json")
	require.True(t, ok)
	require.Equal(t, byte('{'), stored[0])
	require.Equal(t, 1, store.Len())
}
