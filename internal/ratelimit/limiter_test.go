package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireSpacesRequests(t *testing.T) {
	t.Parallel()

	// 600 requests/minute = one token every 100ms.
	l := New(Config{RequestsPerMinute: 600})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := l.Acquire(context.Background())
		require.NoError(t, err)
	}
	// First token is free; two more must wait ~100ms each.
	require.GreaterOrEqual(t, time.Since(start), 180*time.Millisecond)
}

func TestAcquireUnlimitedDoesNotBlock(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerMinute: 0})
	start := time.Now()
	for i := 0; i < 100; i++ {
		_, err := l.Acquire(context.Background())
		require.NoError(t, err)
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestAcquireHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerMinute: 1})
	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx)
	require.Error(t, err)
}

func TestResetClearsWindow(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerMinute: 1})
	_, err := l.Acquire(context.Background())
	require.NoError(t, err)

	l.Reset()

	start := time.Now()
	_, err = l.Acquire(context.Background())
	require.NoError(t, err)
	require.Less(t, time.Since(start), 100*time.Millisecond)
}
