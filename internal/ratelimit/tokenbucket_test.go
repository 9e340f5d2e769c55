package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBucket_TakeTokenExhaustsCapacity(t *testing.T) {
	b := NewBucket(2, time.Hour)
	require.True(t, b.TakeToken())
	require.True(t, b.TakeToken())
	require.False(t, b.TakeToken())
}

func TestBucket_RefillsOverTime(t *testing.T) {
	b := NewBucket(1, 10*time.Millisecond)
	require.True(t, b.TakeToken())
	require.False(t, b.TakeToken())

	time.Sleep(25 * time.Millisecond)
	require.True(t, b.TakeToken())
}

func TestBucket_WaitRespectsContextCancellation(t *testing.T) {
	b := NewBucket(1, time.Hour)
	require.True(t, b.TakeToken())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := b.Wait(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
