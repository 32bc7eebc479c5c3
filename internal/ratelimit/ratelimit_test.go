package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterBlocksAfterLimit(t *testing.T) {
	limiter := New(3, time.Minute)

	require.True(t, limiter.Allow("1.2.3.4"))
	require.True(t, limiter.Allow("1.2.3.4"))
	require.True(t, limiter.Allow("1.2.3.4"))
	require.False(t, limiter.Allow("1.2.3.4"))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	limiter := New(1, time.Minute)

	require.True(t, limiter.Allow("a"))
	require.False(t, limiter.Allow("a"))
	require.True(t, limiter.Allow("b"))
}

func TestLimiterWindowExpires(t *testing.T) {
	limiter := New(1, 10*time.Millisecond)

	require.True(t, limiter.Allow("a"))
	require.False(t, limiter.Allow("a"))

	time.Sleep(20 * time.Millisecond)
	require.True(t, limiter.Allow("a"))
}

func TestNilLimiterAllows(t *testing.T) {
	var limiter *Limiter
	require.True(t, limiter.Allow("a"))
}
