package backend

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/sigflow/types"
)

func TestRateLimited_PassesThrough(t *testing.T) {
	inner := &scriptedBackend{replies: []string{"ok"}}
	rl := NewRateLimited(inner, 100, 10)

	assert.Equal(t, "scripted", rl.Name())

	resp, err := rl.Run(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
}

func TestRateLimited_Throttles(t *testing.T) {
	inner := &scriptedBackend{}
	// 20 rps with a burst of 1: the second call waits ~50ms
	rl := NewRateLimited(inner, 20, 1)

	start := time.Now()
	_, err := rl.Run(context.Background(), Request{Prompt: "a"})
	require.NoError(t, err)
	_, err = rl.Run(context.Background(), Request{Prompt: "b"})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestRateLimited_CanceledWhileWaiting(t *testing.T) {
	inner := &scriptedBackend{}
	rl := NewRateLimited(inner, 0.001, 1)

	// drain the burst token
	_, err := rl.Run(context.Background(), Request{Prompt: "a"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = rl.Run(ctx, Request{Prompt: "b"})
	require.Error(t, err)
	assert.Equal(t, types.ErrCanceled, types.GetErrorCode(err))
	assert.Len(t, inner.requests, 1, "throttled call never reached the backend")
}

func TestRateLimited_BurstFloor(t *testing.T) {
	rl := NewRateLimited(&scriptedBackend{}, 1, 0)
	_, err := rl.Run(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err, "burst below 1 must still admit the first call")
}
