package initguard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type client struct{ id int32 }

func TestGuard_ConcurrentCallersShareOneInit(t *testing.T) {
	guard := New[*client]()
	var calls int32
	release := make(chan struct{})

	init := func(ctx context.Context) (*client, error) {
		n := atomic.AddInt32(&calls, 1)
		<-release
		return &client{id: n}, nil
	}

	const callers = 50
	results := make([]*client, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, err := guard.Get(context.Background(), "google", init)
			assert.NoError(t, err)
			results[i] = c
		}(i)
	}

	// Give every caller a chance to block on the shared call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, c := range results {
		require.NotNil(t, c)
		assert.Same(t, results[0], c)
	}
	assert.True(t, guard.Loaded("google"))
}

func TestGuard_SecondCallUsesCachedValue(t *testing.T) {
	guard := New[string]()
	var calls int32
	init := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "ready", nil
	}

	for i := 0; i < 3; i++ {
		v, err := guard.Get(context.Background(), "k", init)
		require.NoError(t, err)
		assert.Equal(t, "ready", v)
	}
	assert.Equal(t, int32(1), calls)
}

func TestGuard_FailureIsNotCached(t *testing.T) {
	guard := New[string]()
	var calls int32
	init := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("quota exceeded")
		}
		return "ok", nil
	}

	_, err := guard.Get(context.Background(), "k", init)
	assert.EqualError(t, err, "quota exceeded")
	assert.False(t, guard.Loaded("k"))

	v, err := guard.Get(context.Background(), "k", init)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), calls)
}

func TestGuard_KeysAreIndependent(t *testing.T) {
	guard := New[string]()
	init := func(v string) InitFunc[string] {
		return func(ctx context.Context) (string, error) { return v, nil }
	}

	a, err := guard.Get(context.Background(), "google", init("g"))
	require.NoError(t, err)
	b, err := guard.Get(context.Background(), "nominatim", init("n"))
	require.NoError(t, err)

	assert.Equal(t, "g", a)
	assert.Equal(t, "n", b)
}

func TestGuard_CallerContextCancelled(t *testing.T) {
	guard := New[string]()
	release := make(chan struct{})
	init := func(ctx context.Context) (string, error) {
		<-release
		return "late", nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := guard.Get(ctx, "slow", init)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	v, err := guard.Get(context.Background(), "slow", init)
	require.NoError(t, err)
	assert.Equal(t, "late", v)
}
