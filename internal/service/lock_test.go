package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	km := NewKeyedMutex(0)
	var counter int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := km.Lock(context.Background(), "a")
			require.NoError(t, err)
			v := atomic.LoadInt64(&counter)
			time.Sleep(time.Microsecond)
			atomic.StoreInt64(&counter, v+1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(100), counter)
	assert.Equal(t, 0, km.size())
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	km := NewKeyedMutex(0)

	unlockA, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlockA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlockB, err := km.Lock(ctx, "b")
	require.NoError(t, err)
	unlockB()
}

func TestKeyedMutex_WaitTimeout(t *testing.T) {
	km := NewKeyedMutex(20 * time.Millisecond)

	unlock, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)

	_, err = km.Lock(context.Background(), "a")
	assert.ErrorIs(t, err, ErrLockTimeout)

	unlock()
	unlock()
	assert.Equal(t, 0, km.size())

	unlock, err = km.Lock(context.Background(), "a")
	require.NoError(t, err)
	unlock()
}

func TestKeyedMutex_ContextCancelled(t *testing.T) {
	km := NewKeyedMutex(0)

	unlock, err := km.Lock(context.Background(), "a")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = km.Lock(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
