package canvas

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Close()

	var calls atomic.Int32
	var last atomic.Int32
	for i := 1; i <= 5; i++ {
		i := i
		d.Trigger("k", func() {
			calls.Add(1)
			last.Store(int32(i))
		})
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(5), last.Load())
}

func TestDebouncerKeysAreIndependent(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	defer d.Close()

	var mu sync.Mutex
	fired := map[string]bool{}
	mark := func(key string) func() {
		return func() {
			mu.Lock()
			fired[key] = true
			mu.Unlock()
		}
	}

	// Triggering b right after a must not cancel a's pending call.
	d.Trigger("a", mark("a"))
	d.Trigger("b", mark("b"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return fired["a"] && fired["b"]
	}, time.Second, 5*time.Millisecond)
}

func TestDebouncerFlush(t *testing.T) {
	d := NewDebouncer(time.Hour)
	defer d.Close()

	var ran bool
	d.Trigger("k", func() { ran = true })

	assert.True(t, d.Flush("k"))
	assert.True(t, ran)
	assert.False(t, d.Flush("k"))
	assert.Zero(t, d.Len())
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Close()

	var ran atomic.Bool
	d.Trigger("k", func() { ran.Store(true) })
	d.Cancel("k")

	time.Sleep(30 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestDebouncerCloseFlushesPending(t *testing.T) {
	d := NewDebouncer(time.Hour)

	var flushed []string
	d.Trigger("a", func() { flushed = append(flushed, "a") })
	d.Trigger("b", func() { flushed = append(flushed, "b") })

	d.Close()
	assert.ElementsMatch(t, []string{"a", "b"}, flushed)

	// Triggers after close are dropped.
	d.Trigger("c", func() { flushed = append(flushed, "c") })
	assert.Len(t, flushed, 2)
}
