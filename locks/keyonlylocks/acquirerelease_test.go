package keyonlylocks

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireLocksAllOrNothing(t *testing.T) {
	var store sync.Map
	held, ok := AcquireLocks(&store, []string{"b"})
	require.True(t, ok)

	_, ok = AcquireLocks(&store, []string{"a", "b", "c"})
	assert.False(t, ok)
	_, loaded := store.Load("a")
	assert.False(t, loaded, "rolled back")

	ReleaseLocks(&store, held)
	got, ok := AcquireLocks(&store, []string{"c", "a", "b"})
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestActionLocks(t *testing.T) {
	var l ActionLocks
	release, ok := l.TryAcquire(ExportKey("offer-1"))
	require.True(t, ok)

	_, ok = l.TryAcquire(ExportKey("offer-1"))
	assert.False(t, ok)
	other, ok := l.TryAcquire(ExportKey("offer-2"))
	assert.True(t, ok)
	other()

	release()
	release()
	again, ok := l.TryAcquire(ExportKey("offer-1"))
	assert.True(t, ok)
	again()
}
