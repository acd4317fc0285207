package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warelay/internal/pkg/errs"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.Nil(t, r.Register("u1", "c1", nil))

	entry := r.Lookup("u1")
	require.NotNil(t, entry)
	assert.Equal(t, "u1", entry.UserID)
	assert.Equal(t, "c1", entry.ClientID)

	owner, ok := r.OwnerOf("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", owner)
}

func TestRegistry_RejectsDuplicateUser(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.Nil(t, r.Register("u1", "c1", nil))

	regErr := r.Register("u1", "c2", nil)
	require.NotNil(t, regErr)
	assert.Equal(t, errs.ErrAlreadyConnected, regErr.Code)
}

func TestRegistry_RejectsClientOwningTwoUsers(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.Nil(t, r.Register("u1", "c1", nil))

	regErr := r.Register("u2", "c1", nil)
	require.NotNil(t, regErr)
	assert.Equal(t, errs.ErrAlreadyConnected, regErr.Code)
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.Nil(t, r.Register("u1", "c1", nil))

	r.Unregister("u1")
	r.Unregister("u1")

	assert.Nil(t, r.Lookup("u1"))
	_, ok := r.OwnerOf("c1")
	assert.False(t, ok)
}

func TestRegistry_UnregisterFreesClientForReuse(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.Nil(t, r.Register("u1", "c1", nil))
	r.Unregister("u1")

	require.Nil(t, r.Register("u2", "c1", nil))
}

func TestRegistry_UnregisterOwnedGuardsStaleClient(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	require.Nil(t, r.Register("u1", "clientB", nil))

	// A teardown triggered by an older owner must not remove the newer entry.
	removed := r.UnregisterOwned("u1", "clientA")
	assert.False(t, removed)
	require.NotNil(t, r.Lookup("u1"))

	removed = r.UnregisterOwned("u1", "clientB")
	assert.True(t, removed)
	assert.Nil(t, r.Lookup("u1"))
}

func TestRegistry_ConcurrentRegisterSingleWinner(t *testing.T) {
	t.Parallel()
	r := NewRegistry()

	const attempts = 50

	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			regErr := r.Register("u1", fmt.Sprintf("c%d", i), nil)
			if regErr != nil {
				results <- regErr
			} else {
				results <- nil
			}
		}(i)
	}

	wg.Wait()
	close(results)

	winners := 0
	for err := range results {
		if err == nil {
			winners++
		}
	}

	assert.Equal(t, 1, winners, "exactly one concurrent register must win")
	require.NotNil(t, r.Lookup("u1"))
}
