package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transition struct {
	userID int
	online bool
}

func recordingRegistry() (*Registry, *[]transition, *sync.Mutex) {
	var mu sync.Mutex
	var seen []transition
	reg := NewRegistry(func(userID int, online bool) {
		mu.Lock()
		seen = append(seen, transition{userID, online})
		mu.Unlock()
	})
	return reg, &seen, &mu
}

func TestAttachDetachEdges(t *testing.T) {
	reg, seen, _ := recordingRegistry()

	reg.Attach(1, "c1")
	require.True(t, reg.IsOnline(1))
	reg.Attach(1, "c2")
	reg.Attach(1, "c2") // idempotent per connection id
	require.True(t, reg.IsOnline(1))

	reg.Detach(1, "c1")
	assert.True(t, reg.IsOnline(1), "one connection remains")
	reg.Detach(1, "c2")
	assert.False(t, reg.IsOnline(1))

	require.Equal(t, []transition{{1, true}, {1, false}}, *seen)
}

func TestDetachUnknownConnectionIsNoop(t *testing.T) {
	reg, seen, _ := recordingRegistry()

	reg.Detach(1, "ghost")
	assert.Empty(t, *seen)

	reg.Attach(1, "c1")
	reg.Detach(1, "ghost")
	assert.True(t, reg.IsOnline(1))
	require.Equal(t, []transition{{1, true}}, *seen)
}

func TestUnauthenticatedIgnored(t *testing.T) {
	reg, seen, _ := recordingRegistry()

	reg.Attach(0, "c1")
	reg.Attach(-3, "c2")
	reg.Attach(1, "")
	reg.Detach(0, "c1")

	assert.False(t, reg.IsOnline(0))
	assert.Equal(t, 0, reg.OnlineCount())
	assert.Empty(t, *seen)
}

func TestTwoUsersScenario(t *testing.T) {
	reg, seen, _ := recordingRegistry()

	reg.Attach(1, "a1")
	reg.Attach(1, "a2")
	reg.Attach(2, "b1")

	// A's second connection drops: still online, no offline edge.
	reg.Detach(1, "a2")
	assert.True(t, reg.IsOnline(1))
	require.Equal(t, []transition{{1, true}, {2, true}}, *seen)

	// A's last connection drops: exactly one offline edge.
	reg.Detach(1, "a1")
	assert.False(t, reg.IsOnline(1))
	assert.True(t, reg.IsOnline(2))
	require.Equal(t, []transition{{1, true}, {2, true}, {1, false}}, *seen)
}

func TestReattachAfterOfflineFiresAgain(t *testing.T) {
	reg, seen, _ := recordingRegistry()

	reg.Attach(5, "x")
	reg.Detach(5, "x")
	reg.Attach(5, "y")

	require.Equal(t, []transition{{5, true}, {5, false}, {5, true}}, *seen)
}

func TestConcurrentAttachDetachSingleEdgePair(t *testing.T) {
	reg, seen, mu := recordingRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			reg.Attach(9, id+"x")
			reg.Detach(9, id+"x")
		}(i)
	}
	wg.Wait()

	assert.False(t, reg.IsOnline(9))
	mu.Lock()
	defer mu.Unlock()
	online, offline := 0, 0
	for _, tr := range *seen {
		require.Equal(t, 9, tr.userID)
		if tr.online {
			online++
		} else {
			offline++
		}
	}
	assert.Equal(t, online, offline, "every online edge pairs with an offline edge")
}

func TestConcurrentEdgesDeliverInStateOrder(t *testing.T) {
	reg, seen, mu := recordingRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", n)
			reg.Attach(9, id)
			reg.Detach(9, id)
		}(i)
	}
	wg.Wait()

	assert.False(t, reg.IsOnline(9))
	mu.Lock()
	defer mu.Unlock()
	// The user's state strictly alternates absent/present, so delivered
	// edges must alternate too, starting online and ending offline. An
	// offline broadcast overtaken by a racing online one would invert the
	// final state seen by observers.
	require.True(t, len(*seen)%2 == 0)
	for i, tr := range *seen {
		require.Equal(t, 9, tr.userID)
		require.Equal(t, i%2 == 0, tr.online, "edge %d out of order", i)
	}
}
