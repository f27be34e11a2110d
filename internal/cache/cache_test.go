package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nudge-sh/nudge/pkg/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_MissOnUnknownKey(t *testing.T) {
	c := New(10, 0.8)
	status, v := c.Get("nope")
	assert.Equal(t, Miss, status)
	assert.Nil(t, v)
}

func TestStoreGet_FreshThenStaleThenMiss(t *testing.T) {
	c := New(10, 0.8)
	key := Key("k1")
	ttl := 100 * time.Millisecond
	c.Store(key, protocol.Response{Suggestion: "git status"}, ttl, false, "cwd", "git")

	status, v := c.Get(key)
	require.Equal(t, Fresh, status)
	assert.Equal(t, "git status", v.Suggestion)

	time.Sleep(85 * time.Millisecond) // age >= 0.8*ttl, < ttl
	status, v = c.Get(key)
	assert.Equal(t, Stale, status)
	require.NotNil(t, v)

	time.Sleep(30 * time.Millisecond) // age >= ttl
	status, v = c.Get(key)
	assert.Equal(t, Miss, status)
	assert.Nil(t, v)
}

func TestStore_EvictsLeastRecentlyUsedAtCapacity(t *testing.T) {
	c := New(2, 0.8)
	c.Store("a", protocol.Response{Suggestion: "a"}, time.Minute, false, "", "")
	c.Store("b", protocol.Response{Suggestion: "b"}, time.Minute, false, "", "")

	// touch "a" so "b" becomes the LRU victim
	_, _ = c.Get("a")
	c.Store("c", protocol.Response{Suggestion: "c"}, time.Minute, false, "", "")

	status, _ := c.Get("b")
	assert.Equal(t, Miss, status, "b should have been evicted as least-recently-used")

	statusA, _ := c.Get("a")
	assert.Equal(t, Fresh, statusA)
	statusC, _ := c.Get("c")
	assert.Equal(t, Fresh, statusC)
	assert.Equal(t, 2, c.Len())
}

func TestSingleflight_CollapsesConcurrentCalls(t *testing.T) {
	c := New(10, 0.8)
	var calls int64

	var wg sync.WaitGroup
	results := make([]protocol.Response, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			v, err, _ := c.Singleflight("shared-key", func() (protocol.Response, error) {
				atomic.AddInt64(&calls, 1)
				time.Sleep(20 * time.Millisecond)
				return protocol.Response{Suggestion: "git status"}, nil
			})
			require.NoError(t, err)
			results[idx] = v
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, calls, "exactly one execution for N concurrent identical misses")
	for _, r := range results {
		assert.Equal(t, "git status", r.Suggestion)
	}
}

func TestTryMarkRefreshInFlight_OnlyOneWinner(t *testing.T) {
	c := New(10, 0.8)
	c.Store("k", protocol.Response{}, time.Minute, false, "", "")

	first := c.TryMarkRefreshInFlight("k")
	second := c.TryMarkRefreshInFlight("k")
	assert.True(t, first)
	assert.False(t, second)

	c.ClearRefreshInFlight("k")
	third := c.TryMarkRefreshInFlight("k")
	assert.True(t, third)
}

func TestTryMarkRefreshInFlight_MissingKeyIsFalse(t *testing.T) {
	c := New(10, 0.8)
	assert.False(t, c.TryMarkRefreshInFlight("missing"))
}

func TestInvalidateByContext_EvictsMatchingCWD(t *testing.T) {
	c := New(10, 0.8)
	c.Store("a", protocol.Response{}, time.Minute, false, "cwdA", "gitA")
	c.Store("b", protocol.Response{}, time.Minute, false, "cwdB", "gitB")

	n := c.InvalidateByContext("cwdA", "")
	assert.Equal(t, 1, n)

	statusA, _ := c.Get("a")
	assert.Equal(t, Miss, statusA)
	statusB, _ := c.Get("b")
	assert.Equal(t, Fresh, statusB)
}

func TestComputeKey_StableForSameInputsChangesOnAnyDimension(t *testing.T) {
	git := GitStateDescriptor{Branch: "main", DirtyCount: 0}
	base := ComputeKey("git st", 6, 256, "/tmp/proj", git, "zsh-inline")
	same := ComputeKey("git st", 6, 256, "/tmp/proj", git, "zsh-inline")
	assert.Equal(t, base, same)

	diffBuffer := ComputeKey("git co", 6, 256, "/tmp/proj", git, "zsh-inline")
	diffCWD := ComputeKey("git st", 6, 256, "/tmp/other", git, "zsh-inline")
	diffGit := ComputeKey("git st", 6, 256, "/tmp/proj", GitStateDescriptor{Branch: "dev"}, "zsh-inline")
	diffShell := ComputeKey("git st", 6, 256, "/tmp/proj", git, "bash-inline")

	assert.NotEqual(t, base, diffBuffer)
	assert.NotEqual(t, base, diffCWD)
	assert.NotEqual(t, base, diffGit)
	assert.NotEqual(t, base, diffShell)
}

func TestNormalizePrefix_TrimsTrailingWhitespaceBeforeCursor(t *testing.T) {
	assert.Equal(t, "git st", NormalizePrefix("git st  ", 8, 256))
}
