package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_RecordAndRecent(t *testing.T) {
	s := NewStore(3)
	s.Record("sess1", Entry{Command: "git status"})
	s.Record("sess1", Entry{Command: "git add ."})
	s.Record("sess1", Entry{Command: "git commit"})

	recent := s.Recent("sess1", 10)
	require.Len(t, recent, 3)
	assert.Equal(t, "git status", recent[0].Command)
	assert.Equal(t, "git commit", recent[2].Command)
}

func TestStore_RingOverwritesOldest(t *testing.T) {
	s := NewStore(2)
	s.Record("sess1", Entry{Command: "one"})
	s.Record("sess1", Entry{Command: "two"})
	s.Record("sess1", Entry{Command: "three"})

	recent := s.Recent("sess1", 10)
	require.Len(t, recent, 2)
	assert.Equal(t, "two", recent[0].Command)
	assert.Equal(t, "three", recent[1].Command)
}

func TestStore_RecentLimitsCount(t *testing.T) {
	s := NewStore(10)
	for i := 0; i < 5; i++ {
		s.Record("sess1", Entry{Command: "cmd"})
	}
	recent := s.Recent("sess1", 2)
	assert.Len(t, recent, 2)
}

func TestStore_UnknownSessionIsEmpty(t *testing.T) {
	s := NewStore(5)
	assert.Empty(t, s.Recent("missing", 10))
}

func TestStore_ForgetDropsHistory(t *testing.T) {
	s := NewStore(5)
	s.Record("sess1", Entry{Command: "a"})
	s.Forget("sess1")
	assert.Empty(t, s.Recent("sess1", 10))
}

func TestStore_IgnoresEmptySessionID(t *testing.T) {
	s := NewStore(5)
	s.Record("", Entry{Command: "a"})
	assert.Empty(t, s.Recent("", 10))
}

func TestStore_SimilarTo(t *testing.T) {
	s := NewStore(10)
	s.Record("sess1", Entry{Command: "git commit -m fix", Timestamp: time.Now()})
	s.Record("sess1", Entry{Command: "ls -la", Timestamp: time.Now()})
	s.Record("sess1", Entry{Command: "git commit -m feature", Timestamp: time.Now()})

	ranked := s.SimilarTo("sess1", "git commit -m wip", 10, 5)
	require.Len(t, ranked, 2)
	assert.Equal(t, "git commit -m feature", ranked[0].Entry.Command)
	assert.Equal(t, "git commit -m fix", ranked[1].Entry.Command)
}

func TestStore_SimilarToRespectsMax(t *testing.T) {
	s := NewStore(10)
	s.Record("sess1", Entry{Command: "git push"})
	s.Record("sess1", Entry{Command: "git pull"})
	s.Record("sess1", Entry{Command: "git fetch"})

	ranked := s.SimilarTo("sess1", "git status", 10, 1)
	assert.Len(t, ranked, 1)
}

func TestJaccard(t *testing.T) {
	a := termSet("git commit -m fix")
	b := termSet("git commit -m feature")
	score := jaccard(a, b)
	assert.Greater(t, score, 0.0)
	assert.Less(t, score, 1.0)

	assert.Equal(t, 1.0, jaccard(map[string]bool{}, map[string]bool{}))
	assert.Equal(t, 0.0, jaccard(map[string]bool{"a": true}, map[string]bool{}))
}
