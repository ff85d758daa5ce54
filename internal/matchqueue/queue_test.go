package matchqueue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedQueue_AppendPreservesFIFOOrder(t *testing.T) {
	q := newOrderedQueue()
	q.append(&Entry{UserID: "a"})
	q.append(&Entry{UserID: "b"})
	q.append(&Entry{UserID: "c"})

	a, b := q.popOldestPair()
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.Equal(t, "a", a.UserID)
	assert.Equal(t, "b", b.UserID)
	assert.Equal(t, 1, q.len())
}

func TestOrderedQueue_PopOldestPairNoopBelowTwo(t *testing.T) {
	q := newOrderedQueue()
	a, b := q.popOldestPair()
	assert.Nil(t, a)
	assert.Nil(t, b)

	q.append(&Entry{UserID: "a"})
	a, b = q.popOldestPair()
	assert.Nil(t, a)
	assert.Nil(t, b)
}

func TestOrderedQueue_PrependBatchRestoresHeadOrder(t *testing.T) {
	q := newOrderedQueue()
	q.append(&Entry{UserID: "c"})
	a, b := &Entry{UserID: "a"}, &Entry{UserID: "b"}
	q.prependBatch([]*Entry{a, b})

	assert.Equal(t, []string{"a", "b", "c"}, ids(q.entries))
	assert.True(t, q.contains("a"))
	assert.True(t, q.contains("b"))
	assert.True(t, q.contains("c"))
}

func TestOrderedQueue_RemoveByIDReindexes(t *testing.T) {
	q := newOrderedQueue()
	q.append(&Entry{UserID: "a"})
	q.append(&Entry{UserID: "b"})
	q.append(&Entry{UserID: "c"})

	removed := q.removeByID("b")
	require.NotNil(t, removed)
	assert.Equal(t, "b", removed.UserID)
	assert.Equal(t, 1, q.positions["c"])
}

func TestOrderedQueue_RemoveByIDAbsentReturnsNil(t *testing.T) {
	q := newOrderedQueue()
	assert.Nil(t, q.removeByID("ghost"))
}

func TestOrderedQueue_EvictStale_ExactBoundaryIsNotEvicted(t *testing.T) {
	q := newOrderedQueue()
	now := time.Now()
	q.append(&Entry{UserID: "a", JoinedAt: now.Add(-30 * time.Second)})

	evicted := q.evictStale(now, 30*time.Second)
	assert.Empty(t, evicted)
}

func TestOrderedQueue_EvictStale_PastBoundaryIsEvicted(t *testing.T) {
	q := newOrderedQueue()
	now := time.Now()
	q.append(&Entry{UserID: "a", JoinedAt: now.Add(-30*time.Second - time.Millisecond)})

	evicted := q.evictStale(now, 30*time.Second)
	require.Len(t, evicted, 1)
	assert.Equal(t, "a", evicted[0].UserID)
	assert.Zero(t, q.len())
}

func ids(entries []*Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.UserID
	}
	return out
}
