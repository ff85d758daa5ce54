package matchqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pvparena/typing-arena/internal/registry"
	"github.com/stretchr/testify/assert"
)

type fakePairer struct {
	mu      sync.Mutex
	pairs   [][2]Entry
	failFor map[string]bool
}

func newFakePairer() *fakePairer {
	return &fakePairer{failFor: make(map[string]bool)}
}

func (p *fakePairer) CreateMatch(ctx context.Context, a, b Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failFor[a.UserID] || p.failFor[b.UserID] {
		return errors.New("storage failure")
	}
	p.pairs = append(p.pairs, [2]Entry{a, b})
	return nil
}

func (p *fakePairer) pairCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pairs)
}

type fakeNotifier struct {
	mu     sync.Mutex
	events map[string][]registry.Event
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{events: make(map[string][]registry.Event)}
}

func (n *fakeNotifier) EmitToUser(userID string, event registry.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[userID] = append(n.events[userID], event)
}

func (n *fakeNotifier) countType(userID, eventType string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	count := 0
	for _, e := range n.events[userID] {
		if e.Type == eventType {
			count++
		}
	}
	return count
}

// waitFor polls cond until it's true or the deadline passes, needed
// because pair-off now completes asynchronously off the actor
// goroutine.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	if !cond() {
		t.Fatal("condition not met before deadline")
	}
}

func TestQueue_JoinTriggersPairOff(t *testing.T) {
	pairer := newFakePairer()
	notifier := newFakeNotifier()
	q := New(pairer, notifier, 30*time.Second)
	defer q.Close()

	assert.Equal(t, 1, q.Join("a", "Alice", nil))
	assert.Equal(t, 2, q.Join("b", "Bob", nil))

	waitFor(t, func() bool { return pairer.pairCount() == 1 })
	assert.Zero(t, q.Size())
}

func TestQueue_DuplicateJoinIsNoop(t *testing.T) {
	pairer := newFakePairer()
	notifier := newFakeNotifier()
	q := New(pairer, notifier, 30*time.Second)
	defer q.Close()

	q.Join("a", "Alice", nil)
	size := q.Join("a", "Alice", nil)

	assert.Equal(t, 1, size)
	assert.True(t, q.IsInQueue("a"))
}

func TestQueue_ZeroOrOneEntryPairOffNoop(t *testing.T) {
	pairer := newFakePairer()
	notifier := newFakeNotifier()
	q := New(pairer, notifier, 30*time.Second)
	defer q.Close()

	q.Join("a", "Alice", nil)

	assert.Zero(t, pairer.pairCount())
}

func TestQueue_LeaveWhenAbsentReturnsFalse(t *testing.T) {
	pairer := newFakePairer()
	notifier := newFakeNotifier()
	q := New(pairer, notifier, 30*time.Second)
	defer q.Close()

	assert.False(t, q.Leave("ghost"))
}

func TestQueue_DuplicateJoinThenPairOffCreatesOnlyOneMatch(t *testing.T) {
	pairer := newFakePairer()
	notifier := newFakeNotifier()
	q := New(pairer, notifier, 30*time.Second)
	defer q.Close()

	q.Join("a", "Alice", nil)
	q.Join("a", "Alice", nil)
	q.Join("b", "Bob", nil)

	waitFor(t, func() bool { return pairer.pairCount() == 1 })
}

func TestQueue_PairOffStorageFailureRollsBack(t *testing.T) {
	pairer := newFakePairer()
	pairer.failFor["a"] = true
	notifier := newFakeNotifier()
	q := New(pairer, notifier, 30*time.Second)
	defer q.Close()

	q.Join("a", "Alice", nil)
	q.Join("b", "Bob", nil)

	waitFor(t, func() bool { return q.Size() == 2 })
	assert.Zero(t, pairer.pairCount())
	assert.True(t, q.IsInQueue("a"))
	assert.True(t, q.IsInQueue("b"))
}

func TestQueue_ImmediateTickDoesNotEvictFreshJoin(t *testing.T) {
	pairer := newFakePairer()
	notifier := newFakeNotifier()
	timeout := 30 * time.Second
	q := New(pairer, notifier, timeout)
	defer q.Close()

	q.Join("a", "Alice", nil)

	// Force the entry's joinedAt into the past by leaving and rejoining
	// is not representative; instead exercise the boundary via the
	// underlying evictStale unit directly (see queue_test.go), and here
	// only assert that a fresh join is never evicted by an immediate tick.
	q.Tick()
	time.Sleep(20 * time.Millisecond)

	assert.True(t, q.IsInQueue("a"))
}

func TestQueue_EvictedUserReceivesTimeoutAndCanRejoin(t *testing.T) {
	pairer := newFakePairer()
	notifier := newFakeNotifier()
	q := New(pairer, notifier, 10*time.Millisecond)
	defer q.Close()

	q.Join("a", "Alice", nil)
	time.Sleep(20 * time.Millisecond)
	q.Tick()
	time.Sleep(20 * time.Millisecond)

	assert.False(t, q.IsInQueue("a"))
	assert.Equal(t, 1, notifier.countType("a", "pvp:queue_timeout"))

	// a may rejoin after eviction.
	assert.Equal(t, 1, q.Join("a", "Alice", nil))
}
