package matchqueue

import (
	"context"
	"log"
	"time"

	"github.com/pvparena/typing-arena/internal/registry"
)

// Pairer creates a match for two queue entries once they are popped
// off the head of the queue. A non-nil error means pair-off must roll
// the two entries back onto the queue.
type Pairer interface {
	CreateMatch(ctx context.Context, a, b Entry) error
}

// Notifier is the narrow slice of the Session Registry the queue needs
// to announce size changes and staleness evictions.
type Notifier interface {
	EmitToUser(userID string, event registry.Event)
}

type joinRequest struct {
	entry Entry
	reply chan int
}

type leaveRequest struct {
	userID string
	reply  chan bool
}

type queryRequest struct {
	userID string
	reply  chan bool
}

type sizeRequest struct {
	reply chan int
}

// pairOutcome is how a pairing goroutine reports the result of a
// CreateMatch call back to the actor's own mailbox.
type pairOutcome struct {
	a, b Entry
	err  error
}

// Queue is a single-owner actor: one goroutine holds the orderedQueue
// and processes join/leave/tick commands off a mailbox, so "at most
// one entry per user" and "pair-off sees a consistent ordered
// sequence" hold without a separate mutex. Pair-off's storage I/O
// never runs on this goroutine: each pair is created on its own
// goroutine, which reports back through the pairResults mailbox so the
// actor keeps draining joins/leaves/ticks while that I/O is in flight.
type Queue struct {
	pairer   Pairer
	notifier Notifier
	timeout  time.Duration

	joins       chan joinRequest
	leaves      chan leaveRequest
	queries     chan queryRequest
	sizes       chan sizeRequest
	ticks       chan time.Time
	pairResults chan pairOutcome
	done        chan struct{}
}

func New(pairer Pairer, notifier Notifier, queueTimeout time.Duration) *Queue {
	q := &Queue{
		pairer:      pairer,
		notifier:    notifier,
		timeout:     queueTimeout,
		joins:       make(chan joinRequest),
		leaves:      make(chan leaveRequest),
		queries:     make(chan queryRequest),
		sizes:       make(chan sizeRequest),
		ticks:       make(chan time.Time, 1),
		pairResults: make(chan pairOutcome, 8),
		done:        make(chan struct{}),
	}
	go q.run()
	return q
}

// Close stops the actor goroutine. Pending calls block forever if
// issued after Close; callers must stop calling before shutdown
// completes.
func (q *Queue) Close() {
	close(q.done)
}

// Join enqueues userID if not already present, returning the queue
// size after the operation. A duplicate join is a no-op that returns
// the current size, not an error.
func (q *Queue) Join(userID, username string, conn interface{}) int {
	reply := make(chan int, 1)
	q.joins <- joinRequest{entry: Entry{UserID: userID, Username: username, Conn: conn, JoinedAt: time.Now()}, reply: reply}
	return <-reply
}

// Leave removes userID, reporting whether it was present.
func (q *Queue) Leave(userID string) bool {
	reply := make(chan bool, 1)
	q.leaves <- leaveRequest{userID: userID, reply: reply}
	return <-reply
}

// IsInQueue reports whether userID currently has a queued entry.
func (q *Queue) IsInQueue(userID string) bool {
	reply := make(chan bool, 1)
	q.queries <- queryRequest{userID: userID, reply: reply}
	return <-reply
}

// Size reports the current queue length.
func (q *Queue) Size() int {
	reply := make(chan int, 1)
	q.sizes <- sizeRequest{reply: reply}
	return <-reply
}

// Tick triggers a staleness eviction pass, meant to be driven by the
// Lifecycle Manager's cleanup scheduler every CLEANUP_INTERVAL.
func (q *Queue) Tick() {
	select {
	case q.ticks <- time.Now():
	default:
		// a tick is already pending; the next one will cover this pass too.
	}
}

func (q *Queue) run() {
	state := newOrderedQueue()

	for {
		select {
		case <-q.done:
			return

		case req := <-q.joins:
			if state.contains(req.entry.UserID) {
				req.reply <- state.len()
				continue
			}
			state.append(&req.entry)
			size := state.len()
			req.reply <- size
			q.notifier.EmitToUser(req.entry.UserID, registry.Event{
				Type:    "pvp:queue_joined",
				Payload: map[string]interface{}{"queueSize": size, "message": "You have joined the matchmaking queue."},
			})
			q.broadcastQueueStatus(state)
			q.pairOff(state)

		case req := <-q.leaves:
			removed := state.removeByID(req.userID) != nil
			req.reply <- removed
			if removed {
				q.notifier.EmitToUser(req.userID, registry.Event{
					Type:    "pvp:queue_left",
					Payload: map[string]string{"message": "You have left the matchmaking queue."},
				})
				q.broadcastQueueStatus(state)
			}

		case req := <-q.queries:
			req.reply <- state.contains(req.userID)

		case req := <-q.sizes:
			req.reply <- state.len()

		case now := <-q.ticks:
			evicted := state.evictStale(now, q.timeout)
			for _, e := range evicted {
				q.notifier.EmitToUser(e.UserID, registry.Event{
					Type:    "pvp:queue_timeout",
					Payload: map[string]string{"message": "You have been removed from the queue due to inactivity."},
				})
			}
			if len(evicted) > 0 {
				q.broadcastQueueStatus(state)
			}

		case res := <-q.pairResults:
			if res.err != nil {
				log.Printf("matchqueue: pair-off failed for %s/%s, rolling back: %v", res.a.UserID, res.b.UserID, res.err)
				a, b := res.a, res.b
				state.prependBatch([]*Entry{&a, &b})
				q.broadcastQueueStatus(state)
			}
		}
	}
}

// broadcastQueueStatus notifies every currently-queued player of the
// new queue size.
func (q *Queue) broadcastQueueStatus(state *orderedQueue) {
	size := state.len()
	for _, e := range state.entries {
		q.notifier.EmitToUser(e.UserID, registry.Event{
			Type:    "pvp:queue_status",
			Payload: map[string]int{"queueSize": size},
		})
	}
}

// pairOff pops every currently pairable entry off the head of the
// queue and hands each pair to the coordinator on its own goroutine.
// It only ever touches in-memory state itself; the CreateMatch I/O
// runs off the actor goroutine, reporting its outcome back through
// pairResults so a slow or failing pairing never blocks the next
// join/leave/tick.
func (q *Queue) pairOff(state *orderedQueue) {
	dispatched := false
	for state.len() >= 2 {
		a, b := state.popOldestPair()
		dispatched = true
		go q.createMatch(*a, *b)
	}
	if dispatched {
		q.broadcastQueueStatus(state)
	}
}

func (q *Queue) createMatch(a, b Entry) {
	err := q.pairer.CreateMatch(context.Background(), a, b)
	q.pairResults <- pairOutcome{a: a, b: b, err: err}
}
