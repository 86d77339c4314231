package runtime

import (
	"context"
	"sync"

	"github.com/nixlabs/nix-engine/pkg/nix/instruction"
)

// ticket pairs a submission id (used to route its Result back to the
// caller that submitted it) with the envelope itself.
type ticket struct {
	id  uint64
	env instruction.Envelope
}

// priorityQueue buckets pending instructions into the same three-class FIFO
// ordering pkg/app/core/mempool.Mempool uses: non-order (here, the seven
// admin/setup tags), cancel, then order. Within a bucket, admission order is
// preserved.
type priorityQueue struct {
	mu     sync.Mutex
	admin  []ticket
	cancel []ticket
	order  []ticket
	notify chan struct{}
}

func newPriorityQueue() *priorityQueue {
	return &priorityQueue{notify: make(chan struct{}, 1)}
}

func bucketFor(tag instruction.Tag) int {
	switch tag {
	case instruction.TagCancelOrder:
		return 1
	case instruction.TagPlaceOrder:
		return 2
	default:
		return 0
	}
}

func (q *priorityQueue) push(t ticket) {
	q.mu.Lock()
	switch bucketFor(t.env.Tag) {
	case 0:
		q.admin = append(q.admin, t)
	case 1:
		q.cancel = append(q.cancel, t)
	default:
		q.order = append(q.order, t)
	}
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// pop returns the next ticket in admin -> cancel -> order priority, or
// ok=false if every bucket is empty.
func (q *priorityQueue) pop() (ticket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, bucket := range []*[]ticket{&q.admin, &q.cancel, &q.order} {
		if len(*bucket) > 0 {
			t := (*bucket)[0]
			*bucket = (*bucket)[1:]
			return t, true
		}
	}
	return ticket{}, false
}

func (q *priorityQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.admin) + len(q.cancel) + len(q.order)
}

// Dispatcher drains a single priority queue of submitted instructions one at
// a time on its own goroutine, calling Engine.Apply for each and handing the
// Result to the channel Submit returned for that instruction. This is the
// concrete form of "the host's transaction execution owns the exclusive
// borrow of every account buffer for the duration of one dispatch": no two
// instructions are ever applied concurrently, without needing a mutex around
// Engine's own fields — only the queue and the pending-result map are
// synchronized.
type Dispatcher struct {
	engine *Engine
	queue  *priorityQueue

	pending   map[uint64]chan Result
	pendingMu sync.Mutex
	nextID    uint64
}

// NewDispatcher wraps engine in a single-goroutine dispatch loop.
func NewDispatcher(engine *Engine) *Dispatcher {
	return &Dispatcher{
		engine:  engine,
		queue:   newPriorityQueue(),
		pending: make(map[uint64]chan Result),
	}
}

// Run drains the queue until ctx is cancelled. Intended to be started once,
// in its own goroutine, by the process's main function.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.queue.notify:
		}
		for {
			t, ok := d.queue.pop()
			if !ok {
				break
			}
			res := d.engine.Apply(ctx, t.env)
			d.deliver(t.id, res)
		}
	}
}

// Submit enqueues env and returns a channel that receives exactly one
// Result once the dispatcher has processed it.
func (d *Dispatcher) Submit(env instruction.Envelope) <-chan Result {
	d.pendingMu.Lock()
	d.nextID++
	id := d.nextID
	ch := make(chan Result, 1)
	d.pending[id] = ch
	d.pendingMu.Unlock()

	d.queue.push(ticket{id: id, env: env})
	return ch
}

func (d *Dispatcher) deliver(id uint64, res Result) {
	d.pendingMu.Lock()
	ch, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.pendingMu.Unlock()
	if ok {
		ch <- res
		close(ch)
	}
}

// Len reports how many instructions are queued but not yet applied.
func (d *Dispatcher) Len() int { return d.queue.len() }
