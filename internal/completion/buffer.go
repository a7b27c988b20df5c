// Package completion streams incremental chat-completion responses and
// buffers the decoded events for a polling consumer.
//
// The ingestion worker and the polling UI never meet: the worker
// appends decoded events under a per-process buffer, and the UI drains
// them whenever it likes. Delivery is lossless and non-duplicating —
// every event shows up in exactly one drain batch, in append order.
package completion

import "sync"

// Buffer maps request ids to their pending event queues plus the set
// of ids whose ingestion has been canceled.
//
// Entries for a request are evicted on the first drain after its
// stream reached a terminal state, so completed streams don't
// accumulate for the life of the process. Live streams keep their
// entries until then.
type Buffer struct {
	mu       sync.Mutex
	pending  map[uint64][]string
	canceled map[uint64]struct{}
	terminal map[uint64]struct{}
}

// NewBuffer creates an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		pending:  make(map[uint64][]string),
		canceled: make(map[uint64]struct{}),
		terminal: make(map[uint64]struct{}),
	}
}

// Track registers id as an outstanding stream so a cancel-all issued
// before the first event still reaches it.
func (b *Buffer) Track(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pending[id]; !ok {
		b.pending[id] = nil
	}
	delete(b.terminal, id)
}

// Append adds one decoded event to the id's queue, creating the queue
// on first use. Unbounded between drains.
func (b *Buffer) Append(id uint64, event string) {
	b.mu.Lock()
	b.pending[id] = append(b.pending[id], event)
	b.mu.Unlock()
}

// Drain atomically takes the id's queued events, in append order, and
// resets the queue. Events appended after a drain begins belong to the
// next batch — no loss, no duplication, no reordering.
//
// If the id's stream has already terminated, the drain that takes the
// final batch also evicts all state for the id.
func (b *Buffer) Drain(id uint64) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := b.pending[id]
	if _, done := b.terminal[id]; done {
		delete(b.pending, id)
		delete(b.canceled, id)
		delete(b.terminal, id)
	} else if _, ok := b.pending[id]; ok {
		b.pending[id] = nil
	}
	return events
}

// Cancel marks the id so its ingestion loop halts at the next frame
// boundary. Already-buffered events stay available for a final drain.
func (b *Buffer) Cancel(id uint64) {
	b.mu.Lock()
	b.canceled[id] = struct{}{}
	b.mu.Unlock()
}

// CancelAll marks every outstanding id canceled.
func (b *Buffer) CancelAll() {
	b.mu.Lock()
	for id := range b.pending {
		b.canceled[id] = struct{}{}
	}
	b.mu.Unlock()
}

// Canceled reports whether the id has been marked.
func (b *Buffer) Canceled(id uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.canceled[id]
	return ok
}

// Finish marks the id's stream terminal: done sentinel seen, natural
// end of stream, cancellation observed, or ingestion error.
func (b *Buffer) Finish(id uint64) {
	b.mu.Lock()
	b.terminal[id] = struct{}{}
	b.mu.Unlock()
}
