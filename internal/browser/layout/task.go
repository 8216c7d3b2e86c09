// internal/browser/layout/task.go
package layout

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-domcore/internal/browser/dom"
)

var (
	// ErrNotRendered means the node has no box: it is not laid out, detached, or
	// the layout task did not answer before the caller's deadline.
	ErrNotRendered = errors.New("layout: node is not rendered")
	// ErrTaskStopped is wrapped into ErrNotRendered when the task is not running.
	ErrTaskStopped = errors.New("layout: task stopped")
)

// QueryKind selects what a Query asks for.
type QueryKind int

const (
	// ContentBoxQuery asks for the node's content box.
	ContentBoxQuery QueryKind = iota
)

// Query is the request half of the layout protocol.
type Query struct {
	ID   string
	Kind QueryKind
	Node dom.Handle

	reply chan Reply
}

// Reply is the response half. Err is ErrNotRendered when the node has no box.
type Reply struct {
	ID   string
	Rect Rect
	Err  error
}

// Task owns the layout state of one document and answers queries over a channel.
// The boxes map is only touched by the Run goroutine.
type Task struct {
	doc    *dom.Document
	engine *Engine
	logger *zap.Logger

	requests chan Query
	reflows  chan chan error
	done     chan struct{}
	running  atomic.Bool

	boxes      map[dom.NodeID]Dimensions
	generation uint64
	laidOut    bool
}

// NewTask creates a layout task for doc. queueSize bounds the number of pending
// queries.
func NewTask(doc *dom.Document, engine *Engine, logger *zap.Logger, queueSize int) *Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	if queueSize < 0 {
		queueSize = 0
	}
	return &Task{
		doc:      doc,
		engine:   engine,
		logger:   logger.Named("layout_task"),
		requests: make(chan Query, queueSize),
		reflows:  make(chan chan error),
		done:     make(chan struct{}),
	}
}

// Run serves queries until ctx is done. It may be called only once.
func (t *Task) Run(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return fmt.Errorf("layout task already started")
	}
	defer close(t.done)

	t.logger.Debug("Layout task started")
	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("Layout task stopping", zap.Error(ctx.Err()))
			return nil
		case q := <-t.requests:
			t.serve(q)
		case ack := <-t.reflows:
			ack <- t.reflow()
		}
	}
}

// Done is closed once Run has returned.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

func (t *Task) serve(q Query) {
	reply := Reply{ID: q.ID}
	defer func() { q.reply <- reply }()

	if q.Kind != ContentBoxQuery {
		reply.Err = fmt.Errorf("layout: unsupported query kind %d", q.Kind)
		return
	}
	if err := t.ensureLayout(); err != nil {
		reply.Err = fmt.Errorf("%w: %w", ErrNotRendered, err)
		return
	}
	dims, ok := t.boxes[q.Node.ID]
	if !ok {
		reply.Err = ErrNotRendered
		return
	}
	reply.Rect = dims.Content
}

// ensureLayout recomputes boxes when the document changed since the last pass.
func (t *Task) ensureLayout() error {
	if t.laidOut && t.doc.Generation() == t.generation {
		return nil
	}
	return t.reflow()
}

func (t *Task) reflow() error {
	gen := t.doc.Generation()
	boxes, err := t.engine.Compute(t.doc)
	if err != nil {
		t.logger.Error("Layout pass failed", zap.Error(err))
		return err
	}
	t.boxes = boxes
	t.generation = gen
	t.laidOut = true
	t.logger.Debug("Layout pass complete", zap.Int("boxes", len(boxes)), zap.Uint64("generation", gen))
	return nil
}

// Reflow forces a layout pass and waits for it.
func (t *Task) Reflow(ctx context.Context) error {
	ack := make(chan error, 1)
	select {
	case t.reflows <- ack:
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrTaskStopped
	}
	select {
	case err := <-ack:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueryContentBox asks the task for the content box of h and blocks for the
// reply. If ctx expires or the task stops first, the result is ErrNotRendered
// wrapping the cause.
func (t *Task) QueryContentBox(ctx context.Context, h dom.Handle) (Rect, error) {
	q := Query{
		ID:    uuid.NewString(),
		Kind:  ContentBoxQuery,
		Node:  h,
		reply: make(chan Reply, 1),
	}

	select {
	case t.requests <- q:
	case <-ctx.Done():
		return Rect{}, fmt.Errorf("%w: %w", ErrNotRendered, ctx.Err())
	case <-t.done:
		return Rect{}, fmt.Errorf("%w: %w", ErrNotRendered, ErrTaskStopped)
	}

	select {
	case r := <-q.reply:
		return r.Rect, r.Err
	case <-ctx.Done():
		return Rect{}, fmt.Errorf("%w: %w", ErrNotRendered, ctx.Err())
	case <-t.done:
		// The reply may have been sent just before the task stopped.
		select {
		case r := <-q.reply:
			return r.Rect, r.Err
		default:
		}
		return Rect{}, fmt.Errorf("%w: %w", ErrNotRendered, ErrTaskStopped)
	}
}
