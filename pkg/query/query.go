package query

import (
	"context"
	"sync"

	"github.com/fedsim/fedsim-go/pkg/option"
	"github.com/fedsim/fedsim-go/pkg/status"
)

// Executor answers queries. Federates, cores and brokers implement it.
type Executor interface {
	Query(ctx context.Context, target, query string, mode option.SequencingMode) (string, error)
}

// Query is a reusable (target, query string) pair.
type Query struct {
	mu     sync.Mutex
	target string
	query  string
	mode   option.SequencingMode

	pending *operation
}

type operation struct {
	done   chan struct{}
	result string
	err    error
}

// New creates a query with the default sequencing mode.
func New(target, query string) *Query {
	return &Query{target: target, query: query, mode: option.SequencingDefault}
}

// Target returns the query target.
func (q *Query) Target() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.target
}

// SetTarget changes the target.
func (q *Query) SetTarget(target string) {
	q.mu.Lock()
	q.target = target
	q.mu.Unlock()
}

// QueryString returns the query string.
func (q *Query) QueryString() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.query
}

// SetQueryString changes the query string.
func (q *Query) SetQueryString(query string) {
	q.mu.Lock()
	q.query = query
	q.mu.Unlock()
}

// Ordering returns the sequencing mode.
func (q *Query) Ordering() option.SequencingMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.mode
}

// SetOrdering changes the sequencing mode.
func (q *Query) SetOrdering(mode option.SequencingMode) error {
	switch mode {
	case option.SequencingFast, option.SequencingOrdered, option.SequencingDefault:
	default:
		return status.Errorf(status.KindInvalidArgument, "invalid sequencing mode %d", int(mode))
	}
	q.mu.Lock()
	q.mode = mode
	q.mu.Unlock()
	return nil
}

// Execute runs the query on ex and blocks for the answer.
func (q *Query) Execute(ctx context.Context, ex Executor) (string, error) {
	if ex == nil {
		return "", status.Errorf(status.KindInvalidArgument, "query executor is required")
	}
	q.mu.Lock()
	target, query, mode := q.target, q.query, q.mode
	q.mu.Unlock()
	if query == "" {
		return "", status.Errorf(status.KindInvalidArgument, "query string is empty")
	}
	return ex.Query(ctx, target, query, mode)
}

// ExecuteAsync starts the query without blocking. Only one asynchronous
// execution may be outstanding per query.
func (q *Query) ExecuteAsync(ctx context.Context, ex Executor) error {
	q.mu.Lock()
	if q.pending != nil {
		q.mu.Unlock()
		return status.Errorf(status.KindInvalidState, "query already executing")
	}
	op := &operation{done: make(chan struct{})}
	q.pending = op
	q.mu.Unlock()

	go func() {
		op.result, op.err = q.Execute(ctx, ex)
		close(op.done)
	}()
	return nil
}

// IsCompleted reports whether the asynchronous execution has an answer.
// It never blocks.
func (q *Query) IsCompleted() bool {
	q.mu.Lock()
	op := q.pending
	q.mu.Unlock()
	if op == nil {
		return false
	}
	select {
	case <-op.done:
		return true
	default:
		return false
	}
}

// ExecuteComplete waits for the asynchronous execution and returns its
// answer.
func (q *Query) ExecuteComplete() (string, error) {
	q.mu.Lock()
	op := q.pending
	q.mu.Unlock()
	if op == nil {
		return "", status.Errorf(status.KindInvalidState, "no asynchronous query outstanding")
	}
	<-op.done

	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
	return op.result, op.err
}
