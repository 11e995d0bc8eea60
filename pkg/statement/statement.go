package statement

import (
	"context"
	"sync"
	"time"

	"github.com/txn2/sqlgate/pkg/types"
)

// Page is one immutable slice of a result. Token n names the n-th page,
// starting at 1. Data holds values already encoded for the wire.
type Page struct {
	Token   int64
	Columns []types.Column
	Data    [][]any
	Last    bool

	// State and Rows are frozen when the page is produced so repeated polls
	// return identical results.
	State State
	Rows  int64
}

// Result is what a poll observes. A result without Columns is a state-only
// response; the client retries NextToken while HasNext is set.
type Result struct {
	ID        string
	State     State
	Columns   []types.Column
	Data      [][]any
	NextToken int64
	HasNext   bool
	Err       error
	Rows      int64
}

// Info is a point-in-time snapshot of a statement.
type Info struct {
	ID        string    `json:"queryId"`
	Query     string    `json:"query"`
	User      string    `json:"user,omitempty"`
	Schema    string    `json:"schema,omitempty"`
	State     string    `json:"state"`
	Error     string    `json:"error,omitempty"`
	Rows      int64     `json:"processedRows"`
	Pages     int64     `json:"pages"`
	CreatedAt time.Time `json:"createdAt"`
	EndedAt   time.Time `json:"endedAt,omitzero"`
}

// Statement is one asynchronous query. Its state and pages are guarded by
// its own mutex; identity fields are immutable.
type Statement struct {
	ID        string
	SQL       string
	User      string
	Schema    string
	CreatedAt time.Time

	mu         sync.Mutex
	state      State
	err        error
	pages      []*Page
	base       int64 // pages with Token <= base are released
	produced   int64
	served     int64
	rows       int64
	wake       chan struct{}
	cancel     context.CancelFunc
	lastPolled time.Time
	endedAt    time.Time
}

func newStatement(id, sql string, opts SubmitOptions, cancel context.CancelFunc, now time.Time) *Statement {
	return &Statement{
		ID:         id,
		SQL:        sql,
		User:       opts.User,
		Schema:     opts.Schema,
		CreatedAt:  now,
		state:      Queued,
		wake:       make(chan struct{}),
		cancel:     cancel,
		lastPolled: now,
	}
}

// State returns the current state.
func (s *Statement) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error record of a FAILED or CANCELLED statement.
func (s *Statement) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Info returns a snapshot.
func (s *Statement) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	info := Info{
		ID:        s.ID,
		Query:     s.SQL,
		User:      s.User,
		Schema:    s.Schema,
		State:     s.state.String(),
		Rows:      s.rows,
		Pages:     s.produced,
		CreatedAt: s.CreatedAt,
		EndedAt:   s.endedAt,
	}
	if s.err != nil {
		info.Error = s.err.Error()
	}
	return info
}

// signal wakes a worker blocked on backpressure. Caller holds mu.
func (s *Statement) signal() {
	close(s.wake)
	s.wake = make(chan struct{})
}

// transition applies e. A terminal Fail or Cancel drops buffered pages and
// cancels the computation. Caller holds mu.
func (s *Statement) transition(e Event, err error, now time.Time) error {
	next, terr := Transition(s.state, e)
	if terr != nil {
		return terr
	}
	s.state = next
	if !next.IsTerminal() {
		return nil
	}
	s.endedAt = now
	if next != Finished {
		s.err = err
		s.pages = nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.signal()
	return nil
}

// apply is transition under the lock.
func (s *Statement) apply(e Event, err error, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transition(e, err, now)
}

// addPage buffers the next page, blocking while prefetch unread pages are
// already buffered. The last page also moves the statement to FINISHED.
func (s *Statement) addPage(ctx context.Context, columns []types.Column, data [][]any, last bool, prefetch int, now func() time.Time) error {
	for {
		s.mu.Lock()
		if s.state.IsTerminal() {
			s.mu.Unlock()
			return ErrAlreadyTerminal
		}
		if s.produced-s.served < int64(prefetch) {
			s.produced++
			s.rows += int64(len(data))
			p := &Page{
				Token:   s.produced,
				Columns: columns,
				Data:    data,
				Last:    last,
				State:   Running,
				Rows:    s.rows,
			}
			if last {
				p.State = Finished
			}
			s.pages = append(s.pages, p)
			var err error
			if last {
				err = s.transition(EventFinish, nil, now())
			}
			s.mu.Unlock()
			return err
		}
		wake := s.wake
		s.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// poll serves the page after token. It never blocks on execution.
func (s *Statement) poll(token int64, now time.Time) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastPolled = now
	if s.state == Failed || s.state == Cancelled {
		return &Result{ID: s.ID, State: s.state, Err: s.err, Rows: s.rows}, nil
	}
	if token < s.base || token > s.produced {
		return nil, ErrInvalidToken
	}
	if token == s.produced {
		return &Result{
			ID:        s.ID,
			State:     s.state,
			NextToken: token,
			HasNext:   !s.state.IsTerminal(),
			Rows:      s.rows,
		}, nil
	}

	if drop := token - s.base; drop > 0 {
		clear(s.pages[:drop])
		s.pages = s.pages[drop:]
		s.base = token
	}
	p := s.pages[0]
	if p.Token > s.served {
		s.served = p.Token
		s.signal()
	}
	return &Result{
		ID:        s.ID,
		State:     p.State,
		Columns:   p.Columns,
		Data:      p.Data,
		NextToken: p.Token,
		HasNext:   !p.Last,
		Rows:      p.Rows,
	}, nil
}

// expired reports whether a terminal statement outlived retention.
func (s *Statement) expired(now time.Time, retention time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IsTerminal() && now.Sub(s.endedAt) >= retention
}

// idle reports whether a live statement has not been polled within timeout.
func (s *Statement) idle(now time.Time, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.state.IsTerminal() && now.Sub(s.lastPolled) >= timeout
}
