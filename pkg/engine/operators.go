package engine

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/txn2/sqlgate/pkg/frame"
	"github.com/txn2/sqlgate/pkg/plan"
	"github.com/txn2/sqlgate/pkg/types"
)

type valuesOp struct {
	rows []frame.Row
	pos  int
}

func (v *valuesOp) Next(ctx context.Context) (frame.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if v.pos >= len(v.rows) {
		return nil, io.EOF
	}
	r := v.rows[v.pos]
	v.pos++
	return r, nil
}

func (v *valuesOp) Close() error { return nil }

type filterOp struct {
	in   frame.Iterator
	pred plan.Expr
}

func (f *filterOp) Next(ctx context.Context) (frame.Row, error) {
	for {
		r, err := f.in.Next(ctx)
		if err != nil {
			return nil, err
		}
		v, err := f.pred.Eval(r)
		if err != nil {
			return nil, err
		}
		if plan.Truthy(v) {
			return r, nil
		}
	}
}

func (f *filterOp) Close() error { return f.in.Close() }

type projectOp struct {
	in    frame.Iterator
	exprs []plan.Expr
}

func (p *projectOp) Next(ctx context.Context) (frame.Row, error) {
	r, err := p.in.Next(ctx)
	if err != nil {
		return nil, err
	}
	out := make(frame.Row, len(p.exprs))
	for i, e := range p.exprs {
		if out[i], err = e.Eval(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *projectOp) Close() error { return p.in.Close() }

// sortOp drains its input on the first Next.
type sortOp struct {
	in     frame.Iterator
	keys   []plan.SortKey
	rows   []frame.Row
	sorted bool
	pos    int
}

type keyed struct {
	row  frame.Row
	keys []any
}

func (s *sortOp) Next(ctx context.Context) (frame.Row, error) {
	if !s.sorted {
		if err := s.load(ctx); err != nil {
			return nil, err
		}
	}
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	r := s.rows[s.pos]
	s.rows[s.pos] = nil
	s.pos++
	return r, nil
}

func (s *sortOp) load(ctx context.Context) error {
	// Collect closes the input once drained, releasing any source cursor
	// before the sort runs.
	rows, err := frame.Collect(ctx, s.in)
	if err != nil {
		return err
	}
	items := make([]keyed, len(rows))
	for n, r := range rows {
		k := make([]any, len(s.keys))
		for i, key := range s.keys {
			if k[i], err = key.Expr.Eval(r); err != nil {
				return err
			}
		}
		items[n] = keyed{row: r, keys: k}
	}

	var cmpErr error
	sort.SliceStable(items, func(i, j int) bool {
		for n, key := range s.keys {
			c, err := plan.CompareNullsLast(items[i].keys[n], items[j].keys[n])
			if err != nil {
				cmpErr = err
				return false
			}
			if c == 0 {
				continue
			}
			if key.Desc && !types.IsNull(items[i].keys[n]) && !types.IsNull(items[j].keys[n]) {
				c = -c
			}
			return c < 0
		}
		return false
	})
	if cmpErr != nil {
		return cmpErr
	}

	s.rows = make([]frame.Row, len(items))
	for i, it := range items {
		s.rows[i] = it.row
	}
	s.sorted = true
	return nil
}

func (s *sortOp) Close() error {
	s.rows = nil
	return s.in.Close()
}

type limitOp struct {
	in        frame.Iterator
	remaining int64
}

func (l *limitOp) Next(ctx context.Context) (frame.Row, error) {
	if l.remaining <= 0 {
		return nil, io.EOF
	}
	r, err := l.in.Next(ctx)
	if err != nil {
		return nil, err
	}
	l.remaining--
	return r, nil
}

func (l *limitOp) Close() error { return l.in.Close() }

type distinctOp struct {
	in   frame.Iterator
	seen map[string]struct{}
}

func (d *distinctOp) Next(ctx context.Context) (frame.Row, error) {
	for {
		r, err := d.in.Next(ctx)
		if err != nil {
			return nil, err
		}
		k := rowKey(r)
		if _, dup := d.seen[k]; dup {
			continue
		}
		d.seen[k] = struct{}{}
		return r, nil
	}
}

func (d *distinctOp) Close() error {
	d.seen = nil
	return d.in.Close()
}

// rowKey renders a row so that equal rows, including rows whose NULLs use
// different sentinels, produce equal keys.
func rowKey(r frame.Row) string {
	var b strings.Builder
	for i, v := range r {
		if i > 0 {
			b.WriteByte(0)
		}
		if types.IsNull(v) {
			b.WriteString("\x01null")
			continue
		}
		fmt.Fprintf(&b, "%T:%v", v, v)
	}
	return b.String()
}
