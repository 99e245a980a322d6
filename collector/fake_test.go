package collector

import (
	"context"
	"sync"
	"sync/atomic"

	"yunche.pro/dtsre/oracledb_exporter/dbutil"
)

type result struct {
	rows []dbutil.Row
	err  error
}

// fakeQuerier answers queries from a script. Each query consumes its
// results in order; the last one repeats.
type fakeQuerier struct {
	mu      sync.Mutex
	results map[string][]result
	block   map[string]chan struct{}
	started chan string
	calls   []string
}

func newFakeQuerier() *fakeQuerier {
	return &fakeQuerier{
		results: map[string][]result{},
		block:   map[string]chan struct{}{},
	}
}

func (q *fakeQuerier) on(query string, rows ...dbutil.Row) *fakeQuerier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results[query] = append(q.results[query], result{rows: rows})
	return q
}

func (q *fakeQuerier) fail(query string, err error) *fakeQuerier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results[query] = append(q.results[query], result{err: err})
	return q
}

func (q *fakeQuerier) FetchRowsWithContext(ctx context.Context, query string, _ ...interface{}) ([]dbutil.Row, error) {
	q.mu.Lock()
	q.calls = append(q.calls, query)
	var r result
	if rs := q.results[query]; len(rs) > 0 {
		r = rs[0]
		if len(rs) > 1 {
			q.results[query] = rs[1:]
		}
	}
	wait := q.block[query]
	started := q.started
	q.mu.Unlock()

	if started != nil {
		started <- query
	}
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return r.rows, r.err
}

func (q *fakeQuerier) Calls() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.calls...)
}

type fakeLease struct {
	*fakeQuerier
	releases   int32
	releaseErr error
}

func (l *fakeLease) Release() error {
	atomic.AddInt32(&l.releases, 1)
	return l.releaseErr
}

func (l *fakeLease) Releases() int {
	return int(atomic.LoadInt32(&l.releases))
}

type fakeLeaser struct {
	lease    *fakeLease
	err      error
	acquires int32
}

func (l *fakeLeaser) Acquire(context.Context) (Lease, error) {
	atomic.AddInt32(&l.acquires, 1)
	if l.err != nil {
		return nil, l.err
	}
	return l.lease, nil
}

func (l *fakeLeaser) Acquires() int {
	return int(atomic.LoadInt32(&l.acquires))
}

func testProbe(name, query string, labels ...string) Probe {
	return Probe{
		Name:        name,
		Help:        "test probe " + name,
		Metric:      "test_" + name + "_info",
		Query:       query,
		Labels:      labels,
		RowToLabels: columns(len(labels)),
	}
}

func mustRegistry(probes ...Probe) *Registry {
	r, err := NewRegistry(probes...)
	if err != nil {
		panic(err)
	}
	return r
}

func labelSets(series []Series) [][]string {
	out := make([][]string, 0, len(series))
	for _, s := range series {
		out = append(out, s.Labels)
	}
	return out
}
