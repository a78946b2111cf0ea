package storage

import (
	"sync"
	"time"
)

// idGenerator hands out process-wide unique int64 ids. Ids start from the
// current unix-millisecond clock (the data files already contain ids in that
// range) but are bumped under the lock so rapid successive calls, or a clock
// that stands still, can never produce the same id twice.
type idGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *idGenerator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := time.Now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

// Reserve moves the generator past every id already persisted so restarts
// never re-issue an id that exists on disk.
func (g *idGenerator) Reserve(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if id > g.last {
		g.last = id
	}
}
