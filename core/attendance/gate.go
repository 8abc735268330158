package attendance

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
)

var errWritePanicked = errors.New("guarded write panicked")

// Gate serializes ledger writes per logical key and short-circuits duplicate
// near-simultaneous requests.
//
// Within one process it guarantees a total order of operations per key: a
// caller finding a write in flight for its key awaits that write's result
// instead of starting its own. Settled results are kept in a bounded cache
// for a short window so duplicate scans (double-taps, scanner retries) are
// answered without a storage round trip.
//
// This is a single-process optimization, not the correctness backstop: the
// DB uniqueness constraints are what prevent duplicate records across
// instances.
type Gate struct {
	mu       sync.Mutex
	inflight map[string]*call
	cache    map[string]*list.Element
	order    *list.List // *cacheEntry, oldest first

	ttl time.Duration
	cap int

	nowFunc func() time.Time // mockable
}

type call struct {
	done    chan struct{}
	share   bool
	settled bool
	res     RecordResult
	err     error
}

type cacheEntry struct {
	key       string
	res       RecordResult
	expiresAt time.Time
}

func NewGate(ttl time.Duration, capacity int) *Gate {
	return &Gate{
		inflight: make(map[string]*call),
		cache:    make(map[string]*list.Element),
		order:    list.New(),
		ttl:      ttl,
		cap:      capacity,
		nowFunc:  time.Now,
	}
}

// ClassKey is the logical key of a classroom ledger write.
func ClassKey(studentID, date string, session Session) string {
	return fmt.Sprintf("class|%s|%s|%s", studentID, date, session)
}

// GateKey is the logical key of a gate ledger write.
func GateKey(studentID, date string) string {
	return fmt.Sprintf("gate|%s|%s", studentID, date)
}

// Do runs fn under the key's serialization guarantee. shared is true when the
// returned result was not produced by this caller's own fn invocation (it was
// served from the result cache or from an in-flight duplicate). Only scans go
// through Do: its results may be shared with, and served to, other scans.
func (g *Gate) Do(key string, fn func() (RecordResult, error)) (res RecordResult, shared bool, err error) {
	return g.do(key, fn, true)
}

// DoFresh runs fn under the key's serialization guarantee without consulting
// the result cache: fn always runs, and the key's cached result is dropped so
// a pre-write scan result can never be served after it. Decision-carrying
// writes (manual entries, verifications, sweeps, reconciliations) must go
// through DoFresh.
func (g *Gate) DoFresh(key string, fn func() (RecordResult, error)) (RecordResult, error) {
	res, _, err := g.do(key, fn, false)
	return res, err
}

func (g *Gate) do(key string, fn func() (RecordResult, error), share bool) (res RecordResult, shared bool, err error) {
	g.mu.Lock()
	for {
		if e, ok := g.cache[key]; ok {
			ce := e.Value.(*cacheEntry)
			if share && g.nowFunc().Before(ce.expiresAt) {
				g.mu.Unlock()
				return ce.res, true, nil
			}
			g.evict(e)
		}
		c, ok := g.inflight[key]
		if !ok {
			break
		}
		g.mu.Unlock()
		<-c.done
		if share && c.share {
			return c.res, true, c.err
		}
		// the settled write cannot answer this caller; take the key and run
		g.mu.Lock()
	}

	c := &call{done: make(chan struct{}), share: share}
	g.inflight[key] = c
	g.mu.Unlock()

	// The in-flight entry is cleared unconditionally once fn settles so a
	// panicking caller cannot wedge the key forever.
	defer func() {
		if !c.settled {
			c.err = errWritePanicked
		}
		g.mu.Lock()
		delete(g.inflight, key)
		if c.share && c.err == nil {
			g.put(key, c.res)
		}
		g.mu.Unlock()
		close(c.done)
	}()

	c.res, c.err = fn()
	c.settled = true
	return c.res, false, c.err
}

// put caches a settled result, evicting expired then oldest entries to stay
// within capacity. A non-positive TTL or capacity disables caching entirely.
// Caller must hold g.mu.
func (g *Gate) put(key string, res RecordResult) {
	if g.ttl <= 0 || g.cap <= 0 {
		return
	}
	now := g.nowFunc()
	for e := g.order.Front(); e != nil; {
		next := e.Next()
		if now.Before(e.Value.(*cacheEntry).expiresAt) {
			break
		}
		g.evict(e)
		e = next
	}
	if e, ok := g.cache[key]; ok {
		g.evict(e)
	}
	for g.order.Len() >= g.cap {
		g.evict(g.order.Front())
	}
	elem := g.order.PushBack(&cacheEntry{key: key, res: res, expiresAt: now.Add(g.ttl)})
	g.cache[key] = elem
}

// evict removes one cache entry. Caller must hold g.mu.
func (g *Gate) evict(e *list.Element) {
	ce := g.order.Remove(e).(*cacheEntry)
	delete(g.cache, ce.key)
}

// CachedLen reports the current result cache size (test hook).
func (g *Gate) CachedLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.order.Len()
}
