// Package session owns all mutable conversation state. Sessions are created
// lazily on first touch and live in memory only; by default they are never
// evicted (matching the reference behavior), with an opt-in TTL for
// deployments that cannot afford unbounded growth.
package session

import (
	"sync"
	"sync/atomic"
	"time"

	"fixmantra-backend/internal/metrics"
)

// Slot names the pieces of information captured during the booking flow.
type Slot string

const (
	SlotName    Slot = "name"
	SlotEmail   Slot = "email"
	SlotPhone   Slot = "phone"
	SlotAddress Slot = "address"
	SlotDevice  Slot = "device"
	SlotProblem Slot = "problem"
)

// Slots lists every slot in a fixed order.
var Slots = []Slot{SlotName, SlotEmail, SlotPhone, SlotAddress, SlotDevice, SlotProblem}

// Session is one conversation's state. The store hands out copies; callers
// never share a live Session across turns.
type Session struct {
	ID        string
	Context   string // "" means no context
	Slots     map[Slot]string
	UpdatedAt time.Time
}

func newSession(id string) *Session {
	return &Session{ID: id, Slots: make(map[Slot]string)}
}

func (s *Session) clone() *Session {
	cp := *s
	cp.Slots = make(map[Slot]string, len(s.Slots))
	for k, v := range s.Slots {
		cp.Slots[k] = v
	}
	return &cp
}

// Slot returns the value of a slot, if set.
func (s *Session) Slot(k Slot) (string, bool) {
	v, ok := s.Slots[k]
	return v, ok
}

// SetSlot writes a slot value.
func (s *Session) SetSlot(k Slot, v string) {
	s.Slots[k] = v
}

// ClearSlot deletes a slot.
func (s *Session) ClearSlot(k Slot) {
	delete(s.Slots, k)
}

// entry pairs a session value with the mutex that serializes its turns.
// The value is nil until a turn commits, so a declined first turn leaves
// nothing behind. Committed values are immutable; a commit swaps the
// pointer, which lets readers load it without taking the turn mutex.
type entry struct {
	mu sync.Mutex
	s  atomic.Pointer[Session]
}

// load returns the committed session, or nil when none exists or it has
// passed the TTL.
func (e *entry) load(ttl time.Duration) *Session {
	s := e.s.Load()
	if s == nil {
		return nil
	}
	if ttl > 0 && time.Since(s.UpdatedAt) > ttl {
		return nil
	}
	return s
}

// Store is a concurrency-safe keyed session map. Whole turns on the same
// session id are serialized by a per-session mutex; distinct sessions only
// ever contend on the brief map lookup. The store mutex is never held while
// waiting on an entry mutex, so a slow turn cannot stall unrelated sessions.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	live     int // committed sessions not yet swept
	ttl      time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{sessions: make(map[string]*entry), ttl: ttl}
}

func (st *Store) acquire(id string) *entry {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		e = &entry{}
		st.sessions[id] = e
	}
	return e
}

// lockEntry returns the entry for id with its turn mutex held. If the sweeper
// removed the entry between lookup and lock, the held entry is re-adopted
// (its stale value dropped) so a commit can never land in a detached entry.
func (st *Store) lockEntry(id string) *entry {
	for {
		e := st.acquire(id)
		e.mu.Lock()
		st.mu.Lock()
		cur, ok := st.sessions[id]
		if !ok {
			e.s.Store(nil)
			st.sessions[id] = e
			cur = e
		}
		st.mu.Unlock()
		if cur == e {
			return e
		}
		e.mu.Unlock()
	}
}

// Turn runs one serialized unit of work against the session. fn receives a
// working copy (empty when the id is new or expired) and reports whether to
// commit; reads, mutations and any rendering done inside fn are atomic with
// respect to other turns on the same id. When fn declines or fails and
// nothing was ever committed for the id, no session is retained. The
// returned session is the caller's own copy of the committed state, nil when
// nothing was committed.
func (st *Store) Turn(id string, fn func(*Session) (bool, error)) (*Session, error) {
	e := st.lockEntry(id)
	committed := false
	defer func() {
		if !committed {
			st.evictIfEmpty(id, e)
		}
		e.mu.Unlock()
	}()

	var work *Session
	if cur := e.load(st.ttl); cur != nil {
		work = cur.clone()
	} else {
		work = newSession(id)
	}

	commit, err := fn(work)
	if err != nil || !commit {
		return nil, err
	}

	work.UpdatedAt = time.Now()
	fresh := e.s.Load() == nil
	e.s.Store(work)
	committed = true
	if fresh {
		st.mu.Lock()
		st.live++
		metrics.SetActiveSessions(st.live)
		st.mu.Unlock()
	}
	return work.clone(), nil
}

// Update is Turn with unconditional commit on success.
func (st *Store) Update(id string, fn func(*Session) error) (*Session, error) {
	return st.Turn(id, func(s *Session) (bool, error) {
		if err := fn(s); err != nil {
			return false, err
		}
		return true, nil
	})
}

// evictIfEmpty drops the entry when it never received a commit, so ids that
// only ever produced declined turns do not accumulate.
func (st *Store) evictIfEmpty(id string, e *entry) {
	if e.s.Load() != nil {
		return
	}
	st.mu.Lock()
	if st.sessions[id] == e {
		delete(st.sessions, id)
	}
	st.mu.Unlock()
}

// Snapshot returns a copy of the session, without creating one. Reads go
// through the atomic session pointer and never wait on an in-flight turn.
func (st *Store) Snapshot(id string) (*Session, bool) {
	st.mu.Lock()
	e, ok := st.sessions[id]
	st.mu.Unlock()
	if !ok {
		return nil, false
	}
	s := e.load(st.ttl)
	if s == nil {
		return nil, false
	}
	return s.clone(), true
}

// Context returns the session's current context, or "" when the session does
// not exist or has none.
func (st *Store) Context(id string) string {
	s, ok := st.Snapshot(id)
	if !ok {
		return ""
	}
	return s.Context
}

// Len reports the number of committed sessions held (expired sessions count
// until swept).
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.live
}

// Sweep drops expired sessions and returns how many were removed. Entries
// whose turn mutex is held are mid-turn and skipped; they are not idle. A
// no-op when no TTL is configured.
func (st *Store) Sweep() int {
	if st.ttl == 0 {
		return 0
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, e := range st.sessions {
		if !e.mu.TryLock() {
			continue
		}
		s := e.s.Load()
		expired := s != nil && time.Since(s.UpdatedAt) > st.ttl
		if s == nil || expired {
			delete(st.sessions, id)
			if expired {
				st.live--
				removed++
			}
		}
		e.mu.Unlock()
	}
	metrics.SetActiveSessions(st.live)
	return removed
}
