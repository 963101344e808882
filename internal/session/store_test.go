package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateCreatesLazily(t *testing.T) {
	st := NewStore(0)

	_, ok := st.Snapshot("s1")
	assert.False(t, ok)

	s, err := st.Update("s1", func(s *Session) error {
		s.Context = "awaiting_name"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", s.ID)
	assert.Equal(t, "awaiting_name", s.Context)
	assert.Equal(t, 1, st.Len())
}

func TestUpdateCommitsOnlyOnSuccess(t *testing.T) {
	st := NewStore(0)
	_, err := st.Update("s1", func(s *Session) error {
		s.SetSlot(SlotName, "John Smith")
		return nil
	})
	require.NoError(t, err)

	_, err = st.Update("s1", func(s *Session) error {
		s.SetSlot(SlotName, "garbage")
		s.Context = "half-applied"
		return errors.New("boom")
	})
	require.Error(t, err)

	snap, ok := st.Snapshot("s1")
	require.True(t, ok)
	name, _ := snap.Slot(SlotName)
	assert.Equal(t, "John Smith", name)
	assert.Empty(t, snap.Context)
}

func TestSnapshotIsACopy(t *testing.T) {
	st := NewStore(0)
	_, err := st.Update("s1", func(s *Session) error {
		s.SetSlot(SlotEmail, "a@b.c")
		return nil
	})
	require.NoError(t, err)

	snap, ok := st.Snapshot("s1")
	require.True(t, ok)
	snap.SetSlot(SlotEmail, "tampered")
	snap.Context = "tampered"

	fresh, ok := st.Snapshot("s1")
	require.True(t, ok)
	email, _ := fresh.Slot(SlotEmail)
	assert.Equal(t, "a@b.c", email)
	assert.Empty(t, fresh.Context)
}

func TestContext(t *testing.T) {
	st := NewStore(0)
	assert.Empty(t, st.Context("nope"))

	_, err := st.Update("s1", func(s *Session) error {
		s.Context = "awaiting_phone"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "awaiting_phone", st.Context("s1"))
}

func TestConcurrentUpdatesSameSession(t *testing.T) {
	st := NewStore(0)
	const n = 100

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := st.Update("s1", func(s *Session) error {
				// Read-modify-write; lost updates would show up as a
				// shorter value.
				v, _ := s.Slot(SlotProblem)
				s.SetSlot(SlotProblem, v+"x")
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, ok := st.Snapshot("s1")
	require.True(t, ok)
	v, _ := snap.Slot(SlotProblem)
	assert.Len(t, v, n)
}

func TestConcurrentDistinctSessions(t *testing.T) {
	st := NewStore(0)
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		for i := 0; i < 25; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := st.Update(id, func(s *Session) error {
					s.SetSlot(SlotDevice, id)
					return nil
				})
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()
	assert.Equal(t, 4, st.Len())
}

func TestTTLExpiry(t *testing.T) {
	st := NewStore(20 * time.Millisecond)
	_, err := st.Update("s1", func(s *Session) error {
		s.Context = "awaiting_name"
		return nil
	})
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	// Expired on read.
	_, ok := st.Snapshot("s1")
	assert.False(t, ok)
	assert.Empty(t, st.Context("s1"))

	// A fresh touch starts a new session rather than reviving the old one.
	s, err := st.Update("s1", func(s *Session) error { return nil })
	require.NoError(t, err)
	assert.Empty(t, s.Context)
}

func TestTurnDeclinedCommitRetainsNothing(t *testing.T) {
	st := NewStore(0)

	s, err := st.Turn("s1", func(s *Session) (bool, error) {
		s.SetSlot(SlotName, "discarded")
		return false, nil
	})
	require.NoError(t, err)
	assert.Nil(t, s)
	_, ok := st.Snapshot("s1")
	assert.False(t, ok)
	assert.Zero(t, st.Len(), "a declined first turn must leave nothing behind")

	// A declined turn on an existing session leaves it as it was.
	_, err = st.Update("s2", func(s *Session) error {
		s.Context = "awaiting_email"
		s.SetSlot(SlotName, "John Smith")
		return nil
	})
	require.NoError(t, err)

	_, err = st.Turn("s2", func(s *Session) (bool, error) {
		s.Context = "half-applied"
		s.SetSlot(SlotName, "garbage")
		return false, nil
	})
	require.NoError(t, err)

	snap, ok := st.Snapshot("s2")
	require.True(t, ok)
	assert.Equal(t, "awaiting_email", snap.Context)
	name, _ := snap.Slot(SlotName)
	assert.Equal(t, "John Smith", name)
}

func TestSweepSkipsSessionMidTurn(t *testing.T) {
	st := NewStore(20 * time.Millisecond)
	_, err := st.Update("s1", func(s *Session) error { return nil })
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := st.Turn("s1", func(s *Session) (bool, error) {
			close(entered)
			<-release
			s.Context = "awaiting_name"
			return true, nil
		})
		done <- err
	}()
	<-entered

	// The session is past its TTL but mid-turn; the sweeper must leave it
	// alone rather than discard the commit in flight.
	assert.Zero(t, st.Sweep())
	close(release)
	require.NoError(t, <-done)

	snap, ok := st.Snapshot("s1")
	require.True(t, ok)
	assert.Equal(t, "awaiting_name", snap.Context)
}

func TestCommitVisibleUnderSweepPressure(t *testing.T) {
	st := NewStore(25 * time.Millisecond)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				st.Sweep()
				time.Sleep(time.Millisecond)
			}
		}
	}()

	// Each round lets the previous session expire, so the sweeper races the
	// next update's entry lookup. A just-committed session must always be
	// visible afterwards.
	for i := 0; i < 10; i++ {
		_, err := st.Update("s1", func(s *Session) error {
			s.SetSlot(SlotDevice, "laptop")
			return nil
		})
		require.NoError(t, err)
		_, ok := st.Snapshot("s1")
		require.True(t, ok, "commit lost during round %d", i)
		time.Sleep(50 * time.Millisecond)
	}
	close(stop)
	wg.Wait()
}

func TestSweep(t *testing.T) {
	st := NewStore(20 * time.Millisecond)
	for _, id := range []string{"a", "b"} {
		_, err := st.Update(id, func(s *Session) error { return nil })
		require.NoError(t, err)
	}
	assert.Zero(t, st.Sweep())

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 2, st.Sweep())
	assert.Zero(t, st.Len())

	// No TTL, no sweeping.
	forever := NewStore(0)
	_, err := forever.Update("a", func(s *Session) error { return nil })
	require.NoError(t, err)
	assert.Zero(t, forever.Sweep())
	assert.Equal(t, 1, forever.Len())
}
