package chat

import (
	"errors"
	"sync"
)

var errTooManySessions = errors.New("too many sessions with in flight exchanges")

// sessionLocks serializes exchanges per session. Entries are removed once no
// exchange holds or waits on them, so the map only grows with concurrency.
type sessionLocks struct {
	edit         sync.Mutex
	queueLengths map[string]int
	mutexes      map[string]*sync.Mutex
	maxSize      int
}

func newSessionLocks(maxSize int) *sessionLocks {
	return &sessionLocks{
		queueLengths: make(map[string]int),
		mutexes:      make(map[string]*sync.Mutex),
		maxSize:      maxSize,
	}
}

func (m *sessionLocks) Lock(sessionID string) error {
	m.edit.Lock()

	mu := m.mutexes[sessionID]
	if mu == nil {
		if len(m.mutexes) >= m.maxSize {
			m.edit.Unlock()
			return errTooManySessions
		}

		mu = &sync.Mutex{}
		m.mutexes[sessionID] = mu
		m.queueLengths[sessionID] = 0
	}

	m.queueLengths[sessionID]++
	m.edit.Unlock()

	mu.Lock()

	return nil
}

func (m *sessionLocks) Unlock(sessionID string) {
	m.edit.Lock()
	defer m.edit.Unlock()

	mu := m.mutexes[sessionID]
	if mu == nil {
		return
	}

	mu.Unlock()
	m.queueLengths[sessionID]--

	if m.queueLengths[sessionID] == 0 {
		delete(m.mutexes, sessionID)
		delete(m.queueLengths, sessionID)
	}
}

func (m *sessionLocks) Len() int {
	m.edit.Lock()
	defer m.edit.Unlock()
	return len(m.mutexes)
}
