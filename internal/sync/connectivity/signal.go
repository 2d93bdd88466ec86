// Package connectivity tracks whether the remote booking API is reachable.
package connectivity

import (
	"bookingsync/pkg/logger"
	"sync"
)

// Monitor is the connectivity port consumed by the sync coordinator.
type Monitor interface {
	Online() bool
	// Subscribe delivers the new state after every transition. Slow readers
	// only ever see the latest state. The returned func unsubscribes.
	Subscribe() (<-chan bool, func())
}

// Signal is a Monitor whose state is pushed by its owner: the prober, the
// host application through the control API, or a test.
//
// A state pinned by the host outranks observations until it is released.
type Signal struct {
	mu     sync.Mutex
	online bool
	pinned bool
	subs   map[int]chan bool
	nextID int
	log    *logger.Logger
}

func NewSignal(online bool, log *logger.Logger) *Signal {
	return &Signal{
		online: online,
		subs:   make(map[int]chan bool),
		log:    log.WithComponent("connectivity"),
	}
}

func (s *Signal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set records the current state and reports whether it changed.
func (s *Signal) Set(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(online)
}

// Pin fixes the state until Release. Observations are ignored meanwhile.
func (s *Signal) Pin(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned = true
	return s.setLocked(online)
}

// Release hands the state back to observations and reports whether a pin
// was held. The current state is kept until the next observation.
func (s *Signal) Release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	held := s.pinned
	s.pinned = false
	return held
}

// Pinned reports whether the host currently holds the state.
func (s *Signal) Pinned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pinned
}

// Observe records a measured state unless the host pinned one.
func (s *Signal) Observe(online bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pinned {
		return false
	}
	return s.setLocked(online)
}

func (s *Signal) setLocked(online bool) bool {
	if s.online == online {
		return false
	}
	s.online = online
	s.log.Info("Connectivity changed", "online", online)

	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- online
	}
	return true
}

func (s *Signal) Subscribe() (<-chan bool, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan bool, 1)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}
