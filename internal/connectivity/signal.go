// Package connectivity tracks whether the device can reach the server.
//
// The boolean is derived from a persistent control-channel connection, not
// from probing individual requests: the watcher owns the underlying
// transport and is the only writer, every other component only reads.
package connectivity

import "sync"

// Signal is the observable online/offline flag.
//
// Subscribers receive edges (value changes), never repeats of the current
// value. The became-online channel is coalesced with a buffer of one, so a
// slow reconciler sees at most one wakeup per burst of reconnects.
type Signal struct {
	mu     sync.Mutex
	online bool
	subs   []chan bool
	onUp   chan struct{}
}

// NewSignal creates a signal in the offline state.
func NewSignal() *Signal {
	return &Signal{onUp: make(chan struct{}, 1)}
}

// Online reports the current state.
func (s *Signal) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// Set updates the state. Only edges notify: setting the current value
// again is a no-op. Safe for concurrent use, but by contract only the
// transport watcher calls it.
func (s *Signal) Set(online bool) {
	s.mu.Lock()
	if s.online == online {
		s.mu.Unlock()
		return
	}
	s.online = online
	subs := make([]chan bool, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, ch := range subs {
		// Non-blocking: a subscriber that stopped draining loses
		// intermediate edges, not the rest of the system.
		select {
		case ch <- online:
		default:
		}
	}

	if online {
		select {
		case s.onUp <- struct{}{}:
		default:
		}
	}
}

// Subscribe returns a channel receiving every state edge after the call.
// The channel is buffered; undrained edges are dropped for that
// subscriber only.
func (s *Signal) Subscribe() <-chan bool {
	ch := make(chan bool, 8)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

// BecameOnline returns the edge-triggered wakeup channel used by the sync
// reconciler. It fires only on offline→online transitions.
func (s *Signal) BecameOnline() <-chan struct{} {
	return s.onUp
}
