// Package refresh provides the versioned notification that tells list views to refetch.
package refresh

import (
	"context"
	"sync"
)

// Version identifies one firing of a Signal. Only inequality is meaningful.
type Version uint64

// Signal is a monotonically versioned one-shot notification. Subscribers always observe the
// latest version; intermediate versions may be coalesced but an update is never lost.
type Signal struct {
	mu      sync.Mutex
	version Version
	subs    map[chan Version]struct{}
}

func NewSignal() *Signal {
	return &Signal{subs: make(map[chan Version]struct{})}
}

// Fire advances the version and notifies every subscriber.
func (s *Signal) Fire() Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.version++
	for ch := range s.subs {
		// drop an unread older version so the buffer always holds the newest
		select {
		case <-ch:
		default:
		}
		ch <- s.version
	}
	return s.version
}

// Version returns the current version without waiting.
func (s *Signal) Version() Version {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Subscribe returns a channel receiving versions fired after the call. The channel is closed once ctx is done.
func (s *Signal) Subscribe(ctx context.Context) <-chan Version {
	ch := make(chan Version, 1)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, ch)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}
