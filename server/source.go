package server

import (
	"sync"

	"github.com/teilomillet/lucid/config"
	"github.com/teilomillet/lucid/wrapper"
)

// wrapperSource rebuilds the wrapper whenever the watcher hands out a new
// configuration, and reuses it otherwise.
type wrapperSource struct {
	watcher config.Watcher
	lookup  func(string) (string, bool)
	options []wrapper.Option

	mu      sync.Mutex
	cfg     *config.Config
	current *wrapper.Wrapper
	err     error
}

func (s *wrapperSource) Current() (*wrapper.Wrapper, error) {
	cfg := s.watcher.GetCurrentConfig()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cfg != s.cfg {
		effective := *cfg
		if s.lookup != nil {
			effective.ApplyEnv(s.lookup)
		}
		s.cfg = cfg
		s.current, s.err = wrapper.FromConfig(&effective, s.options...)
	}
	return s.current, s.err
}
