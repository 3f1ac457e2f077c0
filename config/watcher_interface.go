package config

// Watcher hands out the configuration currently in force. Long-running
// surfaces read it per request so edits apply without a restart.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}

// Static is a Watcher over a fixed configuration, used when no file is
// being watched.
type Static struct {
	cfg *Config
}

var _ Watcher = (*Static)(nil)

// NewStatic wraps cfg.
func NewStatic(cfg *Config) *Static {
	return &Static{cfg: cfg}
}

func (s *Static) GetCurrentConfig() *Config { return s.cfg }

// Subscribe returns a channel that never fires.
func (s *Static) Subscribe() <-chan *Config { return make(chan *Config) }

func (s *Static) Close() error { return nil }
