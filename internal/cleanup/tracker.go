package cleanup

import (
	"sync"

	"github.com/quantmind-br/upip/internal/fsops"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Tracker records temporary files created during a run and removes the ones
// still outstanding when the run ends
type Tracker struct {
	fs     afero.Fs
	paths  []string
	mu     sync.Mutex
	logger *zerolog.Logger
}

// NewTracker creates a new cleanup tracker
func NewTracker(fs afero.Fs, logger *zerolog.Logger) *Tracker {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Tracker{
		fs:     fs,
		paths:  make([]string, 0),
		logger: logger,
	}
}

// Track registers a temporary file
func (t *Tracker) Track(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, path)
}

// Untrack forgets the most recent registration of path, typically after it
// was renamed into place
func (t *Tracker) Untrack(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.paths) - 1; i >= 0; i-- {
		if t.paths[i] == path {
			t.paths = append(t.paths[:i], t.paths[i+1:]...)
			return
		}
	}
}

// Pending returns the tracked paths in registration order
func (t *Tracker) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.paths...)
}

// Cleanup removes every tracked file in reverse order and returns how many
// were removed. Failures are logged as warnings, never returned.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.paths) == 0 {
		return 0
	}

	removed := 0
	for i := len(t.paths) - 1; i >= 0; i-- {
		path := t.paths[i]
		t.logger.Debug().Str("path", path).Msg("removing temporary file")

		if !fsops.Exists(t.fs, path) {
			continue
		}
		if err := fsops.RemoveIfExists(t.fs, path); err != nil {
			t.logger.Warn().Err(err).Str("path", path).Msg("cannot remove temporary file")
			continue
		}
		removed++
	}

	t.paths = nil
	return removed
}
