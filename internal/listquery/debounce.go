package listquery

import (
	"sync"
	"time"
)

// Debouncer hands out one id per input change. Only the latest id is
// current, so a timer that fires for an older id is ignored.
type Debouncer struct {
	Delay time.Duration

	mu  sync.Mutex
	seq uint64
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{Delay: delay}
}

// Next records an input change and returns its id.
func (d *Debouncer) Next() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seq++
	return d.seq
}

// Current reports whether id is still the latest change.
func (d *Debouncer) Current(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return id == d.seq
}
