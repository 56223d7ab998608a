package cloud

import (
	"io"
	"sync"
	"time"
)

// Tracker is a finite stream of transfer percentages. Values are
// monotonically non-decreasing in [0,100]; a successful transfer always ends
// with exactly 100 before the channel closes, a failed one closes without
// reaching it. A Tracker serves one transfer and is not restartable.
type Tracker struct {
	ch       chan int
	interval time.Duration

	mu       sync.Mutex
	last     int
	lastSent time.Time
	closed   bool
}

// NewTracker creates a tracker that emits at most one intermediate value per
// interval. An interval of 0 emits every change.
func NewTracker(interval time.Duration) *Tracker {
	return &Tracker{
		ch:       make(chan int, 16),
		interval: interval,
		last:     -1,
	}
}

// Events returns the receive side of the stream. Range over it; the channel
// closes when the transfer ends either way.
func (t *Tracker) Events() <-chan int { return t.ch }

// report publishes a percentage. Values below the last reported one are
// ignored, as are repeats and values arriving faster than the interval.
// Slow consumers lose intermediate values, never the ordering.
func (t *Tracker) report(percent int) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || percent <= t.last {
		return
	}
	now := time.Now()
	if t.interval > 0 && percent < 100 && t.last >= 0 && now.Sub(t.lastSent) < t.interval {
		return
	}

	select {
	case t.ch <- percent:
		t.last = percent
		t.lastSent = now
	default:
		// consumer behind, drop this intermediate value
	}
}

// finish emits the terminal 100 and closes the stream. Unlike report it never
// drops the value: a full buffer is drained until the send lands.
func (t *Tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	for {
		select {
		case t.ch <- 100:
			t.closed = true
			close(t.ch)
			return
		default:
			select {
			case <-t.ch:
			default:
			}
		}
	}
}

// abort closes the stream without emitting 100.
func (t *Tracker) abort() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	close(t.ch)
}

// progressReader reports the percentage of total consumed from r into the
// tracker. The terminal 100 is left to the caller, who knows when the whole
// transfer (not just the local read) actually completed.
type progressReader struct {
	r       io.Reader
	total   int64
	read    int64
	tracker *Tracker
}

func newProgressReader(r io.Reader, total int64, tracker *Tracker) *progressReader {
	return &progressReader{r: r, total: total, tracker: tracker}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.tracker != nil && p.total > 0 {
		percent := int(p.read * 100 / p.total)
		if percent > 99 {
			percent = 99
		}
		p.tracker.report(percent)
	}
	return n, err
}
