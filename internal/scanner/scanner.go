// Package scanner turns raw keyboard events into barcode reads. HID barcode
// scanners type the code as a fast burst of characters followed by Enter, so
// the decoder buffers printable keys and discards the buffer after a short
// idle gap that a human typist always exceeds.
package scanner

import (
	"strings"
	"sync"
	"time"
)

const DefaultIdleWindow = 100 * time.Millisecond

// Timer schedules a single callback and returns a cancel func. The real
// implementation wraps time.AfterFunc; tests substitute a manual one.
type Timer interface {
	Schedule(d time.Duration, fn func()) (cancel func())
}

type RealTimer struct{}

func (RealTimer) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

type Decoder struct {
	mu     sync.Mutex
	window time.Duration
	timer  Timer
	buf    strings.Builder
	cancel func()
	// gen invalidates timers that fired before their cancel ran: cancelling an
	// already-fired time.AfterFunc is a no-op, so expire must prove the buffer
	// it is about to clear is still the one it was scheduled for.
	gen uint64
}

func NewDecoder(window time.Duration, timer Timer) *Decoder {
	if window <= 0 {
		window = DefaultIdleWindow
	}
	if timer == nil {
		timer = RealTimer{}
	}
	return &Decoder{window: window, timer: timer}
}

// Key feeds one keystroke into the buffer and restarts the idle timer. Keys
// are dropped while a text input has focus so manual typing never scans, and
// anything that is not a single printable character is ignored.
func (d *Decoder) Key(key string, inputFocused bool) {
	if inputFocused || !isPrintableChar(key) {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf.WriteString(key)
	if d.cancel != nil {
		d.cancel()
	}
	d.gen++
	gen := d.gen
	d.cancel = d.timer.Schedule(d.window, func() { d.expire(gen) })
}

// Enter commits the buffered code and clears the buffer. It returns the code
// that was pending, or "" when there was nothing to commit.
func (d *Decoder) Enter(inputFocused bool) string {
	if inputFocused {
		return ""
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	code := d.buf.String()
	d.resetLocked()
	return code
}

// expire runs on the timer goroutine when the idle window lapses. A stale
// generation means a keystroke landed after the timer fired; that buffer is
// current and must be kept.
func (d *Decoder) expire(gen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen {
		return
	}
	d.resetLocked()
}

func (d *Decoder) resetLocked() {
	d.buf.Reset()
	d.gen++
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}

func isPrintableChar(key string) bool {
	runes := []rune(key)
	if len(runes) != 1 {
		return false
	}
	r := runes[0]
	return r > ' ' && r != 0x7f
}
