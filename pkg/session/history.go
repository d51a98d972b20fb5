package session

import "time"

// Entry is a delivered message.
type Entry struct {
	Text string
	At   time.Time
}

// History is a fixed-size ring of the most recent entries.
type History struct {
	entries []Entry
	next    int
	full    bool
}

// NewHistory creates a ring holding size entries.
func NewHistory(size int) *History {
	if size < 1 {
		size = 1
	}
	return &History{entries: make([]Entry, size)}
}

// Push appends an entry, overwriting the oldest when full.
func (h *History) Push(e Entry) {
	h.entries[h.next] = e
	h.next = (h.next + 1) % len(h.entries)
	if h.next == 0 {
		h.full = true
	}
}

// Entries returns the retained entries, oldest first.
func (h *History) Entries() []Entry {
	if !h.full {
		return append([]Entry(nil), h.entries[:h.next]...)
	}
	out := make([]Entry, 0, len(h.entries))
	out = append(out, h.entries[h.next:]...)
	return append(out, h.entries[:h.next]...)
}

// Len returns the number of retained entries.
func (h *History) Len() int {
	if h.full {
		return len(h.entries)
	}
	return h.next
}

// Cap returns the ring size.
func (h *History) Cap() int {
	return len(h.entries)
}

// Window is a sliding window of timestamps.
type Window struct {
	times []time.Time
}

// Add records t and drops timestamps that fell out of span.
func (w *Window) Add(t time.Time, span time.Duration) {
	w.prune(t, span)
	w.times = append(w.times, t)
}

// Count drops timestamps older than span and returns how many remain.
func (w *Window) Count(now time.Time, span time.Duration) int {
	w.prune(now, span)
	return len(w.times)
}

// Len returns the number of retained timestamps.
func (w *Window) Len() int {
	return len(w.times)
}

func (w *Window) prune(now time.Time, span time.Duration) {
	cutoff := now.Add(-span)
	keep := w.times[:0]
	for _, t := range w.times {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	clear(w.times[len(keep):])
	w.times = keep
}
