package collator

import "sync"

// TaskWriter is the writer handle for one task's output (spec §4.E). It is
// the only way a task's output enters the pipeline: callers tag each write
// Stdout or Stderr, and Close flushes any buffered content and releases the
// task's foreground claim, mirroring the teacher's UnitWriter
// (internal/runner/runnerpool), generalized from a single io.Writer to the
// two-stream, foreground-segmented contract spec §4.E requires.
type TaskWriter struct {
	collator *Collator
	name     string
	mu       sync.Mutex
	closed   bool
}

// Write appends p, tagged as stream, to this task's output. It always goes
// into the task's transcript; it reaches the human-facing stream
// immediately if this task currently holds the foreground claim (or claims
// it now, because none is held), and is buffered otherwise for later
// flush. Quiet mode additionally suppresses Stdout from the human stream
// (but never from the transcript).
func (w *TaskWriter) Write(stream Stream, p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return 0, nil
	}

	normalized := normalizeNewlines(p)

	w.collator.mu.Lock()
	defer w.collator.mu.Unlock()

	if buf, ok := w.collator.transcript[w.name]; ok {
		buf.Write(normalized)
	}

	if w.collator.foreground == "" {
		w.collator.foreground = w.name
		w.collator.announceLocked(w.name)
	}

	if w.collator.foreground == w.name {
		if humanGate(w.collator.quiet, stream) {
			w.collator.human.Write(normalized) //nolint:errcheck
		}

		return len(p), nil
	}

	if seg, ok := w.collator.pending[w.name]; ok {
		if humanGate(w.collator.quiet, stream) {
			seg.buf.Write(normalized)
		}
	}

	return len(p), nil
}

// Flush flushes any buffered content for this task to the human-facing
// stream (used when a caller wants an explicit mid-run flush rather than
// waiting for Close, e.g. a long-running task with periodic progress
// output that should still segment coherently). It writes only when this
// task holds the foreground claim or none is held; otherwise the content
// stays buffered.
func (w *TaskWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.collator.mu.Lock()
	defer w.collator.mu.Unlock()

	w.flushLocked()

	return nil
}

func (w *TaskWriter) flushLocked() {
	seg, ok := w.collator.pending[w.name]
	if !ok || seg.buf.Len() == 0 {
		return
	}

	if w.collator.foreground == "" {
		w.collator.foreground = w.name
		w.collator.announceLocked(w.name)
	}

	if w.collator.foreground == w.name {
		w.collator.human.Write(seg.buf.Bytes()) //nolint:errcheck
		seg.buf.Reset()
	}
}

// Close flushes any buffered content and releases this task's foreground
// claim, letting the next pending task be promoted.
func (w *TaskWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	w.collator.mu.Lock()
	defer w.collator.mu.Unlock()

	w.flushLocked()

	// A task that completes while another holds the foreground flushes its
	// buffered output now, as one contiguous segment, instead of dropping it.
	if seg, ok := w.collator.pending[w.name]; ok && seg.buf.Len() > 0 {
		w.collator.announceLocked(w.name)
		w.collator.human.Write(seg.buf.Bytes()) //nolint:errcheck
		seg.buf.Reset()
	}

	if w.collator.foreground == w.name {
		w.collator.foreground = ""
		w.collator.promoteLocked()
	}

	delete(w.collator.pending, w.name)

	return nil
}
