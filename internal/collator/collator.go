// Package collator implements the Output Collator (spec §4.E): it
// serializes concurrent per-task output streams into one coherent
// human-facing log while capturing an unsegmented per-task transcript.
//
// Color handling is grounded on the teacher's terminal-output stack:
// mitchellh/colorstring renders the banner printed when a task first claims
// the foreground, and the ANSI codes it (or a task's own command) emits are
// stripped from the persisted transcript with a small escape-sequence
// matcher. The banner is colored whether or not the human stream is a
// terminal; mattn/go-isatty in cmd/fleet only decides whether the logger's
// stderr output is colored.
package collator

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
)

// ansiEscape matches terminal color/SGR escape sequences (ESC '[' ... 'm'),
// including the ones colorstring.Color itself emits for the foreground
// banner.
var ansiEscape = regexp.MustCompile("\x1b\\[[0-9;]*m")

func stripANSI(s string) string {
	return ansiEscape.ReplaceAllString(s, "")
}

// Stream tags a chunk of output as having come from a task's stdout or
// stderr (spec §4.E contract).
type Stream int

const (
	Stdout Stream = iota
	Stderr
)

// Collator owns the single human-facing destination and every task's
// captured transcript. One Collator is constructed per run.
type Collator struct {
	human io.Writer
	quiet bool

	mu         sync.Mutex
	foreground string              // name of the task currently writing directly to human; "" = none
	pending    map[string]*segment // buffered output for non-foreground tasks
	transcript map[string]*bytes.Buffer
	bannered   map[string]bool // tasks that have already printed their foreground-claim banner
}

type segment struct {
	buf bytes.Buffer
}

// New constructs a Collator writing the human-facing stream to human. In
// quiet mode only Stderr chunks and each task's foreground banner reach
// human; no per-task summary is written. The full transcript is always
// captured regardless of quiet.
func New(human io.Writer, quiet bool) *Collator {
	return &Collator{
		human:      human,
		quiet:      quiet,
		pending:    map[string]*segment{},
		transcript: map[string]*bytes.Buffer{},
		bannered:   map[string]bool{},
	}
}

// banner renders the line printed the first time a task claims the
// foreground, naming it so interleaved output stays attributable.
func banner(name string) string {
	return colorstring.Color(fmt.Sprintf("[bold]▶ %s[reset]\n", name))
}

// announceLocked prints name's foreground-claim banner exactly once, to the
// human stream. Callers must hold c.mu.
func (c *Collator) announceLocked(name string) {
	if c.bannered[name] {
		return
	}

	c.bannered[name] = true
	c.human.Write([]byte(banner(name))) //nolint:errcheck
}

// Writer returns the writer handle for taskName — the only way that task's
// output enters the pipeline (spec §4.E).
func (c *Collator) Writer(taskName string) *TaskWriter {
	c.mu.Lock()
	c.pending[taskName] = &segment{}
	c.transcript[taskName] = &bytes.Buffer{}
	c.mu.Unlock()

	return &TaskWriter{collator: c, name: taskName}
}

// Transcript returns the captured, unsegmented transcript for a task with
// terminal color codes stripped, CRLF normalized to LF, and a trailing
// newline ensured (spec §4.E, §8 property 8).
func (c *Collator) Transcript(taskName string) string {
	c.mu.Lock()
	buf, ok := c.transcript[taskName]
	c.mu.Unlock()

	if !ok {
		return ""
	}

	s := stripANSI(buf.String())
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}

	return s
}

// promoteLocked picks the next task to hold the foreground claim when none
// is held. Any pending task may be promoted; we pick deterministically
// (smallest name) so replay is reproducible.
func (c *Collator) promoteLocked() {
	if c.foreground != "" {
		return
	}

	best := ""

	for name, seg := range c.pending {
		if seg.buf.Len() == 0 {
			continue
		}

		if best == "" || name < best {
			best = name
		}
	}

	if best == "" {
		return
	}

	c.foreground = best
	c.announceLocked(best)
	seg := c.pending[best]
	c.human.Write(seg.buf.Bytes()) //nolint:errcheck
	seg.buf.Reset()
}

func normalizeNewlines(p []byte) []byte {
	if !bytes.Contains(p, []byte("\r\n")) {
		return p
	}

	return bytes.ReplaceAll(p, []byte("\r\n"), []byte("\n"))
}

func humanGate(quiet bool, stream Stream) bool {
	if !quiet {
		return true
	}

	return stream == Stderr
}
