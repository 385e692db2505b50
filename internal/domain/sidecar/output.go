package sidecar

import (
	"bytes"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output stream names.
const (
	StreamStdout = "stdout"
	StreamStderr = "stderr"
)

// maxLineBytes caps a single buffered line; longer output is split.
const maxLineBytes = 64 * 1024

// Line is one line of sidecar output.
type Line struct {
	Seq    uint64    `json:"seq"`
	Time   time.Time `json:"time"`
	Stream string    `json:"stream"`
	Text   string    `json:"text"`
}

// Tail keeps the most recent lines of sidecar output and fans new lines out
// to subscribers. Slow subscribers miss lines rather than block the sidecar.
type Tail struct {
	mu    sync.RWMutex
	ring  []Line
	next  int
	full  bool
	seq   uint64
	subs  map[string]chan Line
	clock func() time.Time
}

// NewTail creates a tail holding up to size lines.
func NewTail(size int) *Tail {
	if size <= 0 {
		size = 500
	}
	return &Tail{
		ring:  make([]Line, size),
		subs:  make(map[string]chan Line),
		clock: time.Now,
	}
}

// Append records a line and delivers it to subscribers.
func (t *Tail) Append(stream, text string) Line {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.seq++
	line := Line{Seq: t.seq, Time: t.clock(), Stream: stream, Text: text}
	t.ring[t.next] = line
	t.next = (t.next + 1) % len(t.ring)
	if t.next == 0 {
		t.full = true
	}

	for _, ch := range t.subs {
		select {
		case ch <- line:
		default:
		}
	}
	return line
}

// Lines returns the retained lines, oldest first.
func (t *Tail) Lines() []Line {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if !t.full {
		out := make([]Line, t.next)
		copy(out, t.ring[:t.next])
		return out
	}
	out := make([]Line, 0, len(t.ring))
	out = append(out, t.ring[t.next:]...)
	out = append(out, t.ring[:t.next]...)
	return out
}

// Subscribe registers a listener. The returned cancel func unregisters it
// and closes the channel.
func (t *Tail) Subscribe(buffer int) (string, <-chan Line, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	id := uuid.New().String()
	ch := make(chan Line, buffer)

	t.mu.Lock()
	t.subs[id] = ch
	t.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
			close(ch)
		})
	}
	return id, ch, cancel
}

// Subscribers returns the number of active subscribers.
func (t *Tail) Subscribers() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.subs)
}

// lineWriter splits process output into lines, logging each and appending
// it to the tail. It is used as exec.Cmd.Stdout/Stderr.
type lineWriter struct {
	stream string
	tail   *Tail
	log    *zap.Logger
	level  zapcore.Level

	mu  sync.Mutex
	buf []byte
}

func newLineWriter(stream string, tail *Tail, log *zap.Logger, level zapcore.Level) *lineWriter {
	return &lineWriter{stream: stream, tail: tail, log: log, level: level}
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.emit(w.buf[:i])
		w.buf = w.buf[i+1:]
	}
	for len(w.buf) >= maxLineBytes {
		w.emit(w.buf[:maxLineBytes])
		w.buf = w.buf[maxLineBytes:]
	}
	return len(p), nil
}

// Flush emits any trailing partial line.
func (w *lineWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.buf) > 0 {
		w.emit(w.buf)
		w.buf = nil
	}
}

func (w *lineWriter) emit(raw []byte) {
	text := string(bytes.TrimRight(raw, "\r"))
	if w.tail != nil {
		w.tail.Append(w.stream, text)
	}
	if w.log != nil {
		if ce := w.log.Check(w.level, text); ce != nil {
			ce.Write(zap.String("stream", w.stream))
		}
	}
}
