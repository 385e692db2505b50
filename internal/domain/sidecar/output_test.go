package sidecar

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func texts(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}

func TestTailRing(t *testing.T) {
	tail := NewTail(3)

	tail.Append(StreamStdout, "a")
	tail.Append(StreamStdout, "b")
	assert.Equal(t, []string{"a", "b"}, texts(tail.Lines()))

	tail.Append(StreamStderr, "c")
	tail.Append(StreamStdout, "d")
	tail.Append(StreamStdout, "e")

	lines := tail.Lines()
	assert.Equal(t, []string{"c", "d", "e"}, texts(lines))
	assert.Equal(t, uint64(3), lines[0].Seq)
	assert.Equal(t, StreamStderr, lines[0].Stream)
}

func TestTailSubscribe(t *testing.T) {
	tail := NewTail(10)

	id, ch, cancel := tail.Subscribe(4)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, tail.Subscribers())

	tail.Append(StreamStdout, "hello")
	line := <-ch
	assert.Equal(t, "hello", line.Text)

	cancel()
	cancel()
	assert.Equal(t, 0, tail.Subscribers())

	_, open := <-ch
	assert.False(t, open)

	// Appending after cancel must not panic.
	tail.Append(StreamStdout, "after")
}

func TestTailSlowSubscriberDoesNotBlock(t *testing.T) {
	tail := NewTail(10)
	_, ch, cancel := tail.Subscribe(1)
	defer cancel()

	for i := 0; i < 5; i++ {
		tail.Append(StreamStdout, "x")
	}
	assert.Len(t, ch, 1)
	assert.Len(t, tail.Lines(), 5)
}

func TestLineWriterSplitsLines(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tail := NewTail(10)
	w := newLineWriter(StreamStderr, tail, zap.New(core), zapcore.WarnLevel)

	_, err := w.Write([]byte("first\r\nsec"))
	require.NoError(t, err)
	_, err = w.Write([]byte("ond\nthird"))
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, texts(tail.Lines()))

	w.Flush()
	assert.Equal(t, []string{"first", "second", "third"}, texts(tail.Lines()))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "stderr", entries[0].ContextMap()["stream"])
}

func TestLineWriterCapsLongLines(t *testing.T) {
	tail := NewTail(10)
	w := newLineWriter(StreamStdout, tail, nil, zapcore.InfoLevel)

	_, err := w.Write([]byte(strings.Repeat("z", maxLineBytes+10)))
	require.NoError(t, err)

	lines := tail.Lines()
	require.Len(t, lines, 1)
	assert.Len(t, lines[0].Text, maxLineBytes)

	w.Flush()
	assert.Len(t, tail.Lines(), 2)
}
