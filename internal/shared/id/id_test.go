package id

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := gen.Generate().String()
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGenerateMonotonic(t *testing.T) {
	gen := NewGenerator()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	gen.now = func() time.Time { return fixed }

	a := gen.Generate().String()
	b := gen.Generate().String()
	assert.Less(t, a, b)
}

func TestNewRunID(t *testing.T) {
	run := NewRunID()

	assert.True(t, strings.HasPrefix(run.String(), "run_"))
	assert.True(t, IsValid(strings.TrimPrefix(run.String(), "run_")))

	ts, err := run.Time()
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, 5*time.Second)
}

func TestRunIDTimeRejectsGarbage(t *testing.T) {
	_, err := RunID("sess_01ARZ3NDEKTSV4RRFFQ69G5FAV").Time()
	assert.Error(t, err)

	_, err = RunID("run_not-a-ulid").Time()
	assert.Error(t, err)
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := gen.GenerateWithPrefix(RunPrefix)
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 800)
}
