package cloud

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(tr *Tracker) []int {
	var out []int
	for p := range tr.Events() {
		out = append(out, p)
	}
	return out
}

func TestTrackerMonotonicAndEndsAtHundred(t *testing.T) {
	tr := NewTracker(0)

	done := make(chan []int)
	go func() { done <- collect(tr) }()

	tr.report(0)
	tr.report(10)
	tr.report(5) // regression, dropped
	tr.report(10)
	tr.report(80)
	tr.finish()

	values := <-done
	require.NotEmpty(t, values)
	for i := 1; i < len(values); i++ {
		assert.GreaterOrEqual(t, values[i], values[i-1])
	}
	assert.Equal(t, 100, values[len(values)-1])
}

func TestTrackerFinishWithSlowConsumer(t *testing.T) {
	tr := NewTracker(0)

	// fill the buffer with nobody listening
	for i := 0; i <= 99; i++ {
		tr.report(i)
	}
	tr.finish()

	values := collect(tr)
	require.NotEmpty(t, values)
	assert.Equal(t, 100, values[len(values)-1])
}

func TestTrackerAbortNeverEmitsHundred(t *testing.T) {
	tr := NewTracker(0)
	tr.report(42)
	tr.abort()

	for p := range tr.Events() {
		assert.NotEqual(t, 100, p)
	}
}

func TestProgressReaderClampsBelowHundred(t *testing.T) {
	tr := NewTracker(0)
	data := bytes.Repeat([]byte{1}, 4096)
	r := newProgressReader(bytes.NewReader(data), int64(len(data)), tr)

	_, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	tr.abort()

	// the reader alone never claims completion
	for p := range tr.Events() {
		assert.Less(t, p, 100)
	}
}
