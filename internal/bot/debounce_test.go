package bot

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flushRecorder struct {
	mu      sync.Mutex
	batches map[int64][]batch
	done    chan struct{}
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{batches: make(map[int64][]batch), done: make(chan struct{}, 10)}
}

func (r *flushRecorder) flush(chatID int64, b batch) {
	r.mu.Lock()
	r.batches[chatID] = append(r.batches[chatID], b)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *flushRecorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(time.Second):
		t.Fatal("debounce timer never fired")
	}
}

func TestDebouncerMergesBurst(t *testing.T) {
	rec := newFlushRecorder()
	d := newDebouncer(20*time.Millisecond, rec.flush)

	d.add(42, "привет", "")
	d.add(42, "", "https://cdn/plant.jpg")
	d.add(42, "есть фикусы?", "")
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.batches[42], 1)
	require.Equal(t, []string{"привет", "есть фикусы?"}, rec.batches[42][0].texts)
	require.Equal(t, []string{"https://cdn/plant.jpg"}, rec.batches[42][0].images)
}

func TestDebouncerSeparatesChats(t *testing.T) {
	rec := newFlushRecorder()
	d := newDebouncer(20*time.Millisecond, rec.flush)

	d.add(1, "один", "")
	d.add(2, "два", "")
	rec.wait(t)
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, []string{"один"}, rec.batches[1][0].texts)
	require.Equal(t, []string{"два"}, rec.batches[2][0].texts)
}

func TestDebouncerNewBurstAfterFire(t *testing.T) {
	rec := newFlushRecorder()
	d := newDebouncer(20*time.Millisecond, rec.flush)

	d.add(42, "первая", "")
	rec.wait(t)
	d.add(42, "вторая", "")
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.batches[42], 2)
	require.Equal(t, []string{"вторая"}, rec.batches[42][1].texts)
}

func TestDebouncerStopDropsPending(t *testing.T) {
	rec := newFlushRecorder()
	d := newDebouncer(20*time.Millisecond, rec.flush)

	d.add(42, "не дождется", "")
	d.stop()

	select {
	case <-rec.done:
		t.Fatal("flush fired after stop")
	case <-time.After(60 * time.Millisecond):
	}
}
