package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoResolveIsInert(t *testing.T) {
	r := New("", true, nil)
	r.Enqueue("1.2.3.4")

	_, found := r.Lookup("1.2.3.4")
	assert.False(t, found, "--no-resolve must never produce a resolved hostname")
}

func TestLookupMissBeforeResolution(t *testing.T) {
	r := New("", false, nil)
	_, found := r.Lookup("9.9.9.9")
	assert.False(t, found)
}

func TestWatcherDisabledDropsObservations(t *testing.T) {
	w := NewWatcher(false)
	w.Observe([]byte("not even a dns packet"))

	select {
	case <-w.Queries():
		t.Fatal("disabled watcher must never publish")
	default:
	}
}
