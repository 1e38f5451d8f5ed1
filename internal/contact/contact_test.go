package contact

import (
	"testing"
	"time"

	"github.com/aemnet/aemnode/internal/identity"
)

func TestActiveSetExclusivity(t *testing.T) {
	set := NewActiveSet()
	peer := identity.AEM(9991)

	if !set.TryEnter(peer) {
		t.Fatal("first entry should succeed")
	}
	if set.TryEnter(peer) {
		t.Fatal("concurrent entry for the same peer must be rejected")
	}
	set.Leave(peer)
	if !set.TryEnter(peer) {
		t.Fatal("entry should succeed again once the peer has left")
	}
}

func TestContactStatsBoundedAndAveraged(t *testing.T) {
	stats := NewStats(1, 2)
	now := time.Now()

	stats.Record(0, Window{Start: now, End: now.Add(10 * time.Millisecond)})
	stats.Record(0, Window{Start: now, End: now.Add(30 * time.Millisecond)})

	if stats.Count(0) != 2 {
		t.Fatalf("expected 2 recorded sessions, got %d", stats.Count(0))
	}

	snap := stats.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected history for exactly one peer, got %d", len(snap))
	}
	if got := snap[0].AverageDuration; got < 19.9 || got > 20.1 {
		t.Errorf("expected average ~20ms, got %f", got)
	}
}
