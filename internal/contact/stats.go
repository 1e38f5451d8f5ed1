package contact

import (
	"sync"
	"time"
)

// Window is one completed session's (start,end) bracket, microsecond
// precision per §3.
type Window struct {
	Start, End time.Time
}

// DurationMillis is the window's length in milliseconds, used by the
// journal to render per-connection and average durations (§6.5).
func (w Window) DurationMillis() float64 {
	return float64(w.End.Sub(w.Start)) / float64(time.Millisecond)
}

// Stats is the per-peer Contact Statistics history (§2 #5). Each
// peer's slice has a single writer at a time - the session holding
// that peer in the ActiveSet - so appends need no per-peer lock, only
// the coarse mutex guarding the outer slice-of-slices against
// concurrent readers (the journal, at teardown).
type Stats struct {
	mutex      *sync.Mutex
	maxPerPeer int
	windows    [][]Window
}

// NewStats allocates per-peer history for a directory of the given
// length, with maxPerPeer (MAX_CONNECTIONS_PER_PEER) as the per-peer
// ceiling reported by MaxPerPeer. Record does not enforce it; see
// Record.
func NewStats(directoryLen, maxPerPeer int) *Stats {
	return &Stats{
		mutex:      &sync.Mutex{},
		maxPerPeer: maxPerPeer,
		windows:    make([][]Window, directoryLen),
	}
}

// MaxPerPeer returns the configured connections-per-peer ceiling.
func (s *Stats) MaxPerPeer() int {
	return s.maxPerPeer
}

// Count reports how many completed sessions are on record for
// peerIndex.
func (s *Stats) Count(peerIndex int) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.windows[peerIndex])
}

// Record appends a completed session's window for peerIndex. The
// caller (the session protocol) must already have checked Count <
// MaxPerPeer while the peer was exclusively held in the ActiveSet;
// Record itself does not re-check capacity, since the bound is a
// precondition enforced earlier in the same call chain (§8 property 7).
func (s *Stats) Record(peerIndex int, w Window) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.windows[peerIndex] = append(s.windows[peerIndex], w)
}

// PeerHistory summarizes one peer's connection history for the
// journal's devices[] section (§6.5).
type PeerHistory struct {
	Index           int
	Windows         []Window
	AverageDuration float64
}

// Snapshot returns the history of every peer with at least one
// completed session.
func (s *Stats) Snapshot() []PeerHistory {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var out []PeerHistory
	for i, ws := range s.windows {
		if len(ws) == 0 {
			continue
		}
		var sum float64
		cp := make([]Window, len(ws))
		copy(cp, ws)
		for _, w := range cp {
			sum += w.DurationMillis()
		}
		out = append(out, PeerHistory{
			Index:           i,
			Windows:         cp,
			AverageDuration: sum / float64(len(cp)),
		})
	}
	return out
}
