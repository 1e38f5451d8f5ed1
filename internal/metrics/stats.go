// Package metrics implements the Stats Aggregator (§2 #12, §4.7): the
// in-memory produced/received/transmitted counters, guarded by the
// stats lock (§5).
package metrics

import "sync"

// Stats is the session-wide counter set.
type Stats struct {
	mutex *sync.Mutex

	produced                uint64
	received                uint64
	receivedForMe           uint64
	transmitted             uint64
	transmittedToRecipient  uint64
	producedDelaySum        uint64 // running sum of producer sleep seconds, not an average (Open Question #3)
}

// New builds a zeroed Stats.
func New() *Stats {
	return &Stats{mutex: &sync.Mutex{}}
}

// IncProduced records a message produced by the local producer worker.
func (s *Stats) IncProduced() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.produced++
}

// AddProducedDelay accumulates the producer's sleep interval. This is
// a running sum by design (see SPEC_FULL.md Open Questions #3); divide
// by Produced at render time to get the average.
func (s *Stats) AddProducedDelay(seconds uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.producedDelaySum += seconds
}

// IncReceived records a received wire record, and whether it was
// addressed to this node.
func (s *Stats) IncReceived(forMe bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.received++
	if forMe {
		s.receivedForMe++
	}
}

// IncTransmitted records a message sent on the wire, and whether the
// remote peer was the message's recipient.
func (s *Stats) IncTransmitted(toRecipient bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.transmitted++
	if toRecipient {
		s.transmittedToRecipient++
	}
}

// Snapshot is an immutable, lock-free-to-read copy of the counters.
type Snapshot struct {
	Produced               uint64
	Received               uint64
	ReceivedForMe          uint64
	Transmitted            uint64
	TransmittedToRecipient uint64
	ProducedDelaySum       uint64
}

// ProducedDelayAvg divides the running sum by Produced, matching the
// original log_tearDown arithmetic exactly.
func (s Snapshot) ProducedDelayAvg() float64 {
	if s.Produced == 0 {
		return 0
	}
	return float64(s.ProducedDelaySum) / float64(s.Produced)
}

// Snapshot takes a consistent copy of all counters.
func (s *Stats) Snapshot() Snapshot {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return Snapshot{
		Produced:               s.produced,
		Received:               s.received,
		ReceivedForMe:          s.receivedForMe,
		Transmitted:            s.transmitted,
		TransmittedToRecipient: s.transmittedToRecipient,
		ProducedDelaySum:       s.producedDelaySum,
	}
}
