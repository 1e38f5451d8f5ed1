package store

import (
	"sync"

	"github.com/aemnet/aemnode/internal/identity"
)

// messageRing is the fixed-capacity Message Store. A slot is occupied
// iff CreatedAt > 0 (§3 Invariants). It fills from index 0 and wraps,
// overwriting the oldest entry, once full.
type messageRing struct {
	slots []Message
	next  int
}

func newMessageRing(capacity int) *messageRing {
	return &messageRing{slots: make([]Message, capacity)}
}

func (r *messageRing) push(m Message) int {
	idx := r.next
	r.slots[idx] = m
	r.next = (r.next + 1) % len(r.slots)
	return idx
}

// dedup scans from slot 0, stopping at the first unoccupied slot, per
// §4.3.1 step 2. The early exit only matters before the ring has
// wrapped once; after that every slot is occupied and the loop simply
// runs to completion, which is still correct.
func (r *messageRing) dedup(m Message) bool {
	for i := range r.slots {
		if r.slots[i].CreatedAt == 0 {
			break
		}
		if r.slots[i].Equal(m) {
			return true
		}
	}
	return false
}

func (r *messageRing) capacity() int {
	return len(r.slots)
}

func (r *messageRing) at(i int) (Message, bool) {
	m := r.slots[i]
	return m, m.CreatedAt > 0
}

func (r *messageRing) markTransmitted(i, peerIndex int, peer AEM) {
	m := &r.slots[i]
	if m.CreatedAt == 0 {
		return
	}
	m.Transmitted = true
	if peerIndex >= 0 && peerIndex < len(m.TransmittedDevices) {
		m.TransmittedDevices[peerIndex] = true
	}
	if peer == m.Recipient {
		m.TransmittedToRecipient = true
	}
}

func (r *messageRing) markReceivedFrom(i, peerIndex int) {
	m := &r.slots[i]
	if peerIndex >= 0 && peerIndex < len(m.TransmittedDevices) {
		m.TransmittedDevices[peerIndex] = true
	}
}

func (r *messageRing) snapshot() []Message {
	out := make([]Message, 0, len(r.slots))
	for _, m := range r.slots {
		if m.CreatedAt > 0 {
			out = append(out, m.Clone())
		}
	}
	return out
}

// inboxRing is the fixed-capacity Inbox Store. Same occupancy rule as
// messageRing; unlike the Message Store, entries are never scanned for
// dedup (§4.3.1 only dedups against the Message Store).
type inboxRing struct {
	slots []InboxMessage
	next  int
}

func newInboxRing(capacity int) *inboxRing {
	return &inboxRing{slots: make([]InboxMessage, capacity)}
}

func (r *inboxRing) push(m InboxMessage) {
	r.slots[r.next] = m
	r.next = (r.next + 1) % len(r.slots)
}

func (r *inboxRing) snapshot() []InboxMessage {
	out := make([]InboxMessage, 0, len(r.slots))
	for _, m := range r.slots {
		if m.CreatedAt > 0 {
			c := m
			c.Body = append([]byte(nil), m.Body...)
			out = append(out, c)
		}
	}
	return out
}

// Store owns both rings behind one mutex - the "store lock" of §5.
type Store struct {
	mutex    *sync.Mutex
	messages *messageRing
	inbox    *inboxRing
}

// New builds a Store with the given Message Store and Inbox capacities
// (MSG_CAP, INBOX_CAP).
func New(msgCap, inboxCap int) *Store {
	return &Store{
		mutex:    &sync.Mutex{},
		messages: newMessageRing(msgCap),
		inbox:    newInboxRing(inboxCap),
	}
}

// Produce stores a locally-originated message (§4.4). The caller
// supplies a message whose TransmittedDevices already reflects the
// originator bit (see NewMessage).
func (s *Store) Produce(m Message) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages.push(m)
}

// Receive implements §4.3.1 steps 2-4 atomically: dedup, mark the
// sending peer's delivery bit, then route to Inbox or Message Store.
// duplicate reports whether the record was discarded as a repeat of a
// Message Store entry; forMe reports whether it was addressed to self,
// for fresh and duplicate deliveries alike. Counting is left to the
// caller (see session.runReceiver).
func (s *Store) Receive(m Message, peer identity.Entry, self AEM, savedAt uint64) (duplicate bool, forMe bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.messages.dedup(m) {
		return true, m.Recipient == self
	}

	if peer.Index >= 0 && peer.Index < len(m.TransmittedDevices) {
		m.TransmittedDevices[peer.Index] = true
	}

	if m.Recipient == self {
		s.inbox.push(InboxMessage{
			Sender:      m.Sender,
			FirstSender: peer.AEM,
			CreatedAt:   m.CreatedAt,
			SavedAt:     savedAt,
			Body:        m.Body,
		})
		return false, true
	}

	s.messages.push(m)
	return false, false
}

// Capacity returns the Message Store's slot count, for transmitter
// iteration (§4.3.2 "walk the Message Store from slot 0").
func (s *Store) Capacity() int {
	return s.messages.capacity()
}

// EligibleForTransmit reports whether slot i should be sent to peer,
// returning a safe-to-read copy if so (§4.3.2 skip conditions).
func (s *Store) EligibleForTransmit(i int, peer identity.Entry) (Message, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	m, occupied := s.messages.at(i)
	if !occupied {
		return Message{}, false
	}
	if peer.Index >= 0 && peer.Index < len(m.TransmittedDevices) && m.TransmittedDevices[peer.Index] {
		return Message{}, false
	}
	if m.TransmittedToRecipient {
		return Message{}, false
	}
	return m.Clone(), true
}

// MarkTransmitted records that slot i was just sent to peer (§4.3.2).
func (s *Store) MarkTransmitted(i int, peer identity.Entry) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.messages.markTransmitted(i, peer.Index, peer.AEM)
}

// Snapshot returns the occupied Message Store entries, for the
// journal's buffer_messages dump (§6.5).
func (s *Store) Snapshot() []Message {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.messages.snapshot()
}

// InboxSnapshot returns the occupied Inbox entries, for the journal's
// inbox_messages dump.
func (s *Store) InboxSnapshot() []InboxMessage {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.inbox.snapshot()
}
