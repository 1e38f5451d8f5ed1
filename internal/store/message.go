// Package store implements the Message Store and Inbox Store (§2 #2,
// #3) behind a single shared lock, matching §5's "Inbox - same store
// lock" requirement.
package store

import (
	"bytes"

	"github.com/aemnet/aemnode/internal/identity"
)

// Message is the in-memory representation of §3's Message type.
type Message struct {
	Sender, Recipient AEM
	CreatedAt         uint64
	Body              []byte

	Transmitted            bool
	TransmittedDevices     []bool // len == directory length
	TransmittedToRecipient bool
}

// AEM aliases identity.AEM so callers of this package rarely need to
// import identity directly.
type AEM = identity.AEM

// Equal implements the dedup predicate: same sender, created_at and
// body (§3 Invariants, "Message uniqueness").
func (m Message) Equal(o Message) bool {
	return m.Sender == o.Sender && m.CreatedAt == o.CreatedAt && bytes.Equal(m.Body, o.Body)
}

// Clone returns a deep copy safe to read after the store lock is
// released.
func (m Message) Clone() Message {
	c := m
	c.Body = append([]byte(nil), m.Body...)
	c.TransmittedDevices = append([]bool(nil), m.TransmittedDevices...)
	return c
}

func newTransmittedDevices(directoryLen int, senderIndex int) []bool {
	bits := make([]bool, directoryLen)
	if senderIndex >= 0 && senderIndex < directoryLen {
		// The originator is considered to already have it (§3 invariant).
		bits[senderIndex] = true
	}
	return bits
}

// NewMessage builds a fresh Message with the originator's delivery bit
// already set, per §3's invariant on transmitted_devices[sender].
func NewMessage(sender, recipient AEM, senderIndex int, createdAt uint64, body []byte, directoryLen int) Message {
	return Message{
		Sender:             sender,
		Recipient:          recipient,
		CreatedAt:          createdAt,
		Body:               append([]byte(nil), body...),
		TransmittedDevices: newTransmittedDevices(directoryLen, senderIndex),
	}
}

// InboxMessage is §3's InboxMessage type.
type InboxMessage struct {
	Sender, FirstSender AEM
	CreatedAt, SavedAt  uint64
	Body                []byte
}
