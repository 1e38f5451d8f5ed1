package session

import (
	"fmt"
	"io"
	"net"
	"time"

	plog "github.com/prometheus/common/log"

	"github.com/aemnet/aemnode/internal/contact"
	"github.com/aemnet/aemnode/internal/identity"
	"github.com/aemnet/aemnode/internal/journal"
	"github.com/aemnet/aemnode/internal/logging"
	"github.com/aemnet/aemnode/internal/metrics"
	"github.com/aemnet/aemnode/internal/store"
)

// Role picks which side of the asymmetric exchange a session runs
// (§4.3): the two sides agree on transmit/receive order without an
// explicit turn token.
type Role int

const (
	// RoleServerResponder transmits first, then receives.
	RoleServerResponder Role = iota
	// RoleClientInitiator receives first, then transmits.
	RoleClientInitiator
)

// Deps bundles the shared state a session needs, all already guarded
// by their own locks (§5).
type Deps struct {
	Store     *store.Store
	Active    *contact.ActiveSet
	Stats     *contact.Stats
	Metrics   *metrics.Stats
	Journal   *journal.Journal
	Directory *identity.Directory
	Self      identity.AEM
	BodyLen   int
	Log       logging.Logger

	// FatalFunc handles an invariant violation: it must flush the
	// partial session journal document before terminating the
	// process. Wired by internal/node to journal.Journal.Fatal.
	FatalFunc func(v ...interface{})
}

// Run executes one pairwise session over conn with peer, applying the
// §4.3 guard, exchange and bookkeeping. A nil error covers both a
// completed exchange and a guard-skipped contact; only invariant
// violations are fatal (handled via Deps.FatalFunc, which never
// returns).
func Run(conn net.Conn, role Role, peer identity.Entry, deps Deps) error {
	if !peer.Known() {
		return fmt.Errorf("session: refusing to run with unknown peer (index -1)")
	}

	if deps.Stats.Count(peer.Index) >= deps.Stats.MaxPerPeer() {
		deps.Log.Debugf("skip %s: contact count reached MAX_CONNECTIONS_PER_PEER", peer.AEM)
		return nil
	}

	if !deps.Active.TryEnter(peer.AEM) {
		deps.Log.Debugf("skip %s: already in an active session", peer.AEM)
		return nil
	}
	defer deps.Active.Leave(peer.AEM)

	server, client := deps.Self.String(), peer.AEM.String()
	if role == RoleClientInitiator {
		server, client = client, server
	}

	var event *journal.Event
	deps.Journal.WithEventLock(func() {
		event = deps.Journal.StartEvent("connection", server, client)
	})

	start := time.Now()

	var err error
	switch role {
	case RoleServerResponder:
		if err = runTransmitter(conn, peer, deps, event); err == nil {
			closeWrite(conn)
			err = runReceiver(conn, peer, deps, event)
		}
	default:
		if err = runReceiver(conn, peer, deps, event); err == nil {
			err = runTransmitter(conn, peer, deps, event)
			closeWrite(conn)
		}
	}
	conn.Close()

	end := time.Now()
	deps.Stats.Record(peer.Index, contact.Window{Start: start, End: end})
	deps.Journal.WithEventLock(func() {
		deps.Journal.FinishEvent(event)
	})

	return err
}

func closeWrite(conn net.Conn) {
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.CloseWrite()
	}
}

// runReceiver implements §4.3.1: read fixed-width records until the
// peer half-closes or a short read ends the direction (a transient
// condition, never an error worth surfacing).
func runReceiver(conn net.Conn, peer identity.Entry, deps Deps, event *journal.Event) error {
	recLen := SerializedLen(deps.BodyLen, deps.Directory.Len())
	buf := make([]byte, recLen)

	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return nil
		}

		m, err := Decode(buf, deps.BodyLen, deps.Directory.Len())
		if err != nil {
			plog.Errorf("malformed record from %s: %v", peer.AEM, err)
			return nil
		}

		duplicate, forMe := deps.Store.Receive(m, peer, deps.Self, uint64(time.Now().Unix()))
		deps.Metrics.IncReceived(forMe && !duplicate)
		if duplicate {
			continue
		}

		deps.Journal.WithEventLock(func() {
			deps.Journal.LogMessage(event, "received", m, deps.Directory.Len())
		})
	}
}

// runTransmitter implements §4.3.2: walk the Message Store once,
// sending every slot this peer has not already received.
func runTransmitter(conn net.Conn, peer identity.Entry, deps Deps, event *journal.Event) error {
	for i := 0; i < deps.Store.Capacity(); i++ {
		m, eligible := deps.Store.EligibleForTransmit(i, peer)
		if !eligible {
			continue
		}
		if m.Recipient == deps.Self {
			deps.FatalFunc("session: invariant violated - attempted to transmit a message addressed to self")
		}

		wire := Encode(m, deps.BodyLen, deps.Directory.Len())
		if _, err := conn.Write(wire); err != nil {
			plog.Errorf("write to %s failed: %v", peer.AEM, err)
			return nil
		}

		deps.Store.MarkTransmitted(i, peer)
		deps.Metrics.IncTransmitted(peer.AEM == m.Recipient)

		deps.Journal.WithEventLock(func() {
			deps.Journal.LogMessage(event, "transmitted", m, deps.Directory.Len())
		})
	}
	return nil
}
