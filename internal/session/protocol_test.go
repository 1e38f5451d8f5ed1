package session

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/aemnet/aemnode/internal/contact"
	"github.com/aemnet/aemnode/internal/identity"
	"github.com/aemnet/aemnode/internal/journal"
	"github.com/aemnet/aemnode/internal/logging"
	"github.com/aemnet/aemnode/internal/metrics"
	"github.com/aemnet/aemnode/internal/store"
)

const testBodyLen = 8

func newTestDeps(t *testing.T, self identity.AEM, dir *identity.Directory, st *store.Store) Deps {
	t.Helper()
	return Deps{
		Store:     st,
		Active:    contact.NewActiveSet(),
		Stats:     contact.NewStats(dir.Len(), 8),
		Metrics:   metrics.New(),
		Journal:   journal.New(self, time.Minute, false, logging.New(false)),
		Directory: dir,
		Self:      self,
		BodyLen:   testBodyLen,
		Log:       logging.New(false),
		FatalFunc: func(v ...interface{}) {
			t.Fatalf("unexpected session fatal: %v", v)
		},
	}
}

// TestSessionDeliversSingleHop exercises S1: a message A produced for
// B reaches B's Inbox after one pairwise session, with A acting as the
// server-responder and B as the client-initiator.
func TestSessionDeliversSingleHop(t *testing.T) {
	dir := identity.NewFromList("10.0", []identity.AEM{1000, 1001})
	selfA, selfB := identity.AEM(1000), identity.AEM(1001)

	storeA := store.New(4, 4)
	storeB := store.New(4, 4)

	body := padBody([]byte("hi"), testBodyLen)
	msg := store.NewMessage(selfA, selfB, dir.Lookup(selfA).Index, 1700000000, body, dir.Len())
	storeA.Produce(msg)

	depsA := newTestDeps(t, selfA, dir, storeA)
	depsB := newTestDeps(t, selfB, dir, storeB)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	errA := make(chan error, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			errA <- err
			return
		}
		errA <- Run(conn, RoleServerResponder, dir.Lookup(selfB), depsA)
	}()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	errB := Run(conn, RoleClientInitiator, dir.Lookup(selfA), depsB)

	if err := <-errA; err != nil {
		t.Fatalf("server side: %v", err)
	}
	if errB != nil {
		t.Fatalf("client side: %v", errB)
	}

	inbox := storeB.InboxSnapshot()
	if len(inbox) != 1 {
		t.Fatalf("expected 1 inbox message, got %d", len(inbox))
	}
	if inbox[0].Sender != selfA || inbox[0].FirstSender != selfA {
		t.Errorf("unexpected inbox entry: %+v", inbox[0])
	}

	snap := depsB.Metrics.Snapshot()
	if snap.Received != 1 || snap.ReceivedForMe != 1 {
		t.Errorf("unexpected receive counters: %+v", snap)
	}

	snapA := depsA.Metrics.Snapshot()
	if snapA.Transmitted != 1 || snapA.TransmittedToRecipient != 1 {
		t.Errorf("unexpected transmit counters: %+v", snapA)
	}

	if depsA.Active.Contains(selfB) || depsB.Active.Contains(selfA) {
		t.Error("peer left in active set after session completed")
	}
	if depsA.Stats.Count(dir.Lookup(selfB).Index) != 1 {
		t.Error("expected one recorded contact window")
	}
}

// TestSessionGuardSkipsAlreadyActive covers the §4.3 guard: a peer
// already present in the Active-Contact Set is refused without
// touching the connection.
func TestSessionGuardSkipsAlreadyActive(t *testing.T) {
	dir := identity.NewFromList("10.0", []identity.AEM{1000, 1001})
	self := identity.AEM(1000)
	peer := dir.Lookup(identity.AEM(1001))

	deps := newTestDeps(t, self, dir, store.New(4, 4))
	if !deps.Active.TryEnter(peer.AEM) {
		t.Fatal("setup: could not pre-occupy active set")
	}

	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	if err := Run(srv, RoleServerResponder, peer, deps); err != nil {
		t.Fatalf("expected guard skip to return nil, got %v", err)
	}
}

// TestSessionRejectsUnknownPeer covers the invariant that a directory
// index of -1 must never enter the exchange (§3 Directory Entry).
func TestSessionRejectsUnknownPeer(t *testing.T) {
	dir := identity.NewFromList("10.0", []identity.AEM{1000, 1001})
	deps := newTestDeps(t, identity.AEM(1000), dir, store.New(4, 4))

	unknown := identity.Entry{AEM: 9999, Index: -1}
	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	if err := Run(srv, RoleServerResponder, unknown, deps); err == nil {
		t.Error("expected an error for an unknown peer")
	}
}

// TestSessionGuardSkipsAtMaxContactCount covers the other half of the
// §4.3 guard: a peer whose contact count already reached
// MAX_CONNECTIONS_PER_PEER is skipped before it ever enters the
// Active-Contact Set, so no window is transiently recorded.
func TestSessionGuardSkipsAtMaxContactCount(t *testing.T) {
	dir := identity.NewFromList("10.0", []identity.AEM{1000, 1001})
	self := identity.AEM(1000)
	peer := dir.Lookup(identity.AEM(1001))

	deps := newTestDeps(t, self, dir, store.New(4, 4))
	for deps.Stats.Count(peer.Index) < deps.Stats.MaxPerPeer() {
		deps.Stats.Record(peer.Index, contact.Window{Start: time.Now(), End: time.Now()})
	}

	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()

	if err := Run(srv, RoleServerResponder, peer, deps); err != nil {
		t.Fatalf("expected guard skip to return nil, got %v", err)
	}
	if deps.Active.Contains(peer.AEM) {
		t.Error("peer left in active set after a count-guard skip")
	}
}

// TestRunTransmitterInvariantCallsFatalFunc covers §7: a message
// addressed to self reaching the transmitter must be treated as an
// invariant violation routed through Deps.FatalFunc (the journal's
// fatal sink), never logged and swallowed.
func TestRunTransmitterInvariantCallsFatalFunc(t *testing.T) {
	dir := identity.NewFromList("10.0", []identity.AEM{1000, 1001})
	self := identity.AEM(1000)
	peer := dir.Lookup(identity.AEM(1001))

	st := store.New(4, 4)
	selfIndex := dir.Lookup(self).Index
	bad := store.NewMessage(self, self, selfIndex, 1700000000, padBody([]byte("x"), testBodyLen), dir.Len())
	st.Produce(bad)

	var called bool
	var gotMsg string
	deps := newTestDeps(t, self, dir, st)
	deps.FatalFunc = func(v ...interface{}) {
		called = true
		if len(v) > 0 {
			gotMsg, _ = v[0].(string)
		}
	}

	client, srv := net.Pipe()
	defer client.Close()
	defer srv.Close()
	go io.Copy(io.Discard, client)

	event := deps.Journal.StartEvent("connection", "server", "client")
	if err := runTransmitter(srv, peer, deps, event); err != nil {
		t.Fatalf("runTransmitter: %v", err)
	}
	if !called {
		t.Fatal("expected FatalFunc to be called for a self-addressed message")
	}
	if gotMsg == "" {
		t.Error("expected FatalFunc to receive a description of the violation")
	}
}
