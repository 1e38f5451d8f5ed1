// Package node wires the long-lived workers - polling, listener,
// producer and the pool dispatch they share - into the running
// process (§2 #8-11, §5).
package node

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strconv"

	"github.com/aemnet/aemnode/internal/bodygen"
	"github.com/aemnet/aemnode/internal/config"
	"github.com/aemnet/aemnode/internal/contact"
	"github.com/aemnet/aemnode/internal/identity"
	"github.com/aemnet/aemnode/internal/journal"
	"github.com/aemnet/aemnode/internal/logging"
	"github.com/aemnet/aemnode/internal/metrics"
	"github.com/aemnet/aemnode/internal/pool"
	"github.com/aemnet/aemnode/internal/session"
	"github.com/aemnet/aemnode/internal/sockopt"
	"github.com/aemnet/aemnode/internal/store"
	"github.com/aemnet/aemnode/internal/timesync"
)

// Node bundles every shared component a session, the polling worker,
// the listener worker and the producer worker all touch.
type Node struct {
	Config    config.Config
	Directory *identity.Directory
	Self      identity.Entry

	Store   *store.Store
	Active  *contact.ActiveSet
	Contact *contact.Stats
	Metrics *metrics.Stats
	Journal *journal.Journal
	Clock   *timesync.Clock
	Pool    *pool.Pool
	Log     logging.Logger

	bodySrc *rand.Rand
}

// New builds a Node from a validated Config. Callers must call
// cfg.Validate() first; New does not repeat that check.
func New(cfg config.Config, log logging.Logger) *Node {
	dir := cfg.Directory()
	return &Node{
		Config:    cfg,
		Directory: dir,
		Self:      dir.Lookup(cfg.SelfAEM),
		Store:     store.New(cfg.MsgCap, cfg.InboxCap),
		Active:    contact.NewActiveSet(),
		Contact:   contact.NewStats(dir.Len(), cfg.MaxConnectionsPerPeer),
		Metrics:   metrics.New(),
		Journal:   journal.New(cfg.SelfAEM, cfg.RequestedDuration, cfg.AlsoLogToStdout, log),
		Clock:     timesync.NewClock(),
		Pool:      pool.New(cfg.MaxWorkers),
		Log:       log,
		bodySrc:   bodygen.NewSource(),
	}
}

// sessionDeps builds the Deps a session.Run call needs from the
// node's shared state.
func (n *Node) sessionDeps() session.Deps {
	return session.Deps{
		Store:     n.Store,
		Active:    n.Active,
		Stats:     n.Contact,
		Metrics:   n.Metrics,
		Journal:   n.Journal,
		Directory: n.Directory,
		Self:      n.Config.SelfAEM,
		BodyLen:   n.Config.BodyLen,
		Log:       n.Log,
		FatalFunc: n.fatal,
	}
}

// fatal flushes the session journal's partial document to
// Config.LogPath, then terminates the process via Log.Fatal. It is
// the journal's fatal sink (§7): the one path an invariant violation
// raised by internal/session must take, so the document is never
// silently discarded on exit.
func (n *Node) fatal(v ...interface{}) {
	n.Journal.Fatal(n.Config.LogPath, n.Directory, n.Metrics.Snapshot(), n.Contact.Snapshot(), n.Store.Snapshot(), n.Store.InboxSnapshot(), fmt.Sprint(v...))
}

// dispatch reserves a pool slot and runs the session on a detached
// worker if one is free; otherwise it runs inline in the caller, per
// §4.1/§4.2's "pool-if-available, else inline" rule.
func (n *Node) dispatch(conn net.Conn, role session.Role, peer identity.Entry) {
	deps := n.sessionDeps()
	if n.Pool.TryReserve() {
		go func() {
			defer n.Pool.Release()
			if err := session.Run(conn, role, peer, deps); err != nil {
				n.Log.Warnf("session with %s: %v", peer.AEM, err)
			}
		}()
		return
	}
	if err := session.Run(conn, role, peer, deps); err != nil {
		n.Log.Warnf("session with %s: %v", peer.AEM, err)
	}
}

// Address returns this node's (ip, PORT) data endpoint.
func (n *Node) Address() string {
	return net.JoinHostPort(n.Directory.AEM2IP(n.Config.SelfAEM), strconv.Itoa(n.Config.Port))
}

// TimeSyncAddress returns the (ip, PORT+1) setup endpoint.
func (n *Node) TimeSyncAddress() string {
	return net.JoinHostPort(n.Directory.AEM2IP(n.Config.SelfAEM), strconv.Itoa(n.Config.Port+1))
}

// SyncClock runs the one-shot time-sync client against the reference
// peer (§4.5). Called once at startup before the long-lived workers.
func (n *Node) SyncClock(ctx context.Context) error {
	if n.Config.SelfAEM == n.Config.RefTimeAEM {
		return nil
	}
	addr := net.JoinHostPort(n.Directory.AEM2IP(n.Config.RefTimeAEM), strconv.Itoa(n.Config.Port+1))
	return timesync.SyncOnce(ctx, addr, n.Clock, n.Log)
}

// ServeTimeSync runs the time-sync server loop until ctx is done.
func (n *Node) ServeTimeSync(ctx context.Context) error {
	ln, err := sockopt.Listen(ctx, n.TimeSyncAddress())
	if err != nil {
		return err
	}
	timesync.Serve(ctx, ln, n.Clock, n.Log)
	return nil
}

