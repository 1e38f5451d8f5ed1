package node

import (
	"context"
	"net"
	"strconv"

	"github.com/aemnet/aemnode/internal/session"
)

// PollRound attempts one outbound connection to every directory peer
// other than self (§4.1). A connect failure is silent; the round
// simply proceeds to the next peer.
func (n *Node) PollRound(ctx context.Context) {
	for i := 0; i < n.Directory.Len(); i++ {
		if ctx.Err() != nil {
			return
		}

		aem := n.Directory.ByIndex(i)
		if aem == n.Config.SelfAEM {
			continue
		}

		addr := net.JoinHostPort(n.Directory.AEM2IP(aem), strconv.Itoa(n.Config.Port))
		dialer := net.Dialer{}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			continue
		}

		// From here through dispatch the handoff is uncancellable
		// (§5): a successful connect must always reach a session.
		n.dispatch(conn, session.RoleClientInitiator, n.Directory.Lookup(aem))
	}
}

// PollingLoop runs PollRound forever until ctx is cancelled, logging
// each round's advance.
func (n *Node) PollingLoop(ctx context.Context) {
	round := 0
	for ctx.Err() == nil {
		n.PollRound(ctx)
		round++
		n.Log.Debugf("polling: round %d complete", round)
	}
}
