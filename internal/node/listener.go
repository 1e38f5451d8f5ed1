package node

import (
	"context"
	"errors"
	"net"

	"github.com/aemnet/aemnode/internal/session"
	"github.com/aemnet/aemnode/internal/sockopt"
)

// ListenAndServe binds the data port and accepts sessions until ctx is
// cancelled (§4.2). An accepted connection from an unrecognized remote
// address is closed immediately - it can never resolve to a directory
// entry, so the session protocol would reject it anyway.
func (n *Node) ListenAndServe(ctx context.Context) error {
	ln, err := sockopt.Listen(ctx, n.Address())
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			n.Log.Warnf("listener: accept: %v", err)
			continue
		}

		peer := n.Directory.ResolveIP(conn.RemoteAddr().String())
		if !peer.Known() {
			n.Log.Warnf("listener: refusing connection from unrecognized address %s", conn.RemoteAddr())
			conn.Close()
			continue
		}

		n.dispatch(conn, session.RoleServerResponder, peer)
	}
}
