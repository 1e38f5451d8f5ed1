// Package sockopt applies the §5 socket options (SO_REUSEPORT,
// SO_LINGER{0,0}) so the process can be restarted immediately.
//
// The teacher pack has no direct analogue (the teacher's transport is
// relt, not raw TCP), but golang.zx2c4.com/wireguard's
// device/conn_linux.go shows the idiom for this exact class of
// problem: set socket options via golang.org/x/sys/unix before the
// listening socket is handed back to the caller. We adapt it from
// WireGuard's from-scratch unix.Socket/unix.Bind construction to
// net.ListenConfig.Control, which keeps the rest of the listener an
// ordinary net.Listener instead of a raw file descriptor.
package sockopt

import (
	"context"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// Listen opens a TCP listener on addr with SO_REUSEPORT and
// SO_LINGER{0,0} set on the underlying socket.
func Listen(ctx context.Context, addr string) (net.Listener, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
				if sockErr != nil {
					return
				}
				sockErr = unix.SetsockoptLinger(int(fd), unix.SOL_SOCKET, &unix.Linger{
					Onoff:  0,
					Linger: 0,
				})
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}
	return lc.Listen(ctx, "tcp", addr)
}
