// Package timesync implements the Time Sync Service (§2 #6, §4.5):
// the one-shot client that adopts a reference peer's clock, and the
// server that answers such requests.
package timesync

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"

	"github.com/aemnet/aemnode/internal/logging"
)

// RecordLen is the wire size of a time-sync record: two consecutive
// 64-bit fields, big-endian (§6.2, Open Question #1 resolved: the
// source's host-native struct timeval layout is replaced by a fixed,
// cross-architecture-safe encoding).
const RecordLen = 16

// Record is the (seconds, microseconds) pair exchanged on the wire.
type Record struct {
	Sec, Usec uint64
}

// ErrShortRecord is returned by Decode when given fewer than RecordLen
// bytes.
var ErrShortRecord = errors.New("timesync: short record")

// Encode serializes rec to its fixed 16-byte wire form.
func Encode(rec Record) []byte {
	buf := make([]byte, RecordLen)
	binary.BigEndian.PutUint64(buf[0:8], rec.Sec)
	binary.BigEndian.PutUint64(buf[8:16], rec.Usec)
	return buf
}

// Decode parses a wire record, rejecting anything short of RecordLen
// without partially consuming it (§9: "strict-width parser").
func Decode(buf []byte) (Record, error) {
	if len(buf) != RecordLen {
		return Record{}, ErrShortRecord
	}
	return Record{
		Sec:  binary.BigEndian.Uint64(buf[0:8]),
		Usec: binary.BigEndian.Uint64(buf[8:16]),
	}, nil
}

func closeWrite(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseWrite()
	}
}

func closeRead(conn net.Conn) {
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.CloseRead()
	}
}

// ServeOne answers a single accepted connection: half-close read,
// sample the clock, send the record, half-close write, close (§4.5
// Server side).
func ServeOne(conn net.Conn, clock *Clock, log logging.Logger) {
	defer conn.Close()
	closeRead(conn)

	now := clock.Now()
	rec := Record{Sec: uint64(now.Unix()), Usec: uint64(now.Nanosecond() / 1000)}
	if _, err := conn.Write(Encode(rec)); err != nil {
		log.Errorf("timesync: write failed: %v", err)
		return
	}
	closeWrite(conn)
	log.Infof("timesync: sent current timestamp %d to %s", rec.Sec, conn.RemoteAddr())
}

// Serve accepts connections on ln until ctx is cancelled, answering
// each with the current clock reading.
func Serve(ctx context.Context, ln net.Listener, clock *Clock, log logging.Logger) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Errorf("timesync: accept failed: %v", err)
			continue
		}
		go ServeOne(conn, clock, log)
	}
}

// SyncOnce runs the client side once at startup (§4.5 Client side): it
// connects to the reference peer, reads the record, and retries the
// whole connection cycle on a short read until it succeeds or ctx is
// cancelled.
func SyncOnce(ctx context.Context, addr string, clock *Clock, log logging.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		conn, err := (&net.Dialer{}).DialContext(ctx, "tcp", addr)
		if err != nil {
			log.Warnf("timesync: connect to %s failed, retrying: %v", addr, err)
			continue
		}

		buf := make([]byte, RecordLen)
		n, err := io.ReadFull(conn, buf)
		conn.Close()
		if err != nil || n != RecordLen {
			log.Warnf("timesync: short read from %s, retrying connection", addr)
			continue
		}

		rec, err := Decode(buf)
		if err != nil {
			continue
		}

		previous, updated := clock.Apply(rec)
		log.Infof("timesync: clock adjusted, previous=%d new=%d", previous, updated)
		return nil
	}
}
