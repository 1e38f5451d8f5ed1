package timesync

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/aemnet/aemnode/internal/logging"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := Record{Sec: 1700000000, Usec: 123456}
	got, err := Decode(Encode(rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != rec {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestDecodeRejectsShortRecord(t *testing.T) {
	if _, err := Decode([]byte{1, 2, 3}); err != ErrShortRecord {
		t.Errorf("expected ErrShortRecord, got %v", err)
	}
}

// S6: reference peer returns a fixed (sec,usec); the client's clock
// moves to reflect it.
func TestSyncOnceAdoptsReferenceClock(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	log := logging.New(false)
	clock := NewClock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	const refSec = 1700000000
	serverClock := NewClock()
	serverClock.Apply(Record{Sec: refSec, Usec: 123456})
	go Serve(ctx, ln, serverClock, log)

	if err := SyncOnce(ctx, ln.Addr().String(), clock, log); err != nil {
		t.Fatalf("SyncOnce: %v", err)
	}

	if got := clock.NowUnix(); got < refSec || got > refSec+5 {
		t.Errorf("expected the client clock to adopt the reference reading %d, got %d", refSec, got)
	}
}
