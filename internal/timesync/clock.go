package timesync

import (
	"sync"
	"time"
)

// Clock lets every produced message and every journal timestamp agree
// on a node-wide wall-clock, after the one-shot sync handshake (§4.5)
// adjusts it.
//
// The original settimeofday() call requires CAP_SYS_TIME and mutates
// the whole machine's clock; a portable node instead keeps a local
// offset applied on top of time.Now(), which gives every caller in
// this process the synchronized view the spec asks for ("install the
// received time with settimeofday-equivalent") without touching
// process-external state.
type Clock struct {
	mutex  *sync.Mutex
	offset time.Duration
}

// NewClock builds a clock with no offset (local time == wall clock).
func NewClock() *Clock {
	return &Clock{mutex: &sync.Mutex{}}
}

// Now returns the node's current synchronized time.
func (c *Clock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return time.Now().Add(c.offset)
}

// NowUnix is a convenience for fields that want Linux-epoch seconds,
// matching §3's created_at/saved_at representation.
func (c *Clock) NowUnix() uint64 {
	return uint64(c.Now().Unix())
}

// Apply installs rec as the node's new idea of "now", returning the
// previous and new Unix-second readings for §6.5's datetime log event.
func (c *Clock) Apply(rec Record) (previousNow, newNow uint64) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	previousNow = uint64(time.Now().Add(c.offset).Unix())
	target := time.Unix(int64(rec.Sec), int64(rec.Usec)*int64(time.Microsecond))
	c.offset = time.Until(target)
	newNow = uint64(time.Now().Add(c.offset).Unix())
	return previousNow, newNow
}
