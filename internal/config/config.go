// Package config is the enumerated configuration surface of §6.6.
// Loading it from flags or a file is the startup binary's job
// (out of THE CORE per §1); this package only holds the resulting
// values and their defaults.
package config

import (
	"fmt"
	"time"

	"github.com/aemnet/aemnode/internal/identity"
)

// PeerSource selects how the directory is derived (PEER_SOURCE).
type PeerSource string

const (
	SourceList  PeerSource = "list"
	SourceRange PeerSource = "range"
)

// Config mirrors §6.6's enumerated options.
type Config struct {
	SelfAEM identity.AEM
	Subnet  string // dotted two-octet IPv4 prefix, e.g. "10.0"

	PeerSource   PeerSource
	PeerList     []identity.AEM
	PeerRangeMin identity.AEM
	PeerRangeLen int

	MsgCap   int
	InboxCap int
	BodyLen  int

	ProducerDelayMin int // seconds
	ProducerDelayMax int // seconds

	MaxWorkers            int
	MaxConnectionsPerPeer int

	RefTimeAEM identity.AEM

	RequestedDuration time.Duration
	AlsoLogToStdout   bool

	Port    int    // data port; time-sync listens on Port+1
	LogPath string // where the session journal document is written on exit
}

// Default returns §6.6's defaults plus the original conf.h constants
// this spec was distilled from (BODY_LEN=256, data port 2020).
func Default() Config {
	return Config{
		Subnet:                "10.0",
		PeerSource:            SourceRange,
		PeerRangeMin:          9990,
		PeerRangeLen:          8,
		MsgCap:                256,
		InboxCap:              256,
		BodyLen:               256,
		ProducerDelayMin:      5,
		ProducerDelayMax:      30,
		MaxWorkers:            4,
		MaxConnectionsPerPeer: 8,
		RefTimeAEM:            1,
		RequestedDuration:     5 * time.Minute,
		Port:                  2020,
		LogPath:               "session.json",
	}
}

// Directory builds the peer directory this configuration describes.
func (c Config) Directory() *identity.Directory {
	switch c.PeerSource {
	case SourceList:
		return identity.NewFromList(c.Subnet, c.PeerList)
	default:
		return identity.NewFromRange(c.Subnet, c.PeerRangeMin, c.PeerRangeLen)
	}
}

// Validate checks the startup-failure conditions from §7's expansion:
// an invalid self-AEM must abort startup rather than silently run with
// directory index -1.
func (c Config) Validate() error {
	dir := c.Directory()
	if !dir.Lookup(c.SelfAEM).Known() {
		return fmt.Errorf("config: self AEM %s is not present in the configured directory", c.SelfAEM)
	}
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("config: MAX_WORKERS must be positive, got %d", c.MaxWorkers)
	}
	if c.MsgCap <= 0 || c.InboxCap <= 0 {
		return fmt.Errorf("config: MSG_CAP and INBOX_CAP must be positive")
	}
	if c.ProducerDelayMin <= 0 || c.ProducerDelayMax < c.ProducerDelayMin {
		return fmt.Errorf("config: producer delay range is invalid (min=%d max=%d)", c.ProducerDelayMin, c.ProducerDelayMax)
	}
	return nil
}
