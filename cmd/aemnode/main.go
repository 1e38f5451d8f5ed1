// Command aemnode is the startup binary: the external collaborator
// spec.md §1 scopes outside THE CORE (CLI parsing, wiring the workers,
// writing the session journal) but still requires to exist.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/aemnet/aemnode/internal/config"
	"github.com/aemnet/aemnode/internal/identity"
	"github.com/aemnet/aemnode/internal/logging"
	"github.com/aemnet/aemnode/internal/node"
)

var (
	selfAEM           = kingpin.Flag("self", "this node's AEM identity").Required().Uint32()
	subnet            = kingpin.Flag("subnet", "two-octet IPv4 subnet prefix").Default("10.0").String()
	peerSource        = kingpin.Flag("peer-source", "how the directory is derived").Default("range").Enum("list", "range")
	peerList          = kingpin.Flag("peer-list", "comma-separated AEM list, used when peer-source=list").Default("").String()
	peerRangeMin      = kingpin.Flag("peer-range-min", "first AEM in the range, used when peer-source=range").Default("9990").Uint32()
	peerRangeLen      = kingpin.Flag("peer-range-len", "range length, used when peer-source=range").Default("8").Int()
	msgCap            = kingpin.Flag("msg-cap", "Message Store capacity").Default("256").Int()
	inboxCap          = kingpin.Flag("inbox-cap", "Inbox capacity").Default("256").Int()
	bodyLen           = kingpin.Flag("body-len", "message body width in bytes").Default("256").Int()
	delayMin          = kingpin.Flag("producer-delay-min", "producer minimum sleep, seconds").Default("5").Int()
	delayMax          = kingpin.Flag("producer-delay-max", "producer maximum sleep, seconds").Default("30").Int()
	maxWorkers        = kingpin.Flag("max-workers", "worker pool size").Default("4").Int()
	maxConnPerPeer    = kingpin.Flag("max-connections-per-peer", "per-peer contact ceiling").Default("8").Int()
	refTimeAEM        = kingpin.Flag("ref-time-aem", "time-sync reference peer's AEM").Default("1").Uint32()
	requestedDuration = kingpin.Flag("requested-duration", "how long the node stays up").Default("5m").Duration()
	alsoStdout        = kingpin.Flag("also-stdout", "mirror the session journal to stdout").Default("false").Bool()
	port              = kingpin.Flag("port", "data port; time-sync listens on port+1").Default("2020").Int()
	logPath           = kingpin.Flag("log-file", "where to write the session journal document").Default("session.json").String()
	debug             = kingpin.Flag("debug", "enable debug-level logging").Default("false").Bool()
)

func parsePeerList(raw string) ([]identity.AEM, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]identity.AEM, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("--peer-list: %w", err)
		}
		out = append(out, identity.AEM(v))
	}
	return out, nil
}

func buildConfig() (config.Config, error) {
	cfg := config.Default()
	cfg.SelfAEM = identity.AEM(*selfAEM)
	cfg.Subnet = *subnet
	cfg.PeerSource = config.PeerSource(*peerSource)
	cfg.PeerRangeMin = identity.AEM(*peerRangeMin)
	cfg.PeerRangeLen = *peerRangeLen
	cfg.MsgCap = *msgCap
	cfg.InboxCap = *inboxCap
	cfg.BodyLen = *bodyLen
	cfg.ProducerDelayMin = *delayMin
	cfg.ProducerDelayMax = *delayMax
	cfg.MaxWorkers = *maxWorkers
	cfg.MaxConnectionsPerPeer = *maxConnPerPeer
	cfg.RefTimeAEM = identity.AEM(*refTimeAEM)
	cfg.RequestedDuration = *requestedDuration
	cfg.AlsoLogToStdout = *alsoStdout
	cfg.Port = *port
	cfg.LogPath = *logPath

	peers, err := parsePeerList(*peerList)
	if err != nil {
		return config.Config{}, err
	}
	cfg.PeerList = peers

	return cfg, nil
}

func main() {
	kingpin.Version("aemnode 0.1.0")
	kingpin.Parse()

	cfg, err := buildConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.New(*debug)
	n := node.New(cfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.RequestedDuration)
	defer cancel()

	if err := n.SyncClock(ctx); err != nil {
		log.Warnf("time sync: %v", err)
	}

	go n.ServeTimeSync(ctx)
	go n.PollingLoop(ctx)
	go n.ProducerLoop(ctx)

	if err := n.ListenAndServe(ctx); err != nil {
		log.Errorf("listener: %v", err)
	}

	// Give any in-flight sessions a moment to reach their next
	// cancellation point (§5: state mutations happen while
	// uncancellable, so shutdown is never instantaneous).
	time.Sleep(100 * time.Millisecond)

	doc := n.Journal.Finalize(n.Directory, n.Metrics.Snapshot(), n.Contact.Snapshot(), n.Store.Snapshot(), n.Store.InboxSnapshot())
	n.Journal.WriteFile(n.Config.LogPath, doc)
}
