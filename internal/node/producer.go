package node

import (
	"context"
	"time"

	"github.com/aemnet/aemnode/internal/bodygen"
	"github.com/aemnet/aemnode/internal/store"
)

// randomRecipient picks a directory peer other than self. The
// directory always has at least self plus the configured peers, so a
// node with only itself in the directory would loop forever; callers
// are expected to configure at least one other peer (§6.6).
func (n *Node) randomRecipient() store.AEM {
	for {
		aem := n.Directory.ByIndex(n.bodySrc.Intn(n.Directory.Len()))
		if aem != n.Config.SelfAEM {
			return aem
		}
	}
}

func (n *Node) randomDelay() int {
	span := n.Config.ProducerDelayMax - n.Config.ProducerDelayMin + 1
	return n.Config.ProducerDelayMin + n.bodySrc.Intn(span)
}

// ProducerLoop implements §4.4: forever, synthesize a message under
// the log-event mutex, push it into the Message Store, log it, then
// sleep for a random interval - the only cooperative suspension point
// in this worker.
func (n *Node) ProducerLoop(ctx context.Context) {
	for ctx.Err() == nil {
		n.Journal.WithEventLock(func() {
			recipient := n.randomRecipient()
			body := bodygen.Random(n.Config.BodyLen, n.bodySrc)
			msg := store.NewMessage(n.Config.SelfAEM, recipient, n.Self.Index, n.Clock.NowUnix(), body, n.Directory.Len())

			n.Store.Produce(msg)
			n.Metrics.IncProduced()

			event := n.Journal.StartEvent("production", n.Config.SelfAEM.String(), n.Config.SelfAEM.String())
			n.Journal.LogMessage(event, "produced", msg, n.Directory.Len())
			n.Journal.FinishEvent(event)
		})

		delay := n.randomDelay()
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(delay) * time.Second):
		}
		n.Metrics.AddProducedDelay(uint64(delay))
	}
}
