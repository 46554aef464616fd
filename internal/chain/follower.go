package chain

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"midnight-indexer/internal/domain"
)

// outputCapacity is the bounded channel between the follower and storage,
// the system's sole backpressure knob: a full channel stalls the node pull.
const outputCapacity = 16

// maxBackoff caps the node-pull retry delay.
const maxBackoff = 30 * time.Second

// Follower drives a sustained pull from NodeClient, decodes every block
// through Decoder and publishes the strictly ordered result on Blocks.
// A single producer sends blocks in height order; Blocks is buffered, so up
// to outputCapacity decoded blocks can wait unread before a send blocks and
// the node pull stalls.
type Follower struct {
	client  NodeClient
	decoder Decoder
	log     *logrus.Entry

	Blocks chan domain.Block

	healthy atomic.Bool
	failed  atomic.Bool
}

// Healthy reports whether the follower is currently delivering blocks
// without being stuck in backoff after a fatal error. The cmd entrypoints
// poll this to decide whether to fail a readiness check.
func (f *Follower) Healthy() bool { return f.healthy.Load() && !f.failed.Load() }

// Fail latches the follower unhealthy. The storage writer calls this when an
// append violates a chain invariant: ingestion pauses and the health check
// stays failed until the operator restarts the process.
func (f *Follower) Fail() {
	f.failed.Store(true)
	f.healthy.Store(false)
}

// NewFollower constructs a Follower. log may be nil, in which case a
// standard logrus logger is used.
func NewFollower(client NodeClient, decoder Decoder, log *logrus.Entry) *Follower {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Follower{
		client:  client,
		decoder: decoder,
		log:     log.WithField("component", "chain.Follower"),
		Blocks:  make(chan domain.Block, outputCapacity),
	}
}

// Run subscribes from fromHeight and feeds Follower.Blocks until ctx is
// canceled. On a transport error it resubscribes from the last height it
// successfully delivered, with exponential backoff capped at maxBackoff.
// It never returns on a transient error; it returns only when ctx is done.
func (f *Follower) Run(ctx context.Context, fromHeight uint32) error {
	defer close(f.Blocks)
	defer f.healthy.Store(false)

	next := fromHeight
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0 // retry forever; caller controls lifetime via ctx
	bo.MaxInterval = maxBackoff

	for {
		f.healthy.Store(true)
		delivered, err := f.runOnce(ctx, next)
		next += delivered
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			// The node closed the stream cleanly; resubscribe immediately.
			bo.Reset()
			continue
		}

		f.healthy.Store(false)
		wait := bo.NextBackOff()
		f.log.WithError(err).WithField("resubscribe_height", next).WithField("wait", wait).Warn("chain follower resubscribing after transport error")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// runOnce subscribes once and forwards decoded blocks until the subscription
// ends, returning the count of blocks successfully delivered to Blocks.
func (f *Follower) runOnce(ctx context.Context, fromHeight uint32) (uint32, error) {
	raws, errs, err := f.client.SubscribeFinalizedBlocks(ctx, fromHeight)
	if err != nil {
		return 0, fmt.Errorf("subscribe from height %d: %w", fromHeight, err)
	}

	var delivered uint32
	for {
		select {
		case <-ctx.Done():
			return delivered, nil
		case err, ok := <-errs:
			if !ok {
				return delivered, nil
			}
			return delivered, err
		case raw, ok := <-raws:
			if !ok {
				return delivered, nil
			}
			blk, err := f.decoder.Decode(raw)
			if err != nil {
				return delivered, fmt.Errorf("decode block at height %d: %w", raw.Height, err)
			}
			select {
			case f.Blocks <- blk:
				delivered++
			case <-ctx.Done():
				return delivered, nil
			}
		}
	}
}
