package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
	"midnight-indexer/internal/storage"
)

// Event is the union a session's output channel carries: either a
// ShieldedMatch or a ShieldedProgress, mirroring the GraphQL
// ShieldedTransactions subscription's data/progress framing.
type Event any

// ShieldedProgress reports that block height has been fully scanned for a
// session, whether or not it produced a match.
type ShieldedProgress struct {
	HighestTransactionId uint64
}

// Indexer is the scheduler-driven orchestrator of shielded scanning: on
// every TopicWalletIndexable notification it enqueues one scan unit per
// active session, advances that session's lastScannedHeight only after the
// block's events are queued for delivery, and emits a ShieldedProgress
// event per block per session.
type Indexer struct {
	store     storage.Store
	sessions  *SessionManager
	scheduler *Scheduler
	scanner   *Scanner
	log       *logrus.Entry

	mu   sync.Mutex
	outs map[string]chan Event
}

func NewIndexer(store storage.Store, sessions *SessionManager, scheduler *Scheduler, scanner *Scanner, log *logrus.Entry) *Indexer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Indexer{
		store:     store,
		sessions:  sessions,
		scheduler: scheduler,
		scanner:   scanner,
		log:       log.WithField("component", "wallet.Indexer"),
		outs:      make(map[string]chan Event),
	}
}

// Register opens an output channel for sessionId so a subscription
// resolver can read ShieldedMatch/ShieldedProgress events. Unregister must
// be called when the subscription ends.
func (idx *Indexer) Register(sessionId string, capacity int) <-chan Event {
	ch := make(chan Event, capacity)
	idx.mu.Lock()
	idx.outs[sessionId] = ch
	idx.mu.Unlock()
	return ch
}

// Unregister drops sessionId's output channel. In-flight scan units for
// that session still run to completion but their results are discarded;
// a disconnected subscriber never receives partial results.
func (idx *Indexer) Unregister(sessionId string) {
	idx.mu.Lock()
	delete(idx.outs, sessionId)
	idx.mu.Unlock()
}

func (idx *Indexer) outputFor(sessionId string) (chan Event, bool) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	ch, ok := idx.outs[sessionId]
	return ch, ok
}

// ScanRange replays sessionId's matches for every block already committed
// at height >= fromHeight, in height order, stopping at the end of
// currently committed data. It is the historical-replay half of a new
// ShieldedTransactions subscription (the live half is Register's channel);
// it does not advance the session's persisted LastScannedHeight or touch
// any registered output channel, so the subscription engine can call it
// before or after Register without double-delivering a scan unit's result.
func (idx *Indexer) ScanRange(ctx context.Context, sessionId string, fromHeight uint32) ([]Event, error) {
	viewingKey, ok := idx.sessions.ViewingKey(sessionId)
	if !ok {
		return nil, domain.NewError(domain.KindUnauthorized, "session %q is not active", sessionId)
	}

	iter, err := idx.store.IterBlocks(ctx, fromHeight)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var events []Event
	for {
		block, ok, err := iter.Next(ctx)
		if err != nil {
			return events, err
		}
		if !ok {
			break
		}
		matches, err := idx.scanner.Scan(viewingKey, block)
		if err != nil {
			return events, fmt.Errorf("replay scan at height %d: %w", block.Height, err)
		}
		highestTxId := domain.PackTransactionId(block.Height, 0)
		for _, m := range matches {
			events = append(events, m)
			highestTxId = domain.PackTransactionId(m.Transaction.TxBlockHeight(), m.Transaction.TxIndexInBlock())
		}
		events = append(events, ShieldedProgress{HighestTransactionId: highestTxId})
	}
	return events, nil
}

// Run subscribes to committed-block notifications and drives scanning
// until ctx is canceled. sessionIds lists the currently active sessions to
// fan a new block out to; callers refresh this list by wrapping Run's
// caller loop (kept this simple on purpose: session membership changes are
// rare relative to block arrival).
func (idx *Indexer) Run(ctx context.Context, activeSessionIds func() []string) {
	sub := idx.store.Bus().Subscribe(eventbus.TopicWalletIndexable, 64)
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.C:
			if !ok {
				return
			}
			ev, ok := raw.(eventbus.WalletIndexableEvent)
			if !ok {
				continue
			}
			idx.scanBlockForSessions(ctx, ev.Height, activeSessionIds())
		}
	}
}

func (idx *Indexer) scanBlockForSessions(ctx context.Context, height uint32, sessionIds []string) {
	var wg sync.WaitGroup
	for _, sessionId := range sessionIds {
		sessionId := sessionId
		wg.Add(1)
		err := idx.scheduler.Submit(ctx, func() {
			defer wg.Done()
			idx.scanOne(ctx, sessionId, height)
		})
		if err != nil {
			wg.Done()
			idx.log.WithError(err).WithField("session", sessionId).Warn("dropped scan unit, scheduler unavailable")
		}
	}
	wg.Wait()
}

func (idx *Indexer) scanOne(ctx context.Context, sessionId string, height uint32) {
	viewingKey, ok := idx.sessions.ViewingKey(sessionId)
	if !ok {
		return // session closed mid-scan; discard
	}

	block, err := idx.store.GetBlockByHeight(ctx, height)
	if err != nil || block == nil {
		if err != nil {
			idx.log.WithError(err).WithField("height", height).Error("wallet scan: failed to load block")
		}
		return
	}

	matches, err := idx.scanner.Scan(viewingKey, *block)
	if err != nil {
		idx.log.WithError(err).WithFields(logrus.Fields{"session": sessionId, "height": height}).Error("wallet scan failed")
		return
	}

	out, ok := idx.outputFor(sessionId)
	if !ok {
		return // subscription disconnected; discard
	}

	var highestTxId uint64
	for _, m := range matches {
		highestTxId = domain.PackTransactionId(m.Transaction.TxBlockHeight(), m.Transaction.TxIndexInBlock())
		select {
		case out <- m:
		case <-ctx.Done():
			return
		}
	}

	if err := idx.sessions.store.AdvanceWalletSessionHeight(ctx, sessionId, height); err != nil {
		idx.log.WithError(err).WithField("session", sessionId).Error("failed to advance wallet session height")
		return
	}

	if highestTxId == 0 {
		highestTxId = domain.PackTransactionId(height, 0)
	}
	select {
	case out <- ShieldedProgress{HighestTransactionId: highestTxId}:
	case <-ctx.Done():
	}
}
