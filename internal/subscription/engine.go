// Package subscription implements the live streams: one cooperative
// goroutine per active subscription that replays history from
// storage.Store's restartable iterators, then hands off to the
// eventbus.Bus notification stream without a gap or a duplicate. The
// bus subscription is registered before the historical read starts, which
// is what makes the handoff safe.
package subscription

import (
	"context"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/eventbus"
	"midnight-indexer/internal/storage"
	"midnight-indexer/internal/wallet"
)

// outputCapacity bounds every subscriber-facing channel this package hands
// out. A slow client stops new sends, which propagates backpressure
// upstream through the shared bounded queues rather than dropping events.
const outputCapacity = 16

// Event is any of the frame types this package emits: BlockEvent,
// ContractActionEvent, LedgerEventEvent, UnshieldedTransactionEvent,
// UnshieldedTransactionsProgress, wallet.ShieldedMatch, wallet.ShieldedProgress,
// ErrorEvent or CompletionEvent.
type Event any

// ErrorEvent is the single error envelope a malformed or not-found
// subscription input produces before the stream completes.
type ErrorEvent struct {
	Err error
}

// CompletionEvent marks the end of a stream: after an ErrorEvent, or on
// shutdown.
type CompletionEvent struct{}

// BlockEvent carries one committed block.
type BlockEvent struct {
	Block domain.Block
}

// ContractActionEvent carries one contract action for the subscribed
// address.
type ContractActionEvent struct {
	Action domain.ContractAction
}

// LedgerEventEvent carries one ledger event of the subscribed family; its
// MaxId field is the running progress marker property 5 requires.
type LedgerEventEvent struct {
	Event domain.LedgerEvent
}

// UnshieldedTransactionEvent carries one transaction that creates or spends
// a UTXO owned by the subscribed address.
type UnshieldedTransactionEvent struct {
	Transaction domain.Transaction
}

// UnshieldedTransactionsProgress is the liveness heartbeat interleaved with
// UnshieldedTransactionEvent frames; it is the only frame delivered to an
// address the stream never actually touches.
type UnshieldedTransactionsProgress struct {
	HighestTransactionId uint64
}

// Engine owns the five stream constructors. It reads only through
// storage.Store and, for shielded transactions, forwards a wallet.Indexer's
// per-session output rather than re-implementing decrypt/scan.
type Engine struct {
	store    storage.Store
	sessions *wallet.SessionManager
	indexer  *wallet.Indexer
}

func NewEngine(store storage.Store, sessions *wallet.SessionManager, indexer *wallet.Indexer) *Engine {
	return &Engine{store: store, sessions: sessions, indexer: indexer}
}

func sendEvent(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func emitError(ctx context.Context, out chan<- Event, err error) {
	if !sendEvent(ctx, out, ErrorEvent{Err: err}) {
		return
	}
	sendEvent(ctx, out, CompletionEvent{})
}

// StartBlocks streams blocks from offset (inclusive), or from the latest
// committed block if offset is empty, then every subsequent block.
func (e *Engine) StartBlocks(ctx context.Context, offset domain.BlockOffset) (<-chan Event, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, outputCapacity)
	go func() {
		defer close(out)
		e.runBlocks(ctx, offset, out)
	}()
	return out, cancel
}

func (e *Engine) runBlocks(ctx context.Context, offset domain.BlockOffset, out chan<- Event) {
	if err := offset.Validate(); err != nil {
		emitError(ctx, out, err)
		return
	}

	var fromHeight uint32
	switch {
	case offset.Hash != nil:
		blk, err := e.store.GetBlockByHash(ctx, *offset.Hash)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if blk == nil {
			emitError(ctx, out, domain.NewError(domain.KindNotFound, "block with hash %s not found", *offset.Hash))
			return
		}
		fromHeight = blk.Height
	case offset.Height != nil:
		blk, err := e.store.GetBlockByHeight(ctx, *offset.Height)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if blk == nil {
			emitError(ctx, out, domain.NewError(domain.KindNotFound, "block with height %d not found", *offset.Height))
			return
		}
		fromHeight = blk.Height
	default:
		latest, err := e.store.GetLatestBlock(ctx)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if latest != nil {
			fromHeight = latest.Height
		}
	}

	sub := e.store.Bus().Subscribe(eventbus.TopicBlockCommitted, outputCapacity)
	defer sub.Close()

	var lastHeight uint32
	var delivered bool

	iter, err := e.store.IterBlocks(ctx, fromHeight)
	if err != nil {
		emitError(ctx, out, err)
		return
	}
	defer iter.Close()
	for {
		blk, ok, err := iter.Next(ctx)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if !ok {
			break
		}
		if !sendEvent(ctx, out, BlockEvent{Block: blk}) {
			return
		}
		lastHeight, delivered = blk.Height, true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.C:
			if !ok {
				return
			}
			committed, ok := raw.(eventbus.BlockCommittedEvent)
			if !ok {
				continue
			}
			if delivered && committed.Block.Height <= lastHeight {
				continue
			}
			if !sendEvent(ctx, out, BlockEvent{Block: committed.Block}) {
				return
			}
			lastHeight, delivered = committed.Block.Height, true
		}
	}
}

// StartContractActions streams the ordered action history for address from
// offset (or from the start of the chain if offset is empty), then every
// subsequent action.
func (e *Engine) StartContractActions(ctx context.Context, address domain.Address, offset storage.ContractActionOffset) (<-chan Event, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, outputCapacity)
	go func() {
		defer close(out)
		e.runContractActions(ctx, address, offset, out)
	}()
	return out, cancel
}

func (e *Engine) runContractActions(ctx context.Context, address domain.Address, offset storage.ContractActionOffset, out chan<- Event) {
	if offset.Hash != nil && offset.Height != nil {
		emitError(ctx, out, domain.NewError(domain.KindInputMalformed, "requires exactly one field"))
		return
	}

	var fromOffset domain.BlockPosition
	switch {
	case offset.Hash != nil:
		blk, err := e.store.GetBlockByHash(ctx, *offset.Hash)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if blk == nil {
			emitError(ctx, out, domain.NewError(domain.KindNotFound, "block with hash %s not found", *offset.Hash))
			return
		}
		fromOffset = domain.BlockPosition{Height: blk.Height}
	case offset.Height != nil:
		blk, err := e.store.GetBlockByHeight(ctx, *offset.Height)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if blk == nil {
			emitError(ctx, out, domain.NewError(domain.KindNotFound, "block with height %d not found", *offset.Height))
			return
		}
		fromOffset = domain.BlockPosition{Height: blk.Height}
	}

	sub := e.store.Bus().Subscribe(eventbus.TopicBlockCommitted, outputCapacity)
	defer sub.Close()

	var lastPos domain.BlockPosition
	var delivered bool

	iter, err := e.store.IterContractActions(ctx, address, fromOffset)
	if err != nil {
		emitError(ctx, out, err)
		return
	}
	defer iter.Close()
	for {
		action, ok, err := iter.Next(ctx)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if !ok {
			break
		}
		height, index := action.ActionPosition()
		if !sendEvent(ctx, out, ContractActionEvent{Action: action}) {
			return
		}
		lastPos, delivered = domain.BlockPosition{Height: height, IndexInBlock: index}, true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.C:
			if !ok {
				return
			}
			committed, ok := raw.(eventbus.BlockCommittedEvent)
			if !ok {
				continue
			}
			for _, t := range committed.Block.Transactions {
				regular, ok := t.(domain.RegularTransaction)
				if !ok {
					continue
				}
				for _, action := range regular.ContractActions {
					if string(action.ActionAddress()) != string(address) {
						continue
					}
					height, index := action.ActionPosition()
					pos := domain.BlockPosition{Height: height, IndexInBlock: index}
					if delivered && !lastPos.Less(pos) {
						continue
					}
					if !sendEvent(ctx, out, ContractActionEvent{Action: action}) {
						return
					}
					lastPos, delivered = pos, true
				}
			}
		}
	}
}

// StartLedgerEvents streams ledger events of family with id >= fromId, then
// every subsequent event of that family in global id order.
func (e *Engine) StartLedgerEvents(ctx context.Context, family domain.LedgerEventFamily, fromId uint64) (<-chan Event, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, outputCapacity)
	go func() {
		defer close(out)
		e.runLedgerEvents(ctx, family, fromId, out)
	}()
	return out, cancel
}

func (e *Engine) runLedgerEvents(ctx context.Context, family domain.LedgerEventFamily, fromId uint64, out chan<- Event) {
	sub := e.store.Bus().Subscribe(eventbus.TopicLedgerEventCommitted, outputCapacity)
	defer sub.Close()

	var lastId uint64
	var delivered bool

	iter, err := e.store.IterLedgerEvents(ctx, family, fromId)
	if err != nil {
		emitError(ctx, out, err)
		return
	}
	defer iter.Close()
	for {
		ev, ok, err := iter.Next(ctx)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if !ok {
			break
		}
		if !sendEvent(ctx, out, LedgerEventEvent{Event: ev}) {
			return
		}
		lastId, delivered = ev.Id, true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.C:
			if !ok {
				return
			}
			committed, ok := raw.(eventbus.LedgerEventCommittedEvent)
			if !ok || committed.Event.Family != family {
				continue
			}
			if delivered && committed.Event.Id <= lastId {
				continue
			}
			if !sendEvent(ctx, out, LedgerEventEvent{Event: committed.Event}) {
				return
			}
			lastId, delivered = committed.Event.Id, true
		}
	}
}

// StartShieldedTransactions replays sessionId's matches from its last
// scanned height through the current tip, then hands off to the wallet
// indexer's live output. The session must already be open; a closed or
// unknown session id terminates the stream with one Unauthorized error
// frame.
func (e *Engine) StartShieldedTransactions(ctx context.Context, sessionId string) (<-chan Event, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, outputCapacity)
	go func() {
		defer close(out)
		e.runShieldedTransactions(ctx, sessionId, out)
	}()
	return out, cancel
}

func (e *Engine) runShieldedTransactions(ctx context.Context, sessionId string, out chan<- Event) {
	if !e.sessions.Active(sessionId) {
		emitError(ctx, out, domain.NewError(domain.KindUnauthorized, "session %q is not active", sessionId))
		return
	}
	session, err := e.store.GetWalletSession(ctx, sessionId)
	if err != nil {
		emitError(ctx, out, err)
		return
	}
	if session == nil {
		emitError(ctx, out, domain.NewError(domain.KindUnauthorized, "session %q is not active", sessionId))
		return
	}

	// Register before replaying so a block committed mid-replay still
	// reaches the live channel; the delivered/lastId tracking below drops
	// whatever the live channel repeats from the replay's tail.
	walletEvents := e.indexer.Register(sessionId, outputCapacity)
	defer e.indexer.Unregister(sessionId)

	var lastId uint64
	var delivered bool

	replay, err := e.indexer.ScanRange(ctx, sessionId, session.LastScannedHeight+1)
	if err != nil {
		emitError(ctx, out, err)
		return
	}
	for _, ev := range replay {
		id, ok := shieldedEventId(ev)
		if !sendEvent(ctx, out, ev) {
			return
		}
		if ok {
			lastId, delivered = id, true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-walletEvents:
			if !ok {
				return
			}
			id, hasId := shieldedEventId(ev)
			if hasId && delivered && id <= lastId {
				continue
			}
			if !sendEvent(ctx, out, ev) {
				return
			}
			if hasId {
				lastId, delivered = id, true
			}
		}
	}
}

// shieldedEventId extracts the monotone transaction-id marker from a
// wallet.Event so replay-then-live handoff can dedupe on it, the same way
// runBlocks/runLedgerEvents dedupe on height/id.
func shieldedEventId(ev Event) (uint64, bool) {
	switch e := ev.(type) {
	case wallet.ShieldedMatch:
		return domain.PackTransactionId(e.Transaction.TxBlockHeight(), e.Transaction.TxIndexInBlock()), true
	case wallet.ShieldedProgress:
		return e.HighestTransactionId, true
	default:
		return 0, false
	}
}

// StartUnshieldedTransactions streams transactions that create or spend a
// UTXO owned by address. After each live block that carries a regular
// transaction it sends a progress heartbeat with that block's last
// transaction id, whether or not the block touched address, unless that
// last transaction was itself just delivered. The historical replay sends
// no heartbeats.
func (e *Engine) StartUnshieldedTransactions(ctx context.Context, address domain.Address) (<-chan Event, func()) {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan Event, outputCapacity)
	go func() {
		defer close(out)
		e.runUnshieldedTransactions(ctx, address, out)
	}()
	return out, cancel
}

func (e *Engine) runUnshieldedTransactions(ctx context.Context, address domain.Address, out chan<- Event) {
	sub := e.store.Bus().Subscribe(eventbus.TopicBlockCommitted, outputCapacity)
	defer sub.Close()

	var lastTxId uint64
	var delivered bool

	iter, err := e.store.IterUnshieldedEvents(ctx, address, 0)
	if err != nil {
		emitError(ctx, out, err)
		return
	}
	defer iter.Close()
	for {
		ev, ok, err := iter.Next(ctx)
		if err != nil {
			emitError(ctx, out, err)
			return
		}
		if !ok {
			break
		}
		if !sendEvent(ctx, out, UnshieldedTransactionEvent{Transaction: ev.Transaction}) {
			return
		}
		lastTxId, delivered = ev.HighestTransactionId, true
	}

	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub.C:
			if !ok {
				return
			}
			committed, ok := raw.(eventbus.BlockCommittedEvent)
			if !ok {
				continue
			}
			var blockLastTxId uint64
			var sawTx bool
			for _, t := range committed.Block.Transactions {
				regular, ok := t.(domain.RegularTransaction)
				if !ok {
					continue
				}
				txId := domain.PackTransactionId(committed.Block.Height, regular.IndexInBlock)
				blockLastTxId, sawTx = txId, true
				if delivered && txId <= lastTxId {
					continue
				}
				if !touchesAddress(regular, address) {
					continue
				}
				if !sendEvent(ctx, out, UnshieldedTransactionEvent{Transaction: t}) {
					return
				}
				lastTxId, delivered = txId, true
			}
			if sawTx && (!delivered || blockLastTxId > lastTxId) {
				if !sendEvent(ctx, out, UnshieldedTransactionsProgress{HighestTransactionId: blockLastTxId}) {
					return
				}
				lastTxId, delivered = blockLastTxId, true
			}
		}
	}
}

func touchesAddress(t domain.RegularTransaction, address domain.Address) bool {
	for _, u := range t.UnshieldedCreatedOutputs {
		if string(u.Owner) == string(address) {
			return true
		}
	}
	for _, u := range t.UnshieldedSpentOutputs {
		if string(u.Owner) == string(address) {
			return true
		}
	}
	return false
}
