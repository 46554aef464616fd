package graphqlapi

import (
	"context"

	"github.com/google/uuid"

	"midnight-indexer/internal/bech32addr"
	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/query"
	"midnight-indexer/internal/storage"
	"midnight-indexer/internal/subscription"
	"midnight-indexer/internal/wallet"
)

// Root is the graph-gophers/graphql-go root resolver: every Query, Mutation
// and Subscription field in schema.go dispatches through one of the three
// engines below. Root holds no state of its own.
type Root struct {
	Queries       *query.Engine
	Subscriptions *subscription.Engine
	Sessions      *wallet.SessionManager
}

func NewRoot(queries *query.Engine, subscriptions *subscription.Engine, sessions *wallet.SessionManager) *Root {
	return &Root{Queries: queries, Subscriptions: subscriptions, Sessions: sessions}
}

// --- Query ---

type blockArgs struct{ Offset *blockOffsetInput }

type blockOffsetInput struct {
	Hash   *hashScalar
	Height *int32
}

func (a *blockOffsetInput) toDomain() domain.BlockOffset {
	if a == nil {
		return domain.BlockOffset{}
	}
	var offset domain.BlockOffset
	if a.Hash != nil {
		h := domain.Hash(*a.Hash)
		offset.Hash = &h
	}
	if a.Height != nil {
		height := uint32(*a.Height)
		offset.Height = &height
	}
	return offset
}

func (r *Root) Block(ctx context.Context, args blockArgs) (*blockResolver, error) {
	b, err := r.Queries.Block(ctx, args.Offset.toDomain())
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, nil
	}
	return &blockResolver{b: *b}, nil
}

type transactionLookupInput struct {
	Hash       *hashScalar
	Identifier *hashScalar
}

type transactionArgs struct{ Lookup transactionLookupInput }

func (r *Root) Transaction(ctx context.Context, args transactionArgs) ([]*transactionResolver, error) {
	lookup := storage.TransactionLookup{}
	if args.Lookup.Hash != nil {
		h := domain.Hash(*args.Lookup.Hash)
		lookup.Hash = &h
	}
	if args.Lookup.Identifier != nil {
		id := domain.Hash(*args.Lookup.Identifier)
		lookup.Identifier = &id
	}
	txs, err := r.Queries.Transaction(ctx, lookup)
	if err != nil {
		return nil, err
	}
	out := make([]*transactionResolver, len(txs))
	for i, t := range txs {
		out[i] = &transactionResolver{t: t}
	}
	return out, nil
}

type contractActionOffsetInput struct {
	Hash   *hashScalar
	Height *int32
}

func (a *contractActionOffsetInput) toDomain() storage.ContractActionOffset {
	if a == nil {
		return storage.ContractActionOffset{None: true}
	}
	offset := storage.ContractActionOffset{}
	if a.Hash != nil {
		h := domain.Hash(*a.Hash)
		offset.Hash = &h
	}
	if a.Height != nil {
		height := uint32(*a.Height)
		offset.Height = &height
	}
	if offset.Hash == nil && offset.Height == nil {
		offset.None = true
	}
	return offset
}

type contractActionArgs struct {
	Address addressScalar
	Offset  *contractActionOffsetInput
}

func (r *Root) ContractAction(ctx context.Context, args contractActionArgs) (*contractActionResolver, error) {
	action, err := r.Queries.ContractAction(ctx, domain.Address(args.Address), args.Offset.toDomain())
	if err != nil {
		return nil, err
	}
	if action == nil {
		return nil, nil
	}
	return &contractActionResolver{a: action}, nil
}

type dustGenerationStatusArgs struct{ RewardAddresses []string }

func (r *Root) DustGenerationStatus(ctx context.Context, args dustGenerationStatusArgs) ([]*dustGenerationStatusResolver, error) {
	statuses, err := r.Queries.DustGenerationStatus(ctx, args.RewardAddresses)
	if err != nil {
		return nil, err
	}
	out := make([]*dustGenerationStatusResolver, len(statuses))
	for i, s := range statuses {
		out[i] = &dustGenerationStatusResolver{s: s}
	}
	return out, nil
}

// --- Mutation ---

type connectArgs struct {
	ViewingKey string
	Network    string
}

// Connect mints a session id, bech32m-decodes the viewing key (checking its
// HRP matches network exactly) and opens a wallet session behind it. The
// plaintext key never appears in a log line or error message.
func (r *Root) Connect(ctx context.Context, args connectArgs) (string, error) {
	viewingKey, err := bech32addr.DecodeViewingKey(args.ViewingKey, bech32addr.Network(args.Network))
	if err != nil {
		return "", domain.WrapError(domain.KindInputMalformed, err, "invalid viewing key")
	}
	sessionId := uuid.NewString()
	if err := r.Sessions.Open(ctx, sessionId, args.Network, viewingKey); err != nil {
		return "", err
	}
	return sessionId, nil
}

type disconnectArgs struct{ SessionId string }

func (r *Root) Disconnect(ctx context.Context, args disconnectArgs) (bool, error) {
	if err := r.Sessions.Close(ctx, args.SessionId); err != nil {
		return false, err
	}
	return true, nil
}

// --- Subscription ---

type blocksArgs struct{ Offset *blockOffsetInput }

func (r *Root) Blocks(ctx context.Context, args blocksArgs) <-chan *BlockEvent {
	src, stop := r.Subscriptions.StartBlocks(ctx, args.Offset.toDomain())
	out := make(chan *BlockEvent, outputCapacity)
	go func() {
		defer close(out)
		defer stop()
		forward(ctx, src, out, func(ev subscription.Event) *BlockEvent {
			switch e := ev.(type) {
			case subscription.BlockEvent:
				return &BlockEvent{Block: &blockResolver{b: e.Block}}
			case subscription.ErrorEvent:
				msg := e.Err.Error()
				return &BlockEvent{Error: &msg}
			default:
				return nil
			}
		})
	}()
	return out
}

type contractActionsArgs struct {
	Address addressScalar
	Offset  *contractActionOffsetInput
}

func (r *Root) ContractActions(ctx context.Context, args contractActionsArgs) <-chan *ContractActionEvent {
	src, stop := r.Subscriptions.StartContractActions(ctx, domain.Address(args.Address), args.Offset.toDomain())
	out := make(chan *ContractActionEvent, outputCapacity)
	go func() {
		defer close(out)
		defer stop()
		forward(ctx, src, out, func(ev subscription.Event) *ContractActionEvent {
			switch e := ev.(type) {
			case subscription.ContractActionEvent:
				return &ContractActionEvent{Action: &contractActionResolver{a: e.Action}}
			case subscription.ErrorEvent:
				msg := e.Err.Error()
				return &ContractActionEvent{Error: &msg}
			default:
				return nil
			}
		})
	}()
	return out
}

type ledgerEventsArgs struct{ Id *string }

// fromId parses the optional decimal id argument. A missing id means "from
// the start"; a present one must parse as a well-formed, non-negative
// uint64 or the subscription is rejected with a single error frame.
func (a ledgerEventsArgs) fromId() (uint64, error) {
	if a.Id == nil {
		return 0, nil
	}
	var n bigIntScalar
	if err := n.UnmarshalGraphQL(*a.Id); err != nil || n.v == nil {
		return 0, domain.NewError(domain.KindInputMalformed, "invalid id %q", *a.Id)
	}
	if n.v.Sign() < 0 {
		return 0, domain.NewError(domain.KindInputMalformed, "id must not be negative")
	}
	if !n.v.IsUint64() {
		return 0, domain.NewError(domain.KindInputMalformed, "id out of range")
	}
	return n.v.Uint64(), nil
}

func (r *Root) ZswapLedgerEvents(ctx context.Context, args ledgerEventsArgs) <-chan *LedgerEventFrame {
	return r.ledgerEvents(ctx, domain.LedgerEventFamilyZswap, args)
}

func (r *Root) DustLedgerEvents(ctx context.Context, args ledgerEventsArgs) <-chan *LedgerEventFrame {
	return r.ledgerEvents(ctx, domain.LedgerEventFamilyDust, args)
}

func (r *Root) ledgerEvents(ctx context.Context, family domain.LedgerEventFamily, args ledgerEventsArgs) <-chan *LedgerEventFrame {
	convert := func(ev subscription.Event) *LedgerEventFrame {
		switch e := ev.(type) {
		case subscription.LedgerEventEvent:
			return &LedgerEventFrame{Event: &ledgerEventResolver{e: e.Event}}
		case subscription.ErrorEvent:
			msg := e.Err.Error()
			return &LedgerEventFrame{Error: &msg}
		default:
			return nil
		}
	}

	out := make(chan *LedgerEventFrame, outputCapacity)
	fromId, err := args.fromId()
	if err != nil {
		go func() {
			defer close(out)
			forward(ctx, malformedInputSource(err), out, convert)
		}()
		return out
	}

	src, stop := r.Subscriptions.StartLedgerEvents(ctx, family, fromId)
	go func() {
		defer close(out)
		defer stop()
		forward(ctx, src, out, convert)
	}()
	return out
}

// malformedInputSource builds a one-shot subscription.Event source that
// yields exactly one ErrorEvent then a CompletionEvent, the same envelope
// shape subscription.Engine's own emitError produces for a malformed
// argument caught before the engine is invoked.
func malformedInputSource(err error) <-chan subscription.Event {
	ch := make(chan subscription.Event, 2)
	ch <- subscription.ErrorEvent{Err: err}
	ch <- subscription.CompletionEvent{}
	close(ch)
	return ch
}

type shieldedTransactionsArgs struct{ SessionId string }

func (r *Root) ShieldedTransactions(ctx context.Context, args shieldedTransactionsArgs) <-chan *ShieldedTransactionEvent {
	src, stop := r.Subscriptions.StartShieldedTransactions(ctx, args.SessionId)
	out := make(chan *ShieldedTransactionEvent, outputCapacity)
	go func() {
		defer close(out)
		defer stop()
		forward(ctx, src, out, func(ev subscription.Event) *ShieldedTransactionEvent {
			switch e := ev.(type) {
			case wallet.ShieldedMatch:
				plaintext := bytesScalar(e.Plaintext)
				return &ShieldedTransactionEvent{
					Transaction: &transactionResolver{t: e.Transaction},
					Plaintext:   &plaintext,
				}
			case wallet.ShieldedProgress:
				id := bigIntScalar{v: newBigIntFromUint64(e.HighestTransactionId)}
				return &ShieldedTransactionEvent{HighestTransactionId: &id}
			case subscription.ErrorEvent:
				msg := e.Err.Error()
				return &ShieldedTransactionEvent{Error: &msg}
			default:
				return nil
			}
		})
	}()
	return out
}

type unshieldedTransactionsArgs struct{ Address addressScalar }

func (r *Root) UnshieldedTransactions(ctx context.Context, args unshieldedTransactionsArgs) <-chan *UnshieldedTransactionEvent {
	src, stop := r.Subscriptions.StartUnshieldedTransactions(ctx, domain.Address(args.Address))
	out := make(chan *UnshieldedTransactionEvent, outputCapacity)
	go func() {
		defer close(out)
		defer stop()
		forward(ctx, src, out, func(ev subscription.Event) *UnshieldedTransactionEvent {
			switch e := ev.(type) {
			case subscription.UnshieldedTransactionEvent:
				return &UnshieldedTransactionEvent{Transaction: &transactionResolver{t: e.Transaction}}
			case subscription.UnshieldedTransactionsProgress:
				id := bigIntScalar{v: newBigIntFromUint64(e.HighestTransactionId)}
				return &UnshieldedTransactionEvent{HighestTransactionId: &id}
			case subscription.ErrorEvent:
				msg := e.Err.Error()
				return &UnshieldedTransactionEvent{Error: &msg}
			default:
				return nil
			}
		})
	}()
	return out
}

const outputCapacity = 16

// forward drains src, translating every subscription.Event through convert
// and sending the result on out. A CompletionEvent (or ctx cancellation, or
// src closing) ends the loop; the caller closes out and stops src.
func forward[T any](ctx context.Context, src <-chan subscription.Event, out chan<- *T, convert func(subscription.Event) *T) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-src:
			if !ok {
				return
			}
			if _, isCompletion := ev.(subscription.CompletionEvent); isCompletion {
				return
			}
			mapped := convert(ev)
			if mapped == nil {
				continue
			}
			select {
			case out <- mapped:
			case <-ctx.Done():
				return
			}
		}
	}
}
