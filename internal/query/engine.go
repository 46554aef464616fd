// Package query implements the stateless request/response façade: block,
// transaction, contract-action and DUST-status lookups, each reading only
// from storage.Store and returning a *domain.Error with a Kind on every
// rejection so the GraphQL layer never needs to string-match.
package query

import (
	"context"

	"midnight-indexer/internal/bech32addr"
	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
)

const maxDustStatusAddresses = 10

// Engine wraps storage.Store with the query surface's validation rules.
type Engine struct {
	store storage.Store
}

func NewEngine(store storage.Store) *Engine {
	return &Engine{store: store}
}

// Block resolves {height? | hash? | (none)}. Both set is an error; neither
// set returns the latest block; an unknown height/hash returns (nil, nil).
func (e *Engine) Block(ctx context.Context, offset domain.BlockOffset) (*domain.Block, error) {
	if err := offset.Validate(); err != nil {
		return nil, err
	}
	switch {
	case offset.Hash != nil:
		return e.store.GetBlockByHash(ctx, *offset.Hash)
	case offset.Height != nil:
		return e.store.GetBlockByHeight(ctx, *offset.Height)
	default:
		return e.store.GetLatestBlock(ctx)
	}
}

// ParseBlockHash wraps domain.ParseHash with the query engine's error Kind
// so the GraphQL layer can surface "invalid block hash" uniformly.
func ParseBlockHash(s string) (domain.Hash, error) {
	h, err := domain.ParseHash(s)
	if err != nil {
		return domain.Hash{}, domain.WrapError(domain.KindInputMalformed, err, "invalid block hash")
	}
	return h, nil
}

// Transaction resolves {hash? | identifier?}. Exactly one must be set.
func (e *Engine) Transaction(ctx context.Context, lookup storage.TransactionLookup) ([]domain.Transaction, error) {
	if lookup.Hash == nil && lookup.Identifier == nil {
		return nil, domain.NewError(domain.KindInputMalformed, "requires exactly one field")
	}
	if lookup.Hash != nil && lookup.Identifier != nil {
		return nil, domain.NewError(domain.KindInputMalformed, "requires exactly one field")
	}
	return e.store.GetTransaction(ctx, lookup)
}

// ParseTransactionHashOrIdentifier wraps domain.ParseHash with the error
// text clients match on for a malformed lookup input.
func ParseTransactionHashOrIdentifier(s string) (domain.Hash, error) {
	h, err := domain.ParseHash(s)
	if err != nil {
		return domain.Hash{}, domain.WrapError(domain.KindInputMalformed, err, "invalid transaction hash/identifier: cannot decode")
	}
	return h, nil
}

// ContractAction resolves the action-history cutoff described by offset.
func (e *Engine) ContractAction(ctx context.Context, address domain.Address, offset storage.ContractActionOffset) (domain.ContractAction, error) {
	if offset.Hash != nil && offset.Height != nil {
		return nil, domain.NewError(domain.KindInputMalformed, "requires exactly one field")
	}
	return e.store.GetContractAction(ctx, address, offset)
}

// DustGenerationStatus validates every reward address is a Cardano reward
// address (bech32 HRP stake/stake_test), enforces the 10-address cap, and
// delegates derivation to storage so it can join the persisted registration
// and balance snapshots.
func (e *Engine) DustGenerationStatus(ctx context.Context, rewardAddresses []string) ([]domain.DustGenerationStatus, error) {
	if len(rewardAddresses) > maxDustStatusAddresses {
		return nil, domain.NewError(domain.KindInputMalformed, "at most %d reward addresses allowed, got %d", maxDustStatusAddresses, len(rewardAddresses))
	}
	for _, addr := range rewardAddresses {
		if _, err := bech32addr.ValidateRewardAddress(addr); err != nil {
			return nil, domain.WrapError(domain.KindInputMalformed, err, "invalid reward address %q", addr)
		}
	}
	return e.store.ComputeDustGenerationStatus(ctx, rewardAddresses)
}
