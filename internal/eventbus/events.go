package eventbus

import "midnight-indexer/internal/domain"

// BlockCommittedEvent is published on TopicBlockCommitted once append_block
// succeeds.
type BlockCommittedEvent struct {
	Block domain.Block
}

// LedgerEventCommittedEvent is published on TopicLedgerEventCommitted for
// every ledger event written by the committed block, in ascending id order.
type LedgerEventCommittedEvent struct {
	Event domain.LedgerEvent
}

// WalletIndexableEvent is published on TopicWalletIndexable once a block's
// rows (and its ledger events) are fully committed, telling the wallet
// indexer it may scan that height.
type WalletIndexableEvent struct {
	Height uint32
}

// ContractActionCommittedEvent and UnshieldedUtxoEvent are folded into the
// block-committed notification by subscribers that filter
// BlockCommittedEvent.Block.Transactions themselves, since both are always
// committed atomically with their owning block and never arrive separately.
