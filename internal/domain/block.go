package domain

import "time"

// Block is an immutable, finalized block. Height is strictly increasing
// from zero with no gaps; ParentHash is the zero hash only at height 0.
type Block struct {
	Hash         Hash
	Height       uint32
	ParentHash   Hash
	Timestamp    time.Time
	Transactions []Transaction
}

// TransactionKind discriminates the Transaction sum type on the wire via
// __typename.
type TransactionKind string

const (
	TransactionKindRegular TransactionKind = "RegularTransaction"
	TransactionKindSystem  TransactionKind = "SystemTransaction"
)

// Transaction is the sum type {RegularTransaction, SystemTransaction}.
// Both variants share Hash/BlockHeight/IndexInBlock; only RegularTransaction
// carries identifiers, raw bytes, UTXOs and ledger/contract side effects.
type Transaction interface {
	Kind() TransactionKind
	TxHash() Hash
	TxBlockHeight() uint32
	TxIndexInBlock() uint32
}

// CommonTransaction is embedded by both transaction variants.
type CommonTransaction struct {
	Hash         Hash
	BlockHeight  uint32
	IndexInBlock uint32
}

func (c CommonTransaction) TxHash() Hash           { return c.Hash }
func (c CommonTransaction) TxBlockHeight() uint32  { return c.BlockHeight }
func (c CommonTransaction) TxIndexInBlock() uint32 { return c.IndexInBlock }

// SystemTransaction is a ledger-internal transaction with no shielded or
// unshielded side effects visible at this layer.
type SystemTransaction struct {
	CommonTransaction
}

func (SystemTransaction) Kind() TransactionKind { return TransactionKindSystem }

// RegularTransaction carries identifiers, raw bytes and every side effect
// the decoder extracted from the wire transaction.
type RegularTransaction struct {
	CommonTransaction
	Identifiers              []Hash
	Raw                      []byte
	UnshieldedCreatedOutputs []UnshieldedUtxo
	UnshieldedSpentOutputs   []UnshieldedUtxo
	ZswapLedgerEvents        []LedgerEvent
	DustLedgerEvents         []LedgerEvent
	ContractActions          []ContractAction
}

func (RegularTransaction) Kind() TransactionKind { return TransactionKindRegular }
