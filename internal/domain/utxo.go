package domain

import "time"

// UnshieldedUtxo is a plaintext unspent transaction output. OutputIndex is
// strictly ascending within the creating transaction. SpentAtTransaction is
// nil until a later transaction spends it; once set,
// SpentAtTransaction.Height >= CreatedAtTransaction.Height always holds.
type UnshieldedUtxo struct {
	Owner                       Address
	TokenType                   []byte
	Value                       [16]byte // u128, big-endian
	OutputIndex                 uint32
	CreatedAtTransaction        TxRef
	SpentAtTransaction          *TxRef
	Ctime                       time.Time
	RegisteredForDustGeneration bool
}

// TxRef is a by-value reference to a transaction: enough to resolve the
// full record at read time without holding a pointer into another
// aggregate (the write graph is a strict DAG; back-references are
// hash+height, never pointers).
type TxRef struct {
	Hash   Hash
	Height uint32
}
