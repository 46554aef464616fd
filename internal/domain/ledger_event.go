package domain

// LedgerEventFamily distinguishes the two ledger-event tables that share a
// single monotone id sequence.
type LedgerEventFamily string

const (
	LedgerEventFamilyZswap LedgerEventFamily = "ZswapLedgerEvent"
	LedgerEventFamilyDust  LedgerEventFamily = "DustLedgerEvent"
)

// LedgerEvent is a discrete state-transition record. Id is allocated from a
// single u64 sequence shared by both families, so the combined stream is
// strictly increasing even though each family alone has gaps where the
// other family's ids were allocated. MaxId is a read-only snapshot of the
// highest id committed at the time this event (or query) was produced.
type LedgerEvent struct {
	Family LedgerEventFamily
	Id     uint64
	Raw    []byte
	MaxId  uint64
}
