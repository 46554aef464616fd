package graphqlapi

import (
	"midnight-indexer/internal/domain"
)

// transactionResolver wraps a domain.Transaction; graph-gophers/graphql-go
// dispatches the Transaction interface field set to whichever concrete
// To<Type>() method reports ok, matching the library's documented
// interface-resolution convention.
type transactionResolver struct {
	t domain.Transaction
}

func (r *transactionResolver) Hash() hashScalar    { return hashScalar(r.t.TxHash()) }
func (r *transactionResolver) BlockHeight() int32  { return int32(r.t.TxBlockHeight()) }
func (r *transactionResolver) IndexInBlock() int32 { return int32(r.t.TxIndexInBlock()) }

func (r *transactionResolver) ToRegularTransaction() (*regularTransactionResolver, bool) {
	regular, ok := r.t.(domain.RegularTransaction)
	if !ok {
		return nil, false
	}
	return &regularTransactionResolver{t: regular}, true
}

func (r *transactionResolver) ToSystemTransaction() (*systemTransactionResolver, bool) {
	system, ok := r.t.(domain.SystemTransaction)
	if !ok {
		return nil, false
	}
	return &systemTransactionResolver{t: system}, true
}

type regularTransactionResolver struct {
	t domain.RegularTransaction
}

func (r *regularTransactionResolver) Hash() hashScalar    { return hashScalar(r.t.Hash) }
func (r *regularTransactionResolver) BlockHeight() int32  { return int32(r.t.BlockHeight) }
func (r *regularTransactionResolver) IndexInBlock() int32 { return int32(r.t.IndexInBlock) }
func (r *regularTransactionResolver) Raw() bytesScalar    { return bytesScalar(r.t.Raw) }
func (r *regularTransactionResolver) Identifiers() []hashScalar {
	out := make([]hashScalar, len(r.t.Identifiers))
	for i, id := range r.t.Identifiers {
		out[i] = hashScalar(id)
	}
	return out
}

type systemTransactionResolver struct {
	t domain.SystemTransaction
}

func (r *systemTransactionResolver) Hash() hashScalar    { return hashScalar(r.t.Hash) }
func (r *systemTransactionResolver) BlockHeight() int32  { return int32(r.t.BlockHeight) }
func (r *systemTransactionResolver) IndexInBlock() int32 { return int32(r.t.IndexInBlock) }

type blockResolver struct {
	b domain.Block
}

func (r *blockResolver) Hash() hashScalar       { return hashScalar(r.b.Hash) }
func (r *blockResolver) Height() int32          { return int32(r.b.Height) }
func (r *blockResolver) ParentHash() hashScalar { return hashScalar(r.b.ParentHash) }
func (r *blockResolver) Timestamp() int32       { return int32(r.b.Timestamp.Unix()) }
func (r *blockResolver) Transactions() []*transactionResolver {
	out := make([]*transactionResolver, len(r.b.Transactions))
	for i, t := range r.b.Transactions {
		out[i] = &transactionResolver{t: t}
	}
	return out
}

// contractActionResolver wraps a domain.ContractAction behind the
// ContractAction interface the same way transactionResolver wraps
// domain.Transaction.
type contractActionResolver struct {
	a domain.ContractAction
}

func (r *contractActionResolver) Address() addressScalar { return addressScalar(r.a.ActionAddress()) }
func (r *contractActionResolver) TransactionHash() hashScalar {
	return hashScalar(r.a.ActionTransaction().Hash)
}
func (r *contractActionResolver) BlockHeight() int32 {
	height, _ := r.a.ActionPosition()
	return int32(height)
}
func (r *contractActionResolver) IndexInBlock() int32 {
	_, index := r.a.ActionPosition()
	return int32(index)
}

func (r *contractActionResolver) ToContractDeployAction() (*contractDeployActionResolver, bool) {
	deploy, ok := r.a.(domain.ContractDeployAction)
	if !ok {
		return nil, false
	}
	return &contractDeployActionResolver{contractActionResolver{a: deploy}}, true
}

func (r *contractActionResolver) ToContractCallAction() (*contractCallActionResolver, bool) {
	call, ok := r.a.(domain.ContractCallAction)
	if !ok {
		return nil, false
	}
	return &contractCallActionResolver{contractActionResolver{a: call}, call}, true
}

func (r *contractActionResolver) ToContractUpdateAction() (*contractUpdateActionResolver, bool) {
	update, ok := r.a.(domain.ContractUpdateAction)
	if !ok {
		return nil, false
	}
	return &contractUpdateActionResolver{contractActionResolver{a: update}, update}, true
}

type contractDeployActionResolver struct {
	contractActionResolver
}

type contractCallActionResolver struct {
	contractActionResolver
	call domain.ContractCallAction
}

func (r *contractCallActionResolver) EntryPoint() string { return r.call.EntryPoint }
func (r *contractCallActionResolver) DeployTransactionHash() hashScalar {
	return hashScalar(r.call.Deploy.Hash)
}

type contractUpdateActionResolver struct {
	contractActionResolver
	update domain.ContractUpdateAction
}

func (r *contractUpdateActionResolver) DeployTransactionHash() hashScalar {
	return hashScalar(r.update.Deploy.Hash)
}

type ledgerEventResolver struct {
	e domain.LedgerEvent
}

func (r *ledgerEventResolver) Id() bigIntScalar {
	return bigIntScalar{v: newBigIntFromUint64(r.e.Id)}
}
func (r *ledgerEventResolver) Raw() bytesScalar { return bytesScalar(r.e.Raw) }
func (r *ledgerEventResolver) MaxId() bigIntScalar {
	return bigIntScalar{v: newBigIntFromUint64(r.e.MaxId)}
}

type dustGenerationStatusResolver struct {
	s domain.DustGenerationStatus
}

func (r *dustGenerationStatusResolver) CardanoRewardAddress() string { return r.s.CardanoRewardAddress }
func (r *dustGenerationStatusResolver) Registered() bool             { return r.s.Registered }
func (r *dustGenerationStatusResolver) DustAddress() *string         { return r.s.DustAddress }
func (r *dustGenerationStatusResolver) NightBalance() bigIntScalar {
	return bigIntScalar{v: r.s.NightBalance}
}
func (r *dustGenerationStatusResolver) GenerationRate() bigIntScalar {
	return bigIntScalar{v: r.s.GenerationRate}
}
func (r *dustGenerationStatusResolver) CurrentCapacity() bigIntScalar {
	return bigIntScalar{v: r.s.CurrentCapacity}
}
func (r *dustGenerationStatusResolver) MaxCapacity() bigIntScalar {
	return bigIntScalar{v: r.s.MaxCapacity}
}

// The five subscription frame types below are plain graph-gophers object
// resolvers (no interface dispatch needed): every field is nullable, so a
// nil pointer simply resolves to GraphQL null.

type BlockEvent struct {
	Block *blockResolver
	Error *string
}

type ContractActionEvent struct {
	Action *contractActionResolver
	Error  *string
}

type LedgerEventFrame struct {
	Event *ledgerEventResolver
	Error *string
}

type ShieldedTransactionEvent struct {
	Transaction          *transactionResolver
	Plaintext            *bytesScalar
	HighestTransactionId *bigIntScalar
	Error                *string
}

type UnshieldedTransactionEvent struct {
	Transaction          *transactionResolver
	HighestTransactionId *bigIntScalar
	Error                *string
}
