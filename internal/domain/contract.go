package domain

// ContractActionKind discriminates the ContractAction sum type.
type ContractActionKind string

const (
	ContractActionDeploy ContractActionKind = "ContractDeploy"
	ContractActionCall   ContractActionKind = "ContractCall"
	ContractActionUpdate ContractActionKind = "ContractUpdate"
)

// ContractAction is the sum type {ContractDeploy, ContractCall,
// ContractUpdate}. For any given Address there is exactly one Deploy;
// subsequent Call/Update actions form an ordered history by
// (BlockHeight, IndexInBlock).
type ContractAction interface {
	ActionKind() ContractActionKind
	ActionAddress() Address
	ActionTransaction() TxRef
	ActionPosition() (height uint32, indexInBlock uint32)
	ActionZswapState() []byte
}

// CommonContractAction is embedded by every variant.
type CommonContractAction struct {
	Address      Address
	Transaction  TxRef
	IndexInBlock uint32
	ZswapState   []byte
}

func (c CommonContractAction) ActionAddress() Address   { return c.Address }
func (c CommonContractAction) ActionTransaction() TxRef { return c.Transaction }
func (c CommonContractAction) ActionZswapState() []byte { return c.ZswapState }
func (c CommonContractAction) ActionPosition() (uint32, uint32) {
	return c.Transaction.Height, c.IndexInBlock
}

// ContractDeployAction installs a contract at Address. It is the unique
// origin of that address's action history.
type ContractDeployAction struct {
	CommonContractAction
}

func (ContractDeployAction) ActionKind() ContractActionKind { return ContractActionDeploy }

// ContractCallAction invokes an entry point on a previously deployed
// contract.
type ContractCallAction struct {
	CommonContractAction
	EntryPoint string
	Deploy     TxRef
}

func (ContractCallAction) ActionKind() ContractActionKind { return ContractActionCall }

// ContractUpdateAction maintains a previously deployed contract (e.g.
// upgrades its code) without invoking an entry point.
type ContractUpdateAction struct {
	CommonContractAction
	Deploy TxRef
}

func (ContractUpdateAction) ActionKind() ContractActionKind { return ContractActionUpdate }
