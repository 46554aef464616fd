package graphqlapi

// schema is the graph-gophers/graphql-go SDL for the external interface:
// block/transaction/contract-action/DUST queries, the live subscription
// streams (zswap/dust ledger events share one field type, surfaced as two
// subscriptions), and the two session mutations subscriptions sit behind.
const schema = `
scalar Hash
scalar Address
scalar BigInt
scalar Bytes

input BlockOffsetInput {
    hash: Hash
    height: Int
}

input ContractActionOffsetInput {
    hash: Hash
    height: Int
}

input TransactionLookupInput {
    hash: Hash
    identifier: Hash
}

interface Transaction {
    hash: Hash!
    blockHeight: Int!
    indexInBlock: Int!
}

type RegularTransaction implements Transaction {
    hash: Hash!
    blockHeight: Int!
    indexInBlock: Int!
    identifiers: [Hash!]!
    raw: Bytes!
}

type SystemTransaction implements Transaction {
    hash: Hash!
    blockHeight: Int!
    indexInBlock: Int!
}

type Block {
    hash: Hash!
    height: Int!
    parentHash: Hash!
    timestamp: Int!
    transactions: [Transaction!]!
}

interface ContractAction {
    address: Address!
    transactionHash: Hash!
    blockHeight: Int!
    indexInBlock: Int!
}

type ContractDeployAction implements ContractAction {
    address: Address!
    transactionHash: Hash!
    blockHeight: Int!
    indexInBlock: Int!
}

type ContractCallAction implements ContractAction {
    address: Address!
    transactionHash: Hash!
    blockHeight: Int!
    indexInBlock: Int!
    entryPoint: String!
    deployTransactionHash: Hash!
}

type ContractUpdateAction implements ContractAction {
    address: Address!
    transactionHash: Hash!
    blockHeight: Int!
    indexInBlock: Int!
    deployTransactionHash: Hash!
}

type LedgerEvent {
    id: BigInt!
    raw: Bytes!
    maxId: BigInt!
}

type DustGenerationStatus {
    cardanoRewardAddress: String!
    registered: Boolean!
    dustAddress: String
    nightBalance: BigInt!
    generationRate: BigInt!
    currentCapacity: BigInt!
    maxCapacity: BigInt!
}

type BlockEvent {
    block: Block
    error: String
}

type ContractActionEvent {
    action: ContractAction
    error: String
}

type LedgerEventFrame {
    event: LedgerEvent
    error: String
}

type ShieldedTransactionEvent {
    transaction: Transaction
    plaintext: Bytes
    highestTransactionId: BigInt
    error: String
}

type UnshieldedTransactionEvent {
    transaction: Transaction
    highestTransactionId: BigInt
    error: String
}

type Query {
    block(offset: BlockOffsetInput): Block
    transaction(lookup: TransactionLookupInput!): [Transaction!]!
    contractAction(address: Address!, offset: ContractActionOffsetInput): ContractAction
    dustGenerationStatus(rewardAddresses: [String!]!): [DustGenerationStatus!]!
}

type Mutation {
    connect(viewingKey: String!, network: String!): String!
    disconnect(sessionId: String!): Boolean!
}

type Subscription {
    blocks(offset: BlockOffsetInput): BlockEvent!
    contractActions(address: Address!, offset: ContractActionOffsetInput): ContractActionEvent!
    zswapLedgerEvents(id: BigInt): LedgerEventFrame!
    dustLedgerEvents(id: BigInt): LedgerEventFrame!
    shieldedTransactions(sessionId: String!): ShieldedTransactionEvent!
    unshieldedTransactions(address: Address!): UnshieldedTransactionEvent!
}

schema {
    query: Query
    mutation: Mutation
    subscription: Subscription
}
`
