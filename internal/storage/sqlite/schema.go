package sqlite

const schema = `
CREATE TABLE IF NOT EXISTS blocks (
	hash        BLOB PRIMARY KEY,
	height      INTEGER NOT NULL UNIQUE,
	parent_hash BLOB NOT NULL,
	timestamp   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	hash           BLOB PRIMARY KEY,
	block_height   INTEGER NOT NULL,
	index_in_block INTEGER NOT NULL,
	kind           TEXT NOT NULL,
	raw            BLOB,
	UNIQUE(block_height, index_in_block)
);

CREATE TABLE IF NOT EXISTS transaction_identifiers (
	identifier BLOB NOT NULL,
	tx_hash    BLOB NOT NULL,
	PRIMARY KEY (identifier, tx_hash)
);
CREATE INDEX IF NOT EXISTS idx_tx_identifiers_identifier ON transaction_identifiers(identifier);

CREATE TABLE IF NOT EXISTS unshielded_utxos (
	created_tx_hash BLOB NOT NULL,
	output_index    INTEGER NOT NULL,
	owner           BLOB NOT NULL,
	token_type      BLOB NOT NULL,
	value           BLOB NOT NULL,
	created_height  INTEGER NOT NULL,
	spent_tx_hash   BLOB,
	spent_height    INTEGER,
	ctime           INTEGER NOT NULL,
	registered_dust INTEGER NOT NULL,
	PRIMARY KEY (created_tx_hash, output_index)
);
CREATE INDEX IF NOT EXISTS idx_utxo_owner ON unshielded_utxos(owner);

CREATE TABLE IF NOT EXISTS contract_actions (
	address         BLOB NOT NULL,
	height          INTEGER NOT NULL,
	index_in_block  INTEGER NOT NULL,
	tx_hash         BLOB NOT NULL,
	kind            TEXT NOT NULL,
	entry_point     TEXT,
	zswap_state     BLOB,
	deploy_tx_hash  BLOB,
	deploy_height   INTEGER,
	PRIMARY KEY (address, height, index_in_block)
);

CREATE TABLE IF NOT EXISTS ledger_events (
	id      INTEGER PRIMARY KEY,
	family  TEXT NOT NULL,
	raw     BLOB NOT NULL,
	tx_hash BLOB NOT NULL,
	height  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_events_family ON ledger_events(family, id);

CREATE TABLE IF NOT EXISTS wallet_sessions (
	session_id          TEXT PRIMARY KEY,
	network             TEXT NOT NULL,
	wrapped_viewing_key BLOB NOT NULL,
	last_scanned_height INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dust_registrations (
	reward_address TEXT PRIMARY KEY,
	dust_address   TEXT,
	registered     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dust_balances (
	reward_address TEXT PRIMARY KEY,
	night_balance  TEXT NOT NULL,
	current_capacity TEXT NOT NULL DEFAULT '0'
);
`

func migrate(exec execer) error {
	_, err := exec.Exec(schema)
	return err
}
