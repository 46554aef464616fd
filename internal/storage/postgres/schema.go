package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS chain_head (
	id          BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (id),
	height      BIGINT,
	hash        BYTEA
);
INSERT INTO chain_head(id, height, hash) VALUES (TRUE, NULL, NULL) ON CONFLICT DO NOTHING;

CREATE SEQUENCE IF NOT EXISTS ledger_event_ids;

CREATE TABLE IF NOT EXISTS blocks (
	hash        BYTEA PRIMARY KEY,
	height      BIGINT NOT NULL UNIQUE,
	parent_hash BYTEA NOT NULL,
	timestamp   BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS transactions (
	hash           BYTEA PRIMARY KEY,
	block_height   BIGINT NOT NULL,
	index_in_block BIGINT NOT NULL,
	kind           TEXT NOT NULL,
	raw            BYTEA,
	UNIQUE(block_height, index_in_block)
);

CREATE TABLE IF NOT EXISTS transaction_identifiers (
	identifier BYTEA NOT NULL,
	tx_hash    BYTEA NOT NULL,
	PRIMARY KEY (identifier, tx_hash)
);
CREATE INDEX IF NOT EXISTS idx_tx_identifiers_identifier ON transaction_identifiers(identifier);

CREATE TABLE IF NOT EXISTS unshielded_utxos (
	created_tx_hash BYTEA NOT NULL,
	output_index    BIGINT NOT NULL,
	owner           BYTEA NOT NULL,
	token_type      BYTEA NOT NULL,
	value           BYTEA NOT NULL,
	created_height  BIGINT NOT NULL,
	spent_tx_hash   BYTEA,
	spent_height    BIGINT,
	ctime           BIGINT NOT NULL,
	registered_dust BOOLEAN NOT NULL,
	PRIMARY KEY (created_tx_hash, output_index)
);
CREATE INDEX IF NOT EXISTS idx_utxo_owner ON unshielded_utxos(owner);

CREATE TABLE IF NOT EXISTS contract_actions (
	address         BYTEA NOT NULL,
	height          BIGINT NOT NULL,
	index_in_block  BIGINT NOT NULL,
	tx_hash         BYTEA NOT NULL,
	kind            TEXT NOT NULL,
	entry_point     TEXT,
	zswap_state     BYTEA,
	deploy_tx_hash  BYTEA,
	deploy_height   BIGINT,
	PRIMARY KEY (address, height, index_in_block)
);

CREATE TABLE IF NOT EXISTS ledger_events (
	id      BIGINT PRIMARY KEY,
	family  TEXT NOT NULL,
	raw     BYTEA NOT NULL,
	tx_hash BYTEA NOT NULL,
	height  BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ledger_events_family ON ledger_events(family, id);

CREATE TABLE IF NOT EXISTS wallet_sessions (
	session_id          TEXT PRIMARY KEY,
	network             TEXT NOT NULL,
	wrapped_viewing_key BYTEA NOT NULL,
	last_scanned_height BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS dust_registrations (
	reward_address TEXT PRIMARY KEY,
	dust_address   TEXT,
	registered     BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS dust_balances (
	reward_address   TEXT PRIMARY KEY,
	night_balance    TEXT NOT NULL,
	current_capacity TEXT NOT NULL DEFAULT '0'
);
`

func migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
