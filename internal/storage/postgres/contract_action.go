package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
)

// GetContractAction resolves the action with the greatest (height,
// index_in_block) for address, optionally cut off at offset.
func (s *Store) GetContractAction(ctx context.Context, address domain.Address, offset storage.ContractActionOffset) (domain.ContractAction, error) {
	var cutoffHeight *uint32
	if offset.Hash != nil {
		var height int64
		err := s.pool.QueryRow(ctx, `SELECT height FROM blocks WHERE hash = $1`, offset.Hash.Bytes()).Scan(&height)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve offset block: %w", err)
		}
		h := uint32(height)
		cutoffHeight = &h
	} else if offset.Height != nil {
		var exists int
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(1) FROM blocks WHERE height = $1`, *offset.Height).Scan(&exists); err != nil {
			return nil, fmt.Errorf("resolve offset height: %w", err)
		}
		if exists == 0 {
			return nil, nil
		}
		cutoffHeight = offset.Height
	}

	query := `SELECT address, height, index_in_block, kind, entry_point, zswap_state, deploy_tx_hash, deploy_height, tx_hash
		FROM contract_actions WHERE address = $1`
	args := []any{[]byte(address)}
	if cutoffHeight != nil {
		query += ` AND height <= $2`
		args = append(args, *cutoffHeight)
	}
	query += ` ORDER BY height DESC, index_in_block DESC LIMIT 1`

	row := s.pool.QueryRow(ctx, query, args...)
	var addrBytes []byte
	var height, indexInBlock int64
	var kind string
	var entryPoint *string
	var zswapState, deployHashBytes, txHashBytes []byte
	var deployHeight *int64
	err := row.Scan(&addrBytes, &height, &indexInBlock, &kind, &entryPoint, &zswapState, &deployHashBytes, &deployHeight, &txHashBytes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan contract action: %w", err)
	}
	var txHash domain.Hash
	copy(txHash[:], txHashBytes)
	common := domain.CommonContractAction{
		Address:      domain.Address(addrBytes),
		Transaction:  domain.TxRef{Hash: txHash, Height: uint32(height)},
		IndexInBlock: uint32(indexInBlock),
		ZswapState:   zswapState,
	}
	return buildContractAction(common, kind, entryPoint, deployHashBytes, deployHeight)
}
