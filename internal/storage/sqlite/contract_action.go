package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"midnight-indexer/internal/domain"
	"midnight-indexer/internal/storage"
)

// GetContractAction resolves the action with the greatest (height,
// index_in_block) for address, optionally cut off at offset. Returns
// (nil, nil) if address has no deploy yet, or if offset names a block that
// does not exist; a malformed offset is rejected before it reaches here.
func (s *Store) GetContractAction(ctx context.Context, address domain.Address, offset storage.ContractActionOffset) (domain.ContractAction, error) {
	var cutoffHeight *uint32
	if offset.Hash != nil {
		var height uint32
		err := s.db.QueryRowContext(ctx, `SELECT height FROM blocks WHERE hash = ?`, offset.Hash.Bytes()).Scan(&height)
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve offset block: %w", err)
		}
		cutoffHeight = &height
	} else if offset.Height != nil {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM blocks WHERE height = ?`, *offset.Height).Scan(&exists); err != nil {
			return nil, fmt.Errorf("resolve offset height: %w", err)
		}
		if exists == 0 {
			return nil, nil
		}
		cutoffHeight = offset.Height
	}

	query := `SELECT address, height, index_in_block, kind, entry_point, zswap_state, deploy_tx_hash, deploy_height, tx_hash
		FROM contract_actions WHERE address = ?`
	args := []any{[]byte(address)}
	if cutoffHeight != nil {
		query += ` AND height <= ?`
		args = append(args, *cutoffHeight)
	}
	query += ` ORDER BY height DESC, index_in_block DESC LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	var addrBytes []byte
	var height, indexInBlock uint32
	var kind string
	var entryPoint sql.NullString
	var zswapState, deployHashBytes, txHashBytes []byte
	var deployHeight sql.NullInt64
	err := row.Scan(&addrBytes, &height, &indexInBlock, &kind, &entryPoint, &zswapState, &deployHashBytes, &deployHeight, &txHashBytes)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan contract action: %w", err)
	}
	var txHash domain.Hash
	copy(txHash[:], txHashBytes)
	common := domain.CommonContractAction{
		Address:      domain.Address(addrBytes),
		Transaction:  domain.TxRef{Hash: txHash, Height: height},
		IndexInBlock: indexInBlock,
		ZswapState:   zswapState,
	}
	switch domain.ContractActionKind(kind) {
	case domain.ContractActionDeploy:
		return domain.ContractDeployAction{CommonContractAction: common}, nil
	case domain.ContractActionCall:
		var deployHash domain.Hash
		copy(deployHash[:], deployHashBytes)
		return domain.ContractCallAction{
			CommonContractAction: common,
			EntryPoint:           entryPoint.String,
			Deploy:               domain.TxRef{Hash: deployHash, Height: uint32(deployHeight.Int64)},
		}, nil
	case domain.ContractActionUpdate:
		var deployHash domain.Hash
		copy(deployHash[:], deployHashBytes)
		return domain.ContractUpdateAction{
			CommonContractAction: common,
			Deploy:               domain.TxRef{Hash: deployHash, Height: uint32(deployHeight.Int64)},
		}, nil
	default:
		return nil, fmt.Errorf("unknown contract action kind %q", kind)
	}
}
