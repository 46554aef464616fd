package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/jackc/pgx/v5"

	"midnight-indexer/internal/domain"
)

const maxDustStatusAddresses = 10

func (s *Store) ComputeDustGenerationStatus(ctx context.Context, rewardAddresses []string) ([]domain.DustGenerationStatus, error) {
	if len(rewardAddresses) > maxDustStatusAddresses {
		return nil, domain.NewError(domain.KindInputMalformed, "at most %d reward addresses allowed, got %d", maxDustStatusAddresses, len(rewardAddresses))
	}

	out := make([]domain.DustGenerationStatus, len(rewardAddresses))
	for i, addr := range rewardAddresses {
		registered := false
		var dustAddr *string
		var dustAddrStr *string
		err := s.pool.QueryRow(ctx, `SELECT registered, dust_address FROM dust_registrations WHERE reward_address = $1`, addr).Scan(&registered, &dustAddrStr)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("query dust registration for %s: %w", addr, err)
		}
		if dustAddrStr != nil {
			dustAddr = dustAddrStr
		}

		nightBalance := big.NewInt(0)
		currentCapacity := big.NewInt(0)
		var nightStr, currentStr string
		err = s.pool.QueryRow(ctx, `SELECT night_balance, current_capacity FROM dust_balances WHERE reward_address = $1`, addr).Scan(&nightStr, &currentStr)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("query dust balance for %s: %w", addr, err)
		}
		if err == nil {
			if _, ok := nightBalance.SetString(nightStr, 10); !ok {
				return nil, fmt.Errorf("corrupt night_balance %q for %s", nightStr, addr)
			}
			if _, ok := currentCapacity.SetString(currentStr, 10); !ok {
				return nil, fmt.Errorf("corrupt current_capacity %q for %s", currentStr, addr)
			}
		}

		out[i] = domain.DeriveDustGenerationStatus(addr, registered, dustAddr, nightBalance, currentCapacity)
	}
	return out, nil
}
