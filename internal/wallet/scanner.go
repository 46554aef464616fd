package wallet

import (
	"fmt"

	"midnight-indexer/internal/domain"
)

// ShieldedMatch pairs a transaction carrying a zswap ledger event that
// decrypted successfully with the plaintext the decryptor recovered.
type ShieldedMatch struct {
	Transaction domain.Transaction
	Event       domain.LedgerEvent
	Plaintext   []byte
}

// Scanner applies a Decryptor to every zswap ledger event in a block on
// behalf of one viewing key. It is pure with respect to storage: callers
// own persisting progress.
type Scanner struct {
	decryptor Decryptor
}

func NewScanner(decryptor Decryptor) *Scanner {
	return &Scanner{decryptor: decryptor}
}

// Scan returns every ShieldedMatch found in block for viewingKey, in
// transaction order.
func (s *Scanner) Scan(viewingKey []byte, block domain.Block) ([]ShieldedMatch, error) {
	var matches []ShieldedMatch
	for _, t := range block.Transactions {
		regular, ok := t.(domain.RegularTransaction)
		if !ok {
			continue
		}
		for _, ev := range regular.ZswapLedgerEvents {
			matched, plaintext, err := s.decryptor.TryDecrypt(viewingKey, ev.Raw)
			if err != nil {
				return nil, fmt.Errorf("decrypt zswap event %d at height %d: %w", ev.Id, block.Height, err)
			}
			if matched {
				matches = append(matches, ShieldedMatch{Transaction: t, Event: ev, Plaintext: plaintext})
			}
		}
	}
	return matches, nil
}
