package domain

import "math/big"

// GenerationDecayRate and MaxSpeckPerStar are the fixed constants that
// derive a DustGenerationStatus from a NIGHT balance.
const (
	GenerationDecayRate = 8267
	MaxSpeckPerStar     = 5_000_000_000
)

// DustGenerationStatus is the derived view joining a Cardano reward
// address's DUST registration with its cNIGHT balance snapshot.
// NightBalance/GenerationRate/CurrentCapacity/MaxCapacity are non-negative
// integers that may exceed 2^63 and are carried as *big.Int internally; the
// GraphQL layer renders them as decimal strings.
type DustGenerationStatus struct {
	CardanoRewardAddress string
	Registered           bool
	DustAddress          *string
	NightBalance         *big.Int
	GenerationRate       *big.Int
	CurrentCapacity      *big.Int
	MaxCapacity          *big.Int
}

// DeriveDustGenerationStatus applies the derivation rule: generationRate =
// nightBalance * GenerationDecayRate, maxCapacity = nightBalance *
// MaxSpeckPerStar, currentCapacity clamped to [0, maxCapacity].
func DeriveDustGenerationStatus(rewardAddr string, registered bool, dustAddr *string, nightBalance, currentCapacity *big.Int) DustGenerationStatus {
	if nightBalance == nil {
		nightBalance = big.NewInt(0)
	}
	genRate := new(big.Int).Mul(nightBalance, big.NewInt(GenerationDecayRate))
	maxCap := new(big.Int).Mul(nightBalance, big.NewInt(MaxSpeckPerStar))

	cur := currentCapacity
	if cur == nil {
		cur = big.NewInt(0)
	}
	if cur.Sign() < 0 {
		cur = big.NewInt(0)
	}
	if cur.Cmp(maxCap) > 0 {
		cur = new(big.Int).Set(maxCap)
	}

	return DustGenerationStatus{
		CardanoRewardAddress: rewardAddr,
		Registered:           registered,
		DustAddress:          dustAddr,
		NightBalance:         nightBalance,
		GenerationRate:       genRate,
		CurrentCapacity:      cur,
		MaxCapacity:          maxCap,
	}
}
