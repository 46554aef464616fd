// Package bech32addr implements the bech32/bech32m codecs for every address
// class on the wire: Cardano reward addresses (bech32, HRP stake/stake_test),
// DUST destination addresses, Midnight addresses, shielded addresses and
// viewing keys (all bech32m, HRP scoped by network), built on
// github.com/btcsuite/btcd/btcutil/bech32.
package bech32addr

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Network names used to scope HRPs. "mainnet" gets the bare HRP; any other
// network name is appended as an "_<env>" suffix.
type Network string

const (
	NetworkMainnet Network = "mainnet"
)

// RewardAddressHRP returns the expected HRP for a Cardano reward address on
// the given network: "stake" on mainnet, "stake_test" otherwise.
func RewardAddressHRP(network Network) string {
	if network == NetworkMainnet {
		return "stake"
	}
	return "stake_test"
}

// scopedHRP appends "_<env>" to base unless network is mainnet.
func scopedHRP(base string, network Network) string {
	if network == NetworkMainnet || network == "" {
		return base
	}
	return base + "_" + string(network)
}

// ViewingKeyHRP, ShieldAddressHRP, MidnightAddressHRP and DustAddressHRP
// return the network-scoped HRP for each Midnight address class.
func ViewingKeyHRP(network Network) string      { return scopedHRP("mn_shield-esk", network) }
func ShieldAddressHRP(network Network) string   { return scopedHRP("mn_shield-addr", network) }
func MidnightAddressHRP(network Network) string { return scopedHRP("mn_addr", network) }
func DustAddressHRP(network Network) string     { return scopedHRP("mn_dust", network) }

// DecodeRewardAddress decodes a Cardano reward address to its HRP and raw
// bytes. It does not validate the HRP itself; callers that need "is this
// actually a reward address" call ValidateRewardAddress.
func DecodeRewardAddress(addr string) (hrp string, data []byte, err error) {
	hrp, data, err = bech32.Decode(addr)
	if err != nil {
		return "", nil, fmt.Errorf("invalid bech32: %w", err)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, fmt.Errorf("invalid bech32 payload: %w", err)
	}
	return hrp, decoded, nil
}

// ValidateRewardAddress decodes addr and checks its HRP is "stake" or
// "stake_test", the two HRPs a DUST status query accepts. Any other HRP
// (payment address, bare hex) is rejected.
func ValidateRewardAddress(addr string) ([]byte, error) {
	hrp, data, err := DecodeRewardAddress(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid reward address: %w", err)
	}
	if hrp != "stake" && hrp != "stake_test" {
		return nil, fmt.Errorf("invalid reward address: expected HRP stake or stake_test but was %s", hrp)
	}
	return data, nil
}

// DecodeBech32m decodes addr, enforcing the bech32m checksum variant used by
// every Midnight-side address class, and checks its HRP matches exactly the
// one expected on network.
func DecodeBech32m(addr, expectedHRP string) ([]byte, error) {
	hrp, data, encoding, err := bech32.DecodeGeneric(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid bech32m: %w", err)
	}
	if encoding != bech32.VersionM {
		return nil, fmt.Errorf("invalid bech32m: wrong checksum variant")
	}
	if hrp != expectedHRP {
		return nil, fmt.Errorf("expected HRP %s but was %s", expectedHRP, hrp)
	}
	decoded, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("invalid bech32m payload: %w", err)
	}
	return decoded, nil
}

// EncodeBech32m encodes data under hrp using the bech32m checksum.
func EncodeBech32m(hrp string, data []byte) (string, error) {
	converted, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("encode bech32m: %w", err)
	}
	return bech32.EncodeM(hrp, converted)
}

// DecodeViewingKey decodes a bech32m viewing key scoped to network and
// returns its raw key material.
func DecodeViewingKey(key string, network Network) ([]byte, error) {
	return DecodeBech32m(key, ViewingKeyHRP(network))
}

// NetworkFromHRPSuffix recovers the network name embedded in a scoped HRP,
// e.g. "mn_shield-esk_foo" -> "foo". Used only for diagnostics/logging.
func NetworkFromHRPSuffix(hrp, base string) string {
	if !strings.HasPrefix(hrp, base) {
		return ""
	}
	rest := strings.TrimPrefix(hrp, base)
	return strings.TrimPrefix(rest, "_")
}
