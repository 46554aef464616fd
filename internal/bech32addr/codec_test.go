package bech32addr

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

func mustEncodeBech32(t *testing.T, hrp string, payload []byte) string {
	t.Helper()
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		t.Fatalf("convert bits: %v", err)
	}
	s, err := bech32.Encode(hrp, conv)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return s
}

func TestValidateRewardAddress(t *testing.T) {
	payload := make([]byte, 28)
	addr := mustEncodeBech32(t, "stake", payload)
	if _, err := ValidateRewardAddress(addr); err != nil {
		t.Fatalf("expected mainnet reward address to validate: %v", err)
	}

	testAddr := mustEncodeBech32(t, "stake_test", payload)
	if _, err := ValidateRewardAddress(testAddr); err != nil {
		t.Fatalf("expected testnet reward address to validate: %v", err)
	}

	bad := mustEncodeBech32(t, "addr", payload)
	if _, err := ValidateRewardAddress(bad); err == nil {
		t.Fatalf("expected payment-address HRP to be rejected")
	}
}

func TestDecodeViewingKeyWrongNetwork(t *testing.T) {
	payload := make([]byte, 32)
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		t.Fatalf("convert bits: %v", err)
	}
	key, err := bech32.EncodeM("mn_shield-esk_foo", conv)
	if err != nil {
		t.Fatalf("encode bech32m: %v", err)
	}

	_, err = DecodeViewingKey(key, NetworkMainnet)
	if err == nil {
		t.Fatalf("expected wrong-HRP error")
	}
	want := "expected HRP mn_shield-esk but was mn_shield-esk_foo"
	if !strings.Contains(err.Error(), want) {
		t.Fatalf("error %q does not contain %q", err.Error(), want)
	}
}

func TestDecodeViewingKeyCorrectNetwork(t *testing.T) {
	payload := make([]byte, 32)
	payload[0] = 0xAB
	conv, err := bech32.ConvertBits(payload, 8, 5, true)
	if err != nil {
		t.Fatalf("convert bits: %v", err)
	}
	key, err := bech32.EncodeM(ViewingKeyHRP(NetworkMainnet), conv)
	if err != nil {
		t.Fatalf("encode bech32m: %v", err)
	}

	got, err := DecodeViewingKey(key, NetworkMainnet)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 32 || got[0] != 0xAB {
		t.Fatalf("round-trip mismatch: %x", got)
	}
}
