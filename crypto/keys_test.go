package crypto

import (
	"bytes"
	"testing"
)

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, 20)
	for i := range raw {
		raw[i] = byte(i + 1)
	}
	addr := NewAddress(FYPrefix, raw)
	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Prefix() != FYPrefix {
		t.Fatalf("unexpected prefix: %s", decoded.Prefix())
	}
	if !bytes.Equal(decoded.Bytes(), raw) {
		t.Fatalf("round trip mismatch: %x", decoded.Bytes())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-a-bech32-address"); err == nil {
		t.Fatal("expected error for malformed address")
	}
}

func TestModuleAddressDeterministic(t *testing.T) {
	vault := ModuleAddress("collateral_vault")
	again := ModuleAddress("collateral_vault")
	if !vault.Equal(again) {
		t.Fatal("module address derivation must be deterministic")
	}
	other := ModuleAddress("reserve")
	if vault.Equal(other) {
		t.Fatal("distinct module names must derive distinct addresses")
	}
	if vault.IsZero() {
		t.Fatal("module address must not be zero")
	}
}
