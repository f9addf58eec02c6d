package crypto

import (
	"strings"
	"testing"
)

// A throwaway secp256k1 key used only in tests.
const testKeyHex = "2a871d0798f97d79848a013d4936a73bf4cc922c825d33c1cf7073dff6d409c6"

func TestL2HeadersDeterministic(t *testing.T) {
	auth := &HMACAuth{
		Key:        "key-1",
		Secret:     "c2VjcmV0LWJ5dGVz", // "secret-bytes"
		Passphrase: "pass",
	}

	h1 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1768539600)
	h2 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":1}`, 1768539600)

	for _, k := range []string{"POLY_ADDRESS", "POLY_API_KEY", "POLY_TIMESTAMP", "POLY_PASSPHRASE", "POLY_SIGNATURE"} {
		if h1[k] == "" {
			t.Fatalf("missing header %s", k)
		}
		if h1[k] != h2[k] {
			t.Fatalf("header %s not deterministic: %q vs %q", k, h1[k], h2[k])
		}
	}

	if h1["POLY_TIMESTAMP"] != "1768539600" {
		t.Fatalf("timestamp = %s", h1["POLY_TIMESTAMP"])
	}

	// Changing any signed input must change the signature.
	h3 := auth.L2HeadersAt("0xabc", "POST", "/order", `{"x":2}`, 1768539600)
	if h1["POLY_SIGNATURE"] == h3["POLY_SIGNATURE"] {
		t.Fatal("signature did not change with body")
	}
}

func TestSignOrder(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	payload := OrderPayload{
		Salt:        "12345",
		Maker:       s.Address().Hex(),
		Signer:      s.Address().Hex(),
		Taker:       "0x0000000000000000000000000000000000000000",
		TokenID:     "71321045679252212594626385532706912750332728571942532289631379312455583992563",
		MakerAmount: "1146000",
		TakerAmount: "1194000",
		Expiration:  "0",
		Nonce:       "0",
		FeeRateBps:  "0",
		Side:        0,
	}

	sig, err := s.SignOrder(payload)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	if !strings.HasPrefix(sig, "0x") || len(sig) != 2+65*2 {
		t.Fatalf("unexpected signature %q (len %d)", sig, len(sig))
	}

	// Deterministic for identical payloads.
	sig2, err := s.SignOrder(payload)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	if sig != sig2 {
		t.Fatal("signature not deterministic")
	}

	payload.TakerAmount = "1200000"
	sig3, err := s.SignOrder(payload)
	if err != nil {
		t.Fatalf("SignOrder: %v", err)
	}
	if sig == sig3 {
		t.Fatal("signature did not change with payload")
	}
}

func TestSignOrderRejectsBadNumbers(t *testing.T) {
	s, err := NewSigner(testKeyHex, 137)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	_, err = s.SignOrder(OrderPayload{Salt: "not-a-number"})
	if err == nil {
		t.Fatal("expected error for non-numeric salt")
	}
}

func TestKeyfileRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	if err != nil {
		t.Fatalf("EncryptKey: %v", err)
	}

	got, err := DecryptKey(blob, "hunter2")
	if err != nil {
		t.Fatalf("DecryptKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("round trip = %s, want %s", got, testKeyHex)
	}

	if _, err := DecryptKey(blob, "wrong"); err == nil {
		t.Fatal("expected error for wrong password")
	}
}

func TestLoadKeyRaw(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	if err != nil {
		t.Fatalf("LoadKey: %v", err)
	}
	if got != testKeyHex {
		t.Fatalf("LoadKey = %s, want %s", got, testKeyHex)
	}

	if _, err := LoadKey(KeyConfig{}); err == nil {
		t.Fatal("expected error when no source configured")
	}
}
