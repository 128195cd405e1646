package sources

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func fakeJWT(t *testing.T, payload map[string]any) string {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	body := base64.RawURLEncoding.EncodeToString(raw)
	return header + "." + body + ".sig"
}

func TestJwtExpiryMsConvertsSecondsToMilliseconds(t *testing.T) {
	tok := fakeJWT(t, map[string]any{"exp": 1700000000})
	ms, err := jwtExpiryMs(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms != 1700000000000 {
		t.Errorf("got %d, want 1700000000000", ms)
	}
}

func TestJwtExpiryMsMissingClaim(t *testing.T) {
	tok := fakeJWT(t, map[string]any{})
	if _, err := jwtExpiryMs(tok); err == nil {
		t.Fatal("expected error for missing exp claim")
	}
}

func TestExtractJWTClaim(t *testing.T) {
	tok := fakeJWT(t, map[string]any{
		"https://api.openai.com/auth": map[string]any{"chatgpt_account_id": "acct_123"},
	})
	claim, err := extractJWTClaim(tok, "https://api.openai.com/auth", "chatgpt_account_id")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claim != "acct_123" {
		t.Errorf("got %q, want acct_123", claim)
	}
}

func TestExtractJWTClaimMissingNamespace(t *testing.T) {
	tok := fakeJWT(t, map[string]any{"other": "x"})
	if _, err := extractJWTClaim(tok, "https://api.openai.com/auth", "chatgpt_account_id"); err == nil {
		t.Fatal("expected error for missing namespace")
	}
}

func TestDecodeJWTPayloadMalformed(t *testing.T) {
	if _, err := decodeJWTPayload("not-a-jwt"); err == nil {
		t.Fatal("expected error for malformed JWT")
	}
}
