package exchange

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJWTPayload implements the §4.7 "JWT helpers" decode step. It is a
// copy of the equivalent unexported helper in internal/auth/sources.
func decodeJWTPayload(tokenStr string) (map[string]any, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("exchange: malformed JWT")
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("exchange: decode JWT payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("exchange: parse JWT payload: %w", err)
	}
	return payload, nil
}

// JWTExpiryMs reads exp (seconds) from a JWT and returns milliseconds.
func JWTExpiryMs(tokenStr string) (int64, error) {
	payload, err := decodeJWTPayload(tokenStr)
	if err != nil {
		return 0, err
	}
	expSeconds, ok := payload["exp"].(float64)
	if !ok {
		return 0, fmt.Errorf("exchange: JWT has no numeric exp claim")
	}
	return int64(expSeconds) * 1000, nil
}

// ExtractAccountID reads the ChatGPT account id out of the
// "https://api.openai.com/auth" namespace claim (§4.7).
func ExtractAccountID(tokenStr string) (string, error) {
	payload, err := decodeJWTPayload(tokenStr)
	if err != nil {
		return "", err
	}
	ns, ok := payload["https://api.openai.com/auth"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("exchange: JWT has no account namespace")
	}
	accountID, _ := ns["chatgpt_account_id"].(string)
	return accountID, nil
}
