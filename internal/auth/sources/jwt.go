package sources

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// decodeJWTPayload splits a JWT on "." and base64url-decodes the payload
// segment (§4.7 "JWT helpers"). No signature verification is performed;
// these tokens are trusted because they were already exchanged over TLS
// with the issuing provider.
func decodeJWTPayload(tokenStr string) (map[string]any, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("sources: malformed JWT (expected 3 parts, got %d)", len(parts))
	}
	raw, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("sources: decode JWT payload: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("sources: parse JWT payload: %w", err)
	}
	return payload, nil
}

// jwtExpiryMs reads the JWT's exp claim (seconds) and returns it in
// milliseconds, per §4.7.
func jwtExpiryMs(tokenStr string) (int64, error) {
	payload, err := decodeJWTPayload(tokenStr)
	if err != nil {
		return 0, err
	}
	expSeconds, ok := payload["exp"].(float64)
	if !ok {
		return 0, fmt.Errorf("sources: JWT has no numeric exp claim")
	}
	return int64(expSeconds) * 1000, nil
}

// extractJWTClaim reads payload[namespace][field] as a string (§4.7
// extract_jwt_claim), used to pull ChatGPT's account_id out of the
// id_token's "https://api.openai.com/auth" namespace.
func extractJWTClaim(tokenStr, namespace, field string) (string, error) {
	payload, err := decodeJWTPayload(tokenStr)
	if err != nil {
		return "", err
	}
	ns, ok := payload[namespace].(map[string]any)
	if !ok {
		return "", fmt.Errorf("sources: JWT has no %q namespace", namespace)
	}
	value, ok := ns[field].(string)
	if !ok {
		return "", fmt.Errorf("sources: JWT namespace %q has no string field %q", namespace, field)
	}
	return value, nil
}
