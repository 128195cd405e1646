package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// WriteCodexTokens persists a refreshed access/refresh token pair into
// ~/.codex/auth.json (§4.7 "Codex credential writeback"). The existing file
// is read, its tokens{} object is updated in place (other top-level keys
// are preserved), last_refresh is stamped in RFC 3339, and the result is
// atomically replaced via a temp file + rename in the same directory.
func WriteCodexTokens(accessToken, refreshToken string) error {
	path := CodexAuthPath()

	raw := map[string]any{}
	if existing, err := os.ReadFile(path); err == nil {
		_ = json.Unmarshal(existing, &raw)
	}

	tokens, ok := raw["tokens"].(map[string]any)
	if !ok {
		tokens = map[string]any{}
	}
	tokens["access_token"] = accessToken
	if refreshToken != "" {
		tokens["refresh_token"] = refreshToken
	}
	raw["tokens"] = tokens
	raw["last_refresh"] = time.Now().UTC().Format(time.RFC3339)

	out, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("sources: marshal codex auth.json: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("sources: create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "auth-*.json.tmp")
	if err != nil {
		return fmt.Errorf("sources: create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sources: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("sources: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("sources: rename %s to %s: %w", tmpName, path, err)
	}
	return nil
}
