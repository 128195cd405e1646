// Package sources implements the §4.7 TokenSources discovery chains: for
// each OAuth provider, try increasingly specific locations (env var,
// external CLI config file, platform keyring) until one yields a
// credential.
package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/claudex-proxy/claudex/internal/auth/token"
	"github.com/claudex-proxy/claudex/internal/config"
)

const keyringService = "claudex"

// KeyringEntryName returns the keyring key for a profile's cached OAuth
// token, per §4.7 ("claudex:<profile_name>-oauth-token").
func KeyringEntryName(profileName string) string {
	return profileName + "-oauth-token"
}

// LoadFromKeyring reads and JSON-decodes a profile's cached token from the
// platform keyring, used as the terminal fallback for Qwen and as a cache
// for other providers populated by device-code login.
func LoadFromKeyring(profileName string) (*token.RawCredential, error) {
	raw, err := keyring.Get(keyringService, KeyringEntryName(profileName))
	if err != nil {
		return nil, fmt.Errorf("sources: keyring read for %q: %w", profileName, err)
	}
	var tok token.OAuthToken
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("sources: keyring entry for %q is not a valid token: %w", profileName, err)
	}
	return &token.RawCredential{Token: &tok, Source: token.Source{Kind: token.SourceKeyring, Name: profileName}}, nil
}

// SaveToKeyring JSON-encodes tok and stores it under the profile's keyring
// entry (used after a device-code exchange completes).
func SaveToKeyring(profileName string, tok *token.OAuthToken) error {
	raw, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return keyring.Set(keyringService, KeyringEntryName(profileName), string(raw))
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func xdgConfigHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	return filepath.Join(homeDir(), ".config")
}

func readJSONFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// DiscoverClaude implements the Claude chain: ANTHROPIC_API_KEY env, then
// ~/.claude/.credentials.json's claudeAiOauth block.
func DiscoverClaude() (*token.RawCredential, error) {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return &token.RawCredential{
			Token:  &token.OAuthToken{AccessToken: key},
			Source: token.Source{Kind: token.SourceEnvVar, Name: "ANTHROPIC_API_KEY"},
		}, nil
	}

	path := filepath.Join(homeDir(), ".claude", ".credentials.json")
	var creds struct {
		ClaudeAiOauth struct {
			AccessToken  string `json:"accessToken"`
			RefreshToken string `json:"refreshToken"`
			ExpiresAt    any    `json:"expiresAt"`
		} `json:"claudeAiOauth"`
	}
	if err := readJSONFile(path, &creds); err != nil {
		return nil, fmt.Errorf("sources: claude: no env var and %s: %w", path, err)
	}
	if creds.ClaudeAiOauth.AccessToken == "" {
		return nil, fmt.Errorf("sources: claude: %s has no accessToken", path)
	}

	tok := &token.OAuthToken{
		AccessToken:  creds.ClaudeAiOauth.AccessToken,
		RefreshToken: creds.ClaudeAiOauth.RefreshToken,
		ExpiresAtMs:  parseExpiresAt(creds.ClaudeAiOauth.ExpiresAt),
	}
	return &token.RawCredential{Token: tok, Source: token.Source{Kind: token.SourceExternalCLI, Name: path}}, nil
}

// parseExpiresAt handles §4.7's "number or numeric string" expiresAt shape.
func parseExpiresAt(v any) int64 {
	switch val := v.(type) {
	case float64:
		return int64(val)
	case string:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// DiscoverChatGPT implements the Codex chain: CODEX_API_KEY env, then
// ~/.codex/auth.json, falling back within the file to a top-level
// access_token or OPENAI_API_KEY, extracting expiry and account_id from
// the JWTs present.
func DiscoverChatGPT() (*token.RawCredential, error) {
	if key := os.Getenv("CODEX_API_KEY"); key != "" {
		return &token.RawCredential{
			Token:  &token.OAuthToken{AccessToken: key},
			Source: token.Source{Kind: token.SourceEnvVar, Name: "CODEX_API_KEY"},
		}, nil
	}

	path := CodexAuthPath()
	var raw map[string]any
	if err := readJSONFile(path, &raw); err != nil {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			return &token.RawCredential{
				Token:  &token.OAuthToken{AccessToken: key},
				Source: token.Source{Kind: token.SourceEnvVar, Name: "OPENAI_API_KEY"},
			}, nil
		}
		return nil, fmt.Errorf("sources: chatgpt: %s: %w", path, err)
	}

	accessToken, refreshToken, accountID := extractCodexTokens(raw)
	if accessToken == "" {
		if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			accessToken = key
		}
	}
	if accessToken == "" {
		return nil, fmt.Errorf("sources: chatgpt: %s has no usable access token", path)
	}

	tok := &token.OAuthToken{AccessToken: accessToken, RefreshToken: refreshToken}
	if expMs, err := jwtExpiryMs(accessToken); err == nil {
		tok.ExpiresAtMs = expMs
	}
	if accountID != "" {
		tok.Extra = map[string]string{"account_id": accountID}
	}
	return &token.RawCredential{Token: tok, Source: token.Source{Kind: token.SourceExternalCLI, Name: path}}, nil
}

// CodexAuthPath returns ~/.codex/auth.json.
func CodexAuthPath() string {
	return filepath.Join(homeDir(), ".codex", "auth.json")
}

func extractCodexTokens(raw map[string]any) (accessToken, refreshToken, accountID string) {
	if tokens, ok := raw["tokens"].(map[string]any); ok {
		accessToken, _ = tokens["access_token"].(string)
		refreshToken, _ = tokens["refresh_token"].(string)
		accountID, _ = tokens["account_id"].(string)
		if idToken, ok := tokens["id_token"].(string); ok && accountID == "" {
			if claim, err := extractJWTClaim(idToken, "https://api.openai.com/auth", "chatgpt_account_id"); err == nil {
				accountID = claim
			}
		}
	}
	if accessToken == "" {
		accessToken, _ = raw["access_token"].(string)
	}
	if accessToken == "" {
		accessToken, _ = raw["OPENAI_API_KEY"].(string)
	}
	return accessToken, refreshToken, accountID
}

// DiscoverGoogle implements the Gemini chain: GEMINI_API_KEY env, then
// ~/.gemini/oauth_creds.json or ~/.config/gemini/oauth_creds.json.
func DiscoverGoogle() (*token.RawCredential, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return &token.RawCredential{
			Token:  &token.OAuthToken{AccessToken: key},
			Source: token.Source{Kind: token.SourceEnvVar, Name: "GEMINI_API_KEY"},
		}, nil
	}
	path := firstExisting(
		filepath.Join(homeDir(), ".gemini", "oauth_creds.json"),
		filepath.Join(xdgConfigHome(), "gemini", "oauth_creds.json"),
	)
	return discoverGenericOAuthFile("google", path)
}

// DiscoverKimi implements the Kimi chain: KIMI_API_KEY env, then
// ~/.kimi/auth.json or ~/.config/kimi/auth.json.
func DiscoverKimi() (*token.RawCredential, error) {
	if key := os.Getenv("KIMI_API_KEY"); key != "" {
		return &token.RawCredential{
			Token:  &token.OAuthToken{AccessToken: key},
			Source: token.Source{Kind: token.SourceEnvVar, Name: "KIMI_API_KEY"},
		}, nil
	}
	path := firstExisting(
		filepath.Join(homeDir(), ".kimi", "auth.json"),
		filepath.Join(xdgConfigHome(), "kimi", "auth.json"),
	)
	return discoverGenericOAuthFile("kimi", path)
}

func discoverGenericOAuthFile(provider, path string) (*token.RawCredential, error) {
	if path == "" {
		return nil, fmt.Errorf("sources: %s: no env var and no credentials file found", provider)
	}
	var creds struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresAtMs  int64  `json:"expires_at_ms"`
	}
	if err := readJSONFile(path, &creds); err != nil {
		return nil, fmt.Errorf("sources: %s: %s: %w", provider, path, err)
	}
	if creds.AccessToken == "" {
		return nil, fmt.Errorf("sources: %s: %s has no access_token", provider, path)
	}
	tok := &token.OAuthToken{AccessToken: creds.AccessToken, RefreshToken: creds.RefreshToken, ExpiresAtMs: creds.ExpiresAtMs}
	return &token.RawCredential{Token: tok, Source: token.Source{Kind: token.SourceExternalCLI, Name: path}}, nil
}

// DiscoverCopilot implements the GitHub Copilot chain: GITHUB_TOKEN env,
// then $XDG_CONFIG_HOME/github-copilot/{apps,hosts}.json, matching any key
// containing hostSubstring (default "github.com") and reading .oauth_token.
func DiscoverCopilot(hostSubstring string) (*token.RawCredential, error) {
	if hostSubstring == "" {
		hostSubstring = "github.com"
	}
	if tok := os.Getenv("GITHUB_TOKEN"); tok != "" {
		return &token.RawCredential{
			Token:  &token.OAuthToken{AccessToken: tok},
			Source: token.Source{Kind: token.SourceEnvVar, Name: "GITHUB_TOKEN"},
		}, nil
	}

	dir := filepath.Join(xdgConfigHome(), "github-copilot")
	for _, name := range []string{"apps.json", "hosts.json"} {
		path := filepath.Join(dir, name)
		var raw map[string]any
		if err := readJSONFile(path, &raw); err != nil {
			continue
		}
		for key, val := range raw {
			if !strings.Contains(key, hostSubstring) {
				continue
			}
			entry, ok := val.(map[string]any)
			if !ok {
				continue
			}
			if oauthToken, ok := entry["oauth_token"].(string); ok && oauthToken != "" {
				return &token.RawCredential{
					Token:  &token.OAuthToken{AccessToken: oauthToken},
					Source: token.Source{Kind: token.SourceCopilotConfig, Name: path},
				}, nil
			}
		}
	}
	return nil, fmt.Errorf("sources: copilot: no GITHUB_TOKEN and no matching entry under %s", dir)
}

// Discover resolves a RawCredential for an OAuth-authenticated profile
// using the provider-specific chain, falling back to the keyring entry
// populated by a prior device-code login when the chain yields nothing
// (required for Qwen, a last resort for the rest).
func Discover(p *config.Profile) (*token.RawCredential, error) {
	var cred *token.RawCredential
	var err error

	switch p.OAuthProvider {
	case config.OAuthClaude:
		cred, err = DiscoverClaude()
	case config.OAuthChatGPT:
		cred, err = DiscoverChatGPT()
	case config.OAuthGoogle:
		cred, err = DiscoverGoogle()
	case config.OAuthKimi:
		cred, err = DiscoverKimi()
	case config.OAuthGitHub:
		cred, err = DiscoverCopilot("github.com")
	case config.OAuthQwen:
		return LoadFromKeyring(p.Name)
	default:
		return nil, fmt.Errorf("sources: profile %q: unknown oauth_provider %q", p.Name, p.OAuthProvider)
	}
	if err == nil {
		return cred, nil
	}
	return LoadFromKeyring(p.Name)
}
