package exchange

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/claudex-proxy/claudex/internal/auth/token"
)

// copilotTokenURL is a var rather than a const so tests can point it at an
// httptest server.
var copilotTokenURL = "https://api.github.com/copilot_internal/v2/token"

// ApplyCopilotImpersonationHeaders sets the four headers Copilot's
// internal API requires to believe the request comes from a recognized
// editor client.
func ApplyCopilotImpersonationHeaders(req *http.Request) {
	req.Header.Set("Editor-Version", "vscode/1.85.1")
	req.Header.Set("Editor-Plugin-Version", "copilot-chat/0.12.1")
	req.Header.Set("User-Agent", "GitHubCopilotChat/0.12.1")
	req.Header.Set("Copilot-Integration-Id", "vscode-chat")
}

// ExchangeGitHubForCopilotBearer swaps a GitHub personal/OAuth token for a
// short-lived Copilot bearer token (§4.8.1 "GitHub → Copilot bearer").
func ExchangeGitHubForCopilotBearer(githubToken string) (*token.OAuthToken, error) {
	req, err := http.NewRequest(http.MethodGet, copilotTokenURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+githubToken)
	ApplyCopilotImpersonationHeaders(req)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange: copilot token exchange: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange: copilot token exchange failed: %s", resp.Status)
	}

	var body struct {
		Token      string `json:"token"`
		ExpiresAt  int64  `json:"expires_at"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("exchange: decode copilot token response: %w", err)
	}

	return &token.OAuthToken{
		AccessToken: body.Token,
		ExpiresAtMs: body.ExpiresAt * 1000,
		Extra:       map[string]string{"provider": "copilot"},
	}, nil
}
