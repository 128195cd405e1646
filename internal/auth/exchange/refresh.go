package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claudex-proxy/claudex/internal/auth/sources"
	"github.com/claudex-proxy/claudex/internal/auth/token"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// TokenResponse is the ChatGPT token endpoint's success payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

type tokenErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// RefreshErrorKind classifies an invalid_grant refresh failure (§4.8.1).
type RefreshErrorKind string

const (
	RefreshExpired RefreshErrorKind = "expired"
	RefreshReused  RefreshErrorKind = "reused"
	RefreshRevoked RefreshErrorKind = "revoked"
	RefreshOther   RefreshErrorKind = "other"
)

// RefreshError wraps a classified refresh failure.
type RefreshError struct {
	Kind        RefreshErrorKind
	Description string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("exchange: refresh token %s: %s", e.Kind, e.Description)
}

// classifyRefreshError inspects error_description to bucket an
// invalid_grant response (§4.8.1).
func classifyRefreshError(desc string) RefreshErrorKind {
	lower := strings.ToLower(desc)
	switch {
	case strings.Contains(lower, "expired"):
		return RefreshExpired
	case strings.Contains(lower, "reused") || strings.Contains(lower, "already used"):
		return RefreshReused
	case strings.Contains(lower, "revoked"):
		return RefreshRevoked
	default:
		return RefreshOther
	}
}

// ExchangeCode exchanges an authorization code plus PKCE verifier for
// tokens (§4.8.1 PKCE flow, final POST step).
func ExchangeCode(ctx context.Context, code, codeVerifier, redirectURI string) (*TokenResponse, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {ChatGPTClientID},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
	}
	return postTokenRequest(ctx, form)
}

// RefreshChatGPT refreshes an expired ChatGPT access token (§4.8.1
// "Refresh (ChatGPT)"), writes the result back to ~/.codex/auth.json, and
// returns the normalized OAuthToken.
func RefreshChatGPT(ctx context.Context, refreshToken string) (*token.OAuthToken, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {ChatGPTClientID},
		"refresh_token": {refreshToken},
	}
	resp, err := postTokenRequest(ctx, form)
	if err != nil {
		return nil, err
	}

	newRefresh := resp.RefreshToken
	if newRefresh == "" {
		newRefresh = refreshToken
	}

	tok := &token.OAuthToken{AccessToken: resp.AccessToken, RefreshToken: newRefresh, TokenType: resp.TokenType}

	source := resp.AccessToken
	if resp.IDToken != "" {
		source = resp.IDToken
	}
	if accountID, err := ExtractAccountID(source); err == nil && accountID != "" {
		tok.Extra = map[string]string{"account_id": accountID}
	}
	if expMs, err := JWTExpiryMs(resp.AccessToken); err == nil {
		tok.ExpiresAtMs = expMs
	}

	if err := sources.WriteCodexTokens(tok.AccessToken, tok.RefreshToken); err != nil {
		return nil, fmt.Errorf("exchange: writeback after refresh: %w", err)
	}

	return tok, nil
}

func postTokenRequest(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ChatGPTTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange: token request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var errResp tokenErrorResponse
		_ = json.Unmarshal(raw, &errResp)
		if errResp.Error == "invalid_grant" {
			return nil, &RefreshError{Kind: classifyRefreshError(errResp.ErrorDescription), Description: errResp.ErrorDescription}
		}
		return nil, fmt.Errorf("exchange: token request failed: %s %s", errResp.Error, errResp.ErrorDescription)
	}

	var tokResp TokenResponse
	if err := json.Unmarshal(raw, &tokResp); err != nil {
		return nil, fmt.Errorf("exchange: decode token response: %w", err)
	}
	return &tokResp, nil
}
