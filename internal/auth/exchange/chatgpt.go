package exchange

import (
	"context"
	"fmt"

	"github.com/claudex-proxy/claudex/internal/auth/sources"
	"github.com/claudex-proxy/claudex/internal/auth/token"
)

// InteractiveChatGPTLogin runs the full PKCE + loopback OAuth flow
// (§4.8.1 "PKCE (ChatGPT interactive login)") and returns a normalized
// OAuthToken, writing the result back to ~/.codex/auth.json.
func InteractiveChatGPTLogin(ctx context.Context, openAuthorizeURL func(url string) error) (*token.OAuthToken, error) {
	pkce, err := GeneratePKCE()
	if err != nil {
		return nil, err
	}
	state, err := GenerateState()
	if err != nil {
		return nil, err
	}

	port, results, shutdown, err := RunLoopbackServer(ctx)
	if err != nil {
		return nil, err
	}
	defer shutdown()

	authorizeURL := BuildChatGPTAuthorizeURL(port, pkce, state)
	if openAuthorizeURL != nil {
		if err := openAuthorizeURL(authorizeURL); err != nil {
			fmt.Printf("claudex: could not open browser automatically; visit:\n%s\n", authorizeURL)
		}
	}

	code, err := WaitForCode(ctx, results)
	if err != nil {
		return nil, err
	}

	redirectURI := fmt.Sprintf("http://localhost:%d/auth/callback", port)
	resp, err := ExchangeCode(ctx, code, pkce.Verifier, redirectURI)
	if err != nil {
		return nil, err
	}

	return finalizeChatGPTToken(resp)
}

// InteractiveChatGPTDeviceLogin runs the ChatGPT-specific device-code flow
// (§4.8.1 "Device-code (ChatGPT headless)"): poll until an
// authorization_code/code_verifier pair is issued, then exchange it at the
// deviceauth callback redirect_uri.
func InteractiveChatGPTDeviceLogin(ctx context.Context, issuerURL, deviceCodeURL, pollURL string) (*token.OAuthToken, error) {
	device, err := RequestDeviceCode(ctx, deviceCodeURL, ChatGPTClientID, ChatGPTScope)
	if err != nil {
		return nil, err
	}

	authCode, codeVerifier, err := PollChatGPTDeviceToken(ctx, pollURL, device.DeviceCode, device.Interval)
	if err != nil {
		return nil, err
	}

	redirectURI := issuerURL + "/deviceauth/callback"
	resp, err := ExchangeCode(ctx, authCode, codeVerifier, redirectURI)
	if err != nil {
		return nil, err
	}

	return finalizeChatGPTToken(resp)
}

func finalizeChatGPTToken(resp *TokenResponse) (*token.OAuthToken, error) {
	tok := &token.OAuthToken{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}

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
		return nil, fmt.Errorf("exchange: writeback after login: %w", err)
	}
	return tok, nil
}
