package manager

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/claudex-proxy/claudex/internal/auth/exchange"
	"github.com/claudex-proxy/claudex/internal/auth/token"
	"github.com/claudex-proxy/claudex/internal/config"
)

func fakeJWT(t *testing.T, expUnix int64) string {
	t.Helper()
	payload := map[string]any{
		"exp": expUnix,
		"https://api.openai.com/auth": map[string]any{
			"chatgpt_account_id": "acct-9",
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none"}`))
	body := base64.RawURLEncoding.EncodeToString(raw)
	return header + "." + body + ".sig"
}

func chatGPTProfiles(t *testing.T) *config.ProfileSet {
	t.Helper()
	set, err := config.NewProfileSet([]*config.Profile{{
		Name:          "codex",
		ProviderType:  config.ProviderOpenAIResponses,
		BaseURL:       "https://chatgpt.com/backend-api/codex",
		AuthType:      config.AuthOAuth,
		OAuthProvider: config.OAuthChatGPT,
		Enabled:       true,
	}})
	if err != nil {
		t.Fatalf("NewProfileSet: %v", err)
	}
	return set
}

func writeCodexAuthFile(t *testing.T, home string, accessToken, refreshToken string) {
	t.Helper()
	dir := filepath.Join(home, ".codex")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content, _ := json.Marshal(map[string]any{
		"tokens": map[string]any{
			"access_token":  accessToken,
			"refresh_token": refreshToken,
		},
	})
	if err := os.WriteFile(filepath.Join(dir, "auth.json"), content, 0600); err != nil {
		t.Fatalf("write auth.json: %v", err)
	}
}

func TestGetTokenUsesFreshCachedTokenWithoutRefreshing(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	validToken := fakeJWT(t, time.Now().Add(time.Hour).Unix())
	writeCodexAuthFile(t, home, validToken, "rt-1")

	profiles := chatGPTProfiles(t)
	m := New(profiles)

	tok, err := m.GetToken(context.Background(), "codex")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if tok.AccessToken != validToken {
		t.Errorf("AccessToken mismatch on first call")
	}

	// Mutate the on-disk file; a cached, non-expired token must mean the
	// fast path never re-reads it.
	writeCodexAuthFile(t, home, "different-token-should-not-be-seen", "rt-1")
	tok2, err := m.GetToken(context.Background(), "codex")
	if err != nil {
		t.Fatalf("GetToken (cached): %v", err)
	}
	if tok2.AccessToken != validToken {
		t.Errorf("expected cached token to be reused, got %q", tok2.AccessToken)
	}
}

func TestGetTokenRefreshesExpiredToken(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	expiredToken := fakeJWT(t, time.Now().Add(-time.Hour).Unix())
	writeCodexAuthFile(t, home, expiredToken, "rt-1")

	newAccessToken := fakeJWT(t, time.Now().Add(time.Hour).Unix())
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("refresh_token") != "rt-1" {
			t.Errorf("refresh_token = %q", r.PostForm.Get("refresh_token"))
		}
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": newAccessToken,
		})
	}))
	defer server.Close()

	restoreURL := exchange.ChatGPTTokenURL
	exchange.ChatGPTTokenURL = server.URL
	defer func() { exchange.ChatGPTTokenURL = restoreURL }()

	profiles := chatGPTProfiles(t)
	m := New(profiles)

	tok, err := m.GetToken(context.Background(), "codex")
	if err != nil {
		t.Fatalf("GetToken: %v", err)
	}
	if tok.AccessToken != newAccessToken {
		t.Errorf("AccessToken = %q, want refreshed token", tok.AccessToken)
	}
	if tok.RefreshToken != "rt-1" {
		t.Errorf("expected original refresh_token to be preserved, got %q", tok.RefreshToken)
	}
}

func TestGetTokenConcurrentCallsOnlyRefreshOnce(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	expiredToken := fakeJWT(t, time.Now().Add(-time.Hour).Unix())
	writeCodexAuthFile(t, home, expiredToken, "rt-1")

	newAccessToken := fakeJWT(t, time.Now().Add(time.Hour).Unix())
	var refreshCount int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&refreshCount, 1)
		time.Sleep(20 * time.Millisecond)
		json.NewEncoder(w).Encode(map[string]string{"access_token": newAccessToken})
	}))
	defer server.Close()

	restoreURL := exchange.ChatGPTTokenURL
	exchange.ChatGPTTokenURL = server.URL
	defer func() { exchange.ChatGPTTokenURL = restoreURL }()

	profiles := chatGPTProfiles(t)
	m := New(profiles)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			_, err := m.GetToken(context.Background(), "codex")
			errs[idx] = err
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			t.Fatalf("GetToken: %v", err)
		}
	}
	if refreshCount != 1 {
		t.Errorf("refreshCount = %d, want exactly 1 refresh despite 10 concurrent callers", refreshCount)
	}
}

func TestInvalidateDropsCacheEntry(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	validToken := fakeJWT(t, time.Now().Add(time.Hour).Unix())
	writeCodexAuthFile(t, home, validToken, "rt-1")

	profiles := chatGPTProfiles(t)
	m := New(profiles)
	if _, err := m.GetToken(context.Background(), "codex"); err != nil {
		t.Fatalf("GetToken: %v", err)
	}

	m.Invalidate("codex")

	newToken := fakeJWT(t, time.Now().Add(2*time.Hour).Unix())
	writeCodexAuthFile(t, home, newToken, "rt-1")

	tok, err := m.GetToken(context.Background(), "codex")
	if err != nil {
		t.Fatalf("GetToken after invalidate: %v", err)
	}
	if tok.AccessToken != newToken {
		t.Errorf("expected invalidate to force a re-read, got stale token")
	}
}

func TestApplyTokenToProfileSetsExtraEnvWithoutOverwriting(t *testing.T) {
	p := &config.Profile{Name: "codex", ExtraEnv: map[string]string{"CHATGPT_ACCOUNT_ID": "preexisting"}}
	tok := &token.OAuthToken{AccessToken: "at", Extra: map[string]string{"account_id": "acct-1"}}

	ApplyTokenToProfile(p, tok)

	if p.APIKey != "at" {
		t.Errorf("APIKey = %q, want at", p.APIKey)
	}
	if p.ExtraEnv["CHATGPT_ACCOUNT_ID"] != "preexisting" {
		t.Errorf("expected existing extra_env entry to be preserved, got %q", p.ExtraEnv["CHATGPT_ACCOUNT_ID"])
	}
}

func TestApplyTokenToProfileSetsCopilotFlag(t *testing.T) {
	p := &config.Profile{Name: "copilot"}
	tok := &token.OAuthToken{AccessToken: "bearer-1", Extra: map[string]string{"provider": "copilot"}}

	ApplyTokenToProfile(p, tok)

	if p.ExtraEnv["COPILOT_AUTH"] != "true" {
		t.Errorf("expected COPILOT_AUTH=true, got %q", p.ExtraEnv["COPILOT_AUTH"])
	}
}
