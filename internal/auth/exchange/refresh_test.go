package exchange

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassifyRefreshErrorBuckets(t *testing.T) {
	cases := []struct {
		desc string
		want RefreshErrorKind
	}{
		{"refresh token is expired", RefreshExpired},
		{"token has already been used", RefreshReused},
		{"refresh token was reused", RefreshReused},
		{"token has been revoked", RefreshRevoked},
		{"something else went wrong", RefreshOther},
	}
	for _, c := range cases {
		if got := classifyRefreshError(c.desc); got != c.want {
			t.Errorf("classifyRefreshError(%q) = %v, want %v", c.desc, got, c.want)
		}
	}
}

func TestExchangeCodePostsFormAndParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "authorization_code" {
			t.Errorf("grant_type = %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("code_verifier") != "verifier123" {
			t.Errorf("code_verifier = %q", r.PostForm.Get("code_verifier"))
		}
		json.NewEncoder(w).Encode(TokenResponse{AccessToken: "at", RefreshToken: "rt"})
	}))
	defer server.Close()

	restoreURL := ChatGPTTokenURL
	ChatGPTTokenURL = server.URL
	defer func() { ChatGPTTokenURL = restoreURL }()

	resp, err := ExchangeCode(context.Background(), "code1", "verifier123", "http://localhost:1455/auth/callback")
	if err != nil {
		t.Fatalf("ExchangeCode: %v", err)
	}
	if resp.AccessToken != "at" {
		t.Errorf("access_token = %q, want at", resp.AccessToken)
	}
}

func TestPostTokenRequestClassifiesInvalidGrant(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(tokenErrorResponse{Error: "invalid_grant", ErrorDescription: "refresh token is expired"})
	}))
	defer server.Close()

	restoreURL := ChatGPTTokenURL
	ChatGPTTokenURL = server.URL
	defer func() { ChatGPTTokenURL = restoreURL }()

	_, err := ExchangeCode(context.Background(), "code1", "v", "http://localhost:1455/auth/callback")
	if err == nil {
		t.Fatal("expected error")
	}
	refreshErr, ok := err.(*RefreshError)
	if !ok {
		t.Fatalf("expected *RefreshError, got %T: %v", err, err)
	}
	if refreshErr.Kind != RefreshExpired {
		t.Errorf("Kind = %v, want %v", refreshErr.Kind, RefreshExpired)
	}
}
