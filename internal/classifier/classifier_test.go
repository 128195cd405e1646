package classifier

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
)

func textBody(userText string) *dialect.Request {
	return &dialect.Request{
		Messages: []dialect.Message{
			{Role: dialect.RoleUser, Content: dialect.MessageContent{Text: userText, IsText: true}},
		},
	}
}

func profiles(t *testing.T, names ...string) *config.ProfileSet {
	t.Helper()
	var ps []*config.Profile
	for _, n := range names {
		ps = append(ps, &config.Profile{Name: n, BaseURL: "https://example.com", Enabled: true})
	}
	set, err := config.NewProfileSet(ps)
	if err != nil {
		t.Fatalf("profile set: %v", err)
	}
	return set
}

func TestClassifyIntentDisabledReturnsDefault(t *testing.T) {
	set := profiles(t, "alpha", "beta")
	cfg := config.ClassifierConfig{Enabled: false, Rules: config.IntentRules{"default": "beta"}}
	c := New(cfg, set)
	if got := c.ClassifyIntent(context.Background(), textBody("hi")); got != "beta" {
		t.Errorf("got %q, want beta", got)
	}
}

func TestClassifyIntentNoUserMessageFallsBack(t *testing.T) {
	set := profiles(t, "alpha")
	cfg := config.ClassifierConfig{Enabled: true, Rules: config.IntentRules{}}
	c := New(cfg, set)
	empty := &dialect.Request{}
	if got := c.ClassifyIntent(context.Background(), empty); got != "alpha" {
		t.Errorf("got %q, want first enabled profile alpha", got)
	}
}

func TestClassifyIntentRoutesByLabel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"  CODE  "}}]}`))
	}))
	defer srv.Close()

	set := profiles(t, "code-profile", "default-profile")
	cfg := config.ClassifierConfig{
		Enabled:       true,
		ClassifierURL: srv.URL,
		Rules:         config.IntentRules{"code": "code-profile", "default": "default-profile"},
	}
	c := New(cfg, set)
	if got := c.ClassifyIntent(context.Background(), textBody("fix this bug")); got != "code-profile" {
		t.Errorf("got %q, want code-profile", got)
	}
}

func TestClassifyIntentTransportErrorFallsBack(t *testing.T) {
	set := profiles(t, "alpha")
	cfg := config.ClassifierConfig{
		Enabled:       true,
		ClassifierURL: "http://127.0.0.1:0",
		Rules:         config.IntentRules{"default": "alpha"},
	}
	c := New(cfg, set)
	if got := c.ClassifyIntent(context.Background(), textBody("hi")); got != "alpha" {
		t.Errorf("got %q, want fallback alpha", got)
	}
}

func TestClassifyIntentUnknownLabelFallsBackToDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"gibberish"}}]}`))
	}))
	defer srv.Close()

	set := profiles(t, "default-profile")
	cfg := config.ClassifierConfig{
		Enabled:       true,
		ClassifierURL: srv.URL,
		Rules:         config.IntentRules{"default": "default-profile"},
	}
	c := New(cfg, set)
	if got := c.ClassifyIntent(context.Background(), textBody("hi")); got != "default-profile" {
		t.Errorf("got %q, want default-profile", got)
	}
}
