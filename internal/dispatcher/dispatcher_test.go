package dispatcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/claudex-proxy/claudex/internal/auth/manager"
	"github.com/claudex-proxy/claudex/internal/breaker"
	"github.com/claudex-proxy/claudex/internal/classifier"
	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/contextmw"
	"github.com/claudex-proxy/claudex/internal/metrics"
)

func newTestDispatcher(t *testing.T, profiles []*config.Profile) (*Dispatcher, *breaker.Registry, *metrics.Registry) {
	t.Helper()
	set, err := config.NewProfileSet(profiles)
	require.NoError(t, err)

	breakers := breaker.NewRegistry(3, 30*time.Second)
	metricsReg := metrics.NewRegistry()
	d := New(
		set,
		classifier.New(config.ClassifierConfig{Enabled: false, Rules: config.IntentRules{"default": profiles[0].Name}}, set),
		&contextmw.Middleware{},
		contextmw.NewCrossProfileStore(),
		breakers,
		metricsReg,
		nil,
	)
	return d, breakers, metricsReg
}

func chatCompletionsProfile(name, baseURL string, backups ...string) *config.Profile {
	return &config.Profile{
		Name:            name,
		ProviderType:    config.ProviderOpenAICompatible,
		BaseURL:         baseURL,
		DefaultModel:    "gpt-test",
		AuthType:        config.AuthAPIKey,
		APIKey:          "test-key",
		Enabled:         true,
		BackupProviders: backups,
	}
}

func requestBody(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"model":    "claude-test",
		"messages": []map[string]any{{"role": "user", "content": text}},
	})
	return body
}

func chatCompletionsOK(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id":    "chatcmpl-1",
			"model": "gpt-test",
			"choices": []map[string]any{
				{"finish_reason": "stop", "message": map[string]any{"role": "assistant", "content": content}},
			},
			"usage": map[string]any{"prompt_tokens": 3, "completion_tokens": 2},
		})
	}
}

func TestHandleForwardsToOpenAICompatibleProfile(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		chatCompletionsOK("hello back")(w, r)
	}))
	defer upstream.Close()

	d, _, metricsReg := newTestDispatcher(t, []*config.Profile{chatCompletionsProfile("primary", upstream.URL)})

	rec := httptest.NewRecorder()
	err := d.Handle(context.Background(), "primary", nil, requestBody("hi"), rec)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "hello back")

	snap := metricsReg.Get("primary").Snapshot()
	require.EqualValues(t, 1, snap.SuccessCount)
}

func TestHandleUnknownProfileReturnsProfileNotFound(t *testing.T) {
	d, _, _ := newTestDispatcher(t, []*config.Profile{chatCompletionsProfile("primary", "https://example.com")})

	rec := httptest.NewRecorder()
	err := d.Handle(context.Background(), "missing", nil, requestBody("hi"), rec)
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found")
}

func TestHandleInvalidJSONReturnsBadRequest(t *testing.T) {
	d, _, _ := newTestDispatcher(t, []*config.Profile{chatCompletionsProfile("primary", "https://example.com")})

	rec := httptest.NewRecorder()
	err := d.Handle(context.Background(), "primary", nil, []byte("{not json"), rec)
	require.Error(t, err)
}

func TestHandleFallsBackToBackupOnUpstreamFailure(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer failing.Close()

	backupServer := httptest.NewServer(chatCompletionsOK("from backup"))
	defer backupServer.Close()

	d, _, _ := newTestDispatcher(t, []*config.Profile{
		chatCompletionsProfile("primary", failing.URL, "backup"),
		chatCompletionsProfile("backup", backupServer.URL),
	})

	rec := httptest.NewRecorder()
	err := d.Handle(context.Background(), "primary", nil, requestBody("hi"), rec)
	require.NoError(t, err)
	require.Contains(t, rec.Body.String(), "from backup")
}

func TestHandleCircuitBreakerOpenSkipsStraightToBackup(t *testing.T) {
	backupServer := httptest.NewServer(chatCompletionsOK("from backup"))
	defer backupServer.Close()

	d, breakers, _ := newTestDispatcher(t, []*config.Profile{
		chatCompletionsProfile("primary", "http://127.0.0.1:0", "backup"),
		chatCompletionsProfile("backup", backupServer.URL),
	})
	primaryBreaker := breakers.Get("primary")
	primaryBreaker.RecordFailure()
	primaryBreaker.RecordFailure()
	primaryBreaker.RecordFailure()

	rec := httptest.NewRecorder()
	err := d.Handle(context.Background(), "primary", nil, requestBody("hi"), rec)
	require.NoError(t, err)
	require.Contains(t, rec.Body.String(), "from backup")
}

func TestHandleAllCandidatesFailReturnsLastError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	d, _, metricsReg := newTestDispatcher(t, []*config.Profile{
		chatCompletionsProfile("primary", failing.URL, "backup"),
		chatCompletionsProfile("backup", failing.URL),
	})

	rec := httptest.NewRecorder()
	err := d.Handle(context.Background(), "primary", nil, requestBody("hi"), rec)
	require.Error(t, err)

	require.EqualValues(t, 1, metricsReg.Get("primary").Snapshot().FailureCount)
	require.EqualValues(t, 1, metricsReg.Get("backup").Snapshot().FailureCount)
}

func TestHandleAutoResolvesProfileViaClassifierFallback(t *testing.T) {
	upstream := httptest.NewServer(chatCompletionsOK("auto routed"))
	defer upstream.Close()

	d, _, _ := newTestDispatcher(t, []*config.Profile{chatCompletionsProfile("primary", upstream.URL)})

	rec := httptest.NewRecorder()
	err := d.Handle(context.Background(), "auto", nil, requestBody("hi"), rec)
	require.NoError(t, err)
	require.Contains(t, rec.Body.String(), "auto routed")
}

func TestHandleDisabledProfileReturnsProfileDisabled(t *testing.T) {
	profiles := []*config.Profile{chatCompletionsProfile("primary", "https://example.com")}
	profiles[0].Enabled = false

	d, _, _ := newTestDispatcher(t, profiles)
	rec := httptest.NewRecorder()
	err := d.Handle(context.Background(), "primary", nil, requestBody("hi"), rec)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disabled")
}

func TestHandleOAuthProfileWithNoCredentialSourceFails(t *testing.T) {
	// No ChatGPT credential source exists in the test environment, so
	// GetToken fails before the request ever reaches upstream. This
	// exercises the OAuth-error path of resolveAuth without needing a
	// real upstream or a 401-triggered invalidate_and_retry round trip.
	profile := chatCompletionsProfile("primary", "https://example.com")
	profile.AuthType = config.AuthOAuth
	profile.OAuthProvider = config.OAuthChatGPT

	set, err := config.NewProfileSet([]*config.Profile{profile})
	require.NoError(t, err)
	tokens := manager.New(set)

	d := New(
		set,
		classifier.New(config.ClassifierConfig{Enabled: false, Rules: config.IntentRules{"default": "primary"}}, set),
		&contextmw.Middleware{},
		contextmw.NewCrossProfileStore(),
		breaker.NewRegistry(3, 30*time.Second),
		metrics.NewRegistry(),
		tokens,
	)

	rec := httptest.NewRecorder()
	err = d.Handle(context.Background(), "primary", nil, requestBody("hi"), rec)
	require.Error(t, err)
}
