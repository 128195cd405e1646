// Package manager implements the TokenManager (§4.8.2): a cached
// profile→token map guarded by a cache lock, with per-profile refresh
// deduplication via singleflight so a slow refresh for one profile never
// blocks reads or refreshes for any other.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/claudex-proxy/claudex/internal/auth/exchange"
	"github.com/claudex-proxy/claudex/internal/auth/sources"
	"github.com/claudex-proxy/claudex/internal/auth/token"
	"github.com/claudex-proxy/claudex/internal/config"
	log "github.com/sirupsen/logrus"
)

// expiryBufferSeconds is the freshness window used on the fast path
// (§4.8.2 step 2): a token within this many seconds of expiry is treated
// as expired and forces a refresh.
const expiryBufferSeconds = 60

// Manager caches OAuth tokens per profile name and serializes refreshes
// per profile (§5 concurrency model). Refresh deduplication is delegated
// to singleflight.Group, keyed by profile name: N concurrent GetToken
// calls for the same expired profile collapse into exactly one in-flight
// loadAndExchange, and every caller receives its result.
type Manager struct {
	profiles *config.ProfileSet

	cacheMu sync.Mutex
	cache   map[string]*token.CachedToken

	refresh singleflight.Group
}

// New constructs a Manager bound to profiles. profiles may be mutated by
// CLI commands after construction; Manager always looks up the current
// Profile by name rather than holding its own copy.
func New(profiles *config.ProfileSet) *Manager {
	return &Manager{
		profiles: profiles,
		cache:    make(map[string]*token.CachedToken),
	}
}

// GetToken returns a fresh clone of profile's cached OAuth token,
// refreshing it if absent or within expiryBufferSeconds of expiry
// (§4.8.2 get_token).
func (m *Manager) GetToken(ctx context.Context, profileName string) (*token.OAuthToken, error) {
	p := m.profiles.Get(profileName)
	if p == nil {
		return nil, fmt.Errorf("manager: unknown profile %q", profileName)
	}
	if p.AuthType != config.AuthOAuth {
		return nil, fmt.Errorf("manager: profile %q is not oauth-authenticated", profileName)
	}

	if tok, ok := m.fastPath(profileName); ok {
		return tok, nil
	}

	tok, err, _ := m.refresh.Do(profileName, func() (any, error) {
		// Double-checked: another goroutine may have refreshed while we
		// waited to join this singleflight call.
		if tok, ok := m.fastPath(profileName); ok {
			return tok, nil
		}
		fresh, err := m.loadAndExchange(ctx, p)
		if err != nil {
			return nil, err
		}
		m.store(profileName, fresh)
		return fresh.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return tok.(*token.OAuthToken), nil
}

// fastPath returns a clone of a cached, non-expired token without
// touching the refresh lock (§4.8.2 step 2).
func (m *Manager) fastPath(profileName string) (*token.OAuthToken, bool) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	cached, ok := m.cache[profileName]
	if !ok || cached.Token.IsExpired(expiryBufferSeconds) {
		return nil, false
	}
	return cached.Token.Clone(), true
}

func (m *Manager) store(profileName string, tok *token.OAuthToken) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	m.cache[profileName] = &token.CachedToken{Token: tok, CachedAtMs: time.Now().UnixMilli()}
}

// loadAndExchange re-reads the discovery chain for provider types whose
// credential is still valid as found, and performs the provider-specific
// refresh ritual (ChatGPT refresh_token, GitHub→Copilot swap) otherwise
// (§4.8.2 step 5).
func (m *Manager) loadAndExchange(ctx context.Context, p *config.Profile) (*token.OAuthToken, error) {
	switch p.OAuthProvider {
	case config.OAuthChatGPT:
		return m.loadChatGPT(ctx, p)
	case config.OAuthGitHub:
		return m.loadCopilot(p)
	default:
		cred, err := sources.Discover(p)
		if err != nil {
			return nil, fmt.Errorf("manager: discover token for profile %q: %w", p.Name, err)
		}
		return cred.Token, nil
	}
}

func (m *Manager) loadChatGPT(ctx context.Context, p *config.Profile) (*token.OAuthToken, error) {
	cred, err := sources.DiscoverChatGPT()
	if err != nil {
		return nil, fmt.Errorf("manager: discover chatgpt token for profile %q: %w", p.Name, err)
	}
	if !cred.Token.IsExpired(expiryBufferSeconds) {
		return cred.Token, nil
	}
	if cred.Token.RefreshToken == "" {
		log.WithField("profile", p.Name).Warn("manager: chatgpt token expired with no refresh_token available")
		return cred.Token, nil
	}
	refreshed, err := exchange.RefreshChatGPT(ctx, cred.Token.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("manager: refresh chatgpt token for profile %q: %w", p.Name, err)
	}
	return refreshed, nil
}

func (m *Manager) loadCopilot(p *config.Profile) (*token.OAuthToken, error) {
	cred, err := sources.DiscoverCopilot("github.com")
	if err != nil {
		return nil, fmt.Errorf("manager: discover github token for profile %q: %w", p.Name, err)
	}
	bearer, err := exchange.ExchangeGitHubForCopilotBearer(cred.Token.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("manager: exchange copilot bearer for profile %q: %w", p.Name, err)
	}
	return bearer, nil
}

// InvalidateAndRetry drops the cache entry then calls GetToken, used
// after a 401 from upstream (§4.8.2).
func (m *Manager) InvalidateAndRetry(ctx context.Context, profileName string) (*token.OAuthToken, error) {
	m.Invalidate(profileName)
	return m.GetToken(ctx, profileName)
}

// Invalidate drops the cache entry only, used by logout (§4.8.2).
func (m *Manager) Invalidate(profileName string) {
	m.cacheMu.Lock()
	defer m.cacheMu.Unlock()
	delete(m.cache, profileName)
}

// ApplyTokenToProfile copies tok's fields onto p's api_key and extra_env,
// without overwriting extra_env keys the operator has already set
// explicitly (§4.8.2 apply_token_to_profile).
func ApplyTokenToProfile(p *config.Profile, tok *token.OAuthToken) {
	p.APIKey = tok.AccessToken

	if accountID := tok.ExtraValue("account_id"); accountID != "" {
		setExtraEnvIfAbsent(p, "CHATGPT_ACCOUNT_ID", accountID)
	}
	if tok.ExtraValue("provider") == "copilot" {
		setExtraEnvIfAbsent(p, "COPILOT_AUTH", "true")
	}
}

func setExtraEnvIfAbsent(p *config.Profile, key, value string) {
	if p.ExtraEnv == nil {
		p.ExtraEnv = make(map[string]string)
	}
	if _, exists := p.ExtraEnv[key]; exists {
		return
	}
	p.ExtraEnv[key] = value
}
