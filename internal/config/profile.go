// Package config holds the Profile record and the minimal runtime
// configuration claudex needs (§3 Data Model). Full config-file
// save/export tooling is a named external collaborator (spec.md
// Non-goals) and is not implemented here.
package config

import (
	"fmt"
	"strings"
)

// ProviderType identifies which upstream dialect a profile speaks.
type ProviderType string

const (
	ProviderDirectAnthropic  ProviderType = "direct_anthropic"
	ProviderOpenAICompatible ProviderType = "openai_compatible"
	ProviderOpenAIResponses  ProviderType = "openai_responses"
)

// AuthType identifies how a profile's credentials are obtained.
type AuthType string

const (
	AuthAPIKey AuthType = "api_key"
	AuthOAuth  AuthType = "oauth"
)

// OAuthProvider identifies the provider-specific token-exchange ritual
// a profile's OAuth credentials follow (§4.8.1).
type OAuthProvider string

const (
	OAuthClaude  OAuthProvider = "claude"
	OAuthChatGPT OAuthProvider = "chatgpt"
	OAuthGoogle  OAuthProvider = "google"
	OAuthQwen    OAuthProvider = "qwen"
	OAuthKimi    OAuthProvider = "kimi"
	OAuthGitHub  OAuthProvider = "github"
)

// ModelSlot names an alias tier a CLI may request (§3 Profile.models).
type ModelSlot string

const (
	ModelHaiku  ModelSlot = "haiku"
	ModelSonnet ModelSlot = "sonnet"
	ModelOpus   ModelSlot = "opus"
)

// StripParams names top-level JSON keys to drop from a translated request
// body before it is sent upstream (§4.3 filter_translated_body).
type StripParams []string

// Profile is a named upstream endpoint record (§3 Profile).
type Profile struct {
	Name             string            `yaml:"name" json:"name"`
	ProviderType     ProviderType      `yaml:"provider_type" json:"provider_type"`
	BaseURL          string            `yaml:"base_url" json:"base_url"`
	DefaultModel     string            `yaml:"default_model" json:"default_model"`
	AuthType         AuthType          `yaml:"auth_type" json:"auth_type"`
	OAuthProvider    OAuthProvider     `yaml:"oauth_provider,omitempty" json:"oauth_provider,omitempty"`
	APIKey           string            `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	APIKeyKeyring    string            `yaml:"api_key_keyring,omitempty" json:"api_key_keyring,omitempty"`
	CustomHeaders    map[string]string `yaml:"custom_headers,omitempty" json:"custom_headers,omitempty"`
	ExtraEnv         map[string]string `yaml:"extra_env,omitempty" json:"extra_env,omitempty"`
	BackupProviders  []string          `yaml:"backup_providers,omitempty" json:"backup_providers,omitempty"`
	Priority         int               `yaml:"priority" json:"priority"`
	Enabled          bool              `yaml:"enabled" json:"enabled"`
	MaxTokens        int               `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	StripParams      StripParams       `yaml:"strip_params,omitempty" json:"strip_params,omitempty"`
	Models           map[ModelSlot]string `yaml:"models,omitempty" json:"models,omitempty"`
}

// Clone returns a deep copy of p's mutable fields (custom_headers,
// extra_env) so a caller can apply a per-request token without racing
// other goroutines holding the same *Profile from the shared ProfileSet
// (§5: readers clone needed fields and drop the lock before network I/O).
func (p *Profile) Clone() *Profile {
	clone := *p
	if p.CustomHeaders != nil {
		clone.CustomHeaders = make(map[string]string, len(p.CustomHeaders))
		for k, v := range p.CustomHeaders {
			clone.CustomHeaders[k] = v
		}
	}
	if p.ExtraEnv != nil {
		clone.ExtraEnv = make(map[string]string, len(p.ExtraEnv))
		for k, v := range p.ExtraEnv {
			clone.ExtraEnv[k] = v
		}
	}
	if p.Models != nil {
		clone.Models = make(map[ModelSlot]string, len(p.Models))
		for k, v := range p.Models {
			clone.Models[k] = v
		}
	}
	return &clone
}

// ExtraEnvValue returns extra_env[key], defaulting to "".
func (p *Profile) ExtraEnvValue(key string) string {
	if p == nil || p.ExtraEnv == nil {
		return ""
	}
	return p.ExtraEnv[key]
}

// ExtraEnvSet reports whether extra_env[key] carries a truthy marker value.
func (p *Profile) ExtraEnvSet(key string) bool {
	v := strings.ToLower(strings.TrimSpace(p.ExtraEnvValue(key)))
	return v != "" && v != "false" && v != "0"
}

// Validate checks the per-profile invariants named in §3: OAuth requires
// oauth_provider, base_url has a scheme. Name uniqueness and
// backup_providers references span the whole set and are checked by
// NewProfileSet, not here.
func (p *Profile) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("profile: name must not be empty")
	}
	if !strings.HasPrefix(p.BaseURL, "http://") && !strings.HasPrefix(p.BaseURL, "https://") {
		return fmt.Errorf("profile %q: base_url must start with http:// or https://", p.Name)
	}
	if p.AuthType == AuthOAuth && p.OAuthProvider == "" {
		return fmt.Errorf("profile %q: auth_type oauth requires oauth_provider", p.Name)
	}
	return nil
}

// ProfileSet is the loaded, validated collection of profiles keyed by name.
type ProfileSet struct {
	byName map[string]*Profile
	order  []string
}

// NewProfileSet validates profiles (uniqueness, backup references, §3
// invariants) and returns a lookup set.
func NewProfileSet(profiles []*Profile) (*ProfileSet, error) {
	set := &ProfileSet{byName: make(map[string]*Profile, len(profiles))}
	for _, p := range profiles {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, exists := set.byName[p.Name]; exists {
			return nil, fmt.Errorf("profile %q declared more than once", p.Name)
		}
		set.byName[p.Name] = p
		set.order = append(set.order, p.Name)
	}
	for _, p := range profiles {
		for _, backup := range p.BackupProviders {
			if _, ok := set.byName[backup]; !ok {
				return nil, fmt.Errorf("profile %q: backup_providers references unknown profile %q", p.Name, backup)
			}
		}
	}
	return set, nil
}

// Get returns the profile by name, or nil if absent.
func (s *ProfileSet) Get(name string) *Profile {
	if s == nil {
		return nil
	}
	return s.byName[name]
}

// Enabled returns enabled profiles in declaration order.
func (s *ProfileSet) Enabled() []*Profile {
	var out []*Profile
	for _, name := range s.order {
		if p := s.byName[name]; p.Enabled {
			out = append(out, p)
		}
	}
	return out
}

// BackupsFor returns the enabled backup profiles for name, in declared
// order, skipping disabled or unknown entries (§4.4 step 4).
func (s *ProfileSet) BackupsFor(name string) []*Profile {
	p := s.Get(name)
	if p == nil {
		return nil
	}
	var out []*Profile
	for _, backupName := range p.BackupProviders {
		if backup := s.Get(backupName); backup != nil && backup.Enabled {
			out = append(out, backup)
		}
	}
	return out
}

// All returns every profile in declaration order.
func (s *ProfileSet) All() []*Profile {
	out := make([]*Profile, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name])
	}
	return out
}
