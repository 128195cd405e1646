// Package adapter implements the ProviderAdapter contract (§4.3): each
// upstream dialect translates requests/responses, applies its own auth
// scheme, and either passes bytes through verbatim or speaks Anthropic
// dialect to the rest of claudex.
package adapter

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
)

// Adapter is the single contract the dispatcher drives for every profile,
// regardless of upstream dialect (§4.3).
type Adapter interface {
	// EndpointPath is appended to profile.base_url to build the upstream URL.
	EndpointPath() string

	// TranslateRequest converts an Anthropic-dialect request into the
	// upstream wire body, returning the tool-name map built along the way
	// so the matching response/stream translation can restore names.
	TranslateRequest(req *dialect.Request, profile *config.Profile) ([]byte, *toolname.Map, error)

	// FilterTranslatedBody strips profile.strip_params top-level keys from
	// an already-translated body before it is sent upstream.
	FilterTranslatedBody(body []byte, profile *config.Profile) []byte

	// ApplyAuth sets the upstream authentication header(s).
	ApplyAuth(req *http.Request, profile *config.Profile)

	// ApplyExtraHeaders sets any additional upstream-specific headers.
	ApplyExtraHeaders(req *http.Request, profile *config.Profile)

	// Passthrough reports whether upstream bytes (and status, on error)
	// should be returned to the caller verbatim rather than translated.
	Passthrough() bool

	// TranslateResponse converts an upstream non-streaming response body
	// into an Anthropic-dialect response.
	TranslateResponse(raw []byte, names *toolname.Map) (*dialect.Response, error)

	// TranslateStream converts an upstream SSE stream into the Anthropic
	// SSE envelope, writing directly to w.
	TranslateStream(upstream io.Reader, w io.Writer, model string, names *toolname.Map) error
}

// For selects the adapter matching profile's provider_type.
func For(profile *config.Profile) (Adapter, error) {
	switch profile.ProviderType {
	case config.ProviderDirectAnthropic:
		return &DirectAnthropic{}, nil
	case config.ProviderOpenAICompatible:
		return &OpenAICompatible{}, nil
	case config.ProviderOpenAIResponses:
		return &OpenAIResponses{}, nil
	default:
		return nil, fmt.Errorf("adapter: profile %q: unknown provider_type %q", profile.Name, profile.ProviderType)
	}
}

// filterStripParams removes profile.strip_params top-level keys from a
// JSON object body (§4.3 filter_translated_body), shared by every adapter.
func filterStripParams(body []byte, params config.StripParams) []byte {
	if len(params) == 0 {
		return body
	}
	out := body
	for _, key := range params {
		out = deleteJSONKey(out, key)
	}
	return out
}

// isAzure reports whether an adapter should authenticate with the
// api-key header instead of a bearer token (§4.3 OpenAICompatible auth).
func isAzure(profile *config.Profile) bool {
	return profile.ExtraEnvSet("AZURE_AUTH") || strings.Contains(profile.BaseURL, "openai.azure.com")
}

// isCopilot reports whether Copilot impersonation headers should be added
// (§4.3 OpenAICompatible extra headers).
func isCopilot(profile *config.Profile) bool {
	return profile.ExtraEnvSet("COPILOT_AUTH") || strings.Contains(profile.BaseURL, "githubcopilot.com")
}
