package adapter

import (
	"fmt"
	"io"
	"net/http"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
	"github.com/claudex-proxy/claudex/internal/translator/chatcompletions"
)

// OpenAICompatible speaks the OpenAI Chat Completions dialect, used by
// plain OpenAI-compatible backends, Azure OpenAI, and GitHub Copilot
// (§4.3).
type OpenAICompatible struct{}

func (a *OpenAICompatible) EndpointPath() string { return "/chat/completions" }

func (a *OpenAICompatible) TranslateRequest(req *dialect.Request, profile *config.Profile) ([]byte, *toolname.Map, error) {
	names := toolname.NewMap()
	translated, err := chatcompletions.FromAnthropic(req, profile.DefaultModel, names)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter: openai_compatible: translate request: %w", err)
	}
	body, err := translated.Marshal()
	if err != nil {
		return nil, nil, fmt.Errorf("adapter: openai_compatible: marshal translated request: %w", err)
	}
	return body, names, nil
}

func (a *OpenAICompatible) FilterTranslatedBody(body []byte, profile *config.Profile) []byte {
	return filterStripParams(body, profile.StripParams)
}

func (a *OpenAICompatible) ApplyAuth(req *http.Request, profile *config.Profile) {
	if isAzure(profile) {
		req.Header.Set("api-key", profile.APIKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+profile.APIKey)
}

func (a *OpenAICompatible) ApplyExtraHeaders(req *http.Request, profile *config.Profile) {
	if !isCopilot(profile) {
		return
	}
	req.Header.Set("User-Agent", "GitHubCopilotChat/0.12.1")
	req.Header.Set("Editor-Version", "vscode/1.85.1")
	req.Header.Set("Editor-Plugin-Version", "copilot-chat/0.12.1")
	req.Header.Set("Copilot-Integration-Id", "vscode-chat")
	req.Header.Set("Openai-Intent", "conversation-edits")
}

func (a *OpenAICompatible) Passthrough() bool { return false }

func (a *OpenAICompatible) TranslateResponse(raw []byte, names *toolname.Map) (*dialect.Response, error) {
	return chatcompletions.ToAnthropic(raw, names)
}

func (a *OpenAICompatible) TranslateStream(upstream io.Reader, w io.Writer, model string, names *toolname.Map) error {
	return chatcompletions.StreamTranslate(upstream, w, model, names)
}
