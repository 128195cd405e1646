package adapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
	"github.com/claudex-proxy/claudex/internal/translator/responses"
)

// OpenAIResponses speaks the OpenAI Responses API, used by the ChatGPT
// (Codex) backend (§4.3).
type OpenAIResponses struct{}

func (a *OpenAIResponses) EndpointPath() string { return "/responses" }

func (a *OpenAIResponses) TranslateRequest(req *dialect.Request, profile *config.Profile) ([]byte, *toolname.Map, error) {
	names := toolname.NewMap()
	translated, err := responses.FromAnthropic(req, profile.DefaultModel, names)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter: openai_responses: translate request: %w", err)
	}
	body, err := json.Marshal(translated)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter: openai_responses: marshal translated request: %w", err)
	}
	return body, names, nil
}

func (a *OpenAIResponses) FilterTranslatedBody(body []byte, profile *config.Profile) []byte {
	return filterStripParams(body, profile.StripParams)
}

func (a *OpenAIResponses) ApplyAuth(req *http.Request, profile *config.Profile) {
	req.Header.Set("Authorization", "Bearer "+profile.APIKey)
}

func (a *OpenAIResponses) ApplyExtraHeaders(req *http.Request, profile *config.Profile) {
	if accountID := profile.ExtraEnvValue("CHATGPT_ACCOUNT_ID"); accountID != "" {
		req.Header.Set("ChatGPT-Account-ID", accountID)
	}
}

func (a *OpenAIResponses) Passthrough() bool { return false }

func (a *OpenAIResponses) TranslateResponse(raw []byte, names *toolname.Map) (*dialect.Response, error) {
	return responses.ToAnthropic(raw, names)
}

func (a *OpenAIResponses) TranslateStream(upstream io.Reader, w io.Writer, model string, names *toolname.Map) error {
	return responses.StreamTranslate(upstream, w, model, names)
}
