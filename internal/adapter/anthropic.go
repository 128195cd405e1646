package adapter

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/toolname"
)

// DirectAnthropic talks the Anthropic Messages API natively: no
// translation, upstream bytes pass through verbatim (§4.3).
type DirectAnthropic struct{}

func (a *DirectAnthropic) EndpointPath() string { return "/v1/messages" }

func (a *DirectAnthropic) TranslateRequest(req *dialect.Request, profile *config.Profile) ([]byte, *toolname.Map, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, nil, fmt.Errorf("adapter: direct_anthropic: marshal request: %w", err)
	}
	return body, toolname.NewMap(), nil
}

func (a *DirectAnthropic) FilterTranslatedBody(body []byte, profile *config.Profile) []byte {
	return filterStripParams(body, profile.StripParams)
}

func (a *DirectAnthropic) ApplyAuth(req *http.Request, profile *config.Profile) {
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("x-api-key", profile.APIKey)
}

func (a *DirectAnthropic) ApplyExtraHeaders(req *http.Request, profile *config.Profile) {}

func (a *DirectAnthropic) Passthrough() bool { return true }

func (a *DirectAnthropic) TranslateResponse(raw []byte, names *toolname.Map) (*dialect.Response, error) {
	var resp dialect.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("adapter: direct_anthropic: unmarshal response: %w", err)
	}
	return &resp, nil
}

func (a *DirectAnthropic) TranslateStream(upstream io.Reader, w io.Writer, model string, names *toolname.Map) error {
	_, err := io.Copy(w, upstream)
	return err
}
