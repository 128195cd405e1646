// Package server wires the Dispatcher into the §6 HTTP surface: a small
// gin engine exposing health, model listing, and the proxy endpoint.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/claudex-proxy/claudex/internal/apperrors"
	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/dispatcher"
	"github.com/claudex-proxy/claudex/internal/logging"
)

type serverOptionConfig struct {
	extraMiddleware    []gin.HandlerFunc
	engineConfigurator func(*gin.Engine)
}

// Option customizes Server construction.
type Option func(*serverOptionConfig)

// WithMiddleware appends additional gin middleware during construction.
func WithMiddleware(mw ...gin.HandlerFunc) Option {
	return func(cfg *serverOptionConfig) {
		cfg.extraMiddleware = append(cfg.extraMiddleware, mw...)
	}
}

// WithEngineConfigurator lets callers mutate the gin engine before routes
// are registered (used by cmd/claudexd to enable gin's debug logger).
func WithEngineConfigurator(fn func(*gin.Engine)) Option {
	return func(cfg *serverOptionConfig) {
		cfg.engineConfigurator = fn
	}
}

// Server is the §6 HTTP surface over one Dispatcher and profile set.
type Server struct {
	engine     *gin.Engine
	dispatcher *dispatcher.Dispatcher
	profiles   *config.ProfileSet
}

// New builds a Server bound to dispatcher and profiles, registering the
// health, model-listing, and proxy routes.
func New(d *dispatcher.Dispatcher, profiles *config.ProfileSet, opts ...Option) *Server {
	optionState := &serverOptionConfig{}
	for _, opt := range opts {
		opt(optionState)
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	if optionState.engineConfigurator != nil {
		optionState.engineConfigurator(engine)
	}
	engine.Use(logging.GinRecovery(), logging.GinLogrusLogger())
	for _, mw := range optionState.extraMiddleware {
		engine.Use(mw)
	}

	s := &Server{engine: engine, dispatcher: d, profiles: profiles}
	s.routes()
	return s
}

// Engine exposes the underlying gin engine, primarily for tests that want
// to drive routes with httptest without starting a real listener.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Run starts the HTTP server, binding to addr ("127.0.0.1:<port>" by
// default per §6).
func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/v1/models", s.handleModels)
	s.engine.POST("/proxy/:profile/v1/messages", s.handleProxy)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// modelEntry is one entry of the §6 GET /v1/models listing.
type modelEntry struct {
	ID              string `json:"id"`
	Object          string `json:"object"`
	Created         int64  `json:"created"`
	OwnedBy         string `json:"owned_by"`
	ClaudexProfile  string `json:"x-claudex-profile"`
	ClaudexProvider string `json:"x-claudex-provider"`
}

// providerLabel maps a provider_type to the §6 "x-claudex-provider" tag.
func providerLabel(pt config.ProviderType) string {
	switch pt {
	case config.ProviderDirectAnthropic:
		return "anthropic"
	case config.ProviderOpenAICompatible:
		return "openai-compatible"
	case config.ProviderOpenAIResponses:
		return "openai-responses"
	default:
		return string(pt)
	}
}

func (s *Server) handleModels(c *gin.Context) {
	data := make([]modelEntry, 0, len(s.profiles.Enabled()))
	for _, p := range s.profiles.Enabled() {
		data = append(data, modelEntry{
			ID:              p.DefaultModel,
			Object:          "model",
			Created:         0,
			OwnedBy:         p.Name,
			ClaudexProfile:  p.Name,
			ClaudexProvider: providerLabel(p.ProviderType),
		})
	}
	c.JSON(http.StatusOK, gin.H{"object": "list", "data": data})
}

func (s *Server) handleProxy(c *gin.Context) {
	profileName := c.Param("profile")
	rawBody, err := c.GetRawData()
	if err != nil {
		writeAppError(c, apperrors.BadRequest("failed to read request body", err))
		return
	}

	if err := s.dispatcher.Handle(c.Request.Context(), profileName, c.Request.Header, rawBody, c.Writer); err != nil {
		writeAppError(c, err)
		return
	}
}

// writeAppError translates a dispatcher error into the §7 HTTP status/body
// mapping. It is safe to call even if headers were already flushed by a
// partially-streamed response; gin/ResponseWriter silently ignores a
// second WriteHeader in that case.
func writeAppError(c *gin.Context, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "internal", "message": err.Error()}})
		return
	}
	body := gin.H{"code": string(appErr.Kind), "message": appErr.Message}
	if len(appErr.UpstreamBody) > 0 {
		body["upstream_body"] = string(appErr.UpstreamBody)
	}
	c.JSON(appErr.HTTPStatusCode, gin.H{"error": body})
}
