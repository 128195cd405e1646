// Package dispatcher implements the Dispatcher contract (§4.4): parse,
// resolve, look up, apply context middleware, forward through a
// circuit-breaker-guarded adapter, iterate backups on failure, and record
// metrics.
package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/claudex-proxy/claudex/internal/adapter"
	"github.com/claudex-proxy/claudex/internal/apperrors"
	"github.com/claudex-proxy/claudex/internal/auth/manager"
	"github.com/claudex-proxy/claudex/internal/breaker"
	"github.com/claudex-proxy/claudex/internal/classifier"
	"github.com/claudex-proxy/claudex/internal/config"
	"github.com/claudex-proxy/claudex/internal/contextmw"
	"github.com/claudex-proxy/claudex/internal/dialect"
	"github.com/claudex-proxy/claudex/internal/metrics"
)

// Dispatcher wires every subsystem named in §4.4 into the single
// request-handling entry point.
type Dispatcher struct {
	profiles   *config.ProfileSet
	classifier *classifier.Classifier
	middleware *contextmw.Middleware
	crossStore *contextmw.CrossProfileStore
	breakers   *breaker.Registry
	metrics    *metrics.Registry
	tokens     *manager.Manager
	httpClient *http.Client
}

// New returns a Dispatcher bound to its collaborators. tokens may be nil
// when no profile in profiles uses OAuth.
func New(
	profiles *config.ProfileSet,
	intentClassifier *classifier.Classifier,
	middleware *contextmw.Middleware,
	crossStore *contextmw.CrossProfileStore,
	breakers *breaker.Registry,
	metricsRegistry *metrics.Registry,
	tokens *manager.Manager,
) *Dispatcher {
	return &Dispatcher{
		profiles:   profiles,
		classifier: intentClassifier,
		middleware: middleware,
		crossStore: crossStore,
		breakers:   breakers,
		metrics:    metricsRegistry,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Handle runs the full §4.4 pipeline and writes the final HTTP response to
// w. profileName is the path segment from the request ("auto" or a
// declared profile name); headers are the incoming request's headers,
// currently unused beyond future extension but threaded through for
// parity with the spec's contract.
func (d *Dispatcher) Handle(ctx context.Context, profileName string, headers http.Header, rawBody []byte, w http.ResponseWriter) error {
	var body dialect.Request
	if err := json.Unmarshal(rawBody, &body); err != nil {
		return apperrors.BadRequest("invalid request body", err)
	}

	resolvedName := profileName
	if resolvedName == "auto" {
		resolvedName = d.classifier.ClassifyIntent(ctx, &body)
	}

	profile := d.profiles.Get(resolvedName)
	if profile == nil {
		return apperrors.ProfileNotFound(resolvedName)
	}
	if !profile.Enabled {
		return apperrors.ProfileDisabled(resolvedName)
	}

	backups := d.profiles.BackupsFor(resolvedName)

	if err := d.middleware.Apply(ctx, resolvedName, &body); err != nil {
		return apperrors.Translation("context middleware failed", err)
	}

	isStream := body.IsStream()

	candidates := append([]*config.Profile{profile}, backups...)

	var lastErr error
	for _, candidate := range candidates {
		start := time.Now()
		resp, err := d.tryWithBreaker(ctx, candidate, &body, isStream, w)
		elapsed := time.Since(start)

		d.metrics.Get(candidate.Name).Record(err == nil, elapsed, 0)

		if err == nil {
			if resp != nil {
				d.crossStore.StoreResult(candidate.Name, resp)
			}
			return nil
		}

		lastErr = err
		appErr, ok := apperrors.As(err)
		if !ok || !appErr.Retryable() {
			return err
		}
		log.WithError(err).WithField("profile", candidate.Name).Warn("dispatcher: profile attempt failed, trying next backup")
	}

	return lastErr
}

// tryWithBreaker guards one profile attempt with its circuit breaker
// (§4.4 try_with_breaker, §4.6). For passthrough and streaming adapters,
// the response bytes are already written to w by the time this returns,
// so the returned *dialect.Response is nil in those cases and nothing is
// stored in cross-profile context for that attempt.
func (d *Dispatcher) tryWithBreaker(ctx context.Context, profile *config.Profile, body *dialect.Request, isStream bool, w http.ResponseWriter) (*dialect.Response, error) {
	b := d.breakers.Get(profile.Name)
	if !b.CanAttempt() {
		return nil, apperrors.CircuitBreakerOpen(profile.Name)
	}

	resp, err := d.tryForward(ctx, profile, body, isStream, w, true)
	if err != nil {
		b.RecordFailure()
		return nil, err
	}
	b.RecordSuccess()
	return resp, nil
}

// tryForward is adapter-driven (§4.4 try_forward): translate, filter,
// build the upstream request, apply auth and headers, send it, and
// translate the response back. allowRetry permits a single
// invalidate_and_retry on a 401 from an OAuth profile (§7, Open Question
// decision 1); the retried call passes allowRetry=false so at most one
// refresh attempt is ever made.
func (d *Dispatcher) tryForward(ctx context.Context, profile *config.Profile, body *dialect.Request, isStream bool, w http.ResponseWriter, allowRetry bool) (*dialect.Response, error) {
	// Clone before resolveAuth: profile is the shared *config.Profile held
	// by the ProfileSet, and resolveAuth writes api_key/extra_env onto it
	// for OAuth profiles. Mutating the shared record races every other
	// concurrent request against the same profile (§5).
	profile = profile.Clone()

	ad, err := adapter.For(profile)
	if err != nil {
		return nil, apperrors.Translation(err.Error(), err)
	}

	if err := d.resolveAuth(ctx, profile); err != nil {
		return nil, err
	}

	translated, names, err := ad.TranslateRequest(body, profile)
	if err != nil {
		return nil, apperrors.Translation("translate_request failed", err)
	}
	translated = ad.FilterTranslatedBody(translated, profile)

	url := profile.BaseURL + ad.EndpointPath()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(translated))
	if err != nil {
		return nil, apperrors.Request("build upstream request failed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	ad.ApplyAuth(httpReq, profile)
	ad.ApplyExtraHeaders(httpReq, profile)
	for k, v := range profile.CustomHeaders {
		httpReq.Header.Set(k, v)
	}

	upstreamResp, err := d.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperrors.UpstreamErr(0, nil, err)
	}
	defer upstreamResp.Body.Close()

	if allowRetry && upstreamResp.StatusCode == http.StatusUnauthorized && profile.AuthType == config.AuthOAuth && d.tokens != nil {
		upstreamResp.Body.Close()
		if _, err := d.tokens.InvalidateAndRetry(ctx, profile.Name); err != nil {
			return nil, apperrors.OAuth(fmt.Sprintf("token refresh failed for profile %q after 401", profile.Name), err)
		}
		return d.tryForward(ctx, profile, body, isStream, w, false)
	}

	if ad.Passthrough() {
		w.WriteHeader(upstreamResp.StatusCode)
		if _, err := io.Copy(w, upstreamResp.Body); err != nil {
			return nil, apperrors.UpstreamErr(upstreamResp.StatusCode, nil, err)
		}
		return nil, nil
	}

	if upstreamResp.StatusCode < 200 || upstreamResp.StatusCode >= 300 {
		raw, _ := io.ReadAll(upstreamResp.Body)
		return nil, apperrors.UpstreamErr(upstreamResp.StatusCode, raw, nil)
	}

	if isStream {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		if err := ad.TranslateStream(upstreamResp.Body, w, profile.DefaultModel, names); err != nil {
			return nil, apperrors.UpstreamErr(upstreamResp.StatusCode, nil, err)
		}
		return nil, nil
	}

	raw, err := io.ReadAll(upstreamResp.Body)
	if err != nil {
		return nil, apperrors.UpstreamErr(upstreamResp.StatusCode, nil, err)
	}
	translatedResp, err := ad.TranslateResponse(raw, names)
	if err != nil {
		return nil, apperrors.Translation("translate_response failed", err)
	}
	fillSyntheticFields(translatedResp, profile)

	out, err := json.Marshal(translatedResp)
	if err != nil {
		return nil, apperrors.Translation("marshal response failed", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out); err != nil {
		return nil, apperrors.UpstreamErr(http.StatusOK, nil, err)
	}
	return translatedResp, nil
}

// resolveAuth loads and applies an OAuth token to profile in place, when
// the profile is OAuth-authenticated. API-key profiles are left untouched.
// Callers must pass a profile they own (see tryForward's Clone call), never
// the shared *config.Profile held by the ProfileSet.
func (d *Dispatcher) resolveAuth(ctx context.Context, profile *config.Profile) error {
	if profile.AuthType != config.AuthOAuth {
		return nil
	}
	if d.tokens == nil {
		return apperrors.OAuth(fmt.Sprintf("profile %q requires oauth but no token manager is configured", profile.Name), nil)
	}
	tok, err := d.tokens.GetToken(ctx, profile.Name)
	if err != nil {
		return apperrors.OAuth(fmt.Sprintf("failed to obtain token for profile %q", profile.Name), err)
	}
	manager.ApplyTokenToProfile(profile, tok)
	return nil
}

// fillSyntheticFields preserves Open Question decision 3: when upstream
// omits id/model, insert a synthetic id and the profile's default model
// rather than leaving them empty.
func fillSyntheticFields(resp *dialect.Response, profile *config.Profile) {
	if resp.ID == "" {
		resp.ID = "msg_" + uuid.NewString()
	}
	if resp.Model == "" {
		resp.Model = profile.DefaultModel
	}
}
