package apperrors

import (
	"errors"
	"net/http"
	"testing"
)

func TestConstructorsMapStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantStatus int
		wantKind   Kind
		wantRetry  bool
	}{
		{"profile not found", ProfileNotFound("acme"), http.StatusNotFound, KindProfileNotFound, false},
		{"profile disabled", ProfileDisabled("acme"), http.StatusServiceUnavailable, KindProfileDisabled, false},
		{"breaker open", CircuitBreakerOpen("acme"), http.StatusServiceUnavailable, KindCircuitBreakerOpen, true},
		{"upstream error with status", UpstreamErr(503, []byte("oops"), nil), 503, KindUpstreamError, true},
		{"upstream error defaults to 502", UpstreamErr(0, nil, nil), http.StatusBadGateway, KindUpstreamError, true},
		{"translation", Translation("bad shape", nil), http.StatusInternalServerError, KindTranslation, false},
		{"oauth", OAuth("expired", nil), http.StatusUnauthorized, KindOAuthError, false},
		{"request", Request("dial failed", nil), http.StatusBadGateway, KindRequest, true},
		{"bad request", BadRequest("invalid json", nil), http.StatusBadRequest, KindBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", tt.err.HTTPStatusCode, tt.wantStatus)
			}
			if tt.err.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", tt.err.Kind, tt.wantKind)
			}
			if tt.err.Retryable() != tt.wantRetry {
				t.Errorf("retryable = %v, want %v", tt.err.Retryable(), tt.wantRetry)
			}
		})
	}
}

func TestAppErrorWrapsUnderlying(t *testing.T) {
	base := errors.New("boom")
	wrapped := Translation("failed to translate", base)
	if !errors.Is(wrapped, base) {
		t.Fatalf("expected errors.Is to find wrapped base error")
	}
	if wrapped.Error() == "" {
		t.Fatalf("expected non-empty error message")
	}
}

func TestAsExtractsAppError(t *testing.T) {
	wrapped := BadRequest("nope", nil)
	var generic error = wrapped
	got, ok := As(generic)
	if !ok || got.Kind != KindBadRequest {
		t.Fatalf("expected As to extract AppError, got %v ok=%v", got, ok)
	}
}
