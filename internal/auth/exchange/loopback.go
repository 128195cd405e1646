package exchange

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BuildChatGPTAuthorizeURL builds the §4.8.1 authorize URL. Field order and
// encoding are bit-exact per §6: space is encoded as %20, never +.
func BuildChatGPTAuthorizeURL(port int, pkce *PKCEPair, state string) string {
	redirectURI := fmt.Sprintf("http://localhost:%d/auth/callback", port)

	fields := []struct{ key, value string }{
		{"response_type", "code"},
		{"client_id", ChatGPTClientID},
		{"redirect_uri", redirectURI},
		{"scope", ChatGPTScope},
		{"code_challenge", pkce.Challenge},
		{"code_challenge_method", "S256"},
		{"id_token_add_organizations", "true"},
		{"codex_cli_simplified_flow", "true"},
		{"state", state},
	}

	var b strings.Builder
	b.WriteString(ChatGPTAuthorizeURL)
	b.WriteByte('?')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(encodeSpaceAsPercent20(f.value))
	}
	return b.String()
}

// encodeSpaceAsPercent20 percent-encodes v the way url.QueryEscape does,
// except spaces become %20 instead of +.
func encodeSpaceAsPercent20(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

const successHTML = `<!DOCTYPE html>
<html>
<head><title>claudex</title></head>
<body style="font-family: system-ui; text-align: center; padding: 50px;">
<h1>Authentication successful</h1>
<p>You can close this window and return to the terminal.</p>
</body>
</html>`

// LoopbackResult is the authorization code (or error) delivered to the
// /auth/callback handler.
type LoopbackResult struct {
	Code  string
	State string
	Err   error
}

// RunLoopbackServer binds an ephemeral loopback port and serves
// /auth/callback (§4.8.1). It returns without waiting: the bound port, a
// channel that receives at most one result, and a shutdown func. The
// 5-minute wait for the ?code=... callback is done by WaitForCode.
func RunLoopbackServer(ctx context.Context) (port int, results <-chan LoopbackResult, shutdown func(), err error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, nil, nil, fmt.Errorf("exchange: bind loopback listener: %w", err)
	}
	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		listener.Close()
		return 0, nil, nil, fmt.Errorf("exchange: unexpected listener address type")
	}

	ch := make(chan LoopbackResult, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			http.Error(w, q.Get("error_description"), http.StatusBadRequest)
			select {
			case ch <- LoopbackResult{Err: fmt.Errorf("exchange: authorize error: %s", errMsg)}:
			default:
			}
			return
		}
		code := q.Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(successHTML))
		select {
		case ch <- LoopbackResult{Code: code, State: q.Get("state")}:
		default:
		}
	})

	server := &http.Server{Handler: mux}
	go server.Serve(listener)

	shutdown = func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}
	return addr.Port, ch, shutdown, nil
}

// WaitForCode blocks until results yields a LoopbackResult, ctx is
// canceled, or 5 minutes elapse (§4.8.1).
func WaitForCode(ctx context.Context, results <-chan LoopbackResult) (string, error) {
	select {
	case res := <-results:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Code, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(5 * time.Minute):
		return "", fmt.Errorf("exchange: timed out waiting for OAuth callback after 5 minutes")
	}
}
