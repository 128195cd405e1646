package exchange

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func TestRunLoopbackServerReceivesCode(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port, results, shutdown, err := RunLoopbackServer(ctx)
	if err != nil {
		t.Fatalf("RunLoopbackServer: %v", err)
	}
	defer shutdown()

	go func() {
		time.Sleep(20 * time.Millisecond)
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/auth/callback?code=abc123&state=xyz", port))
		if err == nil {
			resp.Body.Close()
		}
	}()

	code, err := WaitForCode(ctx, results)
	if err != nil {
		t.Fatalf("WaitForCode: %v", err)
	}
	if code != "abc123" {
		t.Errorf("code = %q, want abc123", code)
	}
}

func TestRunLoopbackServerReceivesError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port, results, shutdown, err := RunLoopbackServer(ctx)
	if err != nil {
		t.Fatalf("RunLoopbackServer: %v", err)
	}
	defer shutdown()

	go func() {
		time.Sleep(20 * time.Millisecond)
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/auth/callback?error=access_denied&error_description=nope", port))
		if err == nil {
			resp.Body.Close()
		}
	}()

	_, err = WaitForCode(ctx, results)
	if err == nil {
		t.Fatal("expected error from callback error parameter")
	}
}
