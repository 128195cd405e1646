package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DeviceCodeResponse normalizes the provider-specific device authorization
// response field names (§4.8.1: "device_auth_id|device_code",
// "verification_uri|verification_url").
type DeviceCodeResponse struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	Interval        int
}

type rawDeviceCodeResponse struct {
	DeviceAuthID      string `json:"device_auth_id"`
	DeviceCode        string `json:"device_code"`
	UserCode          string `json:"user_code"`
	VerificationURI   string `json:"verification_uri"`
	VerificationURL   string `json:"verification_url"`
	Interval          int    `json:"interval"`
}

// RequestDeviceCode POSTs to endpoint with client_id (+ scope, if non-empty)
// and normalizes the response (§4.8.1).
func RequestDeviceCode(ctx context.Context, endpoint, clientID, scope string) (*DeviceCodeResponse, error) {
	form := url.Values{"client_id": {clientID}}
	if scope != "" {
		form.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange: device code request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange: device code request failed: %s", resp.Status)
	}

	var raw rawDeviceCodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("exchange: decode device code response: %w", err)
	}

	out := &DeviceCodeResponse{
		DeviceCode: raw.DeviceCode,
		UserCode:   raw.UserCode,
		Interval:   raw.Interval,
	}
	if out.DeviceCode == "" {
		out.DeviceCode = raw.DeviceAuthID
	}
	out.VerificationURI = raw.VerificationURI
	if out.VerificationURI == "" {
		out.VerificationURI = raw.VerificationURL
	}
	return out, nil
}

// PollGenericDeviceToken implements the standard OAuth device-code poll
// loop (§4.8.1 "Generic OAuth device code"): authorization_pending keeps
// polling, slow_down adds 5s to the interval, expired_token/access_denied
// are terminal.
func PollGenericDeviceToken(ctx context.Context, tokenURL, clientID, deviceCode string, intervalSeconds int) (*TokenResponse, error) {
	interval := time.Duration(intervalSeconds) * time.Second
	deadline := time.Now().Add(15 * time.Minute)

	for {
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("exchange: device code polling timed out after 15 minutes")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}

		form := url.Values{
			"client_id":   {clientID},
			"device_code": {deviceCode},
			"grant_type":  {"urn:ietf:params:oauth:grant-type:device_code"},
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("exchange: device token poll: %w", err)
		}
		raw, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}

		var tokResp struct {
			TokenResponse
			Error string `json:"error"`
		}
		if err := json.Unmarshal(raw, &tokResp); err != nil {
			return nil, fmt.Errorf("exchange: decode device token response: %w", err)
		}

		switch tokResp.Error {
		case "":
			return &tokResp.TokenResponse, nil
		case "authorization_pending":
			continue
		case "slow_down":
			interval += 5 * time.Second
		case "expired_token":
			return nil, fmt.Errorf("exchange: device code expired")
		case "access_denied":
			return nil, fmt.Errorf("exchange: authorization denied by user")
		default:
			return nil, fmt.Errorf("exchange: device token poll error: %s", tokResp.Error)
		}
	}
}

// PollChatGPTDeviceToken implements ChatGPT's device-code poll protocol
// (§4.8.1): 200 with {authorization_code, code_verifier} on approval,
// 403/404 while waiting, else error; gives up after 15 minutes. A
// successful poll still requires the caller to exchange the returned code.
func PollChatGPTDeviceToken(ctx context.Context, pollURL, deviceCode string, intervalSeconds int) (authorizationCode, codeVerifier string, err error) {
	interval := time.Duration(intervalSeconds) * time.Second
	deadline := time.Now().Add(15 * time.Minute)

	for {
		if time.Now().After(deadline) {
			return "", "", fmt.Errorf("exchange: ChatGPT device code polling timed out after 15 minutes")
		}
		select {
		case <-ctx.Done():
			return "", "", ctx.Err()
		case <-time.After(interval):
		}

		form := url.Values{"device_code": {deviceCode}}
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, pollURL, strings.NewReader(form.Encode()))
		if reqErr != nil {
			return "", "", reqErr
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, doErr := httpClient.Do(req)
		if doErr != nil {
			return "", "", fmt.Errorf("exchange: ChatGPT device poll: %w", doErr)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var body struct {
				AuthorizationCode string `json:"authorization_code"`
				CodeVerifier      string `json:"code_verifier"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			if decodeErr != nil {
				return "", "", fmt.Errorf("exchange: decode ChatGPT device poll response: %w", decodeErr)
			}
			return body.AuthorizationCode, body.CodeVerifier, nil
		case http.StatusForbidden, http.StatusNotFound:
			resp.Body.Close()
			continue
		default:
			resp.Body.Close()
			return "", "", fmt.Errorf("exchange: ChatGPT device poll failed: %s", resp.Status)
		}
	}
}
