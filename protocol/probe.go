package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultProbeTimeout    = 6 * time.Second
	DefaultDecisionTimeout = 15 * time.Second

	// MaxResponseBytes bounds how much of a remote reply is read.
	MaxResponseBytes = 1 << 20
)

// ErrInvalidEndpoint is returned for endpoint URLs that are not absolute http(s) URLs.
var ErrInvalidEndpoint = errors.New("invalid endpoint")

// ValidateEndpoint checks that raw is an absolute http or https URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme must be http or https", ErrInvalidEndpoint)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidEndpoint)
	}
	return nil
}

// NewRequest builds a protocol POST carrying the version header and optional bearer auth.
func NewRequest(ctx context.Context, endpoint, apiKey string, body any) (*http.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set(VersionHeader, Version)
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	return req, nil
}

// Prober performs the capability handshake against remote endpoints
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// NewProber returns a prober using client, or http.DefaultClient when nil.
func NewProber(client *http.Client, timeout time.Duration) *Prober {
	if client == nil {
		client = http.DefaultClient
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{client: client, timeout: timeout}
}

// Probe sends a capabilities probe to endpoint. Failures are reported in the
// result rather than as an error.
func (p *Prober) Probe(ctx context.Context, endpoint, apiKey string) ProbeResult {
	if err := ValidateEndpoint(endpoint); err != nil {
		return ProbeResult{Reason: err.Error()}
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := NewRequest(ctx, endpoint, apiKey, ProbeRequest{
		ProtocolVersion: Version,
		Type:            TypeCapabilityProbe,
		Ping:            true,
	})
	if err != nil {
		return ProbeResult{Reason: err.Error()}
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return ProbeResult{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	// A non-JSON body on a 2xx is still a usable endpoint.
	details := map[string]any{}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes))
	if err := json.Unmarshal(raw, &details); err != nil || details == nil {
		details = map[string]any{}
	}

	if list, ok := details["supported_protocols"].([]any); ok {
		supported := false
		for _, v := range list {
			if s, ok := v.(string); ok && s == Version {
				supported = true
				break
			}
		}
		if !supported {
			return ProbeResult{Reason: "Endpoint does not advertise MASP protocol compatibility"}
		}
	}

	return ProbeResult{OK: true, Details: details}
}
