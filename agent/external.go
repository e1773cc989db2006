package agent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/NethermindEth/masp/core"
	"github.com/NethermindEth/masp/logger"
	"github.com/NethermindEth/masp/protocol"
)

// External forwards each decision to a remote endpoint speaking the decision protocol
type External struct {
	endpoint string
	apiKey   string
	client   *http.Client
	timeout  time.Duration
	log      *logger.Logger
}

func newExternal(cfg Config, o options) (*External, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if err := protocol.ValidateEndpoint(endpoint); err != nil {
		return nil, err
	}
	return &External{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   o.httpClient,
		timeout:  o.timeout,
		log:      o.log,
	}, nil
}

// Endpoint returns the remote decision URL.
func (e *External) Endpoint() string {
	return e.endpoint
}

func (e *External) decide(ctx context.Context, a *Agent, dc core.DecisionContext) core.Decision {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	requestID := uuid.NewString()
	req, err := protocol.NewRequest(ctx, e.endpoint, e.apiKey, protocol.NewDecisionRequest(requestID, dc))
	if err != nil {
		return FallbackDecision(a.Name, err.Error())
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.log.Protocol(e.endpoint, "decision request %s failed: %v", requestID, err)
		return FallbackDecision(a.Name, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.log.Protocol(e.endpoint, "decision request %s returned HTTP %d", requestID, resp.StatusCode)
		return FallbackDecision(a.Name, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, protocol.MaxResponseBytes))
	if err != nil {
		return FallbackDecision(a.Name, err.Error())
	}
	d, err := protocol.ParseDecision(body)
	if err != nil {
		e.log.Protocol(e.endpoint, "decision request %s: %v", requestID, err)
		return FallbackDecision(a.Name, "validation failed")
	}
	return d
}
