// Package narrative defines the contract with the external audit narrative
// generator and provides an HTTP client for it. The engine only builds the
// request and passes the report through; it never interprets the text.
package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/chrissnell/welltie/internal/anomaly"
	"go.uber.org/zap"
)

// ErrDisabled is returned when no generator endpoint is configured
var ErrDisabled = errors.New("narrative generator not configured")

// Request describes the anomaly to report on
type Request struct {
	Kind           anomaly.Kind `json:"kind" msgpack:"kind"`
	StartDepth     float64      `json:"startDepth" msgpack:"startDepth"`
	EndDepth       float64      `json:"endDepth" msgpack:"endDepth"`
	AvgDiscordance float64      `json:"avgDiscordance" msgpack:"avgDiscordance"`
}

// RequestFor builds the generator request for an anomaly
func RequestFor(a anomaly.Anomaly) Request {
	return Request{
		Kind:           a.Kind,
		StartDepth:     a.StartDepth,
		EndDepth:       a.EndDepth,
		AvgDiscordance: a.AvgDiscordance,
	}
}

// Report is the free-text audit returned by the generator
type Report struct {
	Nature               string   `json:"nature" msgpack:"nature"`
	PotentialCauses      []string `json:"potentialCauses" msgpack:"potentialCauses"`
	Remediation          string   `json:"remediation" msgpack:"remediation"`
	TechnicalDeduction   string   `json:"technicalDeduction" msgpack:"technicalDeduction"`
	RegulatoryConstraint string   `json:"regulatoryConstraint" msgpack:"regulatoryConstraint"`
	ImpactSummary        string   `json:"impactSummary" msgpack:"impactSummary"`
}

// Generator produces audit reports
type Generator interface {
	Generate(ctx context.Context, req Request) (*Report, error)
}

// HTTPGenerator posts requests as JSON to a generator service
type HTTPGenerator struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *zap.SugaredLogger
}

// NewHTTPGenerator creates an HTTP-backed generator
func NewHTTPGenerator(endpoint, apiKey string, timeout time.Duration, logger *zap.SugaredLogger) *HTTPGenerator {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPGenerator{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

// Generate requests a report for the given anomaly
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Report, error) {
	if g.endpoint == "" {
		return nil, ErrDisabled
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode narrative request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build narrative request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	g.logger.Debugf("requesting narrative for %s anomaly %.2f-%.2f", req.Kind, req.StartDepth, req.EndDepth)
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("narrative request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("narrative generator returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var report Report
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode narrative report: %w", err)
	}
	return &report, nil
}
