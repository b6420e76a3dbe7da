package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pixload/internal/payload"
)

// GenerateRequest is the gateway's generation request body.
type GenerateRequest struct {
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Backend        string `json:"backend,omitempty"`
}

// GeneratedImage is one entry of a generation response.
type GeneratedImage struct {
	B64JSON string `json:"b64_json,omitempty"`
	URL     string `json:"url,omitempty"`
}

// GenerateResponse is the gateway's generation response body.
type GenerateResponse struct {
	Images []GeneratedImage `json:"images"`
	Model  string           `json:"model,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// BackendInfo is one entry of the gateway's backend inventory.
type BackendInfo struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Enabled bool   `json:"enabled"`
}

// Outcome records one driven iteration. Exactly one Outcome exists per
// issued request; it is immutable after creation.
type Outcome struct {
	StartedAt     time.Time
	Duration      time.Duration
	Status        int
	Success       bool
	FailureReason string
}

// Driver issues generation requests and liveness probes against one target.
type Driver struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
	debug   bool
}

func New(baseURL, apiKey string, timeout time.Duration, debug bool, logger *zap.Logger) *Driver {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Driver{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
		logger: logger,
		debug:  debug,
	}
}

// Generate drives one iteration. It never returns an error: every failure
// mode (transport error, timeout, bad status, malformed or empty body) is
// folded into the Outcome, and the elapsed wall clock is recorded either way.
func (d *Driver) Generate(ctx context.Context, p payload.Payload) Outcome {
	out := Outcome{StartedAt: time.Now()}

	body, err := json.Marshal(GenerateRequest{
		Prompt:         p.Prompt,
		N:              1,
		Size:           p.Size,
		ResponseFormat: "b64_json",
		Backend:        p.Backend,
	})
	if err != nil {
		out.Duration = time.Since(out.StartedAt)
		out.FailureReason = "encode request: " + err.Error()
		return out
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		d.baseURL+"/v1/images/generations", bytes.NewReader(body))
	if err != nil {
		out.Duration = time.Since(out.StartedAt)
		out.FailureReason = "build request: " + err.Error()
		return out
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	out.Duration = time.Since(out.StartedAt)

	if err != nil {
		out.FailureReason = err.Error()
		d.logFailure(p, out)
		return out
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	out.Status = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		out.FailureReason = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		d.logFailure(p, out)
		return out
	}

	// Fail closed: a 200 only counts once the body proves at least one
	// generated image.
	var gen GenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		out.FailureReason = "decode response: " + err.Error()
		d.logFailure(p, out)
		return out
	}
	if len(gen.Images) == 0 {
		out.FailureReason = "response contained no images"
		d.logFailure(p, out)
		return out
	}

	out.Success = true
	return out
}

// logFailure emits a diagnostic line for one failed iteration. Gated by the
// debug flag and strictly side-effect free with respect to metrics.
func (d *Driver) logFailure(p payload.Payload, out Outcome) {
	if !d.debug {
		return
	}
	d.logger.Debug("request failed",
		zap.String("prompt", p.Prompt),
		zap.String("size", p.Size),
		zap.String("backend", p.Backend),
		zap.Int("status", out.Status),
		zap.Duration("duration", out.Duration),
		zap.String("reason", out.FailureReason),
	)
}

// CheckHealth probes the liveness endpoint. "healthy" and "degraded" are
// acceptable; anything else, including transport errors and unknown status
// strings, is an error.
func (d *Driver) CheckHealth(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("health probe: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health probe: unexpected status %d", resp.StatusCode)
	}

	var h healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return fmt.Errorf("health probe: decode: %w", err)
	}
	switch h.Status {
	case "healthy", "degraded":
		return nil
	default:
		return fmt.Errorf("health probe: target reports %q", h.Status)
	}
}

// ListBackends fetches the gateway's backend inventory.
func (d *Driver) ListBackends(ctx context.Context) ([]BackendInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/v1/backends", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list backends: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list backends: unexpected status %d", resp.StatusCode)
	}

	var backends []BackendInfo
	if err := json.NewDecoder(resp.Body).Decode(&backends); err != nil {
		return nil, fmt.Errorf("list backends: decode: %w", err)
	}
	return backends, nil
}
