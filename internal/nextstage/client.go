// Package nextstage triggers the stage that follows this one.
package nextstage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/savaki/stage-pipeline/internal/environment"
	"github.com/savaki/stage-pipeline/internal/models"
	"github.com/savaki/stage-pipeline/internal/pipeline"
)

// Client calls the next stage's /run endpoint.
type Client struct {
	endpoint   string
	origin     string
	httpClient *http.Client
}

// New returns a client for the next stage, reached at
// https://api.<service>.<alias>.<domain>/run where alias depends on env.
func New(service, serviceAlias, domain string, env environment.Environment, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	host := fmt.Sprintf("%s.%s.%s", service, environment.Alias(serviceAlias, env), domain)
	return &Client{
		endpoint:   "https://api." + host + "/run",
		origin:     "https://" + host,
		httpClient: httpClient,
	}
}

// WithEndpoint overrides the endpoint, keeping the origin.
func (c *Client) WithEndpoint(endpoint string) *Client {
	c.endpoint = endpoint
	return c
}

// Handoff returns the call that passes key to the next stage.
func (c *Client) Handoff(key string) pipeline.Handoff {
	return pipeline.Handoff{
		Endpoint: c.endpoint,
		Origin:   c.origin,
		Key:      key,
	}
}

// Run triggers the next stage with key. The status code is returned for any
// response; err is set only when no response was received.
func (c *Client) Run(ctx context.Context, key string) (int, error) {
	return c.Send(ctx, c.Handoff(key))
}

// Send issues h once. It does not retry.
func (c *Client) Send(ctx context.Context, h pipeline.Handoff) (int, error) {
	logger := zerolog.Ctx(ctx).With().
		Str("endpoint", h.Endpoint).
		Str("key", h.Key).
		Logger()

	body, err := json.Marshal(models.TriggerRequest{InputFile: h.Key})
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", h.Origin)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to run next stage: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode != http.StatusOK {
		logger.Error().
			Int("status_code", resp.StatusCode).
			Str("response", string(data)).
			Msg("error running next stage")
		return resp.StatusCode, nil
	}

	logger.Info().Int("status_code", resp.StatusCode).Msg("next stage ran successfully")
	return resp.StatusCode, nil
}
