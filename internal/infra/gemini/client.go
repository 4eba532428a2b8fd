// Package gemini calls the Google Gemini generateContent REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/moneyflow/moneyflow-go/internal/domain"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("gemini")

const (
	temperature     = 0.7
	maxOutputTokens = 2048
)

// Client is the HTTP client for the Gemini API.
// Calls go through a circuit breaker but are never retried: a failed
// extraction call maps straight to a fixed user-facing fallback, and a
// duplicate completion would risk duplicate transactions downstream.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	cb         *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

// NewClient creates a Gemini client.
func NewClient(httpClient *http.Client, baseURL, apiKey, model string, cb *gobreaker.CircuitBreaker, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		cb:         cb,
		logger:     logger,
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Complete sends the prompt and returns the first candidate's text.
func (c *Client) Complete(ctx context.Context, prompt string) (*domain.Completion, error) {
	ctx, span := tracer.Start(ctx, "Gemini.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("gemini.model", c.model))

	result, err := c.cb.Execute(func() (any, error) {
		return c.generateContent(ctx, prompt)
	})
	if err != nil {
		var quota *domain.ErrQuotaExceeded
		var upstreamAuth *domain.ErrUpstreamAuth
		if errors.As(err, &quota) || errors.As(err, &upstreamAuth) {
			return nil, err
		}
		return nil, &domain.ErrExternalService{Service: "gemini", Err: err}
	}

	return result.(*domain.Completion), nil
}

func (c *Client) generateContent(ctx context.Context, prompt string) (*domain.Completion, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gemini: request failed", zap.Error(err))
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		c.logger.Warn("gemini: quota exceeded", zap.Int("status", resp.StatusCode))
		return nil, &domain.ErrQuotaExceeded{Service: "gemini"}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Error("gemini: authentication rejected", zap.Int("status", resp.StatusCode))
		return nil, &domain.ErrUpstreamAuth{Service: "gemini"}
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("gemini: non-200 response",
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(respBody)),
		)
		return nil, fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned no candidates")
	}

	c.logger.Debug("gemini: completion OK",
		zap.Int("prompt_tokens", out.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", out.UsageMetadata.CandidatesTokenCount),
	)

	return &domain.Completion{
		Text: out.Candidates[0].Content.Parts[0].Text,
		Usage: domain.TokenUsage{
			PromptTokens:     out.UsageMetadata.PromptTokenCount,
			CompletionTokens: out.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      out.UsageMetadata.TotalTokenCount,
		},
	}, nil
}
