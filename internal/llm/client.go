// Package llm talks to Google Gemini to analyze medical images.
package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kamilpajak/radiolens/internal/logger"
	"github.com/kamilpajak/radiolens/pkg/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
)

// Options configures a Client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string

	// Strict enables type and range checks on the reply.
	Strict bool
	// RateLimitPerMinute throttles outbound calls; 0 disables throttling.
	RateLimitPerMinute int
	// Timeout bounds a single call; 0 leaves it to the transport.
	Timeout time.Duration

	HTTPClient *http.Client
}

// Client handles Gemini API calls for image analysis. It keeps no state
// between calls apart from the optional rate limiter.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	strict     bool
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewClient creates a Gemini client. It fails with ErrMissingAPIKey when no
// key is configured, so callers can stop before serving anything.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	c := &Client{
		apiKey:     opts.APIKey,
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		model:      opts.Model,
		strict:     opts.Strict,
		timeout:    opts.Timeout,
		httpClient: opts.HTTPClient,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if opts.RateLimitPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(opts.RateLimitPerMinute)), 1)
	}
	return c, nil
}

// Model returns the model name.
func (c *Client) Model() string {
	return c.model
}

// Analyze sends one image to the model and returns the parsed result. Every
// failure is reported as *AnalysisError; nothing is retried.
func (c *Client) Analyze(ctx context.Context, image []byte, mimeType string) (*models.AnalysisResult, error) {
	start := time.Now()
	result, err := c.analyze(ctx, image, mimeType)
	fields := logrus.Fields{
		"model":       c.model,
		"mime_type":   mimeType,
		"image_bytes": len(image),
		"duration_ms": time.Since(start).Milliseconds(),
	}
	if err != nil {
		logger.WithError(err).WithFields(fields).Error("Gemini API call failed")
		return nil, &AnalysisError{Cause: err}
	}
	logger.WithFields(fields).WithField("diagnoses", len(result.Diagnoses)).Info("Analysis completed")
	return result, nil
}

func (c *Client) analyze(ctx context.Context, image []byte, mimeType string) (*models.AnalysisResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.generate(ctx, buildRequest(image, mimeType))
	if err != nil {
		return nil, err
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}
	return ParseResult(text, c.strict)
}

func buildRequest(image []byte, mimeType string) GenerateRequest {
	return GenerateRequest{
		Contents: []Content{{
			Role: "user",
			Parts: []Part{
				{InlineData: &Blob{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
				{Text: analysisPrompt},
			},
		}},
		GenerationConfig: &GenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   AnalysisSchema(),
		},
	}
}

func (c *Client) generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini API error: %s - %s", resp.Status, string(body))
	}

	var result GenerateResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if result.UsageMetadata != nil {
		logger.WithFields(logrus.Fields{
			"prompt_tokens":     result.UsageMetadata.PromptTokenCount,
			"candidates_tokens": result.UsageMetadata.CandidatesTokenCount,
			"total_tokens":      result.UsageMetadata.TotalTokenCount,
		}).Debug("Gemini usage")
	}

	return &result, nil
}

// responseText joins the text parts of the first candidate.
func responseText(resp *GenerateResponse) (string, error) {
	var first *Candidate
	if len(resp.Candidates) > 0 {
		first = &resp.Candidates[0]
	}
	if isEmptyResponse(first) {
		detail := describeEmptyResponse(first)
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			detail += ", blockReason=" + resp.PromptFeedback.BlockReason
		}
		return "", fmt.Errorf("%w (%s)", errEmptyResponse, detail)
	}

	var b strings.Builder
	for _, p := range first.Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String(), nil
}

// isEmptyResponse reports whether a candidate carries no usable text.
func isEmptyResponse(c *Candidate) bool {
	if c == nil {
		return true
	}
	for _, p := range c.Content.Parts {
		if strings.TrimSpace(p.Text) != "" {
			return false
		}
	}
	return true
}

// describeEmptyResponse explains an empty candidate for logs.
func describeEmptyResponse(c *Candidate) string {
	if c == nil {
		return "no candidate"
	}
	parts := []string{"finishReason=" + c.FinishReason}
	for _, r := range c.SafetyRatings {
		if r.Blocked {
			parts = append(parts, fmt.Sprintf("%s=%s (blocked)", r.Category, r.Probability))
		}
	}
	return strings.Join(parts, ", ")
}
