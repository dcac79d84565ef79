// Package gemini calls the Google Gemini API for workflow nodes.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/genai"
)

// statusResourceExhausted is the API status reported for quota and rate limits.
const statusResourceExhausted = "RESOURCE_EXHAUSTED"

// DefaultModel is used when neither the client nor the request names a model.
const DefaultModel = "gemini-3-flash-preview"

// Mode selects the shape of the prompt sent to the model.
type Mode string

const (
	ModeTask      Mode = "task"
	ModeRetrieval Mode = "retrieval"
)

// Request is a single model invocation.
type Request struct {
	Task              string
	Context           string
	GroundingEnabled  bool
	SystemInstruction string
	Model             string
	Mode              Mode
}

// Source is a grounding reference attached to a response.
type Source struct {
	Title string
	URI   string
}

// Response is the text returned by the model with its grounding sources.
type Response struct {
	Text    string
	Sources []Source
}

var (
	// ErrEmptyResponse is returned when the model answers with no candidates.
	ErrEmptyResponse = errors.New("gemini returned no candidates")
	// ErrNoCredentials is returned by Invoke until an API key has been set.
	ErrNoCredentials = errors.New("gemini api key is not configured")
)

// QuotaError reports that the API rejected a call for quota or rate limits.
type QuotaError struct {
	Err error
}

func (e *QuotaError) Error() string { return "gemini quota exceeded: " + e.Err.Error() }
func (e *QuotaError) Unwrap() error { return e.Err }
func (e *QuotaError) QuotaExceeded() bool { return true }

// Client wraps a genai client. The API key can be swapped at runtime.
type Client struct {
	mu     sync.RWMutex
	client *genai.Client
	model  string
}

// New creates a client for the Gemini API backend. An empty apiKey yields a
// client that fails every call with ErrNoCredentials until SetAPIKey is called.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if model == "" {
		model = DefaultModel
	}
	c := &Client{model: model}
	if apiKey == "" {
		return c, nil
	}
	if err := c.SetAPIKey(ctx, apiKey); err != nil {
		return nil, err
	}
	return c, nil
}

// SetAPIKey replaces the credentials used for subsequent calls.
func (c *Client) SetAPIKey(ctx context.Context, apiKey string) error {
	if strings.TrimSpace(apiKey) == "" {
		return errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("failed to create gemini client: %w", err)
	}

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
	return nil
}

// Invoke sends req to the model and returns its text and grounding sources.
func (c *Client) Invoke(ctx context.Context, req Request) (*Response, error) {
	c.mu.RLock()
	client := c.client
	c.mu.RUnlock()
	if client == nil {
		return nil, ErrNoCredentials
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	resp, err := client.Models.GenerateContent(ctx, model, buildContents(req), buildConfig(req))
	if err != nil {
		return nil, classifyError(err)
	}
	return parseResponse(resp)
}

func buildContents(req Request) []*genai.Content {
	var prompt string
	switch req.Mode {
	case ModeRetrieval:
		prompt = "Search retrieval sequence: " + req.Task
	default:
		prompt = "Agent Task: " + req.Task
		if req.Context != "" {
			prompt += "\n\nContext: " + req.Context
		}
	}
	return []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
}

func buildConfig(req Request) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(req.SystemInstruction)},
		}
	}
	if req.GroundingEnabled {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}
	return config
}

func parseResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}
	candidate := resp.Candidates[0]

	out := &Response{}
	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				out.Text += part.Text
			}
		}
	}

	if gm := candidate.GroundingMetadata; gm != nil {
		for _, chunk := range gm.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			src := Source{Title: chunk.Web.Title, URI: chunk.Web.URI}
			if src.Title == "" {
				src.Title = "Reference"
			}
			if src.URI == "" {
				src.URI = "#"
			}
			out.Sources = append(out.Sources, src)
		}
	}
	return out, nil
}

// classifyError marks quota failures: HTTP 429 or status RESOURCE_EXHAUSTED.
// Errors that are not a genai.APIError fall back to matching the status text.
func classifyError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == statusResourceExhausted {
			return &QuotaError{Err: err}
		}
		return fmt.Errorf("gemini api error: %w", err)
	}
	if strings.Contains(err.Error(), statusResourceExhausted) {
		return &QuotaError{Err: err}
	}
	return fmt.Errorf("gemini api error: %w", err)
}
