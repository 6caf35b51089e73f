package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"
)

// ErrNoCompletion is returned when the generate response lacks the
// completion field. Callers must not treat it as an empty summary.
var ErrNoCompletion = errors.New("ollama: response missing completion text")

// GenerationParams enumerates the recognized generation controls. The request
// builder composes exactly these with the prompt; there is no pass-through of
// unrecognized parameters.
type GenerationParams struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Stop        []string
}

// DefaultGenerationParams is the reference configuration.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Model:       "llama3.1:8b",
		Temperature: 0.3,
		MaxTokens:   256,
	}
}

// GenerateClient calls Ollama's generate API as an opaque
// prompt-to-completion service.
type GenerateClient struct {
	baseURL string
	params  GenerationParams
	client  *http.Client
	limiter *rate.Limiter
}

// NewGenerateClient creates a completion client. A zero-value params uses
// DefaultGenerationParams.
func NewGenerateClient(baseURL string, params GenerationParams) *GenerateClient {
	if params.Model == "" {
		params = DefaultGenerationParams()
	}
	return &GenerateClient{
		baseURL: baseURL,
		params:  params,
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
	}
}

type generateOptions struct {
	Temperature float32  `json:"temperature"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response *string `json:"response"`
}

// Complete sends the prompt and returns the raw completion text. A reply
// body without the completion field fails with ErrNoCompletion.
func (c *GenerateClient) Complete(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, _ := json.Marshal(generateRequest{
		Model:  c.params.Model,
		Prompt: prompt,
		Stream: false,
		Options: generateOptions{
			Temperature: c.params.Temperature,
			NumPredict:  c.params.MaxTokens,
			Stop:        c.params.Stop,
		},
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama generate: status %d", resp.StatusCode)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama generate decode: %w", err)
	}
	if result.Response == nil {
		return "", ErrNoCompletion
	}
	return *result.Response, nil
}
