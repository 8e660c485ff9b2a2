package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dansever/fleet-ai-sub002/src/logger"
)

// --- API Response Structs ---

type agentConvertRequest struct {
	Instruction string `json:"instruction"`
}

type agentConvertResponse struct {
	Value       float64      `json:"value"`
	Unit        string       `json:"unit"`
	Explanation string       `json:"explanation"`
	Meta        ProviderMeta `json:"meta"`
	Error       string       `json:"error,omitempty"`
	Message     string       `json:"message,omitempty"`
}

// --- Client Implementation ---

// agentProviderClient talks to the LLM-backed conversion agent over
// HTTP. Calls are rate-limited because the provider is costed per call.
type agentProviderClient struct {
	httpClient http.Client
	baseURL    string
	limiter    *rate.Limiter
}

// NewProviderClient creates a Provider backed by the conversion agent
// at baseURL. rps/burst bound the outbound call rate.
func NewProviderClient(baseURL string, timeout time.Duration, rps float64, burst int) Provider {
	return &agentProviderClient{
		httpClient: http.Client{Timeout: timeout},
		baseURL:    baseURL,
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (c *agentProviderClient) Convert(ctx context.Context, instruction string) (*ProviderResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for provider rate limit: %w", err)
	}

	body, err := json.Marshal(agentConvertRequest{Instruction: instruction})
	if err != nil {
		return nil, fmt.Errorf("failed to encode provider request: %w", err)
	}

	url := c.baseURL + "/v1/convert"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call conversion provider: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		logger.L.Warn("Conversion provider returned non-OK status", "status", resp.StatusCode, "url", url)
		return nil, fmt.Errorf("conversion provider returned status %d", resp.StatusCode)
	}

	var decoded agentConvertResponse
	if err := json.Unmarshal(respBytes, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}
	if decoded.Error != "" {
		return nil, &ProviderError{Code: decoded.Error, Message: decoded.Message}
	}

	return &ProviderResult{
		Value:       decoded.Value,
		Unit:        decoded.Unit,
		Explanation: decoded.Explanation,
		Meta:        decoded.Meta,
	}, nil
}
