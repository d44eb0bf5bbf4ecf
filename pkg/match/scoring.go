package match

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fundermatch/platform/pkg/common/config"
	"github.com/fundermatch/platform/pkg/common/httpclient"
)

// ScoringClient talks to the external LLM scoring service. The service is a
// black box: it receives the system instruction plus one rendered prompt and
// returns content blocks, of which the first text block carries the JSON
// array the parser consumes.
type ScoringClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
	http        *http.Client
}

func NewScoringClient(cfg *config.Config, rules Rules) *ScoringClient {
	return &ScoringClient{
		apiKey:      cfg.LLMAPIKey,
		baseURL:     strings.TrimRight(cfg.LLMBaseURL, "/"),
		model:       cfg.LLMModelName,
		temperature: rules.Temperature,
		maxTokens:   rules.MaxTokens,
		http:        httpclient.New(120 * time.Second),
	}
}

func (c *ScoringClient) Score(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]interface{}{
		"model":       c.model,
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
		"system":      system,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("scoring service error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", err
	}

	for _, block := range result.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in scoring response")
}
