package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mystery-message-api/internal/config"
)

// MaxSuggestions caps how many questions a single call returns.
const MaxSuggestions = 3

const separator = "||"

const prompt = "Create a list of three open-ended and engaging questions formatted as a single string. " +
	"Each question should be separated by '||'. These questions are for an anonymous social messaging platform, " +
	"like Qooh.me, and should be suitable for a diverse audience. Avoid personal or sensitive topics, focusing " +
	"instead on universal themes that encourage friendly interaction. For example, your output should be structured " +
	"like this: 'What's a hobby you've recently started?||If you could have dinner with any historical figure, who " +
	"would it be?||What's a simple thing that makes you happy?'. Ensure the questions are intriguing, foster " +
	"curiosity, and contribute to a positive and welcoming conversational environment."

type part struct {
	Text string `json:"text"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Client calls the Gemini generateContent endpoint.
type Client struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		url:    cfg.GeminiAPIURL,
		apiKey: cfg.GeminiAPIKey,
		http:   &http.Client{Timeout: cfg.GeminiTimeout},
	}
}

// Generate asks the model for conversation starters and returns at most
// MaxSuggestions non-empty strings.
func (c *Client) Generate(ctx context.Context) ([]string, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("gemini api key is not configured")
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gemini returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode gemini response: %w", err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return []string{}, nil
	}
	return Split(out.Candidates[0].Content.Parts[0].Text), nil
}

// Split breaks raw model output on "||", trims each piece, drops empties and
// keeps the first MaxSuggestions.
func Split(raw string) []string {
	res := make([]string, 0, MaxSuggestions)
	for _, s := range strings.Split(raw, separator) {
		s = strings.Trim(strings.TrimSpace(s), "'\"")
		if s == "" {
			continue
		}
		res = append(res, s)
		if len(res) == MaxSuggestions {
			break
		}
	}
	return res
}
