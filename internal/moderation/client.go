// Package moderation is the outbound client for the third-party prompt
// service. It fronts two endpoints: a profanity check that gates every prompt
// before it may reach the generation service, and a prompt-variation endpoint
// that suggests alternative phrasings for the preview flow.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ProfanityResult is the verdict of the moderation service for one prompt.
type ProfanityResult struct {
	ContainsProfanity bool     `json:"containsProfanity"`
	ProfaneWords      []string `json:"profaneWords"`
}

// Variation is one suggested rephrasing of a prompt.
type Variation struct {
	Prompt string `json:"prompt"`
}

// Client calls the prompt service over HTTP. Construct with New.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New builds a Client for the prompt service at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
}

// checkRequest carries the prompt and the requesting user to the service.
type checkRequest struct {
	Prompt string `json:"prompt"`
	UserID string `json:"userId"`
}

// CheckProfanity submits prompt for moderation on behalf of userID.
func (c *Client) CheckProfanity(ctx context.Context, prompt, userID string) (*ProfanityResult, error) {
	var out ProfanityResult
	if err := c.post(ctx, "/profanity", checkRequest{Prompt: prompt, UserID: userID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Variations asks the service for alternative phrasings of prompt.
func (c *Client) Variations(ctx context.Context, prompt, userID string) ([]Variation, error) {
	var out []Variation
	if err := c.post(ctx, "/variations", checkRequest{Prompt: prompt, UserID: userID}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("prompt service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("prompt service: unexpected status %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("prompt service: decode: %w", err)
	}
	return nil
}
