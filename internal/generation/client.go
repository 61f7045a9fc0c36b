// Package generation is the outbound client for the external GIF generation
// service. It dispatches prediction requests and completes them through one
// of two strategies: registering a webhook for asynchronous delivery, or
// synchronously polling the prediction's status URL until it reaches a
// terminal state.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/tbourn/go-gif-backend/internal/config"
	"github.com/tbourn/go-gif-backend/internal/domain"
)

// ErrPollBudgetExhausted reports that the polling loop gave up before the
// service reached a terminal state. This is distinct from the service itself
// reporting failure.
var ErrPollBudgetExhausted = errors.New("prediction polling budget exhausted")

// ServiceError carries the error message the generation service reported for
// a prediction that ended failed or cancelled, or an unexpected HTTP status.
type ServiceError struct {
	Status  domain.PredictionStatus
	Message string
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("generation service: %s", e.Message)
	}
	return fmt.Sprintf("generation service: prediction %s", e.Status)
}

// Prediction is the creation response: the service-assigned id, the initial
// status, and the status URL used by the polling strategy.
type Prediction struct {
	ID     string                  `json:"id"`
	Status domain.PredictionStatus `json:"status"`
	Error  string                  `json:"error,omitempty"`
	URLs   *PredictionURLs         `json:"urls,omitempty"`
}

// PredictionURLs holds the follow-up endpoints returned with a prediction.
type PredictionURLs struct {
	Get string `json:"get"`
}

// pollResponse is the body returned by the prediction status endpoint.
type pollResponse struct {
	Status domain.PredictionStatus `json:"status"`
	Output string                  `json:"output,omitempty"`
}

// requestBody is the creation payload. Image dimensions, step count, and the
// negative prompt are request-shaping policy fixed per request, not
// configuration.
type requestBody struct {
	Version string       `json:"version"`
	Webhook string       `json:"webhook,omitempty"`
	Input   requestInput `json:"input"`
}

type requestInput struct {
	MP4            bool   `json:"mp4"`
	Steps          int    `json:"steps"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
}

const (
	fixedSteps     = 30
	fixedWidth     = 256
	fixedHeight    = 256
	negativePrompt = "blurry"
)

// Client issues prediction requests. Construct with New; the zero value is
// not usable.
type Client struct {
	cfg config.GenerationConfig
	hc  *http.Client

	// sleep is swapped out by tests to avoid real poll waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// New builds a Client from the generation preferences.
func New(cfg config.GenerationConfig) *Client {
	return &Client{
		cfg: cfg,
		hc:  &http.Client{Timeout: 30 * time.Second},
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Generate dispatches a prediction for asynchronous webhook completion.
// It expects HTTP 201 with a prediction body. A body carrying a terminal
// failed/cancelled status, or any unexpected HTTP status, becomes a
// *ServiceError. On success the returned Prediction holds the
// service-assigned id the caller persists as a pending record.
func (c *Client) Generate(ctx context.Context, prompt string) (*Prediction, error) {
	pred, status, err := c.create(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	if pred.Status == domain.StatusFailed || pred.Status == domain.StatusCancelled {
		return nil, &ServiceError{Status: pred.Status, Message: pred.Error}
	}
	if status != http.StatusCreated {
		return nil, &ServiceError{Status: pred.Status, Message: fmt.Sprintf("unexpected status %d", status)}
	}
	return pred, nil
}

// SyncGenerate dispatches a prediction without a webhook and polls its status
// URL until it reaches a terminal state, waiting PollInterval between
// attempts. The status URL is always polled at least once, regardless of the
// status the creation response carried. It returns the output URL when the
// prediction succeeded with an output, and ("", nil) when the service
// reported failed/cancelled or produced no output. When MaxPollAttempts
// polls pass without a terminal state it gives up with
// ErrPollBudgetExhausted.
func (c *Client) SyncGenerate(ctx context.Context, prompt string) (string, error) {
	pred, _, err := c.create(ctx, prompt, false)
	if err != nil {
		return "", err
	}
	if pred.URLs == nil || pred.URLs.Get == "" {
		return "", &ServiceError{Status: pred.Status, Message: "prediction has no status URL"}
	}

	// The create body's status is ignored: the output only ever appears on
	// the status URL, so even a prediction that is already terminal at
	// create time gets at least one poll.
	status := domain.StatusStarting
	var output string

	for attempt := 0; !status.Terminal(); attempt++ {
		if attempt >= c.cfg.MaxPollAttempts {
			return "", ErrPollBudgetExhausted
		}
		if err := c.sleep(ctx, c.cfg.PollInterval); err != nil {
			return "", err
		}

		poll, err := c.poll(ctx, pred.URLs.Get)
		if err != nil {
			return "", err
		}
		if status.CanTransition(poll.Status) {
			status = poll.Status
		}
		if poll.Output != "" {
			output = poll.Output
		}
	}

	if status == domain.StatusSucceeded && output != "" {
		return output, nil
	}
	// Terminal failure and missing output both yield no result on this path.
	return "", nil
}

// create posts the prediction request, optionally registering the webhook.
func (c *Client) create(ctx context.Context, prompt string, withWebhook bool) (*Prediction, int, error) {
	body := requestBody{
		Version: c.cfg.ModelVersion,
		Input: requestInput{
			MP4:            false,
			Steps:          fixedSteps,
			Width:          fixedWidth,
			Height:         fixedHeight,
			Prompt:         prompt,
			NegativePrompt: negativePrompt,
		},
	}
	if withWebhook {
		body.Webhook = c.cfg.WebhookURL
	}

	buf, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL, bytes.NewReader(buf))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("generation service: %w", err)
	}
	defer resp.Body.Close()

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("generation service: decode: %w", err)
	}
	return &pred, resp.StatusCode, nil
}

// poll fetches the prediction status from its follow-up URL.
func (c *Client) poll(ctx context.Context, url string) (*pollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generation service: %w", err)
	}
	defer resp.Body.Close()

	var out pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("generation service: decode: %w", err)
	}
	return &out, nil
}
