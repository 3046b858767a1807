package spell

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"time"
)

// Corrector wraps the external spell-correction collaborator. It runs once
// per inbound message before the dialog core sees the text; the core only
// ever consumes the corrected utterance.
type Corrector struct {
	baseURL string
	client  *http.Client
	logger  *log.Logger
}

// NewCorrector creates a spell-correction client. An empty baseURL disables
// correction entirely (Correct becomes a pass-through).
func NewCorrector(baseURL string, timeout time.Duration, logger *log.Logger) *Corrector {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Corrector{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type correctRequest struct {
	Text string `json:"text"`
}

type correctResponse struct {
	Corrected string `json:"corrected"`
}

// Correct returns the corrected utterance. Correction is best effort: on any
// failure the original text is returned so a flaky collaborator never blocks
// a turn.
func (c *Corrector) Correct(ctx context.Context, utterance string) string {
	if c.baseURL == "" || utterance == "" {
		return utterance
	}

	jsonBody, err := json.Marshal(correctRequest{Text: utterance})
	if err != nil {
		return utterance
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/correct", bytes.NewBuffer(jsonBody))
	if err != nil {
		return utterance
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Printf("[SPELL] Correction call failed, using raw text: %v", err)
		return utterance
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil || resp.StatusCode != http.StatusOK {
		c.logger.Printf("[SPELL] Correction returned status %d, using raw text", resp.StatusCode)
		return utterance
	}

	var result correctResponse
	if err := json.Unmarshal(bodyBytes, &result); err != nil || result.Corrected == "" {
		return utterance
	}

	return result.Corrected
}
