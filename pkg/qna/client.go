package qna

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"qna-dialog-be/pkg/store"
)

// HTTPGateway implements ScoringGateway against the external search and QnA
// oracle services. Any transport failure, non-2xx status, or timeout is
// reported as ErrUpstreamUnavailable.
type HTTPGateway struct {
	searchURL string
	qnaURL    string
	client    *http.Client
	logger    *log.Logger
}

// NewHTTPGateway creates a gateway client with a hard request timeout
func NewHTTPGateway(searchURL, qnaURL string, timeout time.Duration, logger *log.Logger) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		searchURL: searchURL,
		qnaURL:    qnaURL,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

type searchAndScoreRequest struct {
	Question string `json:"question"`
}

type findRelevantDocsRequest struct {
	Question string `json:"question"`
}

type findRelevantDocsResponse struct {
	Contexts []store.QuestionContext `json:"contexts"`
}

type scoreRelevantAnswersRequest struct {
	ContextNames []string `json:"context_names"`
	Question     string   `json:"question"`
}

type scoreAnswersResponse struct {
	Answers []store.AnswerCandidate `json:"answers"`
}

type scoreQuestionRequest struct {
	ContextName string `json:"context_name"`
	Question    string `json:"question"`
}

func (g *HTTPGateway) SearchAndScore(ctx context.Context, question string) (*SearchResult, error) {
	var result SearchResult
	err := g.post(ctx, g.searchURL+"/search-and-score", searchAndScoreRequest{Question: question}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (g *HTTPGateway) FindRelevantDocs(ctx context.Context, question string) ([]store.QuestionContext, error) {
	var result findRelevantDocsResponse
	err := g.post(ctx, g.searchURL+"/relevant-docs", findRelevantDocsRequest{Question: question}, &result)
	if err != nil {
		return nil, err
	}
	return result.Contexts, nil
}

func (g *HTTPGateway) ScoreRelevantAnswers(ctx context.Context, contexts []store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
	names := make([]string, len(contexts))
	for i, qc := range contexts {
		names[i] = qc.Name
	}

	var result scoreAnswersResponse
	err := g.post(ctx, g.qnaURL+"/score-answers", scoreRelevantAnswersRequest{ContextNames: names, Question: question}, &result)
	if err != nil {
		return nil, err
	}
	return result.Answers, nil
}

func (g *HTTPGateway) ScoreQuestion(ctx context.Context, qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
	var result scoreAnswersResponse
	err := g.post(ctx, g.qnaURL+"/score-question", scoreQuestionRequest{ContextName: qc.Name, Question: question}, &result)
	if err != nil {
		return nil, err
	}
	return result.Answers, nil
}

// post sends a JSON request and decodes the JSON response.
// All failure modes collapse into ErrUpstreamUnavailable so the dialog core
// has a single recovery path.
func (g *HTTPGateway) post(ctx context.Context, endpoint string, payload interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Printf("[GATEWAY] Call to %s failed: %v", endpoint, err)
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		g.logger.Printf("[GATEWAY] Reading response from %s failed: %v", endpoint, err)
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode != http.StatusOK {
		g.logger.Printf("[GATEWAY] %s returned status %d: %s", endpoint, resp.StatusCode, truncate(string(bodyBytes), 200))
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("%w: malformed response: %v", ErrUpstreamUnavailable, err)
	}

	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
