package qna

import (
	"context"
	"errors"

	"qna-dialog-be/pkg/store"
)

// ErrUpstreamUnavailable is returned for any gateway transport failure
// (network, auth, timeout). Callers recover locally: apologize, log, keep
// the conversation usable.
var ErrUpstreamUnavailable = errors.New("scoring upstream unavailable")

// SearchResult is the outcome of a top-level search across all contexts
type SearchResult struct {
	Answers  []store.AnswerCandidate `json:"answers"`  // Descending by score
	Contexts []store.QuestionContext `json:"contexts"` // Descending by score
	Score    float64                 `json:"score"`    // Best aggregate confidence found
}

// ScoringGateway wraps the external search and QnA scoring collaborators.
// Pure request/response, no state. All calls are fallible with
// ErrUpstreamUnavailable and honor context cancellation.
type ScoringGateway interface {
	// SearchAndScore runs the top-level search for a question
	SearchAndScore(ctx context.Context, question string) (*SearchResult, error)

	// FindRelevantDocs discovers candidate contexts beyond the selected one;
	// may return zero results
	FindRelevantDocs(ctx context.Context, question string) ([]store.QuestionContext, error)

	// ScoreRelevantAnswers rescores a question across a specific context set,
	// descending by score
	ScoreRelevantAnswers(ctx context.Context, contexts []store.QuestionContext, question string) ([]store.AnswerCandidate, error)

	// ScoreQuestion scores a question restricted to a single context,
	// descending by score
	ScoreQuestion(ctx context.Context, qc store.QuestionContext, question string) ([]store.AnswerCandidate, error)
}
