package policy

import (
	"sort"

	"qna-dialog-be/pkg/qna"
	"qna-dialog-be/pkg/store"
)

// Decision constants
const (
	DecisionAnswer       = "ANSWER"
	DecisionDisambiguate = "DISAMBIGUATE"
	DecisionBroaden      = "BROADEN"
	DecisionNotFound     = "NOT_FOUND"
)

// Thresholds encapsulates the tunable confidence policy
type Thresholds struct {
	QnaMinConfidence       float64 // Below this, a top-level result is "nothing found"
	QnaConfidencePrompt    float64 // At or below this, a follow-up enters broadened search
	ChoiceConfidenceDelta  float64 // Max score gap for two contexts to count as tied
	AnswerUncertainWarning float64 // Below this, answers carry a "not the right answer?" affordance
	MaxSuggestions         int     // Hard cap on broadened-search quick replies
	ContextCap             int     // Max contexts kept on a conversation after merge
}

// DefaultThresholds returns the default confidence policy
func DefaultThresholds() Thresholds {
	return Thresholds{
		QnaMinConfidence:       0.3,
		QnaConfidencePrompt:    0.5,
		ChoiceConfidenceDelta:  0.2,
		AnswerUncertainWarning: 0.6,
		MaxSuggestions:         3,
		ContextCap:             10,
	}
}

// TopLevelOutcome is the result of applying the top-level decision rule
type TopLevelOutcome struct {
	Decision  string
	Answer    *store.AnswerCandidate  // Set when Decision is ANSWER
	Selected  *store.QuestionContext  // Context to activate when Decision is ANSWER
	Options   []store.QuestionContext // Near-tied contexts when Decision is DISAMBIGUATE
	Uncertain bool                    // Answer confidence below the warning threshold
}

// DecideTopLevel applies the top-level decision rule to a search result.
// Sequences are re-sorted defensively; collaborator ordering is never trusted.
func (t Thresholds) DecideTopLevel(res *qna.SearchResult) TopLevelOutcome {
	if res == nil || len(res.Answers) == 0 {
		return TopLevelOutcome{Decision: DecisionNotFound}
	}

	answers := SortCandidates(res.Answers)
	contexts := SortContexts(res.Contexts)

	best := answers[0].Score
	if best == 0 || best < t.QnaMinConfidence {
		return TopLevelOutcome{Decision: DecisionNotFound}
	}

	if len(contexts) > 1 {
		// Near-tie detection: every context within the delta window of the
		// leader is a disambiguation option
		scoreToBeat := contexts[0].Score - t.ChoiceConfidenceDelta
		options := make([]store.QuestionContext, 0, len(contexts))
		for _, qc := range contexts {
			if qc.Score >= scoreToBeat {
				options = append(options, qc)
			}
		}
		if len(options) > 1 {
			return TopLevelOutcome{Decision: DecisionDisambiguate, Options: options}
		}
	}

	answer := answers[0]
	outcome := TopLevelOutcome{
		Decision:  DecisionAnswer,
		Answer:    &answer,
		Uncertain: answer.Score < t.AnswerUncertainWarning,
	}
	if len(contexts) > 0 {
		selected := contexts[0]
		outcome.Selected = &selected
	}
	return outcome
}

// DecideFollowup applies the in-context follow-up rule. An empty candidate
// list broadens the search rather than failing the turn.
func (t Thresholds) DecideFollowup(candidates []store.AnswerCandidate) (string, *store.AnswerCandidate) {
	if len(candidates) == 0 {
		return DecisionBroaden, nil
	}

	sorted := SortCandidates(candidates)
	top := sorted[0]
	if top.Score > t.QnaConfidencePrompt {
		return DecisionAnswer, &top
	}
	return DecisionBroaden, &top
}

// ShortlistSuggestions filters broadened-search candidates to those at or
// above the minimum confidence, capped at MaxSuggestions
func (t Thresholds) ShortlistSuggestions(candidates []store.AnswerCandidate) []store.AnswerCandidate {
	sorted := SortCandidates(candidates)

	shortlist := make([]store.AnswerCandidate, 0, t.MaxSuggestions)
	for _, c := range sorted {
		if c.Score < t.QnaMinConfidence {
			continue
		}
		shortlist = append(shortlist, c)
		if len(shortlist) >= t.MaxSuggestions {
			break
		}
	}
	return shortlist
}

// SortCandidates returns a copy sorted descending by score, stable on ties
func SortCandidates(candidates []store.AnswerCandidate) []store.AnswerCandidate {
	sorted := make([]store.AnswerCandidate, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}

// SortContexts returns a copy sorted descending by score, stable on ties
func SortContexts(contexts []store.QuestionContext) []store.QuestionContext {
	sorted := make([]store.QuestionContext, len(contexts))
	copy(sorted, contexts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})
	return sorted
}
