package store

// QuestionContext represents one knowledge-base area the bot can answer from
type QuestionContext struct {
	Name              string   `json:"name"`   // Unique identifier, shown in prompts (e.g. "@Billing")
	Entity            string   `json:"entity"` // Human-readable label of what the context covers
	PossibleQuestions []string `json:"possible_questions"`
	Score             float64  `json:"score"` // Last relevance score against the current input, recomputed per turn
}

// CopyPossibleQuestions returns a fresh copy of the known-question list.
// Prompts must never write back into the stored sequence.
func (qc *QuestionContext) CopyPossibleQuestions() []string {
	out := make([]string, len(qc.PossibleQuestions))
	copy(out, qc.PossibleQuestions)
	return out
}

// AnswerCandidate is one ranked answer returned by the scoring collaborators
type AnswerCandidate struct {
	QuestionMatched string  `json:"question_matched"`
	Name            string  `json:"name"`   // Owning context name
	Entity          string  `json:"entity"` // Supporting snippet shown with the answer
	Score           float64 `json:"score"`  // Confidence in [0,1]
}

// ConversationState is the per-conversation memory carried between turns.
// The dialog core receives a full snapshot and returns a full replacement;
// the session store owns persistence and expiry.
type ConversationState struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
	State  string `json:"state"`

	// Most recent raw user utterance
	LastQuestion string `json:"last_question"`

	// THE WAITING ROOM (contexts discovered so far, deduplicated by name)
	QuestionContexts []QuestionContext `json:"question_contexts"`

	// THE WORKBENCH (the context currently being questioned)
	SelectedContext *QuestionContext `json:"selected_context"`
}

// Dialog states
const (
	StateWelcome               = "WELCOME"
	StateTopLevelQuestion      = "TOP_LEVEL_QUESTION"
	StateSelectContext         = "SELECT_CONTEXT"
	StateFollowup              = "FOLLOWUP_QUESTION"
	StateFollowupLowConfidence = "FOLLOWUP_LOW_CONFIDENCE"
	StateNotFound              = "NOT_FOUND"
	StateNotFoundWithContext   = "NOT_FOUND_WITH_CONTEXT"
)
