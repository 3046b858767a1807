package dialog

import (
	"context"
	"log"
	"strings"

	"qna-dialog-be/pkg/dialog/policy"
	"qna-dialog-be/pkg/dialog/response"
	"qna-dialog-be/pkg/dialog/route"
	"qna-dialog-be/pkg/dialog/state"
	"qna-dialog-be/pkg/qna"
	"qna-dialog-be/pkg/store"
)

// DecisionError marks a turn that hit the scoring upstream and recovered
// with an apology
const DecisionError = "UPSTREAM_ERROR"

// TurnResult is the outcome of handling one user utterance
type TurnResult struct {
	Action   *response.Action
	Decision string  // Policy decision taken this turn (analytics)
	Score    float64 // Top confidence seen this turn, 0 when none
}

// Machine is the conversation orchestrator. Each turn it reads the
// conversation snapshot, consults the scoring gateway, applies the
// aggregation policy, mutates the snapshot, and emits one render action.
// Gateway failures never corrupt state: the turn apologizes and the
// conversation stays addressable.
type Machine struct {
	gateway qna.ScoringGateway
	policy  policy.Thresholds
	states  *state.Manager
	logger  *log.Logger
}

// NewMachine creates a conversation state machine
func NewMachine(gateway qna.ScoringGateway, thresholds policy.Thresholds, logger *log.Logger) *Machine {
	return &Machine{
		gateway: gateway,
		policy:  thresholds,
		states:  state.NewManager(thresholds.ContextCap, logger),
		logger:  logger,
	}
}

// Handle processes one utterance for the conversation and returns the render
// action plus the mutated state (in place on conv). It never returns an
// error: upstream failures surface as apology actions.
func (m *Machine) Handle(ctx context.Context, conv *store.ConversationState, utterance string) *TurnResult {
	if conv.State == "" {
		conv.State = store.StateWelcome
	}

	switch conv.State {
	case store.StateWelcome, store.StateTopLevelQuestion, store.StateNotFound:
		// Welcome routes the first utterance straight into a top-level
		// question; NotFound routes the reworded input the same way.
		return m.handleTopLevel(ctx, conv, utterance)
	case store.StateSelectContext:
		return m.handleSelectContext(ctx, conv, utterance)
	case store.StateFollowup:
		return m.handleFollowup(ctx, conv, utterance)
	case store.StateFollowupLowConfidence:
		return m.handleLowConfidenceReply(ctx, conv, utterance)
	case store.StateNotFoundWithContext:
		return m.handleNotFoundWithContext(ctx, conv, utterance)
	default:
		m.logger.Printf("[MACHINE] Unknown state %q, recovering via top-level", conv.State)
		return m.handleTopLevel(ctx, conv, utterance)
	}
}

// handleTopLevel runs the unscoped search and applies the top-level rule
func (m *Machine) handleTopLevel(ctx context.Context, conv *store.ConversationState, question string) *TurnResult {
	// Question is recorded before the call so a failed turn loses nothing
	m.states.RecordQuestion(conv, question)
	m.states.TransitionTo(conv, store.StateTopLevelQuestion)

	res, err := m.gateway.SearchAndScore(ctx, question)
	if err != nil {
		return m.apologize(err)
	}

	outcome := m.policy.DecideTopLevel(res)
	m.logger.Printf("[MACHINE] Top-level decision: %s (best=%.2f)", outcome.Decision, res.Score)

	switch outcome.Decision {
	case policy.DecisionNotFound:
		return m.enterNotFound(conv)

	case policy.DecisionDisambiguate:
		m.states.StoreOptions(conv, outcome.Options)
		m.states.TransitionTo(conv, store.StateSelectContext)
		return &TurnResult{
			Action:   response.Disambiguate(outcome.Options),
			Decision: policy.DecisionDisambiguate,
			Score:    res.Score,
		}

	default: // Answer
		if outcome.Selected != nil {
			m.states.SelectContext(conv, *outcome.Selected)
			m.states.TransitionTo(conv, store.StateFollowup)
		}
		return &TurnResult{
			Action:   response.Answer(*outcome.Answer, outcome.Uncertain),
			Decision: policy.DecisionAnswer,
			Score:    outcome.Answer.Score,
		}
	}
}

// handleSelectContext resolves a disambiguation pick
func (m *Machine) handleSelectContext(ctx context.Context, conv *store.ConversationState, reply string) *TurnResult {
	names := make([]string, len(conv.QuestionContexts))
	for i, qc := range conv.QuestionContexts {
		names[i] = qc.Name
	}

	idx := route.ParseSelection(reply, names)
	if idx < 1 {
		// Escape or out-of-range selection is a normal outcome, not an error
		m.logger.Printf("[MACHINE] No valid context selected from %d options", len(names))
		return m.enterNotFound(conv)
	}

	m.states.SelectContext(conv, conv.QuestionContexts[idx-1])

	// Score the remembered question against the chosen context
	return m.scoreFollowup(ctx, conv, conv.LastQuestion)
}

// handleFollowup scores an utterance against the active context. An
// explicit "@name: question" reference replaces the active context first;
// an unknown name falls back to a plain new question.
func (m *Machine) handleFollowup(ctx context.Context, conv *store.ConversationState, utterance string) *TurnResult {
	question := utterance

	if ref, ok := route.ParseContextReference(utterance); ok {
		if qc, found := m.states.FindContext(conv, ref.ContextName); found {
			m.states.SelectContext(conv, qc)
		} else {
			m.logger.Printf("[MACHINE] Unknown context reference %q, treating as plain question", ref.ContextName)
		}
		question = ref.Question
	}

	if conv.SelectedContext == nil {
		// Nothing to score against in-context; recover via top-level search
		return m.handleTopLevel(ctx, conv, question)
	}

	return m.scoreFollowup(ctx, conv, question)
}

// scoreFollowup runs the in-context follow-up rule for a question
func (m *Machine) scoreFollowup(ctx context.Context, conv *store.ConversationState, question string) *TurnResult {
	m.states.RecordQuestion(conv, question)
	m.states.TransitionTo(conv, store.StateFollowup)

	candidates, err := m.gateway.ScoreQuestion(ctx, *conv.SelectedContext, question)
	if err != nil {
		return m.apologize(err)
	}

	decision, top := m.policy.DecideFollowup(candidates)
	if decision == policy.DecisionAnswer {
		m.logger.Printf("[MACHINE] Follow-up answered in context %s (%.2f)", conv.SelectedContext.Name, top.Score)
		return &TurnResult{
			Action:   response.Answer(*top, top.Score < m.policy.AnswerUncertainWarning),
			Decision: policy.DecisionAnswer,
			Score:    top.Score,
		}
	}

	return m.broadenSearch(ctx, conv, question)
}

// broadenSearch is the low-confidence flow: discover new contexts, merge
// them into the known set, rescore across the merged set, and offer the
// top suggestions.
func (m *Machine) broadenSearch(ctx context.Context, conv *store.ConversationState, question string) *TurnResult {
	discovered, err := m.gateway.FindRelevantDocs(ctx, question)
	if err != nil {
		return m.apologize(err)
	}

	// A single newly discovered context is discarded as noise
	if len(discovered) <= 1 {
		discovered = nil
	}
	conv.QuestionContexts = m.states.MergeContexts(conv.QuestionContexts, discovered)

	candidates, err := m.gateway.ScoreRelevantAnswers(ctx, conv.QuestionContexts, question)
	if err != nil {
		return m.apologize(err)
	}

	shortlist := m.policy.ShortlistSuggestions(candidates)
	if len(shortlist) == 0 {
		return m.enterNotFound(conv)
	}

	m.states.TransitionTo(conv, store.StateFollowupLowConfidence)
	m.logger.Printf("[MACHINE] Broadened search produced %d suggestions", len(shortlist))

	result := &TurnResult{
		Action:   response.Suggestions(shortlist, conv.SelectedContext),
		Decision: policy.DecisionBroaden,
		Score:    shortlist[0].Score,
	}
	return result
}

// handleLowConfidenceReply interprets the user's pick after a broadened
// search: a browse affordance, a context-scoped question, or a plain new
// question for the current context.
func (m *Machine) handleLowConfidenceReply(ctx context.Context, conv *store.ConversationState, reply string) *TurnResult {
	trimmed := strings.TrimSpace(reply)

	if strings.HasPrefix(trimmed, response.BrowsePrefix) {
		name := strings.TrimPrefix(trimmed, response.BrowsePrefix)
		if qc, found := m.states.FindContext(conv, name); found {
			m.states.SelectContext(conv, qc)
		}
		return m.enterNotFound(conv)
	}

	return m.handleFollowup(ctx, conv, reply)
}

// handleNotFoundWithContext resolves a pick from the active context's
// known-question list
func (m *Machine) handleNotFoundWithContext(ctx context.Context, conv *store.ConversationState, reply string) *TurnResult {
	if conv.SelectedContext == nil {
		return m.handleTopLevel(ctx, conv, reply)
	}

	questions := conv.SelectedContext.CopyPossibleQuestions()
	idx := route.ParseSelection(reply, questions)
	if idx < 1 {
		// Escape clears the context and falls back to the open prompt
		m.states.ClearSelection(conv)
		return m.enterNotFound(conv)
	}

	return m.scoreFollowup(ctx, conv, questions[idx-1])
}

// enterNotFound routes the not-found outcome: with an active context the
// user gets that context's known questions, otherwise an open reword prompt
func (m *Machine) enterNotFound(conv *store.ConversationState) *TurnResult {
	if conv.SelectedContext != nil {
		m.states.TransitionTo(conv, store.StateNotFoundWithContext)
		return &TurnResult{
			Action:   response.ContextQuestions(conv.SelectedContext),
			Decision: policy.DecisionNotFound,
		}
	}

	m.states.TransitionTo(conv, store.StateNotFound)
	return &TurnResult{
		Action:   response.RewordPrompt(),
		Decision: policy.DecisionNotFound,
	}
}

// apologize reports an upstream failure to the user without touching state
func (m *Machine) apologize(err error) *TurnResult {
	m.logger.Printf("[ERROR] Gateway call failed: %v", err)
	return &TurnResult{Action: response.Apology(), Decision: DecisionError}
}
