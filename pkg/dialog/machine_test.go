package dialog

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"qna-dialog-be/pkg/dialog/policy"
	"qna-dialog-be/pkg/dialog/response"
	"qna-dialog-be/pkg/qna"
	"qna-dialog-be/pkg/store"
)

type fakeGateway struct {
	searchFn  func(question string) (*qna.SearchResult, error)
	findFn    func(question string) ([]store.QuestionContext, error)
	rescoreFn func(contexts []store.QuestionContext, question string) ([]store.AnswerCandidate, error)
	scoreFn   func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error)
}

func (f *fakeGateway) SearchAndScore(_ context.Context, question string) (*qna.SearchResult, error) {
	if f.searchFn == nil {
		return &qna.SearchResult{}, nil
	}
	return f.searchFn(question)
}

func (f *fakeGateway) FindRelevantDocs(_ context.Context, question string) ([]store.QuestionContext, error) {
	if f.findFn == nil {
		return nil, nil
	}
	return f.findFn(question)
}

func (f *fakeGateway) ScoreRelevantAnswers(_ context.Context, contexts []store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
	if f.rescoreFn == nil {
		return nil, nil
	}
	return f.rescoreFn(contexts, question)
}

func (f *fakeGateway) ScoreQuestion(_ context.Context, qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
	if f.scoreFn == nil {
		return nil, nil
	}
	return f.scoreFn(qc, question)
}

func testThresholds() policy.Thresholds {
	return policy.Thresholds{
		QnaMinConfidence:       0.4,
		QnaConfidencePrompt:    0.6,
		ChoiceConfidenceDelta:  0.2,
		AnswerUncertainWarning: 0.7,
		MaxSuggestions:         3,
		ContextCap:             10,
	}
}

func newTestMachine(gw qna.ScoringGateway) *Machine {
	return NewMachine(gw, testThresholds(), log.New(io.Discard, "", 0))
}

func TestTopLevelSingleContextAnswers(t *testing.T) {
	gw := &fakeGateway{
		searchFn: func(string) (*qna.SearchResult, error) {
			return &qna.SearchResult{
				Answers:  []store.AnswerCandidate{{QuestionMatched: "How do I reset my password?", Name: "Accounts", Entity: "Use the forgot-password link.", Score: 0.9}},
				Contexts: []store.QuestionContext{{Name: "Accounts", Entity: "Account management", Score: 0.9}},
				Score:    0.9,
			}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{ID: "c1"}

	result := m.Handle(context.Background(), conv, "reset password")

	if result.Decision != policy.DecisionAnswer {
		t.Fatalf("Decision = %s, want %s", result.Decision, policy.DecisionAnswer)
	}
	if result.Action.Kind != response.KindAnswer {
		t.Errorf("Kind = %s, want answer", result.Action.Kind)
	}
	if conv.SelectedContext == nil || conv.SelectedContext.Name != "Accounts" {
		t.Errorf("SelectedContext = %+v, want Accounts", conv.SelectedContext)
	}
	if conv.State != store.StateFollowup {
		t.Errorf("State = %s, want follow-up ready", conv.State)
	}
	if conv.LastQuestion != "reset password" {
		t.Errorf("LastQuestion = %q, want the utterance recorded", conv.LastQuestion)
	}
}

func TestTopLevelBelowMinimumNotFound(t *testing.T) {
	gw := &fakeGateway{
		searchFn: func(string) (*qna.SearchResult, error) {
			return &qna.SearchResult{
				Answers:  []store.AnswerCandidate{{Score: 0.3}},
				Contexts: []store.QuestionContext{{Name: "Billing", Score: 0.3}},
			}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{ID: "c1"}

	result := m.Handle(context.Background(), conv, "gibberish")

	if result.Decision != policy.DecisionNotFound {
		t.Fatalf("Decision = %s, want %s", result.Decision, policy.DecisionNotFound)
	}
	if result.Action.Kind != response.KindPrompt {
		t.Errorf("Kind = %s, want reword prompt", result.Action.Kind)
	}
	if conv.State != store.StateNotFound {
		t.Errorf("State = %s, want %s", conv.State, store.StateNotFound)
	}
}

func TestDisambiguateThenSelect(t *testing.T) {
	scored := ""
	gw := &fakeGateway{
		searchFn: func(string) (*qna.SearchResult, error) {
			return &qna.SearchResult{
				Answers: []store.AnswerCandidate{{QuestionMatched: "q", Score: 0.75}},
				Contexts: []store.QuestionContext{
					{Name: "Billing", Entity: "Billing questions", Score: 0.75},
					{Name: "Accounts", Entity: "Account questions", Score: 0.70},
				},
				Score: 0.75,
			}, nil
		},
		scoreFn: func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			scored = qc.Name
			return []store.AnswerCandidate{{QuestionMatched: question, Name: qc.Name, Score: 0.8}}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{ID: "c1"}

	result := m.Handle(context.Background(), conv, "how do I cancel")

	if result.Decision != policy.DecisionDisambiguate {
		t.Fatalf("Decision = %s, want %s", result.Decision, policy.DecisionDisambiguate)
	}
	if conv.State != store.StateSelectContext {
		t.Fatalf("State = %s, want %s", conv.State, store.StateSelectContext)
	}
	// Two options plus the escape
	if len(result.Action.Options) != 3 {
		t.Fatalf("options = %d, want 2 contexts + escape", len(result.Action.Options))
	}
	if result.Action.Options[2].Label != response.EscapeLabel {
		t.Errorf("last option = %q, want escape", result.Action.Options[2].Label)
	}

	// Pick the second context; the remembered question is scored against it
	result = m.Handle(context.Background(), conv, "2")

	if scored != "Accounts" {
		t.Errorf("scored context = %q, want Accounts", scored)
	}
	if result.Decision != policy.DecisionAnswer {
		t.Errorf("Decision = %s, want %s", result.Decision, policy.DecisionAnswer)
	}
	if conv.SelectedContext == nil || conv.SelectedContext.Name != "Accounts" {
		t.Errorf("SelectedContext = %+v, want Accounts", conv.SelectedContext)
	}
}

func TestDisambiguateEscapeGoesNotFound(t *testing.T) {
	gw := &fakeGateway{
		searchFn: func(string) (*qna.SearchResult, error) {
			return &qna.SearchResult{
				Answers: []store.AnswerCandidate{{Score: 0.75}},
				Contexts: []store.QuestionContext{
					{Name: "Billing", Score: 0.75},
					{Name: "Accounts", Score: 0.70},
				},
			}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{ID: "c1"}

	m.Handle(context.Background(), conv, "how do I cancel")
	result := m.Handle(context.Background(), conv, "0")

	if result.Decision != policy.DecisionNotFound {
		t.Fatalf("Decision = %s, want %s", result.Decision, policy.DecisionNotFound)
	}
	if conv.State != store.StateNotFound {
		t.Errorf("State = %s, want %s", conv.State, store.StateNotFound)
	}
}

func TestFollowupLowConfidenceBroadens(t *testing.T) {
	var rescoredContexts []store.QuestionContext
	gw := &fakeGateway{
		scoreFn: func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			return []store.AnswerCandidate{{QuestionMatched: question, Name: qc.Name, Score: 0.5}}, nil
		},
		findFn: func(string) ([]store.QuestionContext, error) {
			return []store.QuestionContext{
				{Name: "Shipping", Score: 0.6},
				{Name: "Returns", Score: 0.55},
			}, nil
		},
		rescoreFn: func(contexts []store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			rescoredContexts = contexts
			return []store.AnswerCandidate{
				{QuestionMatched: "track my order", Name: "Shipping", Score: 0.65},
				{QuestionMatched: "return an item", Name: "Returns", Score: 0.5},
			}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{
		ID:               "c1",
		State:            store.StateFollowup,
		QuestionContexts: []store.QuestionContext{{Name: "Billing", Score: 0.7}},
		SelectedContext:  &store.QuestionContext{Name: "Billing", Score: 0.7},
	}

	result := m.Handle(context.Background(), conv, "where is my package")

	if result.Decision != policy.DecisionBroaden {
		t.Fatalf("Decision = %s, want %s", result.Decision, policy.DecisionBroaden)
	}
	if conv.State != store.StateFollowupLowConfidence {
		t.Errorf("State = %s, want %s", conv.State, store.StateFollowupLowConfidence)
	}
	// Merged set persisted onto the conversation: existing + both discovered
	if len(conv.QuestionContexts) != 3 {
		t.Errorf("known contexts = %d, want 3 after merge", len(conv.QuestionContexts))
	}
	if len(rescoredContexts) != 3 {
		t.Errorf("rescored over %d contexts, want the merged set", len(rescoredContexts))
	}
	// Neither suggestion belongs to Billing, so the browse affordance appears
	last := result.Action.Options[len(result.Action.Options)-1]
	if last.Payload != response.BrowsePrefix+"Billing" {
		t.Errorf("last option payload = %q, want browse affordance", last.Payload)
	}
}

func TestBroadenDiscardsSingleDiscoveredContext(t *testing.T) {
	gw := &fakeGateway{
		scoreFn: func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			return []store.AnswerCandidate{{Score: 0.4}}, nil
		},
		findFn: func(string) ([]store.QuestionContext, error) {
			// One lone discovery is noise and must be discarded
			return []store.QuestionContext{{Name: "Noise", Score: 0.9}}, nil
		},
		rescoreFn: func(contexts []store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			return []store.AnswerCandidate{{QuestionMatched: "q", Name: "Billing", Score: 0.8}}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{
		ID:               "c1",
		State:            store.StateFollowup,
		QuestionContexts: []store.QuestionContext{{Name: "Billing", Score: 0.7}},
		SelectedContext:  &store.QuestionContext{Name: "Billing", Score: 0.7},
	}

	m.Handle(context.Background(), conv, "vague question")

	if len(conv.QuestionContexts) != 1 {
		t.Errorf("known contexts = %d, want the lone discovery discarded", len(conv.QuestionContexts))
	}
	if conv.QuestionContexts[0].Name != "Billing" {
		t.Errorf("contexts = %v, want only Billing", conv.QuestionContexts)
	}
}

func TestLowConfidenceReplyRoutesContextReference(t *testing.T) {
	scored := ""
	askedQuestion := ""
	gw := &fakeGateway{
		scoreFn: func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			scored = qc.Name
			askedQuestion = question
			return []store.AnswerCandidate{{QuestionMatched: question, Name: qc.Name, Score: 0.9}}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{
		ID:    "c1",
		State: store.StateFollowupLowConfidence,
		QuestionContexts: []store.QuestionContext{
			{Name: "Billing", Score: 0.7},
			{Name: "Shipping", Score: 0.6},
		},
		SelectedContext: &store.QuestionContext{Name: "Shipping", Score: 0.6},
	}

	result := m.Handle(context.Background(), conv, "@Billing: how do I cancel")

	if scored != "Billing" {
		t.Errorf("scored context = %q, want the referenced Billing", scored)
	}
	if askedQuestion != "how do I cancel" {
		t.Errorf("question = %q, want the text after the colon", askedQuestion)
	}
	if result.Decision != policy.DecisionAnswer {
		t.Errorf("Decision = %s, want %s", result.Decision, policy.DecisionAnswer)
	}
	if conv.SelectedContext.Name != "Billing" {
		t.Errorf("SelectedContext = %q, want override applied", conv.SelectedContext.Name)
	}
}

func TestLowConfidenceReplyUnknownContextFallsBack(t *testing.T) {
	scored := ""
	gw := &fakeGateway{
		scoreFn: func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			scored = qc.Name
			return []store.AnswerCandidate{{QuestionMatched: question, Score: 0.9}}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{
		ID:               "c1",
		State:            store.StateFollowupLowConfidence,
		QuestionContexts: []store.QuestionContext{{Name: "Billing", Score: 0.7}},
		SelectedContext:  &store.QuestionContext{Name: "Billing", Score: 0.7},
	}

	m.Handle(context.Background(), conv, "@Nowhere: how do I cancel")

	// Unknown context name: scored as a plain question in the current context
	if scored != "Billing" {
		t.Errorf("scored context = %q, want the current selection kept", scored)
	}
	if conv.SelectedContext.Name != "Billing" {
		t.Errorf("SelectedContext = %q, want unchanged", conv.SelectedContext.Name)
	}
}

func TestGatewayFailureApologizesAndPreservesState(t *testing.T) {
	gw := &fakeGateway{
		searchFn: func(string) (*qna.SearchResult, error) {
			return nil, qna.ErrUpstreamUnavailable
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{ID: "c1"}

	result := m.Handle(context.Background(), conv, "reset password")

	if result.Decision != DecisionError {
		t.Fatalf("Decision = %s, want %s", result.Decision, DecisionError)
	}
	if result.Action.Kind != response.KindMessage {
		t.Errorf("Kind = %s, want apology message", result.Action.Kind)
	}
	// The question was recorded before the failed call; the next turn
	// re-enters top-level cleanly
	if conv.LastQuestion != "reset password" {
		t.Errorf("LastQuestion = %q, want recorded before the call", conv.LastQuestion)
	}
	if conv.State != store.StateTopLevelQuestion {
		t.Errorf("State = %s, want to stay in top-level", conv.State)
	}
}

func TestFollowupGatewayFailureKeepsConversationAddressable(t *testing.T) {
	calls := 0
	gw := &fakeGateway{
		scoreFn: func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			calls++
			if calls == 1 {
				return nil, errors.New("connection refused")
			}
			return []store.AnswerCandidate{{QuestionMatched: question, Score: 0.9}}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{
		ID:              "c1",
		State:           store.StateFollowup,
		SelectedContext: &store.QuestionContext{Name: "Billing"},
	}

	first := m.Handle(context.Background(), conv, "how do I cancel")
	if first.Decision != DecisionError {
		t.Fatalf("first Decision = %s, want %s", first.Decision, DecisionError)
	}

	second := m.Handle(context.Background(), conv, "how do I cancel")
	if second.Decision != policy.DecisionAnswer {
		t.Errorf("second Decision = %s, want a clean retry", second.Decision)
	}
}

func TestNotFoundWithContextOffersCopiedQuestions(t *testing.T) {
	gw := &fakeGateway{
		scoreFn: func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			return nil, nil
		},
		rescoreFn: func([]store.QuestionContext, string) ([]store.AnswerCandidate, error) {
			return nil, nil
		},
	}
	m := newTestMachine(gw)
	possible := []string{"How do I cancel?", "How do I get a refund?"}
	conv := &store.ConversationState{
		ID:    "c1",
		State: store.StateFollowup,
		SelectedContext: &store.QuestionContext{
			Name:              "Billing",
			Entity:            "Billing questions",
			PossibleQuestions: possible,
		},
	}

	// No candidates anywhere routes to the context's question list
	result := m.Handle(context.Background(), conv, "something unanswerable")

	if conv.State != store.StateNotFoundWithContext {
		t.Fatalf("State = %s, want %s", conv.State, store.StateNotFoundWithContext)
	}
	firstOptions := len(result.Action.Options)

	// Showing the options must not mutate the stored sequence: a second
	// render produces the identical list
	again := m.enterNotFound(conv)
	if len(again.Action.Options) != firstOptions {
		t.Errorf("second render has %d options, want %d", len(again.Action.Options), firstOptions)
	}
	if len(conv.SelectedContext.PossibleQuestions) != 2 {
		t.Errorf("stored questions = %d, want untouched 2", len(conv.SelectedContext.PossibleQuestions))
	}

	result.Action.Options[0].Label = "tampered"
	if conv.SelectedContext.PossibleQuestions[0] != "How do I cancel?" {
		t.Error("prompt options alias the stored question sequence")
	}
}

func TestNotFoundWithContextPickScoresQuestion(t *testing.T) {
	asked := ""
	gw := &fakeGateway{
		scoreFn: func(qc store.QuestionContext, question string) ([]store.AnswerCandidate, error) {
			asked = question
			return []store.AnswerCandidate{{QuestionMatched: question, Score: 0.9}}, nil
		},
	}
	m := newTestMachine(gw)
	conv := &store.ConversationState{
		ID:    "c1",
		State: store.StateNotFoundWithContext,
		SelectedContext: &store.QuestionContext{
			Name:              "Billing",
			PossibleQuestions: []string{"How do I cancel?", "How do I get a refund?"},
		},
	}

	result := m.Handle(context.Background(), conv, "2")

	if asked != "How do I get a refund?" {
		t.Errorf("scored question = %q, want the picked entry", asked)
	}
	if result.Decision != policy.DecisionAnswer {
		t.Errorf("Decision = %s, want %s", result.Decision, policy.DecisionAnswer)
	}
	if conv.LastQuestion != "How do I get a refund?" {
		t.Errorf("LastQuestion = %q, want the picked question", conv.LastQuestion)
	}
}

func TestNotFoundWithContextEscapeClearsSelection(t *testing.T) {
	m := newTestMachine(&fakeGateway{})
	conv := &store.ConversationState{
		ID:    "c1",
		State: store.StateNotFoundWithContext,
		SelectedContext: &store.QuestionContext{
			Name:              "Billing",
			PossibleQuestions: []string{"How do I cancel?"},
		},
	}

	result := m.Handle(context.Background(), conv, "0")

	if conv.SelectedContext != nil {
		t.Error("escape should clear the selected context")
	}
	if conv.State != store.StateNotFound {
		t.Errorf("State = %s, want %s", conv.State, store.StateNotFound)
	}
	if result.Action.Kind != response.KindPrompt {
		t.Errorf("Kind = %s, want reword prompt", result.Action.Kind)
	}
}

func TestBrowseAffordanceShowsContextQuestions(t *testing.T) {
	m := newTestMachine(&fakeGateway{})
	conv := &store.ConversationState{
		ID:    "c1",
		State: store.StateFollowupLowConfidence,
		QuestionContexts: []store.QuestionContext{
			{Name: "Billing", Entity: "Billing questions", PossibleQuestions: []string{"How do I cancel?"}},
		},
		SelectedContext: &store.QuestionContext{
			Name:              "Billing",
			Entity:            "Billing questions",
			PossibleQuestions: []string{"How do I cancel?"},
		},
	}

	result := m.Handle(context.Background(), conv, response.BrowsePrefix+"Billing")

	if conv.State != store.StateNotFoundWithContext {
		t.Fatalf("State = %s, want %s", conv.State, store.StateNotFoundWithContext)
	}
	if result.Action.Kind != response.KindChoices {
		t.Errorf("Kind = %s, want the context's question list", result.Action.Kind)
	}
}
