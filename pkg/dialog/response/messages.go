package response

import (
	"fmt"
	"strconv"

	"qna-dialog-be/pkg/store"
)

// User-facing copy lives here so every state emits consistent wording.
const (
	EscapeLabel  = "None of the above"
	BrowsePrefix = "browse:"

	apologyText      = "Sorry, something went wrong while processing your question. Please try again."
	rewordText       = "I couldn't find an answer for that. Could you try rewording your question?"
	disambiguateText = "Your question matches more than one area. Which one did you mean?"
	suggestionsText  = "I'm not fully sure about that one. Did you mean one of these?"
	uncertainText    = "Not the right answer? Try rewording your question."
)

// Answer renders a final answer from the top candidate
func Answer(candidate store.AnswerCandidate, uncertain bool) *Action {
	action := &Action{
		Kind:      KindAnswer,
		Text:      candidate.QuestionMatched,
		Answer:    candidate.Entity,
		Uncertain: uncertain,
	}
	if uncertain {
		action.Text = fmt.Sprintf("%s\n\n%s", candidate.QuestionMatched, uncertainText)
	}
	return action
}

// Disambiguate renders near-tied contexts as a choice, with an escape option
func Disambiguate(options []store.QuestionContext) *Action {
	opts := make([]Option, 0, len(options)+1)
	for i, qc := range options {
		opts = append(opts, Option{
			Label:   fmt.Sprintf("%s (%s)", qc.Name, qc.Entity),
			Payload: strconv.Itoa(i + 1),
		})
	}
	opts = append(opts, Option{Label: EscapeLabel, Payload: "0"})

	return &Action{
		Kind:    KindChoices,
		Text:    disambiguateText,
		Options: opts,
	}
}

// Suggestions renders broadened-search candidates as quick replies. When the
// active context contributed none of them, a browse affordance for that
// context is appended.
func Suggestions(candidates []store.AnswerCandidate, selected *store.QuestionContext) *Action {
	opts := make([]Option, 0, len(candidates)+1)
	selectedCovered := false

	for _, c := range candidates {
		opts = append(opts, Option{
			Label:   fmt.Sprintf("@%s: %s", c.Name, c.QuestionMatched),
			Payload: fmt.Sprintf("@%s: %s", c.Name, c.QuestionMatched),
		})
		if selected != nil && c.Name == selected.Name {
			selectedCovered = true
		}
	}

	if selected != nil && !selectedCovered {
		opts = append(opts, Option{
			Label:   fmt.Sprintf("See what %s can answer", selected.Name),
			Payload: BrowsePrefix + selected.Name,
		})
	}

	return &Action{
		Kind:    KindChoices,
		Text:    suggestionsText,
		Options: opts,
	}
}

// ContextQuestions offers a context's known questions as quick replies.
// The question list is copied; the prompt never aliases the stored sequence.
func ContextQuestions(qc *store.QuestionContext) *Action {
	questions := qc.CopyPossibleQuestions()

	opts := make([]Option, 0, len(questions)+1)
	for i, q := range questions {
		opts = append(opts, Option{Label: q, Payload: strconv.Itoa(i + 1)})
	}
	opts = append(opts, Option{Label: EscapeLabel, Payload: "0"})

	return &Action{
		Kind:    KindChoices,
		Text:    fmt.Sprintf("Here's what %s can help with:", qc.Entity),
		Options: opts,
	}
}

// RewordPrompt asks the user to try again with different wording
func RewordPrompt() *Action {
	return &Action{Kind: KindPrompt, Text: rewordText}
}

// Apology is the uniform user-visible failure message. Raw errors never
// reach the user.
func Apology() *Action {
	return &Action{Kind: KindMessage, Text: apologyText}
}
