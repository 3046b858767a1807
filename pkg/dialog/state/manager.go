package state

import (
	"log"
	"sort"

	"qna-dialog-be/pkg/store"
)

// Manager handles conversation state transitions and the context-set
// bookkeeping rules: dedupe by name on every merge, cap by score.
type Manager struct {
	contextCap int
	logger     *log.Logger
}

// NewManager creates a new state manager
func NewManager(contextCap int, logger *log.Logger) *Manager {
	return &Manager{contextCap: contextCap, logger: logger}
}

// RecordQuestion stores the raw utterance before any gateway call so a
// failed turn never loses the question
func (m *Manager) RecordQuestion(conv *store.ConversationState, question string) {
	conv.LastQuestion = question
}

// TransitionTo moves the conversation to a new dialog state
func (m *Manager) TransitionTo(conv *store.ConversationState, state string) {
	m.logger.Printf("[STATE] %s -> %s", conv.State, state)
	conv.State = state
}

// SelectContext activates a context and remembers it in the known set
func (m *Manager) SelectContext(conv *store.ConversationState, qc store.QuestionContext) {
	selected := qc
	conv.SelectedContext = &selected
	conv.QuestionContexts = m.MergeContexts(conv.QuestionContexts, []store.QuestionContext{qc})
	m.logger.Printf("[STATE] Selected context: %s", qc.Name)
}

// ClearSelection drops the active context
func (m *Manager) ClearSelection(conv *store.ConversationState) {
	conv.SelectedContext = nil
}

// StoreOptions replaces the known context set with disambiguation options
func (m *Manager) StoreOptions(conv *store.ConversationState, options []store.QuestionContext) {
	conv.QuestionContexts = m.MergeContexts(nil, options)
	m.logger.Printf("[STATE] Stored %d disambiguation options", len(conv.QuestionContexts))
}

// MergeContexts combines two context sets, deduplicating by name. First
// occurrence wins except that a higher score refreshes the stored one.
// The result is capped at the configured limit, keeping top scores.
// Merging is idempotent: merging the same set twice adds nothing.
func (m *Manager) MergeContexts(existing, discovered []store.QuestionContext) []store.QuestionContext {
	merged := make([]store.QuestionContext, 0, len(existing)+len(discovered))
	index := make(map[string]int)

	for _, qc := range existing {
		if pos, seen := index[qc.Name]; seen {
			if qc.Score > merged[pos].Score {
				merged[pos] = qc
			}
			continue
		}
		index[qc.Name] = len(merged)
		merged = append(merged, qc)
	}

	for _, qc := range discovered {
		if pos, seen := index[qc.Name]; seen {
			if qc.Score > merged[pos].Score {
				merged[pos] = qc
			}
			continue
		}
		index[qc.Name] = len(merged)
		merged = append(merged, qc)
	}

	if m.contextCap > 0 && len(merged) > m.contextCap {
		// Evict lowest-scoring contexts but keep first-seen order for the rest
		byScore := make([]store.QuestionContext, len(merged))
		copy(byScore, merged)
		sort.SliceStable(byScore, func(i, j int) bool {
			return byScore[i].Score > byScore[j].Score
		})
		keep := make(map[string]bool, m.contextCap)
		for _, qc := range byScore[:m.contextCap] {
			keep[qc.Name] = true
		}
		capped := make([]store.QuestionContext, 0, m.contextCap)
		for _, qc := range merged {
			if keep[qc.Name] {
				capped = append(capped, qc)
			}
		}
		m.logger.Printf("[STATE] Context cap hit: evicted %d of %d", len(merged)-len(capped), len(merged))
		merged = capped
	}

	return merged
}

// FindContext resolves a context name against the known set
func (m *Manager) FindContext(conv *store.ConversationState, name string) (store.QuestionContext, bool) {
	for _, qc := range conv.QuestionContexts {
		if qc.Name == name {
			return qc, true
		}
	}
	if conv.SelectedContext != nil && conv.SelectedContext.Name == name {
		return *conv.SelectedContext, true
	}
	return store.QuestionContext{}, false
}
