package response

// Kind classifies what the transport should render for a turn
type Kind string

const (
	KindAnswer  Kind = "answer"  // Final answer text, optionally with an uncertainty affordance
	KindChoices Kind = "choices" // A question plus quick-reply options
	KindPrompt  Kind = "prompt"  // An open prompt asking the user to type something
	KindMessage Kind = "message" // Informational text (apologies included)
)

// Option is one quick reply. Payload is the structured selection token the
// transport should send back; free-text replies matching the label work as
// a fallback.
type Option struct {
	Label   string `json:"label"`
	Payload string `json:"payload"`
}

// Action is the single rendering instruction a turn produces. Exact
// rendering (cards, buttons) is owned by the transport.
type Action struct {
	Kind      Kind     `json:"kind"`
	Text      string   `json:"text"`
	Options   []Option `json:"options,omitempty"`
	Answer    string   `json:"answer,omitempty"`    // Supporting snippet for KindAnswer
	Uncertain bool     `json:"uncertain,omitempty"` // Show the "not the right answer?" affordance
}
