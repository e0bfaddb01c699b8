package models

// ConversationTurn is one (question, answer) pair kept in session history.
type ConversationTurn struct {
	UserInput    string
	ResponseText string
}

// InteractionRecord is the unit handed to the telemetry logger. It exists only
// for the duration of one logging call; the telemetry backend persists it.
type InteractionRecord struct {
	UserInput     string
	FullPrompt    string
	SystemPrompt  string
	Result        GenerationResult
	RetrievedDocs []ScoredDocument
	TopScore      float64
}

// TopDocumentSource returns the source name of the best-ranked retrieved
// document, with the fallbacks the telemetry backend expects.
func (r *InteractionRecord) TopDocumentSource() string {
	if len(r.RetrievedDocs) == 0 {
		return "No document found"
	}
	if src := r.RetrievedDocs[0].Document.Source(); src != "" {
		return src
	}
	return "Unknown File"
}
