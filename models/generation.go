package models

// Sentinel values substituted when the generation service omits a field, so
// downstream arithmetic and telemetry never see nulls.
const (
	UnknownModel       = "Unknown Model"
	NoResponseFallback = "No response generated."
	UnknownTime        = "Unknown Time"
)

// ChatMessage is a single role-tagged turn in a chat-style completion request.
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// GenerationResult is the normalized output of one completion call. Fields are
// defaulted at the client boundary; a populated Error marks a failed call that
// still carries a well-formed result.
type GenerationResult struct {
	ModelName           string
	ResponseText        string
	CreatedAt           string
	TotalDurationMicros int64
	PromptTokens        int
	GeneratedTokens     int
	Error               string
}

// Normalize substitutes sentinels for missing fields and clamps negative
// numeric values to zero. It returns the receiver for chaining.
func (r *GenerationResult) Normalize() *GenerationResult {
	if r.ModelName == "" {
		r.ModelName = UnknownModel
	}
	if r.ResponseText == "" {
		r.ResponseText = NoResponseFallback
	}
	if r.CreatedAt == "" {
		r.CreatedAt = UnknownTime
	}
	if r.TotalDurationMicros < 0 {
		r.TotalDurationMicros = 0
	}
	if r.PromptTokens < 0 {
		r.PromptTokens = 0
	}
	if r.GeneratedTokens < 0 {
		r.GeneratedTokens = 0
	}
	return r
}

// Failed reports whether the result carries an error.
func (r *GenerationResult) Failed() bool {
	return r.Error != ""
}
