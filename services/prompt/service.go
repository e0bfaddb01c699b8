// Package prompt builds completion requests from retrieved context and user
// input. The composer is pure: no history lookup and no side effects. The
// orchestrator decides what goes in.
package prompt

import (
	"fmt"

	"github.com/upb/rag-chat/models"
)

// MaxContextChars bounds the retrieved context embedded in a prompt. Keeps
// prompt size and generation latency predictable regardless of document size.
const MaxContextChars = 1000

// Compose produces the canonical single-turn prompt:
//
//	Context: {context}\nQuestion: {userInput}
//
// with context truncated to MaxContextChars.
func Compose(userInput, context string) string {
	return fmt.Sprintf("Context: %s\nQuestion: %s", Truncate(context), userInput)
}

// ComposeMessages produces the role-tagged chat form for front-ends that
// supply system or assistant turns. The user turn carries the context-bearing
// prompt; system and assistant turns are included only when non-empty.
func ComposeMessages(userInput, context, systemPrompt, assistantPrompt string) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, 3)

	if systemPrompt != "" {
		messages = append(messages, models.ChatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, models.ChatMessage{Role: "user", Content: Compose(userInput, context)})
	if assistantPrompt != "" {
		messages = append(messages, models.ChatMessage{Role: "assistant", Content: assistantPrompt})
	}

	return messages
}

// Truncate caps context at MaxContextChars characters. The cut counts runes,
// not bytes, so multibyte text keeps its full budget and is never split
// mid-character.
func Truncate(context string) string {
	runes := []rune(context)
	if len(runes) > MaxContextChars {
		return string(runes[:MaxContextChars])
	}
	return context
}
