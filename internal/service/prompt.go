package service

import (
	"fmt"

	"github.com/xxxsen/kbchat/internal/model"
)

const (
	DefaultKBVersion = "unknown"

	RefusalSentence = "I don't have that specific information available."
	versionReply    = "The current knowledge base version is: %s"
)

const groundingTemplate = `You are a helpful AI assistant with access to a knowledge base.

CRITICAL RULES:
1. NEVER invent information that is not in the context.
2. ONLY answer based on the provided information.
3. If the information is not available, say: "%s"

SPECIAL COMMAND: If the user asks for "knowledge base version" or "KB version", respond with: "%s"

Here is relevant information from the knowledge base:

%s

Answer ONLY based on the provided information. Never mention the "knowledge base" or that the information comes from a database.

Format your responses with Markdown for better readability (bold, lists, etc.).`

// GroundingInstruction returns the system instruction carrying the retrieved
// context.
func GroundingInstruction(contextText, kbVersion string) string {
	if kbVersion == "" {
		kbVersion = DefaultKBVersion
	}
	return fmt.Sprintf(groundingTemplate, RefusalSentence, fmt.Sprintf(versionReply, kbVersion), contextText)
}

// InjectContext returns a copy of messages with the grounding instruction
// appended to the first system message, or prepended as a new one. An empty
// context leaves the conversation unchanged.
func InjectContext(messages []model.Message, contextText, kbVersion string) []model.Message {
	out := make([]model.Message, len(messages), len(messages)+1)
	copy(out, messages)
	if contextText == "" {
		return out
	}
	instruction := GroundingInstruction(contextText, kbVersion)
	for i := range out {
		if out[i].Role == model.RoleSystem {
			out[i].Content += "\n\n" + instruction
			return out
		}
	}
	return append([]model.Message{{Role: model.RoleSystem, Content: instruction}}, out...)
}

// SplitSystem separates system prompt blocks from the ordered conversation
// turns.
func SplitSystem(messages []model.Message) ([]string, []model.Message) {
	var system []string
	turns := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
