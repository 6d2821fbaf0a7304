// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"strconv"
	"strings"

	"github.com/jllopis/agentloop/pkg/capability"
)

// PromptInput is everything the encoder needs to build one turn's prompt.
type PromptInput struct {
	// Context is the rendered conversation memory.
	Context string
	// Catalog lists the capabilities the backend may choose from.
	Catalog []capability.Entry
	// UserInput is the raw text of the current turn.
	UserInput string
}

// EncodePrompt renders the instruction block sent to the backend.
// It has no side effects.
func EncodePrompt(in PromptInput) string {
	var b strings.Builder

	b.WriteString("You are an assistant that helps process user requests by determining the appropriate action and arguments based on the user's input.\n")
	b.WriteString("Context:\n")
	b.WriteString(in.Context)
	b.WriteString("\n\n")

	b.WriteString("Available tools:\n")
	if len(in.Catalog) == 0 {
		b.WriteString("(none)\n")
	}
	for _, e := range in.Catalog {
		b.WriteString("- ")
		b.WriteString(e.Name)
		b.WriteString(": ")
		b.WriteString(strings.Join(strings.Fields(e.Description), " "))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')

	b.WriteString("Instructions:\n")
	b.WriteString("- Decide whether to use a tool or respond directly to the user.\n")
	b.WriteString("- If you choose to use a tool, output a JSON object with \"action\" and \"args\" fields. Use exactly one tool, named exactly as listed above.\n")
	b.WriteString("- If you choose to respond directly, set \"action\": \"" + ActionRespond + "\" and provide your response in \"args\".\n")
	b.WriteString("- \"args\" is a string, or an array of strings for tools that take several arguments.\n")
	b.WriteString("- **Important**: Provide the response **only** as a valid JSON object. Do not include any additional text or formatting.\n")
	b.WriteString("- Ensure that the JSON is properly formatted without any syntax errors.\n\n")

	b.WriteString("Response Format:\n")
	b.WriteString("{\"action\": \"<action_name>\", \"args\": \"<arguments>\"}\n\n")

	b.WriteString("Example Responses:\n")
	b.WriteString("- Using a tool: {\"action\": \"<tool_name>\", \"args\": \"<argument>\"}\n")
	b.WriteString("- Using a tool with several arguments: {\"action\": \"<tool_name>\", \"args\": [\"<first>\", \"<second>\"]}\n")
	b.WriteString("- Responding directly: {\"action\": \"" + ActionRespond + "\", \"args\": \"I'm here to help!\"}\n\n")

	b.WriteString("User Input: ")
	b.WriteString(strconv.Quote(in.UserInput))
	b.WriteByte('\n')

	return b.String()
}
