// SPDX-License-Identifier: Apache-2.0
package protocol

import (
	"strings"
	"testing"

	"github.com/jllopis/agentloop/pkg/capability"
	"github.com/stretchr/testify/assert"
)

func TestEncodePrompt(t *testing.T) {
	in := PromptInput{
		Context: "User: hi\nAgent: {\"action\": \"respond_to_user\", \"args\": \"hello\"}",
		Catalog: []capability.Entry{
			{Name: "Time Tool", Description: "Returns the current time.\n   Accepts a timezone."},
			{Name: "Calculator Tool", Description: "Evaluates arithmetic."},
		},
		UserInput: `what "time" is it?`,
	}

	prompt := EncodePrompt(in)

	assert.Contains(t, prompt, "Context:\n"+in.Context)
	assert.Contains(t, prompt, "- Time Tool: Returns the current time. Accepts a timezone.\n")
	assert.Contains(t, prompt, "- Calculator Tool: Evaluates arithmetic.\n")
	assert.Contains(t, prompt, `"action": "respond_to_user"`)
	assert.Contains(t, prompt, `User Input: "what \"time\" is it?"`)
	assert.Less(t, strings.Index(prompt, "Time Tool"), strings.Index(prompt, "Calculator Tool"))
	assert.Less(t, strings.Index(prompt, "Available tools:"), strings.Index(prompt, "User Input:"))
}

func TestEncodePromptEmptyCatalog(t *testing.T) {
	prompt := EncodePrompt(PromptInput{UserInput: "hello"})
	assert.Contains(t, prompt, "Available tools:\n(none)\n")
}

func TestEncodePromptIsPure(t *testing.T) {
	in := PromptInput{Context: "User: a", UserInput: "a"}
	assert.Equal(t, EncodePrompt(in), EncodePrompt(in))
}
