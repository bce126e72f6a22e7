package personality

import "regenie/internal/domain"

const fullStructuredInstructions = `
  - Your response should be formated as a valid JSON object and not surrounded by backticks.
  - The JSON object should have the following structure:
  {
    "threadTitle": "A short title for the entire thread include emojis.",
    "response": "Your response to the user's message. This is the most important part of the response. Format the response with markdown and a lot of emojis.",
    "followUps": "Optional array of follow up prompts from the user's perspective to continue the conversation"
  }
`

const simpleStructuredInstructions = `
  - Your response should be formated as a valid JSON object and not surrounded by backticks.
  - The JSON object should have the following structure:
  {
    "response": "Your response to the user's message. This is the most important part of the response. Format the response with markdown and a lot of emojis."
  }
`

// StructuredInstructions returns the output-format suffix appended to the
// system prompt for the given schema.
func StructuredInstructions(kind domain.SchemaKind) string {
	if kind == domain.SchemaSimple {
		return simpleStructuredInstructions
	}
	return fullStructuredInstructions
}

// SystemMessage joins a personality prompt and the structured-output
// instructions into the leading system message of a generation.
func SystemMessage(prompt string, kind domain.SchemaKind) string {
	return prompt + "\n\n" + StructuredInstructions(kind)
}
