package eval

import "fmt"

const generatePrompt = `
Generate %d diverse questions that can be answered using the information in the following document.
For each question, also provide the expected answer based on the document content.

Format the output as a JSON array of objects, each with 'question' and 'expectedAnswer' fields.

Document content:
%s
`

const validatePrompt = `
Does the following response correctly answer the question?

Question: %s
Expected Answer: %s

Response: %s

Answer 'yes' or 'no' with a brief explanation.
`

// GeneratePrompt renders the pair generation prompt.
func GeneratePrompt(content string, count int) string {
	return fmt.Sprintf(generatePrompt, count, content)
}

// ValidatePrompt renders the yes/no judging prompt.
func ValidatePrompt(question, expected, retrieved string) string {
	return fmt.Sprintf(validatePrompt, question, expected, retrieved)
}
