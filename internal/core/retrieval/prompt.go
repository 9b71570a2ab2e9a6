package retrieval

const basePrompt = "You are a helpful assistant. Answer the user's question clearly and concisely."

// BuildSystemPrompt folds retrieved document context into the system prompt.
// With no context the base prompt is returned unchanged and the model answers
// from general knowledge.
func BuildSystemPrompt(docContext string) string {
	if docContext == "" {
		return basePrompt
	}
	return basePrompt + "\n\n" +
		"Use the following document excerpts to answer when they are relevant. " +
		"Cite the source filename when you rely on an excerpt. " +
		"If the excerpts do not contain the answer, say so and answer from general knowledge.\n\n" +
		docContext
}
